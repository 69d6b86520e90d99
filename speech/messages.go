package speech

import tea "github.com/charmbracelet/bubbletea"

// Messages for Bubble Tea communication between the controller and the UI.

// StateChangedMsg carries a new controller snapshot.
type StateChangedMsg struct {
	Snapshot
}

// NoticeMsg carries a user-visible notice.
type NoticeMsg struct {
	Notice
}

// Bind forwards controller updates into a running Bubble Tea program.
func Bind(c *Controller, p *tea.Program) {
	c.OnStateChange(func(s Snapshot) {
		p.Send(StateChangedMsg{s})
	})
	c.OnNotice(func(n Notice) {
		p.Send(NoticeMsg{n})
	})
}

// ToggleCmd returns a command that toggles playback off the update loop.
// Failures reach the UI through the notice listener.
func ToggleCmd(c *Controller) tea.Cmd {
	return func() tea.Msg {
		_ = c.Toggle()
		return nil
	}
}

// StopCmd returns a command that stops playback.
func StopCmd(c *Controller) tea.Cmd {
	return func() tea.Msg {
		c.Stop()
		return nil
	}
}
