package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/bigairlab/narrate/blog"
	"github.com/bigairlab/narrate/speech"
)

const statusBarHeight = 1

var pagerHelpHeight int

type (
	contentRenderedMsg string
	reloadMsg          struct{}
)

type pagerState int

const (
	pagerStateBrowse pagerState = iota
	pagerStateStatusMessage
)

type pagerStatusMessage struct {
	message string
	isError bool
}

type pagerModel struct {
	common   *commonModel
	viewport viewport.Model
	spinner  spinner.Model
	state    pagerState
	showHelp bool

	statusMessage      pagerStatusMessage
	statusMessageTimer *time.Timer

	// Current document, sans-glamour rendering. We keep it here so we can
	// re-render it on resize.
	currentDocument Document

	// Latest snapshot received from the speech controller.
	speech speech.Snapshot
}

func newPagerModel(common *commonModel) pagerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	vp.HighPerformanceRendering = common.cfg.HighPerformancePager

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(mintGreen).Background(statusBarBg)

	return pagerModel{
		common:   common,
		state:    pagerStateBrowse,
		viewport: vp,
		spinner:  sp,
	}
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h - statusBarHeight

	if m.showHelp {
		if pagerHelpHeight == 0 {
			pagerHelpHeight = strings.Count(m.helpView(), "\n")
		}
		m.viewport.Height -= (statusBarHeight + pagerHelpHeight)
	}
}

func (m *pagerModel) setContent(s string) {
	m.viewport.SetContent(s)
}

func (m *pagerModel) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.common.width, m.common.height)
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

// showStatusMessage displays msg in the status bar until it times out.
// The returned command must be sent back through the update function.
func (m *pagerModel) showStatusMessage(msg pagerStatusMessage) tea.Cmd {
	m.state = pagerStateStatusMessage
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *pagerModel) copyShareLink() tea.Cmd {
	link := m.currentDocument.LocalPath
	what := "Copied path"
	if m.currentDocument.ID != "" {
		link = blog.ShareURL(m.common.cfg.SiteURL, m.currentDocument.ID)
		what = "Copied share link"
	}
	if link == "" {
		return m.showStatusMessage(pagerStatusMessage{"Nothing to copy", true})
	}

	// Copy using OSC 52
	termenv.Copy(link)
	// Copy using native system clipboard
	if err := clipboard.WriteAll(link); err != nil {
		log.Debug("native clipboard unavailable", "error", err)
	}
	return m.showStatusMessage(pagerStatusMessage{what, false})
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyEsc:
			if m.state != pagerStateBrowse {
				m.state = pagerStateBrowse
				return m, nil
			}
		case "home", "g":
			m.viewport.GotoTop()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		case "end", "G":
			m.viewport.GotoBottom()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		case "d":
			m.viewport.HalfViewDown()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		case "u":
			m.viewport.HalfViewUp()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		case "c":
			cmds = append(cmds, m.copyShareLink())
		case "?":
			m.toggleHelp()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		}

	case contentRenderedMsg:
		log.Info("content rendered", "state", m.state)
		m.setContent(string(msg))
		if m.viewport.HighPerformanceRendering {
			cmds = append(cmds, viewport.Sync(m.viewport))
		}

	case tea.WindowSizeMsg:
		return m, renderWithGlamour(m, m.currentDocument.Markdown)

	case statusMessageTimeoutMsg:
		m.state = pagerStateBrowse

	case speech.StateChangedMsg:
		wasLoading := m.speech.IsLoading
		m.speech = msg.Snapshot
		if m.speech.IsLoading && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}

	case speech.NoticeMsg:
		cmds = append(cmds, m.showStatusMessage(pagerStatusMessage{msg.Message(), true}))

	case spinner.TickMsg:
		if m.speech.IsLoading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m pagerModel) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")

	// Footer
	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}

	return b.String()
}

// controlLabel names what the playback key will do next.
func controlLabel(s speech.Snapshot) string {
	switch s.Status {
	case speech.StatusLoading:
		return "Loading"
	case speech.StatusPlaying:
		return "Pause"
	case speech.StatusPaused:
		return "Resume"
	default:
		return "Listen"
	}
}

// progressLabel shows the chunk being read, e.g. "2/7".
func progressLabel(s speech.Snapshot) string {
	if s.Status == speech.StatusIdle || s.Total == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", min(s.Chunk+1, s.Total), s.Total)
}

func (m pagerModel) controlView(showStatusMessage bool) string {
	label := " ␣ " + controlLabel(m.speech)
	if m.speech.IsLoading {
		label = " " + m.spinner.View() + " " + controlLabel(m.speech)
	}
	if p := progressLabel(m.speech); p != "" {
		label += " " + p
	}
	label += " "

	switch {
	case showStatusMessage:
		return statusBarMessageControlStyle(label)
	case m.speech.Status == speech.StatusPlaying:
		return statusBarPlayingStyle(label)
	default:
		return statusBarControlStyle(label)
	}
}

func (m pagerModel) statusBarView(b *strings.Builder) {
	const (
		minPercent               float64 = 0.0
		maxPercent               float64 = 1.0
		percentToStringMagnitude float64 = 100.0
	)

	showStatusMessage := m.state == pagerStateStatusMessage

	// Logo
	logo := logoView()

	// Speech control
	control := m.controlView(showStatusMessage)

	// Scroll percent
	percent := math.Max(minPercent, math.Min(maxPercent, m.viewport.ScrollPercent()))
	scrollPercent := fmt.Sprintf(" %3.f%% ", percent*percentToStringMagnitude)
	if showStatusMessage {
		scrollPercent = statusBarMessageScrollPosStyle(scrollPercent)
	} else {
		scrollPercent = statusBarScrollPosStyle(scrollPercent)
	}

	// "Help" note
	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" ? Help ")
	} else {
		helpNote = statusBarHelpStyle(" ? Help ")
	}

	// Note
	note := m.currentDocument.Note
	if showStatusMessage {
		note = m.statusMessage.message
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(control)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	switch {
	case showStatusMessage && m.statusMessage.isError:
		note = statusBarErrorStyle(note)
	case showStatusMessage:
		note = statusBarMessageStyle(note)
	default:
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(control)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		logo,
		control,
		note,
		emptySpace,
		scrollPercent,
		helpNote,
	)
}

func (m pagerModel) helpView() (s string) {
	col1 := []string{
		"space   listen / pause / resume",
		"s       stop reading",
		"c       copy share link",
		"r       reload article",
		"q       quit",
	}

	s += "\n"
	s += "k/↑      up                  " + col1[0] + "\n"
	s += "j/↓      down                " + col1[1] + "\n"
	s += "b/pgup   page up             " + col1[2] + "\n"
	s += "f/pgdn   page down           " + col1[3] + "\n"
	s += "u/d      ½ page up/down      " + col1[4] + "\n"
	s += "g/G      top/bottom"

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.common.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}

		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}

// COMMANDS

func renderWithGlamour(m pagerModel, md string) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(m.common.cfg, m.viewport.Width, md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg(s)
	}
}

func glamourRender(cfg Config, viewportWidth int, markdown string) (string, error) {
	if !cfg.GlamourEnabled {
		return markdown, nil
	}

	width := max(0, min(int(cfg.GlamourMaxWidth), viewportWidth)) //nolint:gosec
	options := []glamour.TermRendererOption{
		glamourStyle(cfg.GlamourStyle),
		glamour.WithWordWrap(width),
	}
	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if style == "" || style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	return glamour.WithStylePath(style)
}
