// Package ui provides the terminal reader for narrate.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	te "github.com/muesli/termenv"

	"github.com/bigairlab/narrate/speech"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "Copied share link"
	loadTimeout          = time.Second * 30
	ellipsis             = "…"
	keyEsc               = "esc"
)

// NewProgram returns a new Tea program reading the document returned by
// load with ctl. Controller updates are forwarded into the program.
func NewProgram(cfg Config, ctl *speech.Controller, load Loader) *tea.Program {
	log.Debug(
		"Starting narrate",
		"high_perf_pager",
		cfg.HighPerformancePager,
		"glamour",
		cfg.GlamourEnabled,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(cfg, ctl, load)
	p := tea.NewProgram(m, opts...)
	speech.Bind(ctl, p)
	return p
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	statusMessageTimeoutMsg struct{}
	documentLoadedMsg       Document
	// contentReadyMsg reports that the controller holds document seq.
	contentReadyMsg struct{ seq int }
)

// Common stuff we'll need to access in the model.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common *commonModel
	pager  pagerModel
	ctl    *speech.Controller
	load   Loader

	// watcher is set once a local document is on screen.
	watcher *fileWatcher

	loaded   bool
	fatalErr error

	// seq numbers loaded documents. ready is true once the controller holds
	// the text of document seq, and gates reading.
	seq   int
	ready bool
}

func newModel(cfg Config, ctl *speech.Controller, load Loader) model {
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	common := commonModel{
		cfg: cfg,
	}

	m := model{
		common: &common,
		pager:  newPagerModel(&common),
		ctl:    ctl,
		load:   load,
	}
	m.pager.speech = ctl.State()
	return m
}

func (m model) Init() tea.Cmd {
	return loadDocument(m.load)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, m.shutdown()
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, m.shutdown()

		case "ctrl+z":
			return m, tea.Suspend

		case " ", "enter":
			if !m.ready {
				return m, nil
			}
			return m, speech.ToggleCmd(m.ctl)

		case "s":
			return m, speech.StopCmd(m.ctl)

		case "r":
			return m, loadDocument(m.load)
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.pager.setSize(msg.Width, msg.Height)

	case documentLoadedMsg:
		doc := Document(msg)
		log.Debug("document loaded", "id", doc.ID, "path", doc.LocalPath, "bodyLength", len(doc.Body))
		m.loaded = true
		m.seq++
		m.ready = false
		m.pager.currentDocument = doc
		cmds = append(cmds, replaceContent(m.ctl, doc, m.seq), renderWithGlamour(m.pager, doc.Markdown))
		if cmd := m.watch(doc); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case contentReadyMsg:
		if msg.seq == m.seq {
			m.ready = true
		}
		return m, nil

	// The file was changed on disk and we're reloading it
	case reloadMsg:
		cmds = append(cmds, loadDocument(m.load))
		if m.watcher != nil {
			cmds = append(cmds, m.watcher.wait)
		}
		return m, tea.Batch(cmds...)

	case errMsg:
		if !m.loaded {
			m.fatalErr = msg.err
			return m, nil
		}
		return m, m.pager.showStatusMessage(pagerStatusMessage{msg.Error(), true})
	}

	newPagerModel, cmd := m.pager.update(msg)
	m.pager = newPagerModel
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// watch starts watching doc's file the first time a local document is
// shown.
func (m *model) watch(doc Document) tea.Cmd {
	if !m.common.cfg.Watch || doc.LocalPath == "" || m.watcher != nil {
		return nil
	}
	w, err := newFileWatcher(doc.LocalPath)
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return nil
	}
	m.watcher = w
	return w.wait
}

// shutdown releases the watcher and returns a command that stops reading
// before quitting.
func (m *model) shutdown() tea.Cmd {
	if m.watcher != nil {
		m.watcher.close()
		m.watcher = nil
	}
	if m.pager.statusMessageTimer != nil {
		m.pager.statusMessageTimer.Stop()
	}
	return tea.Sequence(speech.StopCmd(m.ctl), tea.Quit)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	if !m.loaded {
		return ""
	}
	return m.pager.View()
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func loadDocument(load Loader) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		doc, err := load(ctx)
		if err != nil {
			log.Error("error loading document", "error", err)
			return errMsg{err}
		}
		return documentLoadedMsg(doc)
	}
}

// replaceContent stops any job built from the previous text and hands the
// new document to the controller. The controller notifies listeners
// synchronously, so this must run off the update loop.
func replaceContent(ctl *speech.Controller, doc Document, seq int) tea.Cmd {
	return func() tea.Msg {
		ctl.Stop()
		ctl.SetContent(doc.Title, doc.Body)
		return contentReadyMsg{seq: seq}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
