// Package espeak speaks through an espeak-ng (or espeak) subprocess, one
// process per utterance.
package espeak

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bigairlab/narrate/speech"
)

// Binaries tried in order when no binary is configured.
var Binaries = []string{"espeak-ng", "espeak"}

const (
	defaultWordsPerMinute = 175
	defaultPitch          = 50
	defaultAmplitude      = 100
)

// ErrNotFound means no espeak binary is on PATH.
var ErrNotFound = errors.New("espeak-ng not found in PATH")

// process is one running utterance.
type process struct {
	id       uint64
	chunk    int
	cmd      *exec.Cmd
	canceled bool
}

// Engine implements speech.Engine on top of the espeak command line.
type Engine struct {
	mu sync.Mutex

	binary    string
	voices    []speech.Voice
	listeners map[int]func()
	nextSub   int

	current *process
	paused  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBinary uses path instead of searching PATH.
func WithBinary(path string) Option {
	return func(e *Engine) {
		e.binary = path
	}
}

// New creates an engine and starts loading the voice list in the
// background. Subscribers are notified once the list is known.
func New(opts ...Option) *Engine {
	e := &Engine{listeners: make(map[int]func())}
	for _, opt := range opts {
		opt(e)
	}
	if e.binary == "" {
		e.binary = lookPath()
	}
	if e.binary != "" {
		go e.loadVoices(context.Background())
	}
	return e
}

func lookPath() string {
	for _, name := range Binaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Available reports whether an espeak binary was found.
func (e *Engine) Available() bool {
	return e.binary != ""
}

// Voices returns the voices loaded so far.
func (e *Engine) Voices() []speech.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Voice(nil), e.voices...)
}

// OnVoicesChanged registers fn to run when the voice list has loaded.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *Engine) loadVoices(ctx context.Context) {
	out, err := exec.CommandContext(ctx, e.binary, "--voices").Output()
	if err != nil {
		log.Warn("espeak: listing voices", "err", err)
		return
	}
	voices := ParseVoices(string(out))
	log.Debug("espeak: voices loaded", "count", len(voices))

	e.mu.Lock()
	e.voices = voices
	listeners := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// ParseVoices parses the table printed by "espeak-ng --voices".
func ParseVoices(out string) []speech.Voice {
	var voices []speech.Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, speech.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		})
	}
	return voices
}

// Args builds the command line for u.
func Args(u speech.Utterance) []string {
	voice := u.Language
	if u.Voice != nil && u.Voice.ID != "" {
		voice = u.Voice.ID
	}
	args := []string{
		"-s", strconv.Itoa(scale(u.Rate, defaultWordsPerMinute, 80, 500)),
		"-p", strconv.Itoa(scale(u.Pitch, defaultPitch, 0, 99)),
		"-a", strconv.Itoa(scale(u.Volume, defaultAmplitude, 0, 200)),
	}
	if voice != "" {
		args = append(args, "-v", strings.ToLower(voice))
	}
	return append(args, "--stdin")
}

func scale(factor float64, base, lo, hi int) int {
	if factor <= 0 {
		factor = 1
	}
	v := int(factor*float64(base) + 0.5)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Speak starts an espeak process for u. Events are delivered from a
// separate goroutine.
func (e *Engine) Speak(u speech.Utterance, handler speech.EventHandler) error {
	if e.binary == "" {
		return ErrNotFound
	}

	cmd := exec.Command(e.binary, Args(u)...)
	cmd.Stdin = strings.NewReader(u.Text)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", e.binary, err)
	}
	p := &process{id: u.ID, chunk: u.Chunk, cmd: cmd}
	e.current = p
	e.paused = false

	go e.wait(p, handler)
	return nil
}

func (e *Engine) wait(p *process, handler speech.EventHandler) {
	event := func(kind speech.EventKind, code speech.ErrorCode) {
		handler(speech.Event{Kind: kind, Utterance: p.id, Chunk: p.chunk, Code: code})
	}

	event(speech.EventStart, "")
	err := p.cmd.Wait()

	e.mu.Lock()
	canceled := p.canceled
	if e.current == p {
		e.current = nil
		e.paused = false
	}
	e.mu.Unlock()

	switch {
	case canceled:
		event(speech.EventError, speech.CodeInterrupted)
	case err != nil:
		log.Warn("espeak: utterance failed", "utterance", p.id, "err", err)
		event(speech.EventError, speech.CodeSynthesisFailed)
	default:
		event(speech.EventEnd, "")
	}
}

// CancelAll kills the running process without waiting for it.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.current
	e.current = nil
	e.paused = false
	if p == nil {
		return
	}
	p.canceled = true
	if p.cmd.Process != nil {
		// A stopped process must be continued before it can die.
		_ = resumeProcess(p.cmd.Process.Pid)
		_ = p.cmd.Process.Kill()
	}
}

// Pause suspends the running process.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.paused {
		return
	}
	if err := pauseProcess(e.current.cmd.Process.Pid); err != nil {
		log.Warn("espeak: pause", "err", err)
		return
	}
	e.paused = true
}

// Resume continues a suspended process.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || !e.paused {
		return
	}
	if err := resumeProcess(e.current.cmd.Process.Pid); err != nil {
		log.Warn("espeak: resume", "err", err)
		return
	}
	e.paused = false
}

// Paused reports whether the running process is suspended.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}
