// Package mock provides a scriptable speech engine for tests and demos.
package mock

import (
	"strings"
	"sync"
	"time"

	"github.com/bigairlab/narrate/speech"
)

// Call operations recorded by the engine.
const (
	OpSpeak  = "speak"
	OpCancel = "cancel"
	OpPause  = "pause"
	OpResume = "resume"
)

// Call is one recorded call into the engine.
type Call struct {
	Op        string
	Utterance speech.Utterance // set for OpSpeak
}

// Engine implements speech.Engine. In the default mode nothing happens on
// its own: tests deliver lifecycle events with the Fire helpers. In auto
// mode every utterance starts and ends by itself.
type Engine struct {
	mu sync.Mutex

	available bool
	voices    []speech.Voice
	listeners map[int]func()
	nextSub   int

	paused   bool
	speakErr error
	calls    []Call

	current speech.Utterance
	handler speech.EventHandler

	// auto mode
	auto          bool
	wordsPerMin   int
	startDelay    time.Duration
	cancelCurrent chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutVoices starts the engine with an empty voice list, as engines that
// enumerate voices lazily do.
func WithoutVoices() Option {
	return func(e *Engine) {
		e.voices = nil
	}
}

// WithAuto makes the engine speak on its own at wordsPerMinute, firing
// start after startDelay.
func WithAuto(wordsPerMinute int, startDelay time.Duration) Option {
	return func(e *Engine) {
		e.auto = true
		e.wordsPerMin = wordsPerMinute
		e.startDelay = startDelay
	}
}

// New creates a mock engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		available: true,
		listeners: make(map[int]func()),
		voices:    DefaultVoices(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.auto && e.wordsPerMin <= 0 {
		e.wordsPerMin = 150
	}
	return e
}

// DefaultVoices returns the voices a new engine reports.
func DefaultVoices() []speech.Voice {
	return []speech.Voice{
		{ID: "mock-en-gb", Name: "Mock British", Language: "en-GB"},
		{ID: "mock-en-us", Name: "Mock American", Language: "en-US", Default: true},
		{ID: "mock-fr-fr", Name: "Mock French", Language: "fr-FR"},
	}
}

// Available reports the value set by SetAvailable (true by default).
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Voices returns a copy of the current voice list.
func (e *Engine) Voices() []speech.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Voice(nil), e.voices...)
}

// OnVoicesChanged registers fn for SetVoices.
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

// Speak records the utterance and makes it the target of the Fire helpers.
func (e *Engine) Speak(u speech.Utterance, handler speech.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, Call{Op: OpSpeak, Utterance: u})
	if e.speakErr != nil {
		return e.speakErr
	}
	e.current = u
	e.handler = handler

	if e.auto {
		done := make(chan struct{})
		e.cancelCurrent = done
		go e.run(u, handler, done)
	}
	return nil
}

// CancelAll records the call and clears the paused flag. In auto mode the
// in-flight utterance reports interrupted.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, Call{Op: OpCancel})
	e.paused = false
	if e.cancelCurrent != nil {
		close(e.cancelCurrent)
		e.cancelCurrent = nil
	}
}

// Pause records the call and sets the paused flag.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpPause})
	e.paused = true
}

// Resume records the call and clears the paused flag.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpResume})
	e.paused = false
}

// Paused reports the engine's paused flag.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Test control methods

// SetAvailable sets what Available reports.
func (e *Engine) SetAvailable(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = ok
}

// SetPaused sets the paused flag without recording a call.
func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
}

// SetSpeakError makes every following Speak call fail with err.
func (e *Engine) SetSpeakError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speakErr = err
}

// SetVoices replaces the voice list and notifies subscribers.
func (e *Engine) SetVoices(voices []speech.Voice) {
	e.mu.Lock()
	e.voices = append([]speech.Voice(nil), voices...)
	listeners := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Subscribers returns the number of voice-change subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Calls returns every recorded call in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Ops returns the operation names of every recorded call in order.
func (e *Engine) Ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops := make([]string, len(e.calls))
	for i, c := range e.calls {
		ops[i] = c.Op
	}
	return ops
}

// Spoken returns every utterance passed to Speak in order.
func (e *Engine) Spoken() []speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []speech.Utterance
	for _, c := range e.calls {
		if c.Op == OpSpeak {
			out = append(out, c.Utterance)
		}
	}
	return out
}

// Current returns the last utterance accepted by Speak.
func (e *Engine) Current() (speech.Utterance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.handler != nil
}

// ResetCalls clears the call log.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

// FireStart delivers a start event for the current utterance.
func (e *Engine) FireStart() { e.fire(speech.EventStart, "") }

// FireEnd delivers an end event for the current utterance.
func (e *Engine) FireEnd() { e.fire(speech.EventEnd, "") }

// FireError delivers an error event with code for the current utterance.
func (e *Engine) FireError(code speech.ErrorCode) { e.fire(speech.EventError, code) }

// FirePause delivers a pause event for the current utterance.
func (e *Engine) FirePause() { e.fire(speech.EventPause, "") }

// FireResume delivers a resume event for the current utterance.
func (e *Engine) FireResume() { e.fire(speech.EventResume, "") }

// FireFor delivers an arbitrary event to the current handler, letting tests
// replay events for superseded utterances.
func (e *Engine) FireFor(ev speech.Event) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (e *Engine) fire(kind speech.EventKind, code speech.ErrorCode) {
	e.mu.Lock()
	h := e.handler
	u := e.current
	e.mu.Unlock()
	if h == nil {
		return
	}
	h(speech.Event{Kind: kind, Utterance: u.ID, Chunk: u.Chunk, Code: code})
}

const tick = 10 * time.Millisecond

// run plays u in auto mode until it ends or done is closed.
func (e *Engine) run(u speech.Utterance, h speech.EventHandler, done <-chan struct{}) {
	event := func(kind speech.EventKind, code speech.ErrorCode) {
		h(speech.Event{Kind: kind, Utterance: u.ID, Chunk: u.Chunk, Code: code})
	}

	select {
	case <-done:
		event(speech.EventError, speech.CodeInterrupted)
		return
	case <-time.After(e.startDelay):
	}
	event(speech.EventStart, "")

	remaining := e.estimateDuration(u)
	wasPaused := false
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			event(speech.EventError, speech.CodeInterrupted)
			return
		case <-ticker.C:
		}

		paused := e.Paused()
		if paused != wasPaused {
			wasPaused = paused
			if paused {
				event(speech.EventPause, "")
			} else {
				event(speech.EventResume, "")
			}
		}
		if paused {
			continue
		}

		remaining -= tick
		if remaining <= 0 {
			e.mu.Lock()
			canceled := e.cancelCurrent != done
			if !canceled {
				e.cancelCurrent = nil
			}
			e.mu.Unlock()
			if canceled {
				event(speech.EventError, speech.CodeInterrupted)
			} else {
				event(speech.EventEnd, "")
			}
			return
		}
	}
}

// estimateDuration estimates speaking time from the word count and rate.
func (e *Engine) estimateDuration(u speech.Utterance) time.Duration {
	words := len(strings.Fields(u.Text))
	if words < 1 {
		words = 1
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	seconds := float64(words) * 60.0 / float64(e.wordsPerMin) / rate
	return time.Duration(seconds * float64(time.Second))
}
