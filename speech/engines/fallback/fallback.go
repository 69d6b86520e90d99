// Package fallback chains speech engines: it speaks with the first one
// available and moves on to the next after repeated failures.
package fallback

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bigairlab/narrate/speech"
)

// DefaultMaxFailures is how many consecutive failures switch engines.
const DefaultMaxFailures = 2

// Engine implements speech.Engine over an ordered list of engines.
type Engine struct {
	mu          sync.Mutex
	engines     []speech.Engine
	active      int
	failures    int
	maxFailures int

	// speaking is the engine the last utterance went to.
	speaking speech.Engine
}

// New returns an engine that prefers engines in the given order.
func New(maxFailures int, engines ...speech.Engine) *Engine {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	return &Engine{engines: engines, maxFailures: maxFailures}
}

// Active returns the engine currently in use, or nil if none is available.
func (e *Engine) Active() speech.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLocked()
}

// activeLocked skips engines that are not available on this host.
func (e *Engine) activeLocked() speech.Engine {
	for e.active < len(e.engines) {
		if e.engines[e.active].Available() {
			return e.engines[e.active]
		}
		log.Debug("fallback: engine unavailable", "index", e.active)
		e.active++
		e.failures = 0
	}
	return nil
}

// switchLocked gives up on the active engine. It reports whether another
// engine is left to try.
func (e *Engine) switchLocked() bool {
	if e.active+1 >= len(e.engines) {
		return false
	}
	log.Warn("fallback: switching engine", "failures", e.failures)
	e.active++
	e.failures = 0
	return e.activeLocked() != nil
}

func (e *Engine) Available() bool {
	return e.Active() != nil
}

func (e *Engine) Voices() []speech.Voice {
	if a := e.Active(); a != nil {
		return a.Voices()
	}
	return nil
}

// OnVoicesChanged subscribes to every engine, since the active one may
// change later.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	unsubs := make([]func(), 0, len(e.engines))
	for _, eng := range e.engines {
		unsubs = append(unsubs, eng.OnVoicesChanged(fn))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Speak dispatches u to the active engine. A synchronous failure counts
// against the engine and, once it reaches the limit, u is retried on the
// next one.
func (e *Engine) Speak(u speech.Utterance, handler speech.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		eng := e.activeLocked()
		if eng == nil {
			return speech.ErrEngineUnsupported
		}
		index := e.active
		err := eng.Speak(u, e.track(index, handler))
		if err == nil {
			e.speaking = eng
			return nil
		}
		e.failures++
		log.Warn("fallback: speak failed", "index", index, "failures", e.failures, "err", err)
		if e.failures < e.maxFailures || !e.switchLocked() {
			return err
		}
	}
}

// track wraps handler so asynchronous failures count against the engine
// at index and a successful start resets the count.
func (e *Engine) track(index int, handler speech.EventHandler) speech.EventHandler {
	return func(ev speech.Event) {
		e.mu.Lock()
		if index == e.active {
			switch {
			case ev.Kind == speech.EventStart:
				e.failures = 0
			case ev.Kind == speech.EventError && !speech.IsRecoverable(ev.Code):
				e.failures++
				if e.failures >= e.maxFailures {
					e.switchLocked()
				}
			}
		}
		e.mu.Unlock()
		handler(ev)
	}
}

// CancelAll cancels every engine so nothing keeps playing after a switch.
func (e *Engine) CancelAll() {
	for _, eng := range e.engines {
		eng.CancelAll()
	}
}

func (e *Engine) Pause() {
	if s := e.current(); s != nil {
		s.Pause()
	}
}

func (e *Engine) Resume() {
	if s := e.current(); s != nil {
		s.Resume()
	}
}

func (e *Engine) Paused() bool {
	s := e.current()
	return s != nil && s.Paused()
}

func (e *Engine) current() speech.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}
