package speech

import "time"

// Engine is the text-to-speech capability the controller drives.
//
// Implementations must deliver events asynchronously: never from inside a
// call the controller makes into the engine, and never while holding a lock
// the engine's own methods take. CancelAll must not wait for event delivery.
type Engine interface {
	// Available reports whether the host has a usable speech capability.
	Available() bool

	// Voices returns the voices known so far. It may be empty.
	Voices() []Voice

	// OnVoicesChanged registers fn to run whenever the voice list changes.
	// The returned function removes the registration.
	OnVoicesChanged(fn func()) (unsubscribe func())

	// Speak dispatches one utterance. Lifecycle events for it are delivered
	// to handler tagged with u.ID.
	Speak(u Utterance, handler EventHandler) error

	// CancelAll aborts any in-flight or queued utterance and clears the
	// paused state.
	CancelAll()

	Pause()
	Resume()

	// Paused reports whether the engine considers itself suspended.
	Paused() bool
}

// Voice is one voice an engine can speak with.
type Voice struct {
	ID       string
	Name     string
	Language string // BCP 47 tag, e.g. "en-US"
	Default  bool
}

// Utterance is a single chunk dispatched to the engine.
type Utterance struct {
	ID       uint64
	Chunk    int
	Text     string
	Rate     float64
	Pitch    float64
	Volume   float64
	Language string
	Voice    *Voice // nil means the engine default
}

// EventKind is the lifecycle stage an engine reports.
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventError
	EventPause
	EventResume
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Event is the single type every engine callback is expressed as.
type Event struct {
	Kind      EventKind
	Utterance uint64
	Chunk     int
	Code      ErrorCode // set for EventError
}

// EventHandler receives engine events.
type EventHandler func(Event)

// Timer is a scheduled task that can be cancelled.
type Timer interface {
	// Stop prevents the task from running. It reports false if the task
	// already ran or was stopped.
	Stop() bool
}

// Scheduler runs tasks after a delay. Tasks run on their own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}
