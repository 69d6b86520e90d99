package speech

// Status is the playback status of the current job.
type Status int

const (
	// StatusIdle means no job exists.
	StatusIdle Status = iota
	// StatusLoading means chunk 0 was dispatched and has not started yet.
	StatusLoading
	// StatusPlaying means the user wants playback to continue.
	StatusPlaying
	// StatusPaused means the user asked playback to hold.
	StatusPaused
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Trigger is an input to the playback state machine.
type Trigger int

const (
	// TriggerToggle is the user activating the single control.
	TriggerToggle Trigger = iota
	// TriggerStarted is the engine reporting the in-flight utterance started.
	TriggerStarted
	// TriggerEnded is the engine reporting the in-flight utterance ended.
	TriggerEnded
	// TriggerInterrupted is a recoverable engine error.
	TriggerInterrupted
	// TriggerFailed is an unrecoverable engine error.
	TriggerFailed
	// TriggerTimeout is the start timeout expiring.
	TriggerTimeout
	// TriggerStop is an explicit cancel.
	TriggerStop
	// TriggerEnginePaused is a pause that did not come from Toggle.
	TriggerEnginePaused
	// TriggerEngineResumed is a resume that did not come from Toggle.
	TriggerEngineResumed
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerToggle:
		return "toggle"
	case TriggerStarted:
		return "started"
	case TriggerEnded:
		return "ended"
	case TriggerInterrupted:
		return "interrupted"
	case TriggerFailed:
		return "failed"
	case TriggerTimeout:
		return "timeout"
	case TriggerStop:
		return "stop"
	case TriggerEnginePaused:
		return "engine-paused"
	case TriggerEngineResumed:
		return "engine-resumed"
	default:
		return "unknown"
	}
}

// Action names the work the controller performs for a transition.
type Action int

const (
	ActionNone Action = iota
	// ActionBegin chunks the narration and dispatches chunk 0.
	ActionBegin
	// ActionLoaded disarms the start timeout.
	ActionLoaded
	// ActionAdvance moves to the next chunk after the inter-chunk delay.
	ActionAdvance
	// ActionFinish ends a job that ran to completion.
	ActionFinish
	// ActionHold stores the next index without dispatching it.
	ActionHold
	// ActionPause asks the engine to pause.
	ActionPause
	// ActionResume asks the engine to resume the suspended utterance.
	ActionResume
	// ActionRedispatch speaks the stored index again.
	ActionRedispatch
	// ActionDrop forgets the in-flight utterance and keeps the status.
	ActionDrop
	// ActionAbandon tears the job down without a notice.
	ActionAbandon
	// ActionAbort cancels the engine, tears the job down and raises a notice.
	ActionAbort
	// ActionCancel cancels the engine and tears the job down.
	ActionCancel
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionBegin:
		return "begin"
	case ActionLoaded:
		return "loaded"
	case ActionAdvance:
		return "advance"
	case ActionFinish:
		return "finish"
	case ActionHold:
		return "hold"
	case ActionPause:
		return "pause"
	case ActionResume:
		return "resume"
	case ActionRedispatch:
		return "redispatch"
	case ActionDrop:
		return "drop"
	case ActionAbandon:
		return "abandon"
	case ActionAbort:
		return "abort"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Guards carries the facts a transition may branch on.
type Guards struct {
	// HasNext reports that another chunk follows the one that ended.
	HasNext bool
	// Suspended reports that an utterance is in flight and the engine
	// says it is paused.
	Suspended bool
}

// Step is the outcome of firing a trigger.
type Step struct {
	From   Status
	To     Status
	Action Action
}

// Machine is the playback state machine. The zero value is Idle.
type Machine struct {
	current Status
}

// NewMachine creates a machine in StatusIdle.
func NewMachine() *Machine {
	return &Machine{current: StatusIdle}
}

// Current returns the current status.
func (m *Machine) Current() Status {
	return m.current
}

// Fire applies trigger to the current status. It reports false when the
// trigger is undefined for the current status, in which case nothing
// changes.
func (m *Machine) Fire(trigger Trigger, g Guards) (Step, bool) {
	to, action, ok := transition(m.current, trigger, g)
	if !ok {
		return Step{From: m.current, To: m.current}, false
	}
	step := Step{From: m.current, To: to, Action: action}
	m.current = to
	return step, true
}

// Reset forces the machine back to StatusIdle.
func (m *Machine) Reset() {
	m.current = StatusIdle
}

func transition(from Status, trigger Trigger, g Guards) (Status, Action, bool) {
	switch from {
	case StatusIdle:
		if trigger == TriggerToggle {
			return StatusLoading, ActionBegin, true
		}

	case StatusLoading:
		switch trigger {
		case TriggerStarted:
			return StatusPlaying, ActionLoaded, true
		case TriggerEnded:
			return ended(g)
		case TriggerTimeout, TriggerFailed:
			return StatusIdle, ActionAbort, true
		case TriggerInterrupted:
			return StatusIdle, ActionAbandon, true
		case TriggerStop:
			return StatusIdle, ActionCancel, true
		}

	case StatusPlaying:
		switch trigger {
		case TriggerToggle:
			return StatusPaused, ActionPause, true
		case TriggerEnded:
			return ended(g)
		case TriggerInterrupted:
			return StatusPlaying, ActionDrop, true
		case TriggerFailed:
			return StatusIdle, ActionAbort, true
		case TriggerStop:
			return StatusIdle, ActionCancel, true
		case TriggerEnginePaused:
			return StatusPaused, ActionNone, true
		}

	case StatusPaused:
		switch trigger {
		case TriggerToggle:
			if g.Suspended {
				return StatusPlaying, ActionResume, true
			}
			return StatusPlaying, ActionRedispatch, true
		case TriggerEnded:
			// The pause raced with the natural end of the utterance.
			return StatusPaused, ActionHold, true
		case TriggerInterrupted:
			return StatusPaused, ActionDrop, true
		case TriggerFailed:
			return StatusIdle, ActionAbort, true
		case TriggerStop:
			return StatusIdle, ActionCancel, true
		case TriggerEngineResumed:
			return StatusPlaying, ActionNone, true
		}
	}
	return from, ActionNone, false
}

func ended(g Guards) (Status, Action, bool) {
	if g.HasNext {
		return StatusPlaying, ActionAdvance, true
	}
	return StatusIdle, ActionFinish, true
}
