// Package speech reads an article aloud one chunk at a time through an
// injected text-to-speech engine.
package speech

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"

	"github.com/bigairlab/narrate/speech/text"
)

// Snapshot is a read-only view of the controller used to render the
// playback control.
type Snapshot struct {
	Status    Status
	IsLoading bool
	Chunk     int
	Total     int
	JobID     string
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the runtime timer, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// job is one run over the chunk sequence.
type job struct {
	id     xid.ID
	chunks []string
	index  int
}

// Controller owns the single active speech job.
type Controller struct {
	mu sync.Mutex

	engine    Engine
	config    Config
	scheduler Scheduler
	machine   *Machine

	title string
	body  string
	job   *job

	// utterance is the ID of the last dispatch; inFlight is true until the
	// engine reports it ended or errored.
	utterance uint64
	nextID    uint64
	inFlight  bool

	startTimer   Timer
	advanceTimer Timer
	voiceTimer   Timer

	// Each armed timer records the generation its callback carries. A
	// callback whose generation is no longer current is stale.
	timerGen   uint64
	startGen   uint64
	advanceGen uint64
	voiceGen   uint64

	voices      []Voice
	unsubscribe func()

	onStateChange func(Snapshot)
	onNotice      func(Notice)
	pending       []Notice

	closed bool
}

// NewController creates a controller driving engine. It subscribes to voice
// list changes and arms a fallback poll in case the notification never
// fires.
func NewController(engine Engine, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		engine:    engine,
		config:    cfg,
		scheduler: SystemScheduler(),
		machine:   NewMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.config.MaxChunkWords < 1 {
		c.config.MaxChunkWords = text.DefaultMaxWords
	}

	if engine == nil {
		return c
	}

	c.mu.Lock()
	c.voices = engine.Voices()
	if len(c.voices) == 0 {
		c.schedule(&c.voiceTimer, &c.voiceGen, c.config.VoicePollDelay, c.pollVoices)
	}
	c.mu.Unlock()

	c.unsubscribe = engine.OnVoicesChanged(c.voicesChanged)
	return c
}

// OnStateChange registers fn to receive every new snapshot.
func (c *Controller) OnStateChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// OnNotice registers fn to receive user-visible notices.
func (c *Controller) OnNotice(fn func(Notice)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotice = fn
}

// SetContent sets the article the next job will read.
func (c *Controller) SetContent(title, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
	c.body = body
}

// Start begins a new job from Idle. It is ignored in any other status.
func (c *Controller) Start(title, body string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.machine.Current() != StatusIdle {
		c.mu.Unlock()
		return nil
	}
	c.title = title
	c.body = body
	prev := c.snapshotLocked()
	err := c.toggleLocked()
	c.unlockAndNotify(prev)
	return err
}

// Toggle starts from Idle, pauses while Playing and resumes or restarts
// while Paused. It does nothing while Loading.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prev := c.snapshotLocked()
	err := c.toggleLocked()
	c.unlockAndNotify(prev)
	return err
}

// Stop cancels the job and returns to Idle. It is safe from any status.
func (c *Controller) Stop() {
	c.mu.Lock()
	prev := c.snapshotLocked()
	c.fire(TriggerStop, Guards{}, nil)
	c.unlockAndNotify(prev)
}

// State returns the current snapshot.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops playback, unsubscribes from the engine and disarms every
// timer. The controller cannot be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.snapshotLocked()
	c.fire(TriggerStop, Guards{}, nil)
	c.stopTimers()
	stopTimer(&c.voiceTimer)
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.unlockAndNotify(prev)

	if unsubscribe != nil {
		unsubscribe()
	}
}

// HandleEvent is the single entry point for engine lifecycle events.
// Events for any utterance other than the one in flight are ignored.
func (c *Controller) HandleEvent(ev Event) {
	c.mu.Lock()
	if c.closed || !c.inFlight || ev.Utterance != c.utterance {
		c.mu.Unlock()
		log.Debug("speech: stale event", "kind", ev.Kind, "utterance", ev.Utterance)
		return
	}
	prev := c.snapshotLocked()

	switch ev.Kind {
	case EventStart:
		c.fire(TriggerStarted, Guards{}, nil)
	case EventEnd:
		c.inFlight = false
		c.fire(TriggerEnded, Guards{HasNext: c.hasNext()}, nil)
	case EventError:
		c.inFlight = false
		if IsRecoverable(ev.Code) {
			c.fire(TriggerInterrupted, Guards{}, nil)
		} else {
			c.fire(TriggerFailed, Guards{}, &SynthesisError{Code: ev.Code})
		}
	case EventPause:
		c.fire(TriggerEnginePaused, Guards{}, nil)
	case EventResume:
		c.fire(TriggerEngineResumed, Guards{}, nil)
	}

	c.unlockAndNotify(prev)
}

func (c *Controller) toggleLocked() error {
	if c.machine.Current() == StatusIdle {
		if c.engine == nil || !c.engine.Available() {
			c.notify(ErrEngineUnsupported)
			return ErrEngineUnsupported
		}
		if text.Narration(c.title, c.body) == "" {
			c.notify(ErrEmptyContent)
			return ErrEmptyContent
		}
	}

	g := Guards{}
	if c.machine.Current() == StatusPaused {
		g.Suspended = c.inFlight && c.engine.Paused()
	}
	c.fire(TriggerToggle, g, nil)
	return nil
}

// fire applies trigger and performs the resulting action. cause is the
// notice raised by ActionAbort.
func (c *Controller) fire(trigger Trigger, g Guards, cause error) {
	step, ok := c.machine.Fire(trigger, g)
	if !ok {
		return
	}
	log.Debug("speech: transition", "from", step.From, "to", step.To, "trigger", trigger, "action", step.Action)

	switch step.Action {
	case ActionBegin:
		c.begin()

	case ActionLoaded:
		stopTimer(&c.startTimer)

	case ActionAdvance:
		stopTimer(&c.startTimer)
		c.job.index++
		c.scheduleAdvance()

	case ActionFinish:
		log.Debug("speech: finished", "job", c.job.id)
		c.reset()

	case ActionHold:
		stopTimer(&c.startTimer)
		c.job.index++

	case ActionPause:
		stopTimer(&c.advanceTimer)
		if c.inFlight {
			c.engine.Pause()
		}

	case ActionResume:
		c.engine.Resume()

	case ActionRedispatch:
		if c.job.index >= len(c.job.chunks) {
			c.job.index = 0
		}
		c.dispatch(c.job.index)

	case ActionAbandon:
		c.reset()

	case ActionAbort:
		c.engine.CancelAll()
		c.reset()
		if cause != nil {
			log.Warn("speech: job aborted", "err", cause)
			c.notify(cause)
		}

	case ActionCancel:
		c.engine.CancelAll()
		c.reset()
	}
}

func (c *Controller) begin() {
	narration := text.Narration(c.title, c.body)
	c.job = &job{
		id:     xid.New(),
		chunks: text.Chunk(narration, c.config.MaxChunkWords),
	}
	log.Debug("speech: job created", "job", c.job.id, "chunks", len(c.job.chunks))

	c.dispatch(0)
	if c.machine.Current() != StatusLoading {
		return
	}

	c.schedule(&c.startTimer, &c.startGen, c.config.StartTimeout, c.startTimedOut)
}

// dispatch cancels whatever the engine is doing and speaks chunk i.
func (c *Controller) dispatch(i int) {
	stopTimer(&c.advanceTimer)
	c.engine.CancelAll()

	c.nextID++
	c.utterance = c.nextID
	c.inFlight = true
	c.job.index = i

	u := Utterance{
		ID:       c.utterance,
		Chunk:    i,
		Text:     c.job.chunks[i],
		Rate:     c.config.Rate,
		Pitch:    c.config.Pitch,
		Volume:   c.config.Volume,
		Language: c.config.Language,
	}
	if v, ok := SelectVoice(c.voices, c.config.Language); ok {
		u.Voice = &v
	}

	log.Debug("speech: dispatch", "job", c.job.id, "chunk", i, "of", len(c.job.chunks), "utterance", u.ID)
	if err := c.engine.Speak(u, c.HandleEvent); err != nil {
		c.inFlight = false
		c.fire(TriggerFailed, Guards{}, &SynthesisError{Code: CodeSynthesisFailed, Err: err})
	}
}

func (c *Controller) scheduleAdvance() {
	j := c.job
	c.schedule(&c.advanceTimer, &c.advanceGen, c.config.ChunkDelay, func(gen uint64) {
		c.advance(gen, j)
	})
}

// schedule arms fn to run after d with a fresh generation. The caller holds
// c.mu, so fn cannot check its generation before slot and gen are set.
func (c *Controller) schedule(slot *Timer, gen *uint64, d time.Duration, fn func(uint64)) {
	stopTimer(slot)
	c.timerGen++
	g := c.timerGen
	*gen = g
	*slot = c.scheduler.AfterFunc(d, func() { fn(g) })
}

func (c *Controller) advance(gen uint64, j *job) {
	c.mu.Lock()
	if c.closed || c.advanceTimer == nil || c.advanceGen != gen || c.job != j {
		c.mu.Unlock()
		return
	}
	c.advanceTimer = nil
	prev := c.snapshotLocked()
	if c.machine.Current() == StatusPlaying && !c.inFlight && j.index < len(j.chunks) {
		c.dispatch(j.index)
	}
	c.unlockAndNotify(prev)
}

func (c *Controller) startTimedOut(gen uint64) {
	c.mu.Lock()
	if c.closed || c.startTimer == nil || c.startGen != gen {
		c.mu.Unlock()
		return
	}
	c.startTimer = nil
	prev := c.snapshotLocked()
	c.fire(TriggerTimeout, Guards{}, ErrStartTimeout)
	c.unlockAndNotify(prev)
}

func (c *Controller) voicesChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.voices = c.engine.Voices()
	if len(c.voices) > 0 {
		stopTimer(&c.voiceTimer)
	}
	log.Debug("speech: voices changed", "count", len(c.voices))
}

func (c *Controller) pollVoices(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.voiceTimer == nil || c.voiceGen != gen {
		return
	}
	c.voiceTimer = nil
	c.voices = c.engine.Voices()
	log.Debug("speech: voices polled", "count", len(c.voices))
}

func (c *Controller) hasNext() bool {
	return c.job != nil && c.job.index+1 < len(c.job.chunks)
}

func (c *Controller) reset() {
	c.stopTimers()
	c.machine.Reset()
	c.job = nil
	c.inFlight = false
}

func (c *Controller) stopTimers() {
	stopTimer(&c.startTimer)
	stopTimer(&c.advanceTimer)
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Controller) notify(err error) {
	c.pending = append(c.pending, Notice{Err: err})
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{Status: c.machine.Current()}
	s.IsLoading = s.Status == StatusLoading
	if c.job != nil {
		s.Chunk = c.job.index
		s.Total = len(c.job.chunks)
		s.JobID = c.job.id.String()
	}
	return s
}

// unlockAndNotify releases the lock and then calls the listeners, so a
// listener may call back into the controller.
func (c *Controller) unlockAndNotify(prev Snapshot) {
	cur := c.snapshotLocked()
	notices := c.pending
	c.pending = nil
	onStateChange := c.onStateChange
	onNotice := c.onNotice
	c.mu.Unlock()

	if cur != prev && onStateChange != nil {
		onStateChange(cur)
	}
	if onNotice != nil {
		for _, n := range notices {
			onNotice(n)
		}
	}
}
