package speech_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bigairlab/narrate/speech"
	"github.com/bigairlab/narrate/speech/engines/mock"
)

// fakeScheduler runs timers only when the test advances its clock.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	s    *fakeScheduler
	at   time.Duration
	fn   func()
	done bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) speech.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves the clock forward by d, running due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *fakeTimer
		for _, t := range s.timers {
			if !t.done && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.done = true
		s.now = next.at
		s.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of armed timers.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type harness struct {
	engine  *mock.Engine
	clock   *fakeScheduler
	ctrl    *speech.Controller
	notices []speech.Notice
	states  []speech.Snapshot
}

func newHarness(t *testing.T, maxWords int, opts ...mock.Option) *harness {
	t.Helper()
	h := &harness{
		engine: mock.New(opts...),
		clock:  &fakeScheduler{},
	}
	cfg := speech.DefaultConfig()
	if maxWords > 0 {
		cfg.MaxChunkWords = maxWords
	}
	h.ctrl = speech.NewController(h.engine, cfg, speech.WithScheduler(h.clock))
	h.ctrl.OnNotice(func(n speech.Notice) { h.notices = append(h.notices, n) })
	h.ctrl.OnStateChange(func(s speech.Snapshot) { h.states = append(h.states, s) })
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) expectStatus(t *testing.T, want speech.Status) {
	t.Helper()
	if got := h.ctrl.State().Status; got != want {
		t.Fatalf("status = %v, want %v", got, want)
	}
}

// assertCancelBeforeSpeak checks that every Speak call directly follows a
// CancelAll call.
func assertCancelBeforeSpeak(t *testing.T, e *mock.Engine) {
	t.Helper()
	ops := e.Ops()
	for i, op := range ops {
		if op != mock.OpSpeak {
			continue
		}
		if i == 0 || ops[i-1] != mock.OpCancel {
			t.Fatalf("speak at %d not preceded by cancel: %v", i, ops)
		}
	}
}

const threeChunks = "One two three. Four five six. Seven eight nine."

func TestEndToEndSingleChunk(t *testing.T) {
	h := newHarness(t, 50)

	if err := h.ctrl.Start("Intro", "# Heading\nThis is **bold** text. Another sentence here."); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.expectStatus(t, speech.StatusLoading)
	if !h.ctrl.State().IsLoading {
		t.Error("expected IsLoading while waiting for start")
	}

	spoken := h.engine.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("expected exactly one speak call, got %d", len(spoken))
	}
	want := "Intro. Heading. This is bold text. Another sentence here."
	if spoken[0].Text != want {
		t.Errorf("spoken text = %q, want %q", spoken[0].Text, want)
	}
	assertCancelBeforeSpeak(t, h.engine)

	h.engine.FireStart()
	h.expectStatus(t, speech.StatusPlaying)

	h.engine.FireEnd()
	h.expectStatus(t, speech.StatusIdle)

	h.clock.Advance(5 * time.Second)
	if len(h.notices) != 0 {
		t.Errorf("expected no notices, got %v", h.notices)
	}
	if n := len(h.engine.Spoken()); n != 1 {
		t.Errorf("expected no further speak calls, got %d", n)
	}
}

func TestUtteranceSettings(t *testing.T) {
	h := newHarness(t, 0)
	if err := h.ctrl.Start("Title", "Body."); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	u, ok := h.engine.Current()
	if !ok {
		t.Fatal("expected a current utterance")
	}
	if u.Rate != 0.9 || u.Pitch != 1.0 || u.Volume != 1.0 || u.Language != "en-US" {
		t.Errorf("unexpected utterance settings %+v", u)
	}
	if u.Voice == nil || u.Voice.ID != "mock-en-us" {
		t.Errorf("expected the en-US voice, got %+v", u.Voice)
	}
}

func TestStartTimeout(t *testing.T) {
	h := newHarness(t, 0)
	if err := h.ctrl.Start("Title", "Body text."); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.clock.Advance(1999 * time.Millisecond)
	h.expectStatus(t, speech.StatusLoading)

	h.clock.Advance(time.Millisecond)
	h.expectStatus(t, speech.StatusIdle)

	if len(h.notices) != 1 {
		t.Fatalf("expected exactly one notice, got %d", len(h.notices))
	}
	if !errors.Is(h.notices[0].Err, speech.ErrStartTimeout) {
		t.Errorf("expected start timeout notice, got %v", h.notices[0].Err)
	}

	h.clock.Advance(10 * time.Second)
	if len(h.notices) != 1 {
		t.Errorf("expected notice to be raised once, got %d", len(h.notices))
	}

	// Late events from the abandoned utterance are ignored.
	h.engine.FireStart()
	h.expectStatus(t, speech.StatusIdle)
}

func TestStartDisarmsTimeout(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.ctrl.Start("Title", "Body text.")
	h.engine.FireStart()
	h.clock.Advance(3 * time.Second)

	h.expectStatus(t, speech.StatusPlaying)
	if len(h.notices) != 0 {
		t.Errorf("expected no notices, got %v", h.notices)
	}
}

func TestAdvanceAfterDelay(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()

	for i := 0; i < 3; i++ {
		u, _ := h.engine.Current()
		if u.Chunk != i {
			t.Fatalf("expected chunk %d in flight, got %d", i, u.Chunk)
		}
		h.engine.FireEnd()
		if i == 2 {
			break
		}

		h.expectStatus(t, speech.StatusPlaying)
		if n := len(h.engine.Spoken()); n != i+1 {
			t.Fatalf("next chunk dispatched before the delay: %d speaks", n)
		}
		h.clock.Advance(99 * time.Millisecond)
		if n := len(h.engine.Spoken()); n != i+1 {
			t.Fatalf("next chunk dispatched before the delay: %d speaks", n)
		}
		h.clock.Advance(time.Millisecond)
		if n := len(h.engine.Spoken()); n != i+2 {
			t.Fatalf("expected chunk %d after the delay, got %d speaks", i+1, n)
		}
		h.engine.FireStart()
	}

	h.expectStatus(t, speech.StatusIdle)
	assertCancelBeforeSpeak(t, h.engine)

	want := []string{"One two three.", "Four five six.", "Seven eight nine."}
	for i, u := range h.engine.Spoken() {
		if u.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, u.Text, want[i])
		}
	}
}

func TestPauseRacesWithEnd(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()

	// Chunk 0 is in flight. The user pauses, but the engine reports the
	// natural end before it acknowledges the pause.
	if err := h.ctrl.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	h.expectStatus(t, speech.StatusPaused)
	h.engine.FireEnd()

	s := h.ctrl.State()
	if s.Status != speech.StatusPaused || s.Chunk != 1 {
		t.Fatalf("expected paused at chunk 1, got %+v", s)
	}
	h.clock.Advance(time.Second)
	if n := len(h.engine.Spoken()); n != 1 {
		t.Fatalf("nothing should be dispatched while paused, got %d speaks", n)
	}

	h.engine.ResetCalls()
	if err := h.ctrl.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	h.expectStatus(t, speech.StatusPlaying)

	for _, op := range h.engine.Ops() {
		if op == mock.OpResume {
			t.Fatal("engine resume must not be used when nothing is suspended")
		}
	}
	spoken := h.engine.Spoken()
	if len(spoken) != 1 || spoken[0].Chunk != 1 {
		t.Fatalf("expected chunk 1 to be dispatched, got %+v", spoken)
	}
	assertCancelBeforeSpeak(t, h.engine)
}

func TestNativePauseResume(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()

	_ = h.ctrl.Toggle()
	h.expectStatus(t, speech.StatusPaused)
	if !h.engine.Paused() {
		t.Fatal("expected engine pause to be requested")
	}
	// The acknowledgement of our own pause changes nothing.
	h.engine.FirePause()
	h.expectStatus(t, speech.StatusPaused)

	h.engine.ResetCalls()
	_ = h.ctrl.Toggle()
	h.expectStatus(t, speech.StatusPlaying)

	ops := h.engine.Ops()
	if len(ops) != 1 || ops[0] != mock.OpResume {
		t.Fatalf("expected a single resume call, got %v", ops)
	}
	if s := h.ctrl.State(); s.Chunk != 0 {
		t.Errorf("expected to stay on chunk 0, got %d", s.Chunk)
	}
}

func TestPauseDuringAdvanceDelay(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()
	h.engine.FireEnd()

	h.engine.ResetCalls()
	_ = h.ctrl.Toggle()
	h.expectStatus(t, speech.StatusPaused)
	if ops := h.engine.Ops(); len(ops) != 0 {
		t.Errorf("no engine call expected with nothing in flight, got %v", ops)
	}

	h.clock.Advance(time.Second)
	if n := len(h.engine.Spoken()); n != 0 {
		t.Fatalf("advance should be cancelled by pause, got %d speaks", n)
	}

	_ = h.ctrl.Toggle()
	spoken := h.engine.Spoken()
	if len(spoken) != 1 || spoken[0].Chunk != 1 {
		t.Fatalf("expected chunk 1 on resume, got %+v", spoken)
	}
}

func TestResumeAfterLastChunkRestarts(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", "One two three. Four five six.")
	h.engine.FireStart()
	h.engine.FireEnd()
	h.clock.Advance(100 * time.Millisecond)
	h.engine.FireStart()

	_ = h.ctrl.Toggle()
	h.engine.FireEnd()
	if s := h.ctrl.State(); s.Status != speech.StatusPaused || s.Chunk != 2 {
		t.Fatalf("expected paused past the end, got %+v", s)
	}

	h.engine.ResetCalls()
	_ = h.ctrl.Toggle()
	spoken := h.engine.Spoken()
	if len(spoken) != 1 || spoken[0].Chunk != 0 {
		t.Fatalf("expected restart from chunk 0, got %+v", spoken)
	}
}

func TestEngineOriginatedPauseResume(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.ctrl.Start("Title", "Body.")
	h.engine.FireStart()

	h.engine.FirePause()
	h.expectStatus(t, speech.StatusPaused)
	h.engine.FireResume()
	h.expectStatus(t, speech.StatusPlaying)
}

func TestRecoverableErrors(t *testing.T) {
	for _, code := range []speech.ErrorCode{speech.CodeInterrupted, speech.CodeCanceled} {
		t.Run(string(code), func(t *testing.T) {
			h := newHarness(t, 0)
			_ = h.ctrl.Start("Title", "Body.")
			h.engine.FireStart()

			h.engine.FireError(code)
			h.expectStatus(t, speech.StatusPlaying)
			if len(h.notices) != 0 {
				t.Errorf("recoverable errors must not surface, got %v", h.notices)
			}
		})
	}
}

func TestRecoverableErrorWhileLoading(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.ctrl.Start("Title", "Body.")
	h.engine.FireError(speech.CodeInterrupted)

	s := h.ctrl.State()
	if s.Status != speech.StatusIdle || s.IsLoading {
		t.Fatalf("expected idle without loading, got %+v", s)
	}
	h.clock.Advance(5 * time.Second)
	if len(h.notices) != 0 {
		t.Errorf("expected no notices, got %v", h.notices)
	}
}

func TestUnrecoverableError(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()
	h.engine.FireError(speech.CodeNetwork)

	s := h.ctrl.State()
	if s.Status != speech.StatusIdle || s.Chunk != 0 {
		t.Fatalf("expected idle at chunk 0, got %+v", s)
	}
	if len(h.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(h.notices))
	}
	var se *speech.SynthesisError
	if !errors.As(h.notices[0].Err, &se) || se.Code != speech.CodeNetwork {
		t.Errorf("expected network synthesis error, got %v", h.notices[0].Err)
	}
}

func TestSpeakFailure(t *testing.T) {
	h := newHarness(t, 0)
	boom := errors.New("device busy")
	h.engine.SetSpeakError(boom)

	_ = h.ctrl.Start("Title", "Body.")
	h.expectStatus(t, speech.StatusIdle)
	if len(h.notices) != 1 || !errors.Is(h.notices[0].Err, boom) {
		t.Fatalf("expected one notice wrapping %v, got %v", boom, h.notices)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("expected no armed timers, got %d", h.clock.Pending())
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start("", threeChunks)
	first, _ := h.engine.Current()
	h.engine.FireStart()

	h.ctrl.Stop()
	_ = h.ctrl.Start("", threeChunks)
	h.expectStatus(t, speech.StatusLoading)

	h.engine.FireFor(speech.Event{Kind: speech.EventStart, Utterance: first.ID})
	h.engine.FireFor(speech.Event{Kind: speech.EventEnd, Utterance: first.ID})
	h.engine.FireFor(speech.Event{Kind: speech.EventError, Utterance: first.ID, Code: speech.CodeSynthesisFailed})
	h.expectStatus(t, speech.StatusLoading)
	if len(h.notices) != 0 {
		t.Errorf("stale events must not surface, got %v", h.notices)
	}

	// A second end for an utterance that already ended is ignored too.
	h.engine.FireStart()
	h.engine.FireEnd()
	h.engine.FireEnd()
	h.clock.Advance(100 * time.Millisecond)
	if s := h.ctrl.State(); s.Chunk != 1 {
		t.Errorf("duplicate end advanced the job: %+v", s)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, 3)

	h.ctrl.Stop()
	if ops := h.engine.Ops(); len(ops) != 0 {
		t.Errorf("stop from idle should not touch the engine, got %v", ops)
	}

	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()
	h.engine.FireEnd()

	h.engine.ResetCalls()
	h.ctrl.Stop()
	h.expectStatus(t, speech.StatusIdle)
	if ops := h.engine.Ops(); len(ops) != 1 || ops[0] != mock.OpCancel {
		t.Errorf("expected a single cancel, got %v", ops)
	}

	h.clock.Advance(time.Second)
	if n := len(h.engine.Spoken()); n != 0 {
		t.Errorf("stop should cancel the pending advance, got %d speaks", n)
	}

	h.ctrl.Stop()
	h.expectStatus(t, speech.StatusIdle)
}

func TestToggleWhileLoadingIsNoop(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.ctrl.Start("Title", "Body.")

	h.engine.ResetCalls()
	if err := h.ctrl.Toggle(); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	h.expectStatus(t, speech.StatusLoading)
	if ops := h.engine.Ops(); len(ops) != 0 {
		t.Errorf("expected no engine calls, got %v", ops)
	}
}

func TestStartIgnoredUnlessIdle(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.ctrl.Start("Title", "Body.")
	h.engine.FireStart()

	if err := h.ctrl.Start("Other", "Other body."); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if n := len(h.engine.Spoken()); n != 1 {
		t.Errorf("second start should be ignored, got %d speaks", n)
	}
}

func TestToggleUsesContent(t *testing.T) {
	h := newHarness(t, 0)
	h.ctrl.SetContent("Title", "Body.")
	_ = h.ctrl.Toggle()

	spoken := h.engine.Spoken()
	if len(spoken) != 1 || spoken[0].Text != "Title. Body." {
		t.Fatalf("unexpected dispatch %+v", spoken)
	}
}

func TestEmptyContent(t *testing.T) {
	h := newHarness(t, 0)
	if err := h.ctrl.Toggle(); !errors.Is(err, speech.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	h.expectStatus(t, speech.StatusIdle)
	if len(h.notices) != 1 {
		t.Errorf("expected one notice, got %d", len(h.notices))
	}
}

func TestEngineUnsupported(t *testing.T) {
	h := newHarness(t, 0)
	h.engine.SetAvailable(false)

	if err := h.ctrl.Start("Title", "Body."); !errors.Is(err, speech.ErrEngineUnsupported) {
		t.Fatalf("expected ErrEngineUnsupported, got %v", err)
	}
	h.expectStatus(t, speech.StatusIdle)
	if len(h.notices) != 1 || !errors.Is(h.notices[0].Err, speech.ErrEngineUnsupported) {
		t.Errorf("expected unsupported notice, got %v", h.notices)
	}
	if n := len(h.engine.Spoken()); n != 0 {
		t.Errorf("no job should be created, got %d speaks", n)
	}
}

func TestNilEngine(t *testing.T) {
	c := speech.NewController(nil, speech.DefaultConfig(), speech.WithScheduler(&fakeScheduler{}))
	defer c.Close()

	if err := c.Toggle(); !errors.Is(err, speech.ErrEngineUnsupported) {
		t.Fatalf("expected ErrEngineUnsupported, got %v", err)
	}
	c.Stop()
}

func TestLateVoices(t *testing.T) {
	h := newHarness(t, 0, mock.WithoutVoices())
	if h.clock.Pending() != 1 {
		t.Fatalf("expected the fallback voice poll to be armed, got %d timers", h.clock.Pending())
	}

	// No voices yet: the engine default is used.
	_ = h.ctrl.Start("Title", "Body.")
	if u, _ := h.engine.Current(); u.Voice != nil {
		t.Errorf("expected no voice, got %+v", u.Voice)
	}
	h.ctrl.Stop()

	h.engine.SetVoices(mock.DefaultVoices())
	if h.clock.Pending() != 0 {
		t.Errorf("voice notification should disarm the fallback poll, got %d timers", h.clock.Pending())
	}

	_ = h.ctrl.Start("Title", "Body.")
	if u, _ := h.engine.Current(); u.Voice == nil || u.Voice.Language != "en-US" {
		t.Errorf("expected the en-US voice, got %+v", u.Voice)
	}
}

// silentVoices never notifies, so only the fallback poll sees new voices.
type silentVoices struct {
	*mock.Engine
}

func (silentVoices) OnVoicesChanged(func()) func() { return func() {} }

func TestVoicePollFallback(t *testing.T) {
	engine := mock.New(mock.WithoutVoices())
	clock := &fakeScheduler{}
	c := speech.NewController(silentVoices{engine}, speech.DefaultConfig(), speech.WithScheduler(clock))
	defer c.Close()

	engine.SetVoices([]speech.Voice{{ID: "gb", Language: "en-GB"}})
	clock.Advance(500 * time.Millisecond)

	_ = c.Start("Title", "Body.")
	if u, _ := engine.Current(); u.Voice == nil || u.Voice.ID != "gb" {
		t.Errorf("expected polled voice, got %+v", u.Voice)
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t, 3, mock.WithoutVoices())
	_ = h.ctrl.Start("", threeChunks)
	h.engine.FireStart()
	h.engine.FireEnd()

	h.ctrl.Close()
	h.expectStatus(t, speech.StatusIdle)
	if h.engine.Subscribers() != 0 {
		t.Errorf("expected voice subscription to be removed")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("expected every timer disarmed, got %d", h.clock.Pending())
	}
	if err := h.ctrl.Toggle(); !errors.Is(err, speech.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	h.ctrl.Close()
}

func TestStateChangeListener(t *testing.T) {
	h := newHarness(t, 0)

	// Listeners run without the lock held and may call back in.
	var seen []speech.Status
	h.ctrl.OnStateChange(func(s speech.Snapshot) {
		seen = append(seen, h.ctrl.State().Status)
	})

	_ = h.ctrl.Start("Title", "Body.")
	h.engine.FireStart()
	_ = h.ctrl.Toggle()
	h.ctrl.Stop()

	want := []speech.Status{speech.StatusLoading, speech.StatusPlaying, speech.StatusPaused, speech.StatusIdle}
	if len(seen) != len(want) {
		t.Fatalf("saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestJobIDs(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.ctrl.Start("Title", "Body.")
	first := h.ctrl.State().JobID
	h.ctrl.Stop()
	if h.ctrl.State().JobID != "" {
		t.Error("idle snapshot should have no job")
	}
	_ = h.ctrl.Start("Title", "Body.")
	second := h.ctrl.State().JobID

	if first == "" || second == "" || first == second {
		t.Errorf("expected distinct job IDs, got %q and %q", first, second)
	}
}

// TestRandomSequences drives the controller with random input and checks
// that it never has two dispatches in flight and never leaves the known
// statuses.
func TestRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		h := newHarness(t, 3)
		h.ctrl.SetContent("", threeChunks)

		for step := 0; step < 60; step++ {
			switch rng.Intn(10) {
			case 0, 1:
				_ = h.ctrl.Toggle()
			case 2:
				h.ctrl.Stop()
			case 3:
				h.engine.FireStart()
			case 4, 5:
				h.engine.FireEnd()
			case 6:
				h.engine.FireError(speech.CodeInterrupted)
			case 7:
				h.engine.SetPaused(rng.Intn(2) == 0)
			case 8:
				h.clock.Advance(time.Duration(rng.Intn(150)) * time.Millisecond)
			case 9:
				_ = h.ctrl.Start("", threeChunks)
			}

			s := h.ctrl.State()
			if s.Status.String() == "unknown" {
				t.Fatalf("run %d step %d: unknown status", run, step)
			}
			if s.Chunk < 0 || s.Chunk > s.Total {
				t.Fatalf("run %d step %d: chunk %d out of range 0..%d", run, step, s.Chunk, s.Total)
			}
			if s.IsLoading != (s.Status == speech.StatusLoading) {
				t.Fatalf("run %d step %d: loading flag out of sync: %+v", run, step, s)
			}
		}
		assertCancelBeforeSpeak(t, h.engine)
	}
}

func TestZeroChunkDelayAdvances(t *testing.T) {
	for i := range 100 {
		engine := mock.New()
		cfg := speech.DefaultConfig()
		cfg.MaxChunkWords = 3
		cfg.ChunkDelay = 0
		ctrl := speech.NewController(engine, cfg)

		if err := ctrl.Start("", threeChunks); err != nil {
			t.Fatalf("run %d: Start failed: %v", i, err)
		}
		engine.FireStart()
		engine.FireEnd()

		deadline := time.Now().Add(2 * time.Second)
		for len(engine.Spoken()) < 2 {
			if time.Now().After(deadline) {
				t.Fatalf("run %d: next chunk never dispatched, status %v", i, ctrl.State().Status)
			}
			time.Sleep(time.Millisecond)
		}
		if got := ctrl.State(); got.Status != speech.StatusPlaying || got.Chunk != 1 {
			t.Errorf("run %d: state = %+v, want Playing at chunk 1", i, got)
		}
		ctrl.Close()
	}
}
