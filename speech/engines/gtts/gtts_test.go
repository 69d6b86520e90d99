package gtts

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bigairlab/narrate/speech"
)

var _ speech.Engine = (*Engine)(nil)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "", 10, []string{""}},
		{"fits", "hello world", 20, []string{"hello world"}},
		{"word boundary", "one two three four", 9, []string{"one two", "three", "four"}},
		{"long word cut", "abcdefghij xy", 4, []string{"abcd", "efgh", "ij", "xy"}},
		{"collapses whitespace", "a \n b", 10, []string{"a b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Split(tt.text, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitRespectsLimit(t *testing.T) {
	text := strings.Repeat("narration ", 100)
	for _, piece := range Split(text, maxRequestChars) {
		if n := len([]rune(piece)); n > maxRequestChars {
			t.Errorf("piece of %d runes exceeds the limit", n)
		}
	}
}

func TestRequestURL(t *testing.T) {
	raw := RequestURL(DefaultBaseURL, "Hello there.", "en-US", 0.9, 0, 1)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL: %v", err)
	}
	if u.Host != "translate.google.com" {
		t.Errorf("unexpected host %q", u.Host)
	}
	q := u.Query()
	checks := map[string]string{
		"tl":       "en",
		"q":        "Hello there.",
		"client":   "tw-ob",
		"ttsspeed": "0.9",
		"total":    "1",
		"idx":      "0",
		"textlen":  "12",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	gb, _ := url.Parse(RequestURL(DefaultBaseURL, "x", "en-GB", 1, 0, 1))
	if gb.Host != "translate.google.co.uk" {
		t.Errorf("expected the British host, got %q", gb.Host)
	}
}

func TestLanguage(t *testing.T) {
	if got := language(speech.Utterance{}); got != "en-US" {
		t.Errorf("expected en-US fallback, got %q", got)
	}
	if got := language(speech.Utterance{Language: "fr-FR"}); got != "fr-FR" {
		t.Errorf("expected fr-FR, got %q", got)
	}
	u := speech.Utterance{Language: "en-US", Voice: &speech.Voice{Language: "en-AU"}}
	if got := language(u); got != "en-AU" {
		t.Errorf("voice language should win, got %q", got)
	}
}

func TestVoicesSelectable(t *testing.T) {
	e := New()
	v, ok := speech.SelectVoice(e.Voices(), "en-GB")
	if !ok || v.ID != "en-GB" {
		t.Errorf("expected en-GB voice, got %+v", v)
	}
}

func speakAndWait(t *testing.T, e *Engine) speech.Event {
	t.Helper()
	events := make(chan speech.Event, 4)
	if err := e.Speak(speech.Utterance{ID: 5, Text: "Hello.", Rate: 1, Volume: 1}, func(ev speech.Event) {
		events <- ev
	}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return speech.Event{}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := New(WithBaseURL(srv.URL), WithRequestsPerMinute(6000))
	ev := speakAndWait(t, e)
	if ev.Kind != speech.EventError || ev.Code != speech.CodeNetwork {
		t.Errorf("expected network error, got %+v", ev)
	}
	if ev.Utterance != 5 {
		t.Errorf("event not tagged with the utterance: %+v", ev)
	}
}

func TestUndecodableAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Hello." {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte("this is not audio"))
	}))
	defer srv.Close()

	e := New(WithBaseURL(srv.URL), WithRequestsPerMinute(6000))
	ev := speakAndWait(t, e)
	if ev.Kind != speech.EventError || ev.Code != speech.CodeSynthesisFailed {
		t.Errorf("expected synthesis failure, got %+v", ev)
	}
}

func TestCancelDuringFetch(t *testing.T) {
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-r.Context().Done()
	}))
	defer srv.Close()

	e := New(WithBaseURL(srv.URL), WithRequestsPerMinute(6000))
	events := make(chan speech.Event, 4)
	if err := e.Speak(speech.Utterance{ID: 1, Text: "Hello."}, func(ev speech.Event) { events <- ev }); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
	e.CancelAll()

	select {
	case ev := <-events:
		if ev.Kind != speech.EventError || ev.Code != speech.CodeInterrupted {
			t.Errorf("expected interrupted, got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for interruption")
	}
	if e.Paused() {
		t.Error("nothing should be paused")
	}
}

func TestPauseDuringFetchIsHeld(t *testing.T) {
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-r.Context().Done()
	}))
	defer srv.Close()

	e := New(WithBaseURL(srv.URL), WithRequestsPerMinute(6000))
	if err := e.Speak(speech.Utterance{ID: 1, Text: "Hello."}, func(speech.Event) {}); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}

	e.Pause()
	if !e.Paused() {
		t.Fatal("a pause during the download should be recorded")
	}
	e.Resume()
	if e.Paused() {
		t.Error("resume should clear the recorded pause")
	}
	e.CancelAll()
}
