// Package gtts speaks through the Google Translate text-to-speech endpoint.
// Audio arrives as MP3, is decoded with go-mp3 and played through the
// shared audio output.
package gtts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/go-mp3"
	"golang.org/x/time/rate"

	"github.com/bigairlab/narrate/speech"
	"github.com/bigairlab/narrate/speech/engines/audio"
)

// DefaultBaseURL is the public translate endpoint.
const DefaultBaseURL = "https://translate.google.com/translate_tts"

// maxRequestChars is the longest text the endpoint accepts per request.
const maxRequestChars = 200

var errEmptyAudio = errors.New("empty audio response")

// Voices lists the accents the endpoint offers, keyed by BCP 47 tag.
var voices = []speech.Voice{
	{ID: "en-US", Name: "English (United States)", Language: "en-US", Default: true},
	{ID: "en-GB", Name: "English (United Kingdom)", Language: "en-GB"},
	{ID: "en-AU", Name: "English (Australia)", Language: "en-AU"},
	{ID: "en-IN", Name: "English (India)", Language: "en-IN"},
	{ID: "fr-FR", Name: "French (France)", Language: "fr-FR"},
	{ID: "de-DE", Name: "German", Language: "de-DE"},
	{ID: "es-ES", Name: "Spanish (Spain)", Language: "es-ES"},
}

// tlds selects the regional accent for a language tag.
var tlds = map[string]string{
	"en-GB": "co.uk",
	"en-AU": "com.au",
	"en-IN": "co.in",
}

// playback is one in-flight utterance. track is nil until audio arrives.
type playback struct {
	cancel context.CancelFunc
	track  *audio.Track
	// paused is set by Pause before the track exists; the track is then
	// cued without starting.
	paused bool
}

// Engine implements speech.Engine.
type Engine struct {
	mu sync.Mutex

	baseURL string
	client  *http.Client
	limiter *rate.Limiter

	output     audio.Output
	openOutput func(audio.Format) (audio.Output, error)

	current *playback
}

// Option configures an Engine.
type Option func(*Engine)

// WithBaseURL overrides the endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(e *Engine) {
		e.baseURL = u
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// WithRequestsPerMinute limits how often the endpoint is called.
func WithRequestsPerMinute(rpm int) Option {
	return func(e *Engine) {
		if rpm > 0 {
			e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// WithOutput plays through out instead of the system audio device.
func WithOutput(out audio.Output) Option {
	return func(e *Engine) {
		e.output = out
	}
}

// New creates an engine. The audio device is opened on first use.
func New(opts ...Option) *Engine {
	e := &Engine{
		baseURL:    DefaultBaseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/60), 1),
		openOutput: audio.Open,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available always reports true; failures surface per utterance.
func (e *Engine) Available() bool {
	return true
}

// Voices returns the fixed accent list.
func (e *Engine) Voices() []speech.Voice {
	return append([]speech.Voice(nil), voices...)
}

// OnVoicesChanged never fires: the voice list is static.
func (e *Engine) OnVoicesChanged(func()) func() {
	return func() {}
}

// Speak fetches, decodes and plays u on a separate goroutine.
func (e *Engine) Speak(u speech.Utterance, handler speech.EventHandler) error {
	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{cancel: cancel}

	e.mu.Lock()
	e.current = pb
	e.mu.Unlock()

	go e.run(ctx, pb, u, handler)
	return nil
}

func (e *Engine) run(ctx context.Context, pb *playback, u speech.Utterance, handler speech.EventHandler) {
	event := func(kind speech.EventKind, code speech.ErrorCode) {
		handler(speech.Event{Kind: kind, Utterance: u.ID, Chunk: u.Chunk, Code: code})
	}
	fail := func(code speech.ErrorCode, err error) {
		if ctx.Err() != nil {
			event(speech.EventError, speech.CodeInterrupted)
			return
		}
		log.Warn("gtts: utterance failed", "utterance", u.ID, "code", code, "err", err)
		event(speech.EventError, code)
	}

	pcm, sampleRate, err := e.synthesize(ctx, u)
	if err != nil {
		var se *speech.SynthesisError
		if errors.As(err, &se) {
			fail(se.Code, se.Err)
		} else {
			fail(speech.CodeNetwork, err)
		}
		return
	}

	out, err := e.outputFor(sampleRate)
	if err != nil {
		fail(speech.CodeAudioHardware, err)
		return
	}

	e.mu.Lock()
	if ctx.Err() != nil {
		e.mu.Unlock()
		event(speech.EventError, speech.CodeInterrupted)
		return
	}
	pb.track = audio.Cue(out, pcm, u.Volume)
	if !pb.paused {
		pb.track.Resume()
	}
	e.mu.Unlock()

	event(speech.EventStart, "")

	if err := pb.track.Wait(ctx); err != nil {
		event(speech.EventError, speech.CodeInterrupted)
		return
	}

	e.mu.Lock()
	if e.current == pb {
		e.current = nil
	}
	e.mu.Unlock()
	event(speech.EventEnd, "")
}

// synthesize downloads every piece of u and returns one PCM stream.
func (e *Engine) synthesize(ctx context.Context, u speech.Utterance) (io.Reader, int, error) {
	pieces := Split(u.Text, maxRequestChars)
	readers := make([]io.Reader, 0, len(pieces))
	sampleRate := 0

	for i, piece := range pieces {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
		data, err := e.fetch(ctx, RequestURL(e.baseURL, piece, language(u), u.Rate, i, len(pieces)))
		if err != nil {
			return nil, 0, err
		}
		dec, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, 0, &speech.SynthesisError{Code: speech.CodeSynthesisFailed, Err: err}
		}
		if sampleRate == 0 {
			sampleRate = dec.SampleRate()
		}
		readers = append(readers, dec)
	}
	return io.MultiReader(readers...), sampleRate, nil
}

func (e *Engine) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate tts: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &speech.SynthesisError{Code: speech.CodeSynthesisFailed, Err: errEmptyAudio}
	}
	return data, nil
}

// outputFor opens the device for go-mp3 output, which is always 16-bit
// stereo.
func (e *Engine) outputFor(sampleRate int) (audio.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output != nil {
		return e.output, nil
	}
	out, err := e.openOutput(audio.Format{SampleRate: sampleRate, Channels: 2})
	if err != nil {
		return nil, err
	}
	e.output = out
	return out, nil
}

// CancelAll stops the in-flight utterance without waiting for it.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return
	}
	e.current.cancel()
	e.current = nil
}

// Pause pauses the in-flight utterance. A pause during synthesis holds
// the track once it is ready.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pb := e.current; pb != nil {
		pb.paused = true
		if pb.track != nil {
			pb.track.Pause()
		}
	}
}

// Resume continues a paused utterance.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pb := e.current; pb != nil {
		pb.paused = false
		if pb.track != nil {
			pb.track.Resume()
		}
	}
}

// Paused reports whether the in-flight utterance is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.paused
}

// RequestURL builds the endpoint URL for one piece of text.
func RequestURL(base, text, lang string, speed float64, idx, total int) string {
	if speed <= 0 {
		speed = 1
	}
	host := "com"
	if tld, ok := tlds[lang]; ok {
		host = tld
	}
	if host != "com" {
		base = strings.Replace(base, "translate.google.com", "translate.google."+host, 1)
	}

	tl := lang
	if i := strings.IndexByte(lang, '-'); i > 0 {
		tl = lang[:i]
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", tl)
	q.Set("q", text)
	q.Set("ttsspeed", strconv.FormatFloat(speed, 'f', -1, 64))
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(text))))
	return base + "?" + q.Encode()
}

// Split breaks text into pieces of at most limit runes on word boundaries.
// A single word longer than limit is cut.
func Split(text string, limit int) []string {
	var (
		pieces  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			pieces = append(pieces, string(current))
			current = current[:0]
		}
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > limit {
			flush()
			pieces = append(pieces, string(w[:limit]))
			w = w[limit:]
		}
		if len(current) > 0 && len(current)+1+len(w) > limit {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	flush()

	if len(pieces) == 0 {
		return []string{""}
	}
	return pieces
}

func language(u speech.Utterance) string {
	if u.Voice != nil && u.Voice.Language != "" {
		return u.Voice.Language
	}
	if u.Language != "" {
		return u.Language
	}
	return "en-US"
}
