// Package piper speaks through the Piper neural text-to-speech binary.
// Each utterance runs one piper process that writes raw PCM to stdout,
// which is then played through the shared audio output.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bigairlab/narrate/speech"
	"github.com/bigairlab/narrate/speech/engines/audio"
)

// DefaultSampleRate is used when the model config does not name one.
const DefaultSampleRate = 22050

// ErrNoModel is returned by Speak when no voice model is configured.
var ErrNoModel = errors.New("piper: no voice model configured")

var errEmptyAudio = errors.New("piper produced no audio")

// playback is one in-flight utterance. track is nil while synthesizing.
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

	binary     string
	model      string
	sampleRate int

	output     audio.Output
	openOutput func(audio.Format) (audio.Output, error)

	current *playback
}

// Option configures an Engine.
type Option func(*Engine)

// WithBinary uses path instead of searching for piper.
func WithBinary(path string) Option {
	return func(e *Engine) {
		e.binary = path
	}
}

// WithModel sets the .onnx voice model.
func WithModel(path string) Option {
	return func(e *Engine) {
		e.model = path
	}
}

// WithOutput plays through out instead of the system audio device.
func WithOutput(out audio.Output) Option {
	return func(e *Engine) {
		e.output = out
	}
}

// New creates an engine. The sample rate is read from the model's
// .onnx.json config when present.
func New(opts ...Option) *Engine {
	e := &Engine{openOutput: audio.Open}
	for _, opt := range opts {
		opt(e)
	}
	if e.binary == "" {
		e.binary = findBinary()
	}
	e.sampleRate = modelSampleRate(e.model)
	return e
}

// findBinary looks for piper on PATH and in common install locations.
func findBinary() string {
	locations := []string{"piper", "/usr/local/bin/piper", "/usr/bin/piper"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		)
	}
	for _, loc := range locations {
		if path, err := exec.LookPath(loc); err == nil {
			return path
		}
	}
	return ""
}

type modelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}

func readModelConfig(model string) (modelConfig, bool) {
	var cfg modelConfig
	if model == "" {
		return cfg, false
	}
	b, err := os.ReadFile(model + ".json")
	if err != nil {
		return cfg, false
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		log.Debug("piper: unreadable model config", "model", model, "err", err)
		return cfg, false
	}
	return cfg, true
}

func modelSampleRate(model string) int {
	if cfg, ok := readModelConfig(model); ok && cfg.Audio.SampleRate > 0 {
		return cfg.Audio.SampleRate
	}
	return DefaultSampleRate
}

// ModelVoice describes the voice of a model file named like
// en_US-lessac-medium.onnx.
func ModelVoice(model string) speech.Voice {
	base := strings.TrimSuffix(filepath.Base(model), filepath.Ext(model))
	v := speech.Voice{ID: base, Name: base, Language: "en-US", Default: true}

	parts := strings.Split(base, "-")
	if strings.Contains(parts[0], "_") {
		v.Language = strings.ReplaceAll(parts[0], "_", "-")
	}
	if len(parts) >= 3 {
		v.Name = parts[1] + " (" + strings.Join(parts[2:], "-") + ")"
	}
	if cfg, ok := readModelConfig(model); ok && cfg.Language.Code != "" {
		v.Language = strings.ReplaceAll(cfg.Language.Code, "_", "-")
	}
	return v
}

// Available reports whether both the binary and a model are present.
func (e *Engine) Available() bool {
	if e.binary == "" || e.model == "" {
		return false
	}
	_, err := os.Stat(e.model)
	return err == nil
}

// Voices returns the single voice of the configured model.
func (e *Engine) Voices() []speech.Voice {
	if e.model == "" {
		return nil
	}
	return []speech.Voice{ModelVoice(e.model)}
}

// OnVoicesChanged never fires: the voice is fixed by the model.
func (e *Engine) OnVoicesChanged(func()) func() {
	return func() {}
}

// Args returns the piper command line for u.
func Args(model string, u speech.Utterance) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	return []string{
		"--model", model,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/rate, 'f', 3, 64),
	}
}

// Speak synthesizes and plays u on a separate goroutine.
func (e *Engine) Speak(u speech.Utterance, handler speech.EventHandler) error {
	if e.model == "" {
		return ErrNoModel
	}
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
		log.Warn("piper: utterance failed", "utterance", u.ID, "code", code, "err", err)
		event(speech.EventError, code)
	}

	pcm, err := e.synthesize(ctx, u)
	if err != nil {
		fail(speech.CodeSynthesisFailed, err)
		return
	}

	out, err := e.outputFor()
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
	pb.track = audio.Cue(out, bytes.NewReader(pcm), u.Volume)
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

func (e *Engine) synthesize(ctx context.Context, u speech.Utterance) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.binary, Args(e.model, u)...) //nolint:gosec
	cmd.Stdin = strings.NewReader(u.Text + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	pcm, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("piper: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(pcm) == 0 {
		return nil, errEmptyAudio
	}
	return pcm, nil
}

func (e *Engine) outputFor() (audio.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output != nil {
		return e.output, nil
	}
	out, err := e.openOutput(audio.Format{SampleRate: e.sampleRate, Channels: 1})
	if err != nil {
		return nil, err
	}
	e.output = out
	return out, nil
}

// CancelAll stops the in-flight utterance, killing piper if it is still
// synthesizing.
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
