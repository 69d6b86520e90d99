// Package audio plays 16-bit PCM through the system audio device.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// ErrFormatMismatch is returned when the device is already open with a
// different format. oto allows a single context per process.
var ErrFormatMismatch = errors.New("audio device already open with a different format")

// Format describes signed 16-bit little endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate checks that oto can play f.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	return nil
}

// BytesPerSecond is the data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Output creates players. It is satisfied by an oto context.
type Output interface {
	NewPlayer(r io.Reader) Player
}

// Player is a single stream on an Output.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(v float64)
	Close() error
}

var device struct {
	sync.Mutex
	ctx    *oto.Context
	format Format
}

// Open returns the system output for f, opening the device on first use.
func Open(f Format) (Output, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	device.Lock()
	defer device.Unlock()
	if device.ctx != nil {
		if device.format != f {
			return nil, fmt.Errorf("%w: open at %+v, requested %+v", ErrFormatMismatch, device.format, f)
		}
		return otoOutput{device.ctx}, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready
	log.Debug("audio: device open", "sample_rate", f.SampleRate, "channels", f.Channels)

	device.ctx = ctx
	device.format = f
	return otoOutput{ctx}, nil
}

type otoOutput struct {
	ctx *oto.Context
}

func (o otoOutput) NewPlayer(r io.Reader) Player {
	return o.ctx.NewPlayer(r)
}

// pollInterval is how often Wait checks whether the stream has drained.
const pollInterval = 20 * time.Millisecond

// Track is one stream being played, with pause state tracked on our side
// because a paused oto player also reports that it is not playing.
type Track struct {
	mu     sync.Mutex
	player Player
	paused bool
	closed bool
}

// Play starts r on out at volume.
func Play(out Output, r io.Reader, volume float64) *Track {
	t := Cue(out, r, volume)
	t.Resume()
	return t
}

// Cue loads r on out at volume without starting it. The track is paused
// until Resume.
func Cue(out Output, r io.Reader, volume float64) *Track {
	p := out.NewPlayer(r)
	p.SetVolume(volume)
	return &Track{player: p, paused: true}
}

// Pause pauses playback.
func (t *Track) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused && !t.closed {
		t.player.Pause()
		t.paused = true
	}
}

// Resume continues paused playback.
func (t *Track) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused && !t.closed {
		t.player.Play()
		t.paused = false
	}
}

// Paused reports whether the track is paused.
func (t *Track) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Wait blocks until the stream has played out or ctx is done, then
// releases the player. It returns ctx.Err() when cancelled.
func (t *Track) Wait(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.close(true)
			return ctx.Err()
		case <-ticker.C:
		}

		t.mu.Lock()
		done := !t.paused && !t.player.IsPlaying()
		t.mu.Unlock()
		if done {
			t.close(false)
			return nil
		}
	}
}

func (t *Track) close(stop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if stop {
		t.player.Pause()
	}
	t.closed = true
	if err := t.player.Close(); err != nil {
		log.Debug("audio: close player", "err", err)
	}
}
