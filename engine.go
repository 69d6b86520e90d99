package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/bigairlab/narrate/speech"
	"github.com/bigairlab/narrate/speech/engines/espeak"
	"github.com/bigairlab/narrate/speech/engines/fallback"
	"github.com/bigairlab/narrate/speech/engines/gtts"
	"github.com/bigairlab/narrate/speech/engines/mock"
	"github.com/bigairlab/narrate/speech/engines/piper"
)

const (
	engineAuto   = "auto"
	engineMock   = "mock"
	engineEspeak = "espeak"
	engineGTTS   = "gtts"
	enginePiper  = "piper"
)

var engineNames = []string{engineAuto, engineEspeak, enginePiper, engineGTTS, engineMock}

// engineOptions are the engine settings read from the config file.
type engineOptions struct {
	EspeakBinary      string
	PiperBinary       string
	PiperModel        string
	GTTSURL           string
	RequestsPerMinute int
	MockWordsPerMin   int
	MaxFailures       int
}

func validateEngine(name string) error {
	for _, n := range engineNames {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("unknown engine %q: use one of %s", name, strings.Join(engineNames, ", "))
}

// newEngine builds the named speech engine.
func newEngine(name string, opts engineOptions) (speech.Engine, error) {
	if err := validateEngine(name); err != nil {
		return nil, err
	}

	switch name {
	case engineAuto:
		var chain []speech.Engine
		for _, n := range []string{enginePiper, engineEspeak, engineGTTS} {
			e, err := newEngine(n, opts)
			if err != nil {
				return nil, err
			}
			chain = append(chain, e)
		}
		return fallback.New(opts.MaxFailures, chain...), nil
	case engineEspeak:
		var eo []espeak.Option
		if opts.EspeakBinary != "" {
			eo = append(eo, espeak.WithBinary(expandPath(opts.EspeakBinary)))
		}
		return espeak.New(eo...), nil
	case enginePiper:
		var po []piper.Option
		if opts.PiperBinary != "" {
			po = append(po, piper.WithBinary(expandPath(opts.PiperBinary)))
		}
		if opts.PiperModel != "" {
			po = append(po, piper.WithModel(expandPath(opts.PiperModel)))
		}
		return piper.New(po...), nil
	case engineGTTS:
		var gopts []gtts.Option
		if opts.GTTSURL != "" {
			gopts = append(gopts, gtts.WithBaseURL(opts.GTTSURL))
		}
		if opts.RequestsPerMinute > 0 {
			gopts = append(gopts, gtts.WithRequestsPerMinute(opts.RequestsPerMinute))
		}
		return gtts.New(gopts...), nil
	default:
		wpm := opts.MockWordsPerMin
		if wpm <= 0 {
			wpm = 180
		}
		return mock.New(mock.WithAuto(wpm, 150*time.Millisecond)), nil
	}
}
