package main

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bigairlab/narrate/speech"
	"github.com/bigairlab/narrate/ui"
)

// runHeadless reads doc to completion without a TUI, logging progress to
// w. Cancelling ctx stops reading and is not an error.
func runHeadless(ctx context.Context, ctl *speech.Controller, doc ui.Document, w io.Writer) error {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          appName,
	})

	var (
		mu      sync.Mutex
		failure error
		once    sync.Once
		done    = make(chan struct{})
	)

	ctl.OnNotice(func(n speech.Notice) {
		logger.Error(n.Message())
		mu.Lock()
		if failure == nil {
			failure = n.Err
		}
		mu.Unlock()
	})
	ctl.OnStateChange(func(s speech.Snapshot) {
		switch s.Status {
		case speech.StatusIdle:
			logger.Info("finished", "job", s.JobID)
			once.Do(func() { close(done) })
		case speech.StatusPlaying:
			logger.Info("reading", "chunk", s.Chunk+1, "of", s.Total)
		default:
			logger.Debug(s.Status.String(), "chunk", s.Chunk+1, "of", s.Total)
		}
	})

	title := doc.Title
	if title == "" {
		title = doc.Note
	}
	logger.Info("starting", "title", title)
	if err := ctl.Start(doc.Title, doc.Body); err != nil {
		return err //nolint:wrapcheck
	}
	// A dispatch that fails inside Start never leaves Idle.
	if ctl.State().Status == speech.StatusIdle {
		once.Do(func() { close(done) })
	}

	select {
	case <-done:
	case <-ctx.Done():
		logger.Info("interrupted")
		ctl.Stop()
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	return failure
}
