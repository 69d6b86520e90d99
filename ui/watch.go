package ui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// fileWatcher reports writes to a single local file. It watches the parent
// directory so editors that replace the file on save are still noticed.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
}

func newFileWatcher(path string) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err //nolint:wrapcheck
	}
	log.Info("fsnotify watching dir", "dir", dir)
	return &fileWatcher{watcher: w, path: abs}, nil
}

// wait blocks until the file changes and returns a reloadMsg. It returns
// nil once the watcher is closed.
func (w *fileWatcher) wait() tea.Msg {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "path", w.path, "error", err)
		}
	}
}

func (w *fileWatcher) close() {
	if err := w.watcher.Close(); err != nil {
		log.Error("fsnotify fail to close watcher", "path", w.path, "error", err)
	}
}
