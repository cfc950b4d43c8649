// Package watch re-triggers validation when bibliography files change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// eventChannelBuffer is the size of the watch event channel.
	eventChannelBuffer = 64

	// DefaultDebounce is used when a non-positive debounce is given.
	DefaultDebounce = 500 * time.Millisecond
)

// Operation indicates the type of file operation.
type Operation string

// OpModify and OpDelete enumerate the operations reported for a watched file.
const (
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// Event reports that a watched file changed.
type Event struct {
	// Path is the file path as it was passed to New.
	Path string

	// Operation is the type of change.
	Operation Operation
}

// Watcher watches a fixed set of files and emits debounced change events.
//
// Parent directories are watched instead of the files themselves so editors
// that save by rename keep being tracked.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// absolute path -> path as given
	files map[string]string
	dirs  map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.Mutex
	hashes map[string]string

	events chan Event

	droppedEvents atomic.Int64
}

// New creates a watcher for paths.
func New(paths []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	files := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = p
		dirs[filepath.Dir(abs)] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		files:    files,
		dirs:     dirs,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan Event, eventChannelBuffer),
	}, nil
}

// Events returns the channel of watch events. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start records the current content of every file and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	for abs := range w.files {
		if content, err := os.ReadFile(abs); err == nil {
			w.setHash(abs, contentHash(content))
		}
	}

	for dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("Watching directory", "path", dir)
	}

	go w.processEvents(ctx)

	w.logger.Info("Watcher started",
		"files", len(w.files),
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent accumulates an event for a watched file.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	abs := filepath.Clean(event.Name)
	if _, ok := w.files[abs]; !ok {
		return
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	w.pendingMu.Lock()
	w.pending[abs] |= event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Change detected", "path", abs, "op", event.Op.String())
}

// flushPending emits one event per file that changed since the last tick.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for abs := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event := Event{Path: w.files[abs]}

		content, err := os.ReadFile(abs)
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("Failed to read watched file", "path", abs, "error", err)
				continue
			}
			// Removed, or renamed away and not yet replaced.
			w.hashMu.Lock()
			_, known := w.hashes[abs]
			delete(w.hashes, abs)
			w.hashMu.Unlock()
			if known {
				event.Operation = OpDelete
				w.sendEvent(event)
			}
			continue
		}

		newHash := contentHash(content)
		if oldHash, ok := w.hash(abs); ok && oldHash == newHash {
			continue
		}
		w.setHash(abs, newHash)

		event.Operation = OpModify
		w.sendEvent(event)
	}
}

// sendEvent sends an event to the output channel.
func (w *Watcher) sendEvent(event Event) {
	select {
	case w.events <- event:
		w.logger.Debug("Sent watch event", "path", event.Path, "op", event.Operation)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

func (w *Watcher) hash(abs string) (string, bool) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	h, ok := w.hashes[abs]
	return h, ok
}

func (w *Watcher) setHash(abs, h string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[abs] = h
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
