// Package watch schedules work for log files dropped into a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// DefaultRetryDelay is the wait before a file whose OnFile failed is
// offered again.
const DefaultRetryDelay = 5 * time.Second

// MaxAttempts bounds OnFile calls for one unchanged file.
const MaxAttempts = 5

// Extensions are the file types picked up by default.
var Extensions = []string{".log", ".txt", ".csv"}

// Watcher reports new or changed log files in one directory.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
	debounce time.Duration

	mu       sync.Mutex
	seen     map[string]fileState
	timers   map[string]*time.Timer
	inflight map[string]bool
	attempts map[string]int

	// OnFile is called once per settled change. On error the file is
	// offered again after RetryDelay, up to MaxAttempts times.
	OnFile     func(ctx context.Context, path string) error
	RetryDelay time.Duration
}

type fileState struct {
	modTime time.Time
	size    int64
}

// New watches dir. A debounce of zero uses DefaultDebounce.
func New(dir string, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      abs,
		watcher:  fw,
		log:      log.With().Str("component", "watch").Str("dir", abs).Logger(),
		debounce: debounce,
		seen:       map[string]fileState{},
		timers:     map[string]*time.Timer{},
		inflight:   map[string]bool{},
		attempts:   map[string]int{},
		RetryDelay: DefaultRetryDelay,
	}, nil
}

// Wanted reports whether path has one of the watched extensions.
func Wanted(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Run delivers file events until ctx ends, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	defer w.watcher.Close()
	w.log.Info().Msg("watching for log files")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !Wanted(ev.Name) {
				continue
			}
			w.schedule(ctx, ev.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// schedule restarts the quiet-period timer of path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.arm(ctx, path, w.debounce)
}

// arm sets the timer of path. w.mu must be held.
func (w *Watcher) arm(ctx context.Context, path string, delay time.Duration) {
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(delay, func() { w.handle(ctx, path) })
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return
	}
	state := fileState{modTime: st.ModTime(), size: st.Size()}

	w.mu.Lock()
	delete(w.timers, path)
	if prev, ok := w.seen[path]; ok && prev.modTime.Equal(state.modTime) && prev.size == state.size {
		w.mu.Unlock()
		return
	}
	if w.inflight[path] {
		w.arm(ctx, path, w.debounce)
		w.mu.Unlock()
		return
	}
	if state.size == 0 || w.OnFile == nil {
		w.seen[path] = state
		w.mu.Unlock()
		if state.size == 0 {
			w.log.Debug().Str("file", path).Msg("empty file ignored")
		}
		return
	}
	w.inflight[path] = true
	w.mu.Unlock()

	w.log.Info().Str("file", path).Int64("bytes", state.size).Msg("file ready")
	err = w.OnFile(ctx, path)

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, path)
	if err == nil {
		w.seen[path] = state
		delete(w.attempts, path)
		return
	}
	w.attempts[path]++
	n := w.attempts[path]
	if n >= MaxAttempts || ctx.Err() != nil {
		w.log.Error().Err(err).Str("file", path).Int("attempts", n).Msg("could not schedule file, giving up")
		w.seen[path] = state
		delete(w.attempts, path)
		return
	}
	w.log.Warn().Err(err).Str("file", path).Int("attempts", n).Msg("could not schedule file, will retry")
	w.arm(ctx, path, w.RetryDelay)
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
