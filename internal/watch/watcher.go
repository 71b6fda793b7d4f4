// Package watch reloads the catalog when its local manifest or CSV files
// change on disk.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"cardhub/internal/catalog"
	"cardhub/pkg/models"
)

const DefaultDebounce = 300 * time.Millisecond

// Reloader is the part of catalog.Service the watcher drives.
type Reloader interface {
	Reload(ctx context.Context) (*catalog.Snapshot, error)
	ManifestLocator() string
	Snapshot() *catalog.Snapshot
}

type Stats struct {
	Events    int       `json:"events"`
	Reloads   int       `json:"reloads"`
	Errors    int       `json:"errors"`
	LastPath  string    `json:"last_path,omitempty"`
	LastEvent time.Time `json:"last_event,omitempty"`
}

// Watcher watches the directories holding the manifest and every local
// source file. Bursts of events collapse into one reload after Debounce.
type Watcher struct {
	target   Reloader
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
	stats Stats
}

func New(target Reloader, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		target:   target,
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	w.refresh()
	return w, nil
}

// Run blocks until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Go 1.23 timers: Reset never delivers a stale tick.
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.mu.Lock()
			w.stats.Events++
			w.stats.LastPath = ev.Name
			w.stats.LastEvent = time.Now()
			w.mu.Unlock()
			w.logger.Debug("file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))

			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	snap, err := w.target.Reload(ctx)
	w.mu.Lock()
	w.stats.Reloads++
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("reload after file change failed", zap.Error(err))
	} else if snap != nil {
		w.logger.Info("reloaded after file change", zap.String("generation", snap.Generation))
	}
	// the new manifest may name different files
	w.refresh()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[filepath.Clean(ev.Name)]
	return ok
}

func (w *Watcher) refresh() {
	var man *models.Manifest
	if snap := w.target.Snapshot(); snap != nil {
		man = &snap.Manifest
	}
	files := Targets(w.target.ManifestLocator(), man)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = make(map[string]struct{}, len(files))
	for _, f := range files {
		w.files[f] = struct{}{}
		dir := filepath.Dir(f)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs[dir] = struct{}{}
		w.logger.Info("watching directory", zap.String("dir", dir))
	}
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Targets lists the local files behind a manifest locator and, when known,
// the manifest's sources. Remote locators are left out.
func Targets(manifestLocator string, man *models.Manifest) []string {
	if manifestLocator == "" || isRemote(manifestLocator) {
		return nil
	}
	manifestPath := strings.TrimPrefix(manifestLocator, "file://")
	if abs, err := filepath.Abs(manifestPath); err == nil {
		manifestPath = abs
	}
	resolver := catalog.NewLocatorFetcher(manifestPath)
	out := []string{manifestPath}
	if man == nil {
		return out
	}
	seen := map[string]bool{out[0]: true}
	for _, src := range man.Sources {
		if strings.TrimSpace(src.CardsLocator) == "" {
			continue
		}
		p := resolver.Resolve(src.CardsLocator)
		if isRemote(p) {
			continue
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func isRemote(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
