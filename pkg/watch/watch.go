// Package watch reloads a catalog registry when files under the content
// root change. Bursts of changes are debounced into a single reload, and a
// reload that fails leaves the active catalog in place.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/logger"
)

// DefaultDebounce is how long the tree must be quiet before a reload.
const DefaultDebounce = 300 * time.Millisecond

var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// Result describes one reload attempt.
type Result struct {
	Previous *catalog.Catalog
	Current  *catalog.Catalog
	// Diff is the unified diff between the previous and new snapshots.
	Diff string
	Err  error
}

// Watcher drives a registry from file system events.
type Watcher struct {
	registry *catalog.Registry
	root     string
	debounce time.Duration
	onReload []func(context.Context, Result)
	ready    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook registers fn to receive every reload result.
func WithReloadHook(fn func(context.Context, Result)) Option {
	return func(w *Watcher) {
		w.onReload = append(w.onReload, fn)
	}
}

// New returns a watcher reloading registry on changes below root.
func New(registry *catalog.Registry, root string, opts ...Option) *Watcher {
	w := &Watcher{
		registry: registry,
		root:     root,
		debounce: DefaultDebounce,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once the tree is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. It must be called at most once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	if err := w.addTree(ctx, fw, w.root); err != nil {
		return err
	}
	logger.G(ctx).WithField("root", w.root).WithField("debounce", w.debounce).Info("watching marketplace for changes")
	close(w.ready)

	// A full buffer already guarantees a pending reload.
	changes := make(chan string, 1)
	reloads := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		debounce(ctx, changes, reloads, w.debounce)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ctx, fw, event) {
				continue
			}
			logger.G(ctx).WithField("file", event.Name).WithField("operation", event.Op.String()).Debug("change detected")
			select {
			case changes <- event.Name:
			default:
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("error watching files")
		case <-reloads:
			w.reload(ctx)
		}
	}
}

// relevant filters events and starts watching new directories.
func (w *Watcher) relevant(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if ignoredDirs[filepath.Base(event.Name)] {
		return false
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(ctx, fw, event.Name); err != nil {
				logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("failed to watch new directory")
			}
		}
	}
	return true
}

func (w *Watcher) addTree(ctx context.Context, fw *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return fw.Add(path)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	return nil
}

func (w *Watcher) reload(ctx context.Context) {
	prev := w.registry.Current()
	next, err := w.registry.Reload(ctx)

	result := Result{Previous: prev, Err: err}
	if err == nil {
		result.Current = next
		if prev != nil {
			diff, derr := catalog.Diff("previous", prev.Snapshot(), "current", next.Snapshot())
			if derr != nil {
				logger.G(ctx).WithError(derr).Warn("failed to diff catalogs")
			}
			result.Diff = diff
		}
		if result.Diff != "" {
			logger.G(ctx).WithField("digest", next.Digest().String()).Debugf("catalog changed:\n%s", result.Diff)
		}
	}

	for _, fn := range w.onReload {
		fn(ctx, result)
	}
}

// debounce collapses bursts of changes into one signal per quiet period.
func debounce(ctx context.Context, input <-chan string, output chan<- struct{}, delay time.Duration) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	var fire <-chan time.Time
	for {
		select {
		case _, ok := <-input:
			if !ok {
				return
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delay)
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case output <- struct{}{}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
