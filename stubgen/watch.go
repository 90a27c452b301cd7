package stubgen

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
)

// RunCallback receives the outcome of every pipeline run started by a Watcher.
type RunCallback func(*Result, error)

// Watcher reruns the pipeline whenever an extension source under the root
// changes. Bursts of events are debounced into a single run.
type Watcher struct {
	pipeline       *Pipeline
	opts           Options
	watcher        *fsnotify.Watcher
	debouncePeriod time.Duration
	onRun          RunCallback
	logger         *zap.SugaredLogger

	mu            sync.Mutex // guards debounceTimer
	debounceTimer *time.Timer
	runMu         sync.Mutex // serializes pipeline runs
}

// NewWatcher watches every directory under opts.Root.
func NewWatcher(p *Pipeline, opts Options, onRun RunCallback) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		pipeline:       p,
		opts:           opts,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond,
		onRun:          onRun,
		logger:         logger.ComponentLogger("stubgen.watch"),
	}
	if err := w.addTree(opts.Root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetDebounce changes the quiet period before a rerun.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debouncePeriod = d
}

// addTree watches root and every directory below it, hidden ones excluded.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

// Run performs an initial pipeline run and then reacts to changes until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	ctx = logger.WithComponent(ctx, "watch")

	w.runPipeline(ctx)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if isDir, err := statDir(event.Name); err == nil && isDir {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warnw("Failed to watch new directory", logger.FieldDir, event.Name, logger.FieldError, err)
			}
			w.scheduleRun(ctx)
			return
		}
	}

	if !w.isSource(event.Name) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.logger.Infow("Source changed", logger.FieldFile, event.Name, "op", event.Op.String())
		w.scheduleRun(ctx)
	}
}

// isSource reports whether path is an extension source this watcher cares about.
func (w *Watcher) isSource(path string) bool {
	extensions := w.opts.Extensions
	if len(extensions) == 0 {
		extensions = []string{DefaultExtension}
	}
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) {
			return w.opts.Filter == nil || w.opts.Filter(path)
		}
	}
	return false
}

// scheduleRun debounces rapid changes into one pipeline run.
func (w *Watcher) scheduleRun(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if ctx.Err() != nil {
			return
		}
		w.runPipeline(ctx)
	})
}

func (w *Watcher) runPipeline(ctx context.Context) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	result, err := w.pipeline.Run(ctx, w.opts)
	if err != nil {
		w.logger.Errorw("Stub generation failed", logger.FieldError, err)
	}
	if w.onRun != nil {
		w.onRun(result, err)
	}
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
