// Package watch imports files dropped into a directory.
package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/ingest"
)

// Importer is implemented by *explorer.Explorer.
type Importer interface {
	Import(ctx context.Context, name string, r io.Reader, mode ingest.Mode) (ingest.Report, error)
}

// Result describes one imported file.
type Result struct {
	Path   string
	Report ingest.Report
	Err    error
}

// Options configures a Watcher.
type Options struct {
	Dir     string
	Pattern string // matched against the base name, e.g. "*.{csv,json,xlsx}"
	Mode    ingest.Mode
	// Settle is how long a file must be quiet before it is imported.
	Settle time.Duration
	// Existing imports matching files already present at start.
	Existing bool
	// OnResult is called after each import attempt.
	OnResult func(Result)
}

// Watcher feeds new files in Dir through an Importer.
type Watcher struct {
	imp  Importer
	opts Options
}

// New creates a Watcher.
func New(imp Importer, opts Options) *Watcher {
	if opts.Pattern == "" {
		opts.Pattern = "*.{csv,json,xlsx}"
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	if opts.Mode == "" {
		opts.Mode = ingest.ModeAppend
	}
	return &Watcher{imp: imp, opts: opts}
}

// Matches reports whether path's base name matches the pattern.
func (w *Watcher) Matches(path string) bool {
	ok, err := doublestar.Match(w.opts.Pattern, filepath.Base(path))
	return err == nil && ok
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer fw.Close() //nolint:errcheck

	if err := fw.Add(w.opts.Dir); err != nil {
		return eris.Wrapf(err, "watch: add %s", w.opts.Dir)
	}

	log := zap.L().With(zap.String("dir", w.opts.Dir), zap.String("pattern", w.opts.Pattern))
	log.Info("watch: started", zap.String("mode", string(w.opts.Mode)))

	if w.opts.Existing {
		if err := w.importExisting(ctx); err != nil {
			return err
		}
	}

	// Last event time per path; a path is imported once it has been quiet
	// for Settle.
	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.opts.Settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.Matches(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: fsnotify error", zap.Error(err))

		case now := <-tick.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= w.opts.Settle {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				w.importFile(ctx, path)
			}
		}
	}
}

func (w *Watcher) importExisting(ctx context.Context) error {
	matches, err := doublestar.Glob(os.DirFS(w.opts.Dir), w.opts.Pattern)
	if err != nil {
		return eris.Wrapf(err, "watch: glob %s", w.opts.Pattern)
	}
	sort.Strings(matches)
	for _, m := range matches {
		w.importFile(ctx, filepath.Join(w.opts.Dir, m))
	}
	return nil
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	res := Result{Path: path}
	defer func() {
		if w.opts.OnResult != nil {
			w.opts.OnResult(res)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		// Removed before it settled.
		res.Err = eris.Wrapf(err, "watch: open %s", path)
		zap.L().Warn("watch: open failed", zap.String("file", path), zap.Error(err))
		return
	}
	defer f.Close() //nolint:errcheck

	res.Report, res.Err = w.imp.Import(ctx, path, f, w.opts.Mode)
	if res.Err != nil {
		zap.L().Warn("watch: import failed", zap.String("file", path), zap.Error(res.Err))
		return
	}
	zap.L().Info("watch: imported", zap.String("file", path), zap.String("message", res.Report.Message()))
}
