package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
)

// IgnoreFunc reports whether a changed path inside a bundle must not trigger a cycle.
type IgnoreFunc func(b *models.Bundle, path string) bool

type watchRoot struct {
	bundle *models.Bundle
	dir    string
}

// Watcher turns filesystem events under bundle directories into change
// events, and reports writes to the registry manifest.
type Watcher struct {
	fs       *fsnotify.Watcher
	roots    []watchRoot
	manifest string
	ignore   IgnoreFunc
	logger   *slog.Logger
}

// NewWatcher watches every bundle directory recursively, plus the directory
// holding manifest when one is given.
func NewWatcher(bundles []*models.Bundle, manifest string, ignore IgnoreFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create file watcher").Build()
	}
	w := &Watcher{fs: fw, ignore: ignore, logger: logger}

	for _, b := range bundles {
		dir, err := filepath.Abs(b.BuildDirectory)
		if err != nil {
			_ = fw.Close()
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve bundle directory").
				WithContext("bundle", b.Name).Build()
		}
		if err := addDirsRecursive(fw, dir, logger); err != nil {
			_ = fw.Close()
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to watch bundle directory").
				WithContext("bundle", b.Name).
				WithContext("path", dir).Build()
		}
		w.roots = append(w.roots, watchRoot{bundle: b, dir: dir})
	}
	// Longest directory first so nested bundles win.
	slices.SortFunc(w.roots, func(a, b watchRoot) int { return len(b.dir) - len(a.dir) })

	if manifest != "" {
		abs, err := filepath.Abs(manifest)
		if err != nil {
			_ = fw.Close()
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve manifest path").Build()
		}
		// The directory is more reliable than the file across editor renames.
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			_ = fw.Close()
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to watch manifest directory").
				WithContext("path", abs).Build()
		}
		w.manifest = abs
	}
	return w, nil
}

// Run delivers events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(b *models.Bundle, ev models.ChangeEvent), onManifest func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev, onChange, onManifest)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, onChange func(*models.Bundle, models.ChangeEvent), onManifest func()) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	if w.manifest != "" && ev.Name == w.manifest {
		if ev.Op.Has(fsnotify.Remove) {
			w.logger.Warn("Registry manifest removed", logfields.Path(ev.Name))
			return
		}
		onManifest()
		return
	}
	b, rel, ok := w.bundleFor(ev.Name)
	if !ok {
		return
	}
	if shouldIgnoreEvent(ev.Name) || (w.ignore != nil && w.ignore(b, ev.Name)) {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(w.fs, ev.Name, w.logger)
			return
		}
	}
	w.logger.Debug("File change detected", logfields.Bundle(b.Name), logfields.Path(rel), slog.String("op", ev.Op.String()))
	onChange(b, models.ChangeEvent{FullPath: ev.Name, RelativePath: rel})
}

func (w *Watcher) bundleFor(path string) (*models.Bundle, string, bool) {
	for _, r := range w.roots {
		rel, err := filepath.Rel(r.dir, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return r.bundle, filepath.ToSlash(rel), true
	}
	return nil, "", false
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func addDirsRecursive(w *fsnotify.Watcher, root string, logger *slog.Logger) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			logger.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for editor and OS artifacts.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
