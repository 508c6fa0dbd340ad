// Package watch rebuilds a project whenever its sources or assets change
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/utils"
)

// DefaultSettlingDelay is how long the watcher waits for a burst of
// changes to end before it reports them
const DefaultSettlingDelay = 300 * time.Millisecond

// Watcher reports settled batches of file changes below a set of roots
type Watcher struct {
	watcher    *fsnotify.Watcher
	logger     logger.Logger
	exclusions *utils.ExclusionMatcher
	settling   time.Duration
}

// New creates a watcher ignoring the default exclusions
func New(log logger.Logger, settling time.Duration) (*Watcher, error) {
	if log == nil {
		log = logger.Discard()
	}
	if settling <= 0 {
		settling = DefaultSettlingDelay
	}

	exclusions, err := utils.NewExclusionMatcher(utils.GetDefaultExclusions())
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:    w,
		logger:     log,
		exclusions: exclusions,
		settling:   settling,
	}, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Exclude ignores dir and everything beneath it
func (w *Watcher) Exclude(dir string) {
	w.exclusions.ExcludeDir(dir)
}

// Add watches root and every directory below it
func (w *Watcher) Add(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.exclusions.IsExcluded(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.logger.Debug("Watching directory", logger.WithField("path", path))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return nil
}

// WatchProject watches the directories holding a project's sources and
// its assets, ignoring its build directory
func (w *Watcher) WatchProject(project *types.Project) error {
	if project.BuildDir != "" {
		w.Exclude(project.BuildDir)
	}

	roots := map[string]bool{}
	for _, src := range project.Sources {
		roots[filepath.Dir(src.File)] = true
	}
	if utils.DirectoryExists(project.AssetsDir) {
		roots[project.AssetsDir] = true
	}

	sorted := make([]string, 0, len(roots))
	for r := range roots {
		sorted = append(sorted, r)
	}
	sort.Strings(sorted)

	for _, r := range sorted {
		if err := w.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// List returns all watched directories
func (w *Watcher) List() []string {
	return w.watcher.WatchList()
}

// Run delivers settled batches of changed paths to onChange until ctx is
// done. onChange runs on the event loop, so changes made while it runs
// are reported in the next batch.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	pending := map[string]bool{}
	timer := time.NewTimer(w.settling)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.exclusions.IsExcluded(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.Add(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", logger.WithError(err))
					}
				}
			}

			pending[event.Name] = true
			timer.Reset(w.settling)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", logger.WithError(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]bool{}

			w.logger.Info("Files changed", logger.WithField("count", len(changed)))
			onChange(ctx, changed)
		}
	}
}
