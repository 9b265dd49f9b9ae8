package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/irfacts/internal/storage"
)

// DefaultDebounce is how long the watcher waits after the last change
// before extracting a batch.
const DefaultDebounce = 2 * time.Second

// WatchOptions configure WatchInputs.
type WatchOptions struct {
	Pipeline Options
	Debounce time.Duration

	// OnBatch is called after every batch with its outcome.
	OnBatch func(*PipelineResult, error)
}

// WatchInputs monitors root for changed input files and extracts each batch
// into store. Facts of removed inputs stay in the store. Blocks until the
// context is cancelled.
func WatchInputs(ctx context.Context, root string, store storage.FactStore, opts WatchOptions) error {
	logger := opts.Pipeline.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ext := opts.Pipeline.InputExt
	if ext == "" {
		ext = DefaultInputExt
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	matcher, err := loadMatcher(root)
	if err != nil {
		logger.Warn("ignoring unreadable .gitignore", "root", root, "error", err)
		matcher = newMatcher(nil)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addDirs(watcher, root, root, matcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()

	logger.Info("watching for changes", "root", root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addDirs(watcher, root, event.Name, matcher); err != nil {
						logger.Warn("cannot watch directory", "path", event.Name, "error", err)
					}
					// Inputs may have landed before the watch was added.
					inputs, _ := WalkInputs(event.Name, ext, nil)
					for _, in := range inputs {
						if shouldWatchFile(in.Path, root, ext, matcher) {
							changed[in.Path] = true
						}
					}
					if len(inputs) > 0 {
						batchTimer.Reset(debounce)
					}
					continue
				}
			}
			if !shouldWatchFile(event.Name, root, ext, matcher) {
				continue
			}
			changed[event.Name] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			res, err := processChangedFiles(ctx, store, changed, opts.Pipeline, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("extracting changes", "error", err)
			}
			if opts.OnBatch != nil {
				opts.OnBatch(res, err)
			}
			changed = make(map[string]bool)
		}
	}
}

// processChangedFiles extracts the changed inputs that still exist.
func processChangedFiles(ctx context.Context, store storage.FactStore, changed map[string]bool, opts Options, logger *slog.Logger) (*PipelineResult, error) {
	paths := make([]string, 0, len(changed))
	for path := range changed {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Info("input removed; its facts are retained", "path", path)
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return &PipelineResult{}, nil
	}
	sort.Strings(paths)

	logger.Info("extracting changed inputs", "count", len(paths))
	return RunPipeline(ctx, paths, store, opts)
}

// addDirs watches dir and every directory below it that is not ignored.
func addDirs(watcher *fsnotify.Watcher, root, dir string, matcher gitignore.Matcher) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && shouldIgnoreDir(path, root, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldWatchFile checks if a file is an input that is not ignored.
func shouldWatchFile(path, root, ext string, matcher gitignore.Matcher) bool {
	if !isInput(filepath.Base(path), ext) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher == nil || !matcher.Match(splitPath(rel), false)
}

func shouldIgnoreDir(path, root string, matcher gitignore.Matcher) bool {
	if matcher == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(rel), true)
}
