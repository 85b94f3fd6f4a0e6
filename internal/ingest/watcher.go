package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string            // directories to watch (recursive)
	AllowedExts map[string]struct{} // nil means every supported document type
	InitialScan bool                // if true, walk roots and emit existing files
	Debounce    time.Duration       // coalesce rapid update/rename bursts
	Logger      *slog.Logger
}

// StartWatcher emits paths of created or modified documents under cfg.Roots until ctx is
// done, then closes both channels.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path, cfg.AllowedExts) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		var (
			mu      sync.Mutex
			timer   *time.Timer
			pending = map[string]struct{}{}
			flushWG sync.WaitGroup
		)
		defer close(errCh)
		defer close(evCh)
		defer flushWG.Wait()
		defer func() {
			mu.Lock()
			if timer != nil && timer.Stop() {
				flushWG.Done()
			}
			mu.Unlock()
		}()
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		sendPending := func() {
			mu.Lock()
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
				delete(pending, p)
			}
			mu.Unlock()
			for _, p := range paths {
				if !emit(p) {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				// Track new dirs
				if e.Op.Has(fsnotify.Create) {
					tryAddDir(w, e.Name, logger)
				}
				if !allowed(e.Name, cfg.AllowedExts) || !(e.Op.Has(fsnotify.Create) || e.Op.Has(fsnotify.Write) || e.Op.Has(fsnotify.Rename)) {
					continue
				}
				mu.Lock()
				pending[e.Name] = struct{}{}
				mu.Unlock()
				if cfg.Debounce <= 0 {
					sendPending()
					continue
				}
				mu.Lock()
				if timer != nil && timer.Stop() {
					flushWG.Done()
				}
				flushWG.Add(1)
				timer = time.AfterFunc(cfg.Debounce, func() {
					defer flushWG.Done()
					sendPending()
				})
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// tryAddDir watches path when it is a directory; files are ignored.
func tryAddDir(w *fsnotify.Watcher, path string, logger *slog.Logger) {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		return
	}
	if err := w.Add(path); err != nil {
		logger.Warn("failed to add new directory to watcher", "path", path, "error", err)
	}
}
