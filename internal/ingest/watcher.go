package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReadyMarker is the file whose creation marks an inbox expediente directory as complete.
const ReadyMarker = ".ready"

type WatchConfig struct {
	Inbox       string        // each subdirectory is one expediente
	InitialScan bool          // emit directories already marked ready
	Debounce    time.Duration // coalesce rapid create/write bursts
	Logger      *slog.Logger
}

// StartWatcher emits an expediente directory once its ReadyMarker appears. Each directory
// is emitted at most once per marker creation.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Inbox == "" {
		logger.Error("ingest.watch.failed", "error", "no inbox provided")
		return nil, nil, errors.New("no inbox provided")
	}
	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.failed", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Inbox); err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	entries, err := os.ReadDir(cfg.Inbox)
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	var initial []string
	for _, e := range entries {
		if !e.IsDir() || IsHidden(e.Name()) {
			continue
		}
		dir := filepath.Join(cfg.Inbox, e.Name())
		if err := w.Add(dir); err != nil {
			logger.Warn("ingest.watch.add_failed", "dir", dir, "error", err)
		}
		if cfg.InitialScan && isReady(dir) {
			initial = append(initial, dir)
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		for _, dir := range initial {
			select {
			case evCh <- dir:
			case <-ctx.Done():
				return
			}
		}

		pending := map[string]struct{}{}
		var fire <-chan time.Time
		flush := func() {
			for dir := range pending {
				select {
				case evCh <- dir:
				case <-ctx.Done():
					return
				}
				delete(pending, dir)
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
				if e.Op&fsnotify.Create != 0 && filepath.Dir(e.Name) == filepath.Clean(cfg.Inbox) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_failed", "dir", e.Name, "error", err)
						}
						if isReady(e.Name) {
							pending[e.Name] = struct{}{}
						}
					}
				}
				if filepath.Base(e.Name) == ReadyMarker && e.Op&fsnotify.Create != 0 {
					pending[filepath.Dir(e.Name)] = struct{}{}
				}
				if len(pending) == 0 {
					continue
				}
				if cfg.Debounce > 0 {
					fire = time.After(cfg.Debounce)
				} else {
					flush()
				}
			case <-fire:
				fire = nil
				flush()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func isReady(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ReadyMarker))
	return err == nil
}
