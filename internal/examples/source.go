package examples

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the bursts of events editors emit on save.
const debounceDelay = 100 * time.Millisecond

// Source serves the current catalog. With a file path configured the file
// replaces the built-in catalog and can be watched for changes.
type Source struct {
	mu      sync.RWMutex
	catalog *Catalog
	path    string
	logger  *slog.Logger
}

// NewSource loads the catalog from path, or the built-in catalog when path
// is empty.
func NewSource(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Source{path: path, logger: logger}
	if path == "" {
		s.catalog = Default()
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Catalog returns the current catalog.
func (s *Source) Catalog() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Path returns the watched file, empty for the built-in catalog.
func (s *Source) Path() string { return s.path }

// Reload re-reads the file. On error the current catalog is kept.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	c, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()
	s.logger.Debug("examples loaded", "path", s.path, "count", c.Len())
	return nil
}

// Watch reloads the catalog whenever the file changes and calls onChange
// after each successful reload. It blocks until ctx is cancelled.
// The parent directory is watched so that atomic saves (write to a temp
// file, then rename) are seen.
func (s *Source) Watch(ctx context.Context, onChange func()) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if err := s.Reload(); err != nil {
					s.logger.Error("examples reload failed", "path", s.path, "error", err)
					return
				}
				if onChange != nil {
					onChange()
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
