package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source holds the catalog currently in force. Readers call Current per
// request; a watched file swaps it in place without locking readers.
type Source struct {
	cur atomic.Pointer[Catalog]
}

func NewSource(c *Catalog) *Source {
	s := &Source{}
	s.cur.Store(c)
	return s
}

func (s *Source) Current() *Catalog {
	return s.cur.Load()
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Watch reloads path whenever it changes until ctx is done. An invalid file is
// logged and the previous catalog stays in force. The parent directory is
// watched because editors usually replace files by rename.
func (s *Source) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating catalog watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	go s.run(ctx, watcher, filepath.Clean(path))
	return nil
}

const reloadDebounce = 250 * time.Millisecond

func (s *Source) run(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.WarnContext(ctx, "catalog watcher error", "error", err)

		case <-pending:
			pending = nil
			s.reload(ctx, path)
		}
	}
}

func (s *Source) reload(ctx context.Context, path string) {
	c, err := LoadFile(path)
	if err != nil {
		slog.ErrorContext(ctx, "catalog reload failed, keeping previous version",
			"path", path, "error", err)
		return
	}
	prev := s.cur.Swap(c)
	slog.InfoContext(ctx, "question catalog reloaded",
		"path", path,
		"version", c.Version,
		"previous_version", prev.Version,
		"steps", c.TotalSteps())
}
