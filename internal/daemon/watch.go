package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jcdickinson/phpdomain/internal/discover"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

// Watch rebuilds the project whenever a source changes, until ctx is done.
// Events are debounced by the configured interval; onBuild receives the
// result (or error) of each rebuild.
func (s *Service) Watch(ctx context.Context, onBuild func(*rpc.BuildResult, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	root := s.cfg.Root
	m := discover.NewMatcher(root, s.cfg.SourceSuffix, s.cfg.ExcludePatterns)
	if err := s.watchTree(w, m, root); err != nil {
		return err
	}

	s.watching.Store(true)
	defer s.watching.Store(false)

	debounce := time.Duration(s.cfg.Watch.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	timer.Stop()

	s.logger.Info("watching for changes", "root", root, "debounce", debounce)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !s.relevant(w, m, ev) {
				continue
			}
			s.logger.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			res, err := s.Build(ctx, false, nil)
			if onBuild != nil {
				onBuild(res, err)
			}
		}
	}
}

// watchTree adds root and every directory below it that can hold sources.
func (s *Service) watchTree(w *fsnotify.Watcher, m *discover.Matcher, root string) error {
	out := s.cfg.OutDir()
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && s.skipDir(m, path, out) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (s *Service) skipDir(m *discover.Matcher, path, out string) bool {
	if path == out || strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	rel, err := filepath.Rel(s.cfg.Root, path)
	return err != nil || m.Excluded(rel)
}

// relevant reports whether ev should trigger a rebuild. New directories are
// added to the watch as a side effect.
func (s *Service) relevant(w *fsnotify.Watcher, m *discover.Matcher, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !s.skipDir(m, ev.Name, s.cfg.OutDir()) {
				if err := s.watchTree(w, m, ev.Name); err != nil {
					s.logger.Warn("watching new directory failed", "path", ev.Name, "error", err)
				}
			}
			return false
		}
	}
	rel, err := filepath.Rel(s.cfg.Root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	// Removed directories arrive without a suffix.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return filepath.Ext(rel) == "" || m.Source(rel)
	}
	return m.Source(rel)
}
