package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/odvcencio/tileref/pkg/ignore"
	"github.com/odvcencio/tileref/pkg/project"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [project]",
		Short: "Rewrite once, then rewrite changed files until interrupted",
		Long: `watch runs a full rewrite, then watches the project directory and rewrites
every .cs file that changes. The project is reloaded on each change so type
information stays current. Files tileref writes itself are rewritten to the
same text again, so they do not cause further writes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().Duration("debounce", 250*time.Millisecond, "quiet period before changed files are processed")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")

	report, err := s.run(nil)
	if err != nil {
		return err
	}
	if err := s.print(report); err != nil {
		return err
	}

	root := filepath.Dir(s.manifest)
	matcher, err := ignore.Load(filepath.Join(root, ignore.FileName))
	if err != nil {
		return err
	}
	matcher = matcher.With(s.cfg.Exclude...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s.logger.Info("watching", "dir", root)
	return watchProject(ctx, root, debounce, matcher, func(changed []string) {
		full, sources := classifyChanges(changed, s.manifest)
		var filter func(*project.File) bool
		switch {
		case full:
			s.logger.Info("project file list may have changed, rewriting everything")
		case len(sources) > 0:
			filter = func(f *project.File) bool { return sources[f.Path] }
		default:
			return
		}

		report, err := s.run(filter)
		if err != nil {
			// A half-saved file often fails to load; the next save retries.
			s.logger.Error("rewrite failed", "err", err)
			return
		}
		if report.FilesChanged > 0 || s.cfg.JSON {
			if err := s.print(report); err != nil {
				s.logger.Error("print report", "err", err)
			}
		}
	})
}

// classifyChanges splits changed paths into C# sources and reports whether
// the manifest or the ignore file changed, which calls for a full run.
// Settings from tileref.yaml are read once at startup.
func classifyChanges(changed []string, manifest string) (bool, map[string]bool) {
	sources := map[string]bool{}
	for _, path := range changed {
		if path == manifest || filepath.Base(path) == ignore.FileName {
			return true, nil
		}
		if strings.EqualFold(filepath.Ext(path), ".cs") {
			sources[path] = true
		}
	}
	return false, sources
}

// watchProject calls onChange with the sorted set of paths that changed
// below root, once per burst of events separated by debounce.
func watchProject(ctx context.Context, root string, debounce time.Duration, matcher *ignore.Matcher, onChange func(changedPaths []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	root = filepath.Clean(root)
	if err := addWatchRecursive(watcher, root, root, matcher); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	pending := false
	pendingPaths := map[string]bool{}

	resetDebounce := func(path string) {
		pendingPaths[path] = true
		if pending {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			eventPath := filepath.Clean(event.Name)
			if shouldIgnoreWatchPath(root, eventPath, matcher) {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(eventPath); statErr == nil && info.IsDir() {
					_ = addWatchRecursive(watcher, eventPath, root, matcher)
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			resetDebounce(eventPath)
		case <-timer.C:
			if pending {
				pending = false
				changed := make([]string, 0, len(pendingPaths))
				for path := range pendingPaths {
					changed = append(changed, path)
				}
				sort.Strings(changed)
				pendingPaths = map[string]bool{}
				onChange(changed)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, dir, root string, matcher *ignore.Matcher) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && shouldSkipWatchDir(root, path, entry.Name(), matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func shouldSkipWatchDir(root, path, name string, matcher *ignore.Matcher) bool {
	if strings.HasPrefix(name, ".") || name == "node_modules" {
		return true
	}
	lower := strings.ToLower(name)
	if (lower == "bin" || lower == "obj") && filepath.Dir(path) == root {
		return true
	}
	if matcher != nil {
		if relPath, err := filepath.Rel(root, path); err == nil && matcher.Match(filepath.ToSlash(relPath), true) {
			return true
		}
	}
	return false
}

func shouldIgnoreWatchPath(root, path string, matcher *ignore.Matcher) bool {
	base := filepath.Base(path)
	if base == ".DS_Store" || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swx") || strings.HasPrefix(base, ".#") || strings.HasSuffix(base, "~") {
		return true
	}
	if base == ignore.FileName {
		return false
	}
	if matcher != nil {
		if relPath, err := filepath.Rel(root, path); err == nil && matcher.Match(filepath.ToSlash(relPath), false) {
			return true
		}
	}
	return false
}
