package watcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ddas/ddas/internal/classify"
)

// dispatch classifies one fsnotify event and routes it to the matching
// handler from the §4.6 table. Each handler runs in its own goroutine
// (tracked by w.inflight) so a settle delay or directory debounce on one
// path never blocks delivery of events for other paths — preserving the
// per-path ordering guarantee of §5 while not serializing unrelated work.
func (w *Watcher) dispatch(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if classify.ShouldIgnore(name) {
		return
	}

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write:
		w.inflight.Add(1)
		go w.handleModified(ctx, event.Name)
	case event.Op&fsnotify.Create == fsnotify.Create:
		w.inflight.Add(1)
		go w.handleAdded(ctx, event.Name)
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		w.inflight.Add(1)
		go w.handleRemoved(event.Name)
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// fsnotify surfaces a rename as a single event on the old path (the
		// new path, if still within the watched tree, arrives separately as
		// a Create event and is handled by handleAdded). This collapses the
		// specification's RenamedOld/RenamedNew pair into "old path treated
		// as removed, new path treated as added" (§9 permits substituting
		// an equivalent event-driven heuristic).
		w.inflight.Add(1)
		go w.handleRenamedOld(event.Name)
	}
}

// handleAdded implements the Added row of §4.6: a settle delay for files,
// or entry into the directory-stability debouncer for directories.
func (w *Watcher) handleAdded(ctx context.Context, path string) {
	defer w.inflight.Done()

	info, err := os.Lstat(path)
	if err != nil {
		return
	}

	if info.IsDir() {
		if !w.debounceDirectory(ctx, path) {
			return
		}
		if err := w.addTreeLocked(path); err != nil {
			w.logger.Warn(err)
		}
		w.enumerateAdded(path)
		return
	}

	if !sleepOrCancel(ctx, w.settleDelay) {
		return
	}
	w.logger.Tagged("ADDED", "%s", path)
	w.hashAndIndex(path)
}

// enumerateAdded recursively processes every file under a newly stabilized
// directory as an ADDED event (§4.6 "enumerate contents recursively").
func (w *Watcher) enumerateAdded(dir string) {
	_ = walk(dir, func(path string, info os.FileInfo) {
		if info.IsDir() || classify.ShouldIgnore(info.Name()) {
			return
		}
		w.logger.Tagged("ADDED", "%s", path)
		w.hashAndIndex(path)
	})
}

// handleModified implements the Modified row: settle, then remove the
// prior entry and re-process so the index reflects the new content (the
// "remove-then-insert" pairing called out in §9 as needing to be atomic
// as observed — Insert already performs that removal internally via I1).
func (w *Watcher) handleModified(ctx context.Context, path string) {
	defer w.inflight.Done()

	info, err := os.Lstat(path)
	if err != nil || info.IsDir() {
		return
	}

	if !sleepOrCancel(ctx, w.settleDelay) {
		return
	}
	w.logger.Tagged("MODIFIED", "%s", path)
	w.hashAndIndex(path)
}

// handleRemoved implements the Removed row: if the path no longer exists,
// it is dropped from the index and empty set.
func (w *Watcher) handleRemoved(path string) {
	defer w.inflight.Done()

	if _, err := os.Lstat(path); err == nil {
		// Something immediately replaced the removed path (e.g. a rapid
		// remove+recreate); let the subsequent Create event handle it.
		return
	}
	w.logger.Tagged("DELETED", "%s", path)
	w.removePath(path)
}

// handleRenamedOld implements the RenamedOld row: the old path ceases to
// exist, so it's removed from the index and empty set.
func (w *Watcher) handleRenamedOld(path string) {
	defer w.inflight.Done()
	w.logger.Tagged("RENAMED FROM", "%s", path)
	w.removePath(path)
}
