// Package watcher implements the long-lived filesystem event subscriber
// (§4.6): it translates create/modify/delete/rename events into index
// mutations and contains the directory-stability debouncer that absorbs
// bulk directory copies.
//
// The teacher's own recursive watcher (pkg/filesystem/watching) is built
// from platform-specific non-recursive primitives (inotify, FSEvents via
// cgo, ReadDirectoryChangesW) wrapped by a generic RecursiveWatcher
// interface (watch_recursive.go). Those primitives aren't importable
// outside the teacher's module, so this package follows the same
// architecture — a non-recursive notification source, manually extended
// to cover a whole tree — built on fsnotify/fsnotify, the cross-platform
// library the retrieval pack's other examples use for the same purpose.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/classify"
	"github.com/ddas/ddas/internal/ddaserrors"
	"github.com/ddas/ddas/internal/digest"
	"github.com/ddas/ddas/internal/emptyset"
	"github.com/ddas/ddas/internal/index"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/record"
)

// Watcher subscribes to a recursive change stream rooted at a directory
// and keeps the ContentIndex and EmptyFileSet consistent with it.
type Watcher struct {
	logger     *logging.Logger
	contentIdx *index.ContentIndex
	emptySet   *emptyset.EmptyFileSet
	aggregator *aggregate.Aggregator
	bufferSize int

	settleDelay           time.Duration
	debouncePollInterval  time.Duration
	debounceStableSamples int
	debounceTimeout       time.Duration

	fs *fsnotify.Watcher

	inflight sync.WaitGroup
}

// Config bundles the tunable knobs a Watcher needs, lifted directly from
// internal/config.Config so this package doesn't import the CLI-facing
// config type.
type Config struct {
	BufferSize             int
	SettleDelay            time.Duration
	DebouncePollInterval   time.Duration
	DebounceStableSamples  int
	DebounceTimeout        time.Duration
}

// New creates a Watcher wired to the shared index, empty-set, and
// aggregator owned by the supervisor. It does not yet watch anything;
// call Start to begin.
func New(logger *logging.Logger, contentIdx *index.ContentIndex, emptySet *emptyset.EmptyFileSet, aggregator *aggregate.Aggregator, cfg Config) *Watcher {
	return &Watcher{
		logger:                logger,
		contentIdx:            contentIdx,
		emptySet:              emptySet,
		aggregator:            aggregator,
		bufferSize:            cfg.BufferSize,
		settleDelay:           cfg.SettleDelay,
		debouncePollInterval:  cfg.DebouncePollInterval,
		debounceStableSamples: cfg.DebounceStableSamples,
		debounceTimeout:       cfg.DebounceTimeout,
	}
}

// Start opens the change stream on root and registers recursive watches
// on every existing subdirectory. It must be called, and must succeed in
// registering the root watch, before the scanner begins (§4.9), so that
// mutations occurring mid-scan are not lost. A failure to open the root
// is a WatchInitError: fatal for the watcher, but not for the rest of the
// service (§7).
func (w *Watcher) Start(root string) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return ddaserrors.NewWatchInitError(root, err)
	}
	w.fs = fs

	if err := w.addTreeLocked(root); err != nil {
		fs.Close()
		return ddaserrors.NewWatchInitError(root, err)
	}

	return nil
}

// addTreeLocked registers a watch on dir and every subdirectory beneath
// it (non-recursively per fsnotify.Add call, recursively via the walk).
// A failure to watch dir itself is returned; failures on subdirectories
// are only logged.
func (w *Watcher) addTreeLocked(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if werr := w.fs.Add(path); werr != nil {
				if path == dir {
					return werr
				}
				w.logger.Warn(ddaserrors.NewWatchInitError(path, werr))
			}
		}
		return nil
	})
}

// Run processes events until ctx is cancelled. It multiplexes the
// underlying change-notification channel against cancellation so
// shutdown is prompt (§4.6, §5: "no 500ms-1s polling tail").
func (w *Watcher) Run(ctx context.Context) {
	defer w.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.dispatch(ctx, event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error(ddaserrors.NewWatchInitError("", err))
		}
	}
}

// Stop terminates watching and releases the underlying change-stream
// handle. Outstanding in-flight event handlers are allowed to drain (Run
// blocks on them via the WaitGroup before returning).
func (w *Watcher) Stop() error {
	if w.fs == nil {
		return nil
	}
	return w.fs.Close()
}

// sleepOrCancel sleeps for d unless ctx is cancelled first, returning
// false if cancellation won.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// hashAndIndex computes a record for path and inserts it into the content
// index, feeding the aggregator if the digest now has other members. It
// implements the common core of §4.5 step 1-2, reused by both Added and
// Modified handling.
func (w *Watcher) hashAndIndex(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		// The path vanished between the event firing and our processing
		// it; nothing to index.
		return
	}
	if info.IsDir() {
		return
	}
	if classify.ShouldIgnore(info.Name()) {
		return
	}

	if info.Size() == 0 {
		if prevDigest, had := w.contentIdx.RemoveByPath(path); had {
			w.aggregator.OnRemovePath(prevDigest, path)
		}
		w.emptySet.Add(path)
		return
	}
	w.emptySet.Remove(path)

	sum, err := digest.File(path, w.bufferSize)
	if err != nil {
		w.logger.Error(err)
		return
	}

	fileID, err := record.Identify(info)
	if err != nil {
		w.logger.Warn(err)
	}

	rec := record.FileRecord{
		Path:           path,
		Name:           info.Name(),
		Digest:         sum,
		Size:           info.Size(),
		ModifiedAt:     info.ModTime(),
		FileIdentifier: fileID,
	}

	others := w.contentIdx.DuplicatesFor(sum, path)
	previousDigest, hadPrevious := w.contentIdx.Insert(rec)

	if hadPrevious && previousDigest != sum {
		// The path moved to a different digest bucket (modified content):
		// its stale record must leave the old group, or that group keeps
		// being replayed as if this path still shared its old content.
		w.aggregator.OnRemovePath(previousDigest, path)
	}

	if len(others) > 0 {
		w.aggregator.OnDuplicate(rec, others, time.Now())
	}
}

// removePath removes path from both the content index and the empty-file
// set and, if it was a member of a digest bucket, notifies the aggregator
// so the owning group can drop it (§4.6 Removed/RenamedOld rows).
func (w *Watcher) removePath(path string) {
	digestVal, _ := w.contentIdx.RemoveByPath(path)
	w.emptySet.Remove(path)
	w.aggregator.OnRemovePath(digestVal, path)
}
