package watcher

import (
	"context"
	"os"
	"time"
)

// debounceDirectory implements the directory-stability debouncer (§4.6):
// it polls dir's immediate child count every debouncePollInterval. When
// three (debounceStableSamples) consecutive samples report the same
// non-zero count, the directory is declared stable and this returns true.
// A hard timeout of debounceTimeout forces enumeration to proceed
// regardless. It absorbs the flurry of per-file events a bulk directory
// copy produces, preventing one-file-at-a-time duplicate alerts while the
// copy is still in flight (§8 scenario 4).
//
// It returns false if ctx is cancelled before stability (or timeout) is
// reached, or if dir can no longer be read (e.g. it was removed); in
// either case the caller must not enumerate.
func (w *Watcher) debounceDirectory(ctx context.Context, dir string) bool {
	deadline := time.Now().Add(w.debounceTimeout)

	var lastCount int
	var consecutive int

	ticker := time.NewTicker(w.debouncePollInterval)
	defer ticker.Stop()

	for {
		count, err := childCount(dir)
		if err != nil {
			// The directory vanished before we could stabilize it; nothing
			// to enumerate.
			return false
		}

		if count > 0 && count == lastCount {
			consecutive++
		} else {
			consecutive = 1
		}
		lastCount = count

		if count > 0 && consecutive >= w.debounceStableSamples {
			return true
		}
		if time.Now().After(deadline) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// childCount returns the number of immediate children of dir.
func childCount(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
