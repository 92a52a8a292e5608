package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ddas/ddas/internal/logging"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	return &Watcher{
		logger:                logging.RootLogger,
		debouncePollInterval:  5 * time.Millisecond,
		debounceStableSamples: 3,
		debounceTimeout:       500 * time.Millisecond,
	}
}

func TestDebounceDirectoryStabilizesOnConstantChildCount(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, string(rune('a'+i))), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := newTestWatcher(t)
	start := time.Now()
	if !w.debounceDirectory(context.Background(), dir) {
		t.Fatal("expected debounce to succeed")
	}
	if elapsed := time.Since(start); elapsed > w.debounceTimeout {
		t.Fatalf("expected stabilization well before the hard timeout, took %s", elapsed)
	}
}

func TestDebounceDirectoryHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t)
	w.debounceTimeout = time.Hour // an empty dir never counts as stable, so without cancellation this would wait out the timeout

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if w.debounceDirectory(ctx, dir) {
		t.Fatal("expected cancellation to short-circuit debounce")
	}
}

func TestDebounceDirectoryAbortsOnMissingDir(t *testing.T) {
	w := newTestWatcher(t)
	if w.debounceDirectory(context.Background(), filepath.Join(t.TempDir(), "does-not-exist")) {
		t.Fatal("expected debounce to abort when the directory vanishes")
	}
}
