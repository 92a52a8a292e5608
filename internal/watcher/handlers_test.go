package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/digest"
	"github.com/ddas/ddas/internal/emptyset"
	"github.com/ddas/ddas/internal/index"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/record"
)

// newLiveWatcher wires a Watcher to real index/emptyset/aggregator
// instances and starts fsnotify watching root, returning the Watcher along
// with the index and aggregator it feeds. Run is started in the
// background and joined via t.Cleanup.
func newLiveWatcher(t *testing.T, root string) (*Watcher, *index.ContentIndex, *aggregate.Aggregator) {
	t.Helper()

	contentIdx := index.New()
	emptySet := emptyset.New()
	aggregator := aggregate.New(logging.RootLogger, 100, 100, time.Millisecond)

	w := New(logging.RootLogger, contentIdx, emptySet, aggregator, Config{
		BufferSize:            1 << 16,
		SettleDelay:           10 * time.Millisecond,
		DebouncePollInterval:  5 * time.Millisecond,
		DebounceStableSamples: 3,
		DebounceTimeout:       500 * time.Millisecond,
	})

	if err := w.Start(root); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		w.Stop()
	})

	return w, contentIdx, aggregator
}

// waitFor polls cond until it reports true or the timeout elapses, failing
// the test in the latter case. fsnotify delivery and the watcher's settle
// delay are both asynchronous, so handler-driven state changes must be
// observed this way rather than immediately after the filesystem mutation.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

// seedRecord computes a real digest for an existing file and inserts it
// into idx, mirroring what the initial scanner would have done before the
// watcher took over.
func seedRecord(t *testing.T, idx *index.ContentIndex, path string) record.FileRecord {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := digest.File(path, 1<<16)
	if err != nil {
		t.Fatal(err)
	}
	rec := record.FileRecord{
		Path:       path,
		Name:       info.Name(),
		Digest:     sum,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}
	idx.Insert(rec)
	return rec
}

// TestWatcherDetectsDuplicateIntroducedAfterScan covers §8 scenario 2: a
// file written after the watcher is already live, whose content duplicates
// an existing file, must surface as a two-member duplicate group.
func TestWatcherDetectsDuplicateIntroducedAfterScan(t *testing.T) {
	root := t.TempDir()
	original := filepath.Join(root, "original.txt")
	if err := os.WriteFile(original, []byte("shared content"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, contentIdx, aggregator := newLiveWatcher(t, root)

	// Seed the index as the initial scan would have, before the watcher
	// observes any live changes.
	seedRecord(t, contentIdx, original)

	copyPath := filepath.Join(root, "copy.txt")
	if err := os.WriteFile(copyPath, []byte("shared content"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return aggregator.Len() == 1
	})

	digestVal, ok := contentIdx.DigestForPath(copyPath)
	if !ok {
		t.Fatal("expected the new copy to be indexed")
	}
	dups := contentIdx.DuplicatesFor(digestVal, copyPath)
	if len(dups) != 1 || dups[0].Path != original {
		t.Fatalf("expected the copy to share a digest with %s, got %+v", original, dups)
	}
}

// TestWatcherRemovalResolvesGroup covers §8 scenario 3: deleting one member
// of an active duplicate group drops it from the content index, and the
// group falls back below the two-member activity threshold reported by
// ReplayActiveGroups.
func TestWatcherRemovalResolvesGroup(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "first.txt")
	second := filepath.Join(root, "second.txt")
	if err := os.WriteFile(first, []byte("duplicate payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("duplicate payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, contentIdx, aggregator := newLiveWatcher(t, root)

	seedRecord(t, contentIdx, first)
	rec2 := seedRecord(t, contentIdx, second)
	others := contentIdx.DuplicatesFor(rec2.Digest, second)
	aggregator.OnDuplicate(rec2, others, time.Now())

	if aggregator.Len() != 1 {
		t.Fatalf("expected the seeded group to be resident, got %d", aggregator.Len())
	}

	if err := os.Remove(second); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, stillIndexed := contentIdx.DigestForPath(second)
		return !stillIndexed
	})

	if _, stillIndexed := contentIdx.DigestForPath(first); !stillIndexed {
		t.Fatal("expected the surviving member to remain indexed")
	}

	capture := &replayCapture{}
	aggregator.ReplayActiveGroups(capture)
	if len(capture.sent) != 0 {
		t.Fatalf("expected no active groups to replay once the pair is broken, got %d", len(capture.sent))
	}
}

// replayCapture is a minimal aggregate.AlertSink used only to observe what
// ReplayActiveGroups would transmit, without standing up a real IPC
// connection (that path is covered separately by the ipcserver tests).
type replayCapture struct {
	sent []aggregate.Snapshot
}

func (r *replayCapture) SendDuplicateDetected(g aggregate.Snapshot) error {
	r.sent = append(r.sent, g)
	return nil
}

func (r *replayCapture) SendScanComplete(int, int, time.Time) error {
	return nil
}
