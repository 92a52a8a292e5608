package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/emptyset"
	"github.com/ddas/ddas/internal/index"
	"github.com/ddas/ddas/internal/logging"
)

func TestScanFindsDuplicatePair(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := os.WriteFile(filepath.Join(root, "a", "one.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a", "two.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	contentIdx := index.New()
	emptySet := emptyset.New()
	agg := aggregate.New(logging.RootLogger, 100, 100, time.Millisecond)

	s := New(logging.RootLogger, contentIdx, emptySet, agg, 1<<20)
	if err := s.Run(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	if contentIdx.Len() != 2 {
		t.Fatalf("expected 2 tracked paths, got %d", contentIdx.Len())
	}
	groups := contentIdx.AllGroups()
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
}

func TestScanSkipsEmptyFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "empty1"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "empty2"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	contentIdx := index.New()
	emptySet := emptyset.New()
	agg := aggregate.New(logging.RootLogger, 100, 100, time.Millisecond)

	s := New(logging.RootLogger, contentIdx, emptySet, agg, 1<<20)
	if err := s.Run(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	if contentIdx.Len() != 0 {
		t.Fatalf("expected empty files to stay out of the content index, got %d", contentIdx.Len())
	}
	if emptySet.Len() != 2 {
		t.Fatalf("expected both empty files registered, got %d", emptySet.Len())
	}
}

func TestScanIgnoresTemporaryFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "draft.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	contentIdx := index.New()
	emptySet := emptyset.New()
	agg := aggregate.New(logging.RootLogger, 100, 100, time.Millisecond)

	s := New(logging.RootLogger, contentIdx, emptySet, agg, 1<<20)
	if err := s.Run(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	if contentIdx.Len() != 0 {
		t.Fatalf("expected ignored file to be invisible to the index, got %d", contentIdx.Len())
	}
}
