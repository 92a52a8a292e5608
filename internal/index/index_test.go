package index

import (
	"testing"

	"github.com/ddas/ddas/internal/record"
)

func TestInsertAndDuplicates(t *testing.T) {
	idx := New()

	a := record.FileRecord{Path: "/a", Digest: "deadbeef"}
	b := record.FileRecord{Path: "/b", Digest: "deadbeef"}
	idx.Insert(a)
	idx.Insert(b)

	dups := idx.DuplicatesFor("deadbeef", "/a")
	if len(dups) != 1 || dups[0].Path != "/b" {
		t.Fatalf("expected [/b], got %+v", dups)
	}

	groups := idx.AllGroups()
	if len(groups) != 1 || groups[0] != "deadbeef" {
		t.Fatalf("expected one duplicate group, got %v", groups)
	}
}

func TestInsertReplacesPriorDigest(t *testing.T) {
	idx := New()
	idx.Insert(record.FileRecord{Path: "/a", Digest: "one"})
	idx.Insert(record.FileRecord{Path: "/a", Digest: "two"})

	if d, ok := idx.DigestForPath("/a"); !ok || d != "two" {
		t.Fatalf("expected /a to map to 'two', got %q", d)
	}
	if dups := idx.DuplicatesFor("one", ""); len(dups) != 0 {
		t.Fatalf("expected digest 'one' bucket to be empty, got %+v", dups)
	}
}

func TestRemoveByPath(t *testing.T) {
	idx := New()
	idx.Insert(record.FileRecord{Path: "/a", Digest: "x"})

	digest, removed := idx.RemoveByPath("/a")
	if !removed || digest != "x" {
		t.Fatalf("expected removal of digest 'x', got %q, %v", digest, removed)
	}
	if _, removed := idx.RemoveByPath("/a"); removed {
		t.Fatal("expected second removal to be a no-op")
	}
}

func TestRemoveByPathIdempotentOnMissing(t *testing.T) {
	idx := New()
	if _, removed := idx.RemoveByPath("/missing"); removed {
		t.Fatal("expected no-op on absent path")
	}
}
