package aggregate

import (
	"os"
	"sync"
	"time"

	"github.com/ddas/ddas/internal/record"
)

// Group is the per-digest DuplicateGroup aggregate (§3). Records are held
// by value, not by pointer, deliberately avoiding the cyclic
// group<->record ownership the original prototype's embedded-record
// design would otherwise create (§9).
type Group struct {
	// Digest is the content digest all records share (G1).
	Digest string
	// Records is the ordered list of known records for this digest.
	// Pairwise distinct by path (G2).
	Records []record.FileRecord
	// LastUpdated is the last time this group's record list changed.
	LastUpdated time.Time
	// Delivered indicates whether the current record list has already
	// been transmitted to the presently connected client.
	Delivered bool
	// version is bumped every time merge/removePath actually changes the
	// record list. It lets a concurrent sender for this digest (OnDuplicate
	// can be invoked from two independently-dispatched watcher goroutines
	// whose events both resolve to the same digest) detect that its
	// snapshot has been superseded and skip transmitting it, so the last
	// bytes written to the wire always encode the group's current state
	// (P3), never an interleaved, less-complete one.
	version int
	// sendMu serializes transmission of this group's snapshots so that two
	// concurrent emitters for the same digest can't interleave writes or
	// let an older snapshot land on the wire after a newer one.
	sendMu sync.Mutex
}

// indexOfPath returns the index of path within g.Records, or -1.
func (g *Group) indexOfPath(path string) int {
	for i := range g.Records {
		if g.Records[i].Path == path {
			return i
		}
	}
	return -1
}

// merge folds rec into the group by path-uniqueness (G2): an existing
// record for the same path is replaced in place (preserving position),
// otherwise rec is appended. It reports whether the group's contents
// changed.
func (g *Group) merge(rec record.FileRecord, maxRecords int) (changed bool) {
	defer func() {
		if changed {
			g.version++
		}
	}()
	if i := g.indexOfPath(rec.Path); i >= 0 {
		if g.Records[i] == rec {
			return false
		}
		g.Records[i] = rec
		return true
	}
	if len(g.Records) >= maxRecords {
		// Capacity exhaustion (§7 CapacityExhaustion): drop the new
		// record rather than grow unbounded. The oldest member stays,
		// since it's the one most likely still referenced by a client.
		return false
	}
	g.Records = append(g.Records, rec)
	return true
}

// removePath removes the record for path from the group, if present. It
// reports whether the group's contents changed.
func (g *Group) removePath(path string) (changed bool) {
	i := g.indexOfPath(path)
	if i < 0 {
		return false
	}
	g.Records = append(g.Records[:i], g.Records[i+1:]...)
	g.version++
	return true
}

// activeCount returns the number of records in the group that still exist
// on disk, rechecked by stat (used for G3 activity and replay filtering).
func (g *Group) activeCount() int {
	count := 0
	for _, r := range g.Records {
		if _, err := os.Stat(r.Path); err == nil {
			count++
		}
	}
	return count
}

// Snapshot is an immutable copy of a Group suitable for handing to the IPC
// layer outside of any lock.
type Snapshot struct {
	Digest      string
	Records     []record.FileRecord
	LastUpdated time.Time
}

// snapshot copies g into a Snapshot.
func (g *Group) snapshot() Snapshot {
	records := make([]record.FileRecord, len(g.Records))
	copy(records, g.Records)
	return Snapshot{Digest: g.Digest, Records: records, LastUpdated: g.LastUpdated}
}
