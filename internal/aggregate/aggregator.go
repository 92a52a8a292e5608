// Package aggregate implements the alert aggregator (§4.7): a
// capacity-bounded collection of per-digest DuplicateGroups, updated as
// files join or leave groups, and responsible for replaying unsent groups
// to a newly (re)connected client.
package aggregate

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/ddas/ddas/internal/ddaserrors"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/record"
)

// Aggregator owns the DuplicateGroups collection (§3). Its lock is
// independent of the ContentIndex's and the IPC session's, per the
// no-nested-locks discipline in §5.
type Aggregator struct {
	logger *logging.Logger

	lock          sync.Mutex
	groups        *lru.Cache // digest (string) -> *Group
	order         []string   // insertion order of currently resident digests; groupcache's lru.Cache exposes no enumeration, so group order (for replay and for re-marking delivered=false) is tracked here
	maxRecords    int
	replaySpacing time.Duration

	sinkLock sync.Mutex
	sink     AlertSink
}

// New creates an Aggregator with the given capacity bounds (§6: at most
// 100 groups, at most 100 records per group).
func New(logger *logging.Logger, maxGroups, maxRecordsPerGroup int, replaySpacing time.Duration) *Aggregator {
	a := &Aggregator{
		logger:        logger,
		maxRecords:    maxRecordsPerGroup,
		replaySpacing: replaySpacing,
		sink:          discardSink{},
	}
	a.groups = &lru.Cache{
		MaxEntries: maxGroups,
		OnEvicted: func(key lru.Key, value interface{}) {
			a.removeFromOrderLocked(key.(string))
			logger.Tagged("IPC", "evicted duplicate group %v (capacity exceeded)", key)
		},
	}
	return a
}

// removeFromOrderLocked deletes digest from a.order. It's invoked from the
// LRU's OnEvicted callback, which groupcache calls while already holding
// no lock of its own, so the caller here must hold a.lock (true for every
// call path: Add and Remove are only ever invoked under a.lock).
func (a *Aggregator) removeFromOrderLocked(digest string) {
	for i, d := range a.order {
		if d == digest {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// AttachSink wires the IPC server (or any AlertSink) that will receive
// emitted alerts. Safe to call after construction and before the producer
// goroutines start emitting.
func (a *Aggregator) AttachSink(sink AlertSink) {
	a.sinkLock.Lock()
	defer a.sinkLock.Unlock()
	a.sink = sink
}

func (a *Aggregator) currentSink() AlertSink {
	a.sinkLock.Lock()
	defer a.sinkLock.Unlock()
	return a.sink
}

// findOrCreateLocked returns the group for digest, creating an empty one
// if necessary. When the collection is full, the oldest resident group (by
// insertion order, a.order[0]) is evicted first. The caller must hold
// a.lock.
func (a *Aggregator) findOrCreateLocked(digest string) *Group {
	if v, ok := a.groups.Get(digest); ok {
		return v.(*Group)
	}
	if a.groups.MaxEntries > 0 && len(a.order) >= a.groups.MaxEntries {
		a.groups.Remove(a.order[0])
	}
	g := &Group{Digest: digest}
	a.groups.Add(digest, g)
	a.order = append(a.order, digest)
	return g
}

// OnDuplicate merges trigger and all other records sharing its digest into
// the group for that digest, then emits the group if the merge changed it
// and it now holds two or more records (§4.7).
func (a *Aggregator) OnDuplicate(trigger record.FileRecord, others []record.FileRecord, timestamp time.Time) {
	a.lock.Lock()
	g := a.findOrCreateLocked(trigger.Digest)

	changed := g.merge(trigger, a.maxRecords)
	for _, other := range others {
		if g.merge(other, a.maxRecords) {
			changed = true
		}
	}
	if changed {
		g.LastUpdated = timestamp
	}
	shouldEmit := changed && len(g.Records) >= 2
	version := g.version
	snapshot := g.snapshot()
	a.lock.Unlock()

	if !shouldEmit {
		return
	}
	a.emit(g, version, snapshot)
}

// OnRemovePath removes path from whichever group currently holds it (if
// any), used when the watcher observes a deletion or rename-away (§4.6).
// It does not re-emit: a group dropping below two active members becomes
// inactive (G3) and is simply no longer surfaced, per §8 scenario 3.
func (a *Aggregator) OnRemovePath(digest, path string) {
	if digest == "" {
		return
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if v, ok := a.groups.Get(digest); ok {
		g := v.(*Group)
		g.removePath(path)
	}
}

// emit hands a finished snapshot to the attached sink, marking delivered
// on success. errors are logged and swallowed (IpcSendError is recoverable
// per §7) since the aggregator's job is alert production, not transport
// reliability.
//
// g.sendMu serializes every transmission for this one digest: two
// OnDuplicate calls composing the same group concurrently (e.g. two
// independently-dispatched watcher goroutines whose events both resolve
// to the same digest) take the merge lock in one order but, without this,
// could have their sink writes land on the wire in the opposite order,
// leaving delivered=true while the last bytes actually sent encode a
// stale, less-complete group — violating P3. version is the group's
// version counter as observed right after this call's own merge; if
// another, later merge has already bumped it by the time this call's
// turn to send comes up, this snapshot is superseded and is dropped
// rather than transmitted out of order — the sender carrying the newer
// version (running concurrently, or already finished) is the one whose
// bytes should be the "most recent transmission" P3 refers to.
func (a *Aggregator) emit(g *Group, version int, snapshot Snapshot) {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	a.lock.Lock()
	stale := g.version != version
	a.lock.Unlock()
	if stale {
		return
	}

	sink := a.currentSink()
	if err := sink.SendDuplicateDetected(snapshot); err != nil {
		a.logger.Warn(ddaserrors.NewIpcSendError(err))
		a.lock.Lock()
		g.Delivered = false
		a.lock.Unlock()
		return
	}
	a.lock.Lock()
	g.Delivered = true
	a.lock.Unlock()
}

// OnScanComplete emits the scan-complete summary (§4.5, §6).
func (a *Aggregator) OnScanComplete(totalFiles, totalGroups int, timestamp time.Time) {
	sink := a.currentSink()
	if err := sink.SendScanComplete(totalFiles, totalGroups, timestamp); err != nil {
		a.logger.Warn(ddaserrors.NewIpcSendError(err))
	}
}

// OnClientDisconnect re-marks every group delivered=false so reconnection
// replays them (§4.7).
func (a *Aggregator) OnClientDisconnect() {
	a.lock.Lock()
	defer a.lock.Unlock()
	for _, digest := range a.order {
		if v, ok := a.groups.Get(digest); ok {
			v.(*Group).Delivered = false
		}
	}
}

// replayItem bundles one group's outgoing snapshot with the version it was
// taken at, so the send loop below can defer to a concurrent OnDuplicate
// emit the same way emit's callers do, instead of risking an out-of-order
// write to the same connection.
type replayItem struct {
	group    *Group
	version  int
	snapshot Snapshot
}

// ReplayActiveGroups transmits, in group order, every group with two or
// more still-existing files (rechecked by stat), 50ms apart by default
// (§4.7, scenario 6), then marks each delivered. It is invoked by the IPC
// server immediately after a client connects.
func (a *Aggregator) ReplayActiveGroups(sink AlertSink) {
	a.lock.Lock()
	var toSend []replayItem
	for _, digest := range a.order {
		v, ok := a.groups.Get(digest)
		if !ok {
			continue
		}
		g := v.(*Group)
		if g.activeCount() < 2 {
			continue
		}
		toSend = append(toSend, replayItem{group: g, version: g.version, snapshot: g.snapshot()})
	}
	a.lock.Unlock()

	for i, item := range toSend {
		if !a.sendReplayItem(sink, item) {
			return
		}
		if i != len(toSend)-1 {
			time.Sleep(a.replaySpacing)
		}
	}
}

// sendReplayItem transmits one replay item under its group's sendMu, the
// same per-digest serialization emit uses, so a concurrently-running
// OnDuplicate for the same digest can't interleave with this write or have
// its own, possibly newer, snapshot overwritten by this older replay.
// Reports whether the send loop should continue (false on a transport
// error).
func (a *Aggregator) sendReplayItem(sink AlertSink, item replayItem) bool {
	g := item.group
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	a.lock.Lock()
	stale := g.version != item.version
	a.lock.Unlock()
	if stale {
		// A concurrent OnDuplicate already merged a newer state for this
		// digest; its own emit call (serialized behind the same sendMu)
		// will carry the up-to-date snapshot, so this superseded replay
		// is simply skipped.
		return true
	}

	if err := sink.SendDuplicateDetected(item.snapshot); err != nil {
		a.logger.Warn(ddaserrors.NewIpcSendError(err))
		return false
	}
	a.lock.Lock()
	g.Delivered = true
	a.lock.Unlock()
	return true
}

// Len reports the number of resident groups (diagnostic use).
func (a *Aggregator) Len() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.groups.Len()
}
