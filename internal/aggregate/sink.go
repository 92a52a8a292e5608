package aggregate

import "time"

// AlertSink is the narrow interface the aggregator uses to hand finished
// alerts off to the IPC layer. Keeping it as an interface (rather than an
// import of the ipcserver package) avoids a dependency cycle: the
// aggregator doesn't know anything about sockets or framing, and the IPC
// server doesn't know anything about digests or stability debouncing.
// This mirrors the teacher's practice of releasing the group-storage lock
// before calling into another subsystem (§5: "copies the group snapshot,
// releases the region, then calls into the IPC layer").
type AlertSink interface {
	// SendDuplicateDetected transmits a complete duplicate group. It
	// returns an error (typically ddaserrors.IpcSendError) if no client is
	// connected or the write failed.
	SendDuplicateDetected(group Snapshot) error
	// SendScanComplete transmits the scan-complete summary.
	SendScanComplete(totalFiles, totalGroups int, timestamp time.Time) error
}

// discardSink is used before the real sink is wired up by the supervisor,
// so early events don't nil-panic.
type discardSink struct{}

func (discardSink) SendDuplicateDetected(Snapshot) error       { return errDiscarded }
func (discardSink) SendScanComplete(int, int, time.Time) error { return errDiscarded }

var errDiscarded = sinkDiscardedError{}

type sinkDiscardedError struct{}

func (sinkDiscardedError) Error() string { return "no ipc sink attached; alert discarded" }
