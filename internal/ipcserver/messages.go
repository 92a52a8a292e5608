package ipcserver

import (
	"time"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/record"
)

// maxAlertFrame and maxScanCompleteFrame are the frame size ceilings from
// §6: a normal alert frame must fit 32 KiB, the larger scan-complete
// summary is allowed up to 65 KiB (its own payload is tiny, but the cap is
// specified distinctly so it's enforced distinctly here).
const (
	maxAlertFrame        = 32 * 1024
	maxScanCompleteFrame = 65 * 1024
)

// triggerFile is the full record shape, used for the first record in the
// group's ordered list (not necessarily the file whose arrival caused this
// particular transmission).
type triggerFile struct {
	Filepath string `json:"filepath"`
	Filename string `json:"filename"`
	Filehash string `json:"filehash"`
	Filesize int64  `json:"filesize"`
	LastMod  string `json:"last_mod"`
	FileIdx  uint64 `json:"file_index"`
}

// duplicateFile is the same shape minus filehash (§6: "duplicates … same
// shape minus filehash") — every member of a group already shares the
// trigger's digest, so repeating it on each entry is redundant.
type duplicateFile struct {
	Filepath string `json:"filepath"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	LastMod  string `json:"last_mod"`
	FileIdx  uint64 `json:"file_index"`
}

func newTriggerFile(r record.FileRecord) triggerFile {
	return triggerFile{
		Filepath: r.Path,
		Filename: r.Name,
		Filehash: r.Digest,
		Filesize: r.Size,
		LastMod:  r.ISO8601Milli(),
		FileIdx:  r.FileIdentifier,
	}
}

func newDuplicateFile(r record.FileRecord) duplicateFile {
	return duplicateFile{
		Filepath: r.Path,
		Filename: r.Name,
		Filesize: r.Size,
		LastMod:  r.ISO8601Milli(),
		FileIdx:  r.FileIdentifier,
	}
}

// duplicateDetectedMessage is the ALERT/DUPLICATE_DETECTED envelope. The
// whole current group is transmitted on every call, never a delta (§6).
type duplicateDetectedMessage struct {
	Type        string          `json:"type"`
	Event       string          `json:"event"`
	TriggerFile triggerFile     `json:"trigger_file"`
	Duplicates  []duplicateFile `json:"duplicates"`
	Timestamp   string          `json:"timestamp"`
}

func newDuplicateDetectedMessage(group aggregate.Snapshot) duplicateDetectedMessage {
	trigger := group.Records[0]
	rest := group.Records[1:]

	duplicates := make([]duplicateFile, len(rest))
	for i, r := range rest {
		duplicates[i] = newDuplicateFile(r)
	}

	return duplicateDetectedMessage{
		Type:        "ALERT",
		Event:       "DUPLICATE_DETECTED",
		TriggerFile: newTriggerFile(trigger),
		Duplicates:  duplicates,
		Timestamp:   isoNow(),
	}
}

// scanCompleteMessage is the ALERT/SCAN_COMPLETE summary sent once the
// initial traversal finishes.
type scanCompleteMessage struct {
	Type            string `json:"type"`
	Event           string `json:"event"`
	TotalFiles      int    `json:"total_files"`
	DuplicateGroups int    `json:"duplicate_groups"`
	Timestamp       string `json:"timestamp"`
}

func newScanCompleteMessage(totalFiles, duplicateGroups int, timestamp time.Time) scanCompleteMessage {
	return scanCompleteMessage{
		Type:            "ALERT",
		Event:           "SCAN_COMPLETE",
		TotalFiles:      totalFiles,
		DuplicateGroups: duplicateGroups,
		Timestamp:       timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// errorMessage is the ALERT/ERROR envelope, used to surface fatal or
// noteworthy errors to a connected client rather than just the console.
type errorMessage struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func newErrorMessage(message string) errorMessage {
	return errorMessage{
		Type:      "ALERT",
		Event:     "ERROR",
		Message:   message,
		Timestamp: isoNow(),
	}
}

// commandAck is the generic acknowledgement sent for every inbound
// command (§4.8: "command semantics are delegated to the client").
type commandAck struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newCommandAck() commandAck {
	return commandAck{Type: "RESPONSE", Status: "OK", Message: "Command received"}
}

func isoNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
