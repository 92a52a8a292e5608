package ipcserver

import (
	"encoding/json"
	"time"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/ddaserrors"
)

// SendDuplicateDetected implements aggregate.AlertSink. It transmits the
// full current group (§6: "every transmission carries the full current
// group, not a delta").
func (s *Server) SendDuplicateDetected(group aggregate.Snapshot) error {
	return s.writeFramed(newDuplicateDetectedMessage(group), maxAlertFrame)
}

// SendScanComplete implements aggregate.AlertSink.
func (s *Server) SendScanComplete(totalFiles, totalGroups int, timestamp time.Time) error {
	return s.writeFramed(newScanCompleteMessage(totalFiles, totalGroups, timestamp), maxScanCompleteFrame)
}

// SendError transmits an ALERT/ERROR envelope. Not part of AlertSink (the
// aggregator never originates these); no other package in this repository
// calls it, so errors reach only the console.
func (s *Server) SendError(message string) error {
	return s.writeFramed(newErrorMessage(message), maxAlertFrame)
}

// writeFramed marshals v and writes it as one newline-terminated frame,
// rejecting it outright if it would exceed limit — better to drop an
// oversized alert than desynchronize the frame boundary for every message
// after it.
func (s *Server) writeFramed(v interface{}, limit int) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return ddaserrors.NewIpcSendError(err)
	}
	if len(payload)+1 > limit {
		return ddaserrors.NewIpcSendError(errFrameTooLarge)
	}
	return s.writeMessage(v)
}

// writeMessage serializes v and writes it, newline-terminated, to the
// current connection under the session lock (§5: "per-session lock
// serialising writes ... against close-during-write").
func (s *Server) writeMessage(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return ddaserrors.NewIpcSendError(err)
	}
	payload = append(payload, '\n')

	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	if s.state != sessionConnected || s.conn == nil {
		return ddaserrors.NewIpcSendError(errNoClient)
	}

	if _, err := s.conn.Write(payload); err != nil {
		return ddaserrors.NewIpcSendError(err)
	}
	return nil
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

const (
	errNoClient      = simpleError("no client connected")
	errFrameTooLarge = simpleError("message exceeds ipc frame size limit")
)
