// Package ddaserrors defines the error taxonomy used to classify failures
// across the duplicate detection service, matching the recovery policy
// (recover locally for everything except a watcher's initialization
// failure).
package ddaserrors

import "github.com/pkg/errors"

// IoError indicates a failure to open, read, or stat a file during digest
// computation or scanning. The affected file is skipped; processing
// continues.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return errors.Wrapf(e.Err, "i/o error on %s", e.Path).Error()
}

func (e *IoError) Unwrap() error { return e.Err }

// NewIoError constructs an IoError.
func NewIoError(path string, err error) *IoError {
	return &IoError{Path: path, Err: err}
}

// WatchInitError indicates that the watcher could not open the root for
// change notifications. It is fatal for the watcher goroutine only; the
// supervisor logs it and continues without watching while the scanner
// completes normally.
type WatchInitError struct {
	Root string
	Err  error
}

func (e *WatchInitError) Error() string {
	return errors.Wrapf(e.Err, "unable to watch %s", e.Root).Error()
}

func (e *WatchInitError) Unwrap() error { return e.Err }

// NewWatchInitError constructs a WatchInitError.
func NewWatchInitError(root string, err error) *WatchInitError {
	return &WatchInitError{Root: root, Err: err}
}

// IpcInitError indicates that the IPC endpoint could not be created. It is
// logged as a warning; the engine continues producing alerts that are
// silently discarded until a client eventually connects.
type IpcInitError struct {
	Err error
}

func (e *IpcInitError) Error() string {
	return errors.Wrap(e.Err, "unable to initialize ipc endpoint").Error()
}

func (e *IpcInitError) Unwrap() error { return e.Err }

// NewIpcInitError constructs an IpcInitError.
func NewIpcInitError(err error) *IpcInitError {
	return &IpcInitError{Err: err}
}

// IpcSendError indicates a broken pipe or partial write while transmitting a
// message to the connected client. The session is marked disconnected;
// outstanding groups revert delivered=false for later replay.
type IpcSendError struct {
	Err error
}

func (e *IpcSendError) Error() string {
	return errors.Wrap(e.Err, "ipc send failed").Error()
}

func (e *IpcSendError) Unwrap() error { return e.Err }

// NewIpcSendError constructs an IpcSendError.
func NewIpcSendError(err error) *IpcSendError {
	return &IpcSendError{Err: err}
}

// ClientProtocolError indicates a malformed inbound command. It is not
// fatal to the service, but the IPC command loop logs it and ends that
// client's session; no acknowledgement is sent for the malformed input.
type ClientProtocolError struct {
	Err error
}

func (e *ClientProtocolError) Error() string {
	return errors.Wrap(e.Err, "malformed client command").Error()
}

func (e *ClientProtocolError) Unwrap() error { return e.Err }

// NewClientProtocolError constructs a ClientProtocolError.
func NewClientProtocolError(err error) *ClientProtocolError {
	return &ClientProtocolError{Err: err}
}

// CapacityExhaustion indicates that a capacity bound (100 groups, 100
// records per group) was exceeded and eviction/truncation occurred.
type CapacityExhaustion struct {
	What string
}

func (e *CapacityExhaustion) Error() string {
	return "capacity exceeded: " + e.What
}

// NewCapacityExhaustion constructs a CapacityExhaustion.
func NewCapacityExhaustion(what string) *CapacityExhaustion {
	return &CapacityExhaustion{What: what}
}
