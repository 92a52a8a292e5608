//go:build !windows

package ipcserver

import (
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// listen creates the POSIX Unix domain socket listener for name (the
// fixed well-known endpoint "ddas_ipc", §6), grounded directly on the
// teacher's pkg/daemon/ipc_posix.go NewListener. Unlike the teacher's
// per-daemon socket (one path under a Mutagen data directory, guarded by
// a daemon lock), this service has no persistent data directory, so the
// socket is placed in the OS temporary directory under a fixed name.
func listen(name string) (net.Listener, error) {
	socketPath := filepath.Join(os.TempDir(), name+".sock")

	// A stale socket from a crashed prior instance leaves the path
	// occupied; remove it before binding, same as the teacher does.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "unable to remove stale socket")
	}

	return net.Listen("unix", socketPath)
}
