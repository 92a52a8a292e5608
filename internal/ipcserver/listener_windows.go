//go:build windows

package ipcserver

import (
	"fmt"
	"net"
	"os/user"

	"github.com/Microsoft/go-winio"
	"github.com/pkg/errors"
)

// listen creates the Windows named-pipe listener for name, grounded on
// the teacher's pkg/daemon/ipc_windows.go NewListener. Two deliberate
// departures from the teacher's version: the pipe name is the fixed
// well-known name the specification names (§6, "ddas_ipc"), not a
// per-launch random UUID, and there is no pipe-name-record file to write,
// since there's no persistent data directory for a client to read it
// from — a client dials the fixed name directly.
func listen(name string) (net.Listener, error) {
	pipeName := fmt.Sprintf(`\\.\pipe\%s`, name)

	// Restrict the pipe to the current user via a Security Descriptor
	// Definition Language (SDDL) string, exactly as the teacher does:
	// "D:P" starts a DACL that blocks inherited permissions, and the ACE
	// grants Generic All (GA) to the user's SID.
	currentUser, err := user.Current()
	if err != nil {
		return nil, errors.Wrap(err, "unable to look up current user")
	}
	securityDescriptor := fmt.Sprintf("D:P(A;;GA;;;%s)", currentUser.Uid)

	return winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor,
	})
}
