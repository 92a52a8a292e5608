//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

// terminationSignals are the signals supervisor.Run treats as a shutdown
// request, matching the teacher's cmd.TerminationSignals.
var terminationSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}
