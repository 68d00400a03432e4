//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// Signals asks a process to stop. Each one is passed on to the hosted
// runtime unchanged.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
