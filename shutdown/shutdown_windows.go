//go:build windows

package shutdown

import "os"

var Signals = []os.Signal{os.Interrupt}
