// Package shutdown routes termination signals to whoever owns the process
// lifetime.
package shutdown

import (
	"os"
	"os/signal"
)

func Notify(ch chan<- os.Signal) {
	signal.Notify(ch, Signals...)
}

// Stop undoes Notify; the default behaviour for the signals is restored once
// no channel is registered for them.
func Stop(ch chan<- os.Signal) {
	signal.Stop(ch)
}
