package main

import (
	"context"
	"os"
	"runtime"

	"appstub/shutdown"
)

var version = "dev"

func init() {
	// The native dialog must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	sigs := make(chan os.Signal, 4)
	shutdown.Notify(sigs)
	defer shutdown.Stop(sigs)

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	l := &launcher{
		executable: exe,
		argv:       os.Args,
		signals:    sigs,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	return l.launch(context.Background())
}
