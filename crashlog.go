package main

import (
	"runtime/debug"

	"appstub/log"
)

// initCrashLog sends Go fatal errors to crash_log.txt next to the launcher
// log.
func initCrashLog() {
	f, err := log.CrashFile()
	if err != nil {
		log.Warnf("crash log: %v", err)
		return
	}
	defer f.Close()
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		log.Warnf("crash output: %v", err)
	}
}
