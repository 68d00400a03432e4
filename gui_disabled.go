//go:build !gui

package main

import (
	"os"

	"appstub/config"
	"appstub/dialog"
)

// Without the gui tag alerts go to the terminal.
func newPresenter(_ string, _ config.Settings) dialog.Presenter {
	return dialog.ForTerminal(os.Stderr)
}
