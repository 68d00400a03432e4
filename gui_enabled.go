//go:build gui

package main

import (
	"os"

	"appstub/config"
	"appstub/dialog"
	"appstub/gui"
)

func newPresenter(appID string, s config.Settings) dialog.Presenter {
	if s.Headless {
		return dialog.ForTerminal(os.Stderr)
	}
	return &gui.Window{AppID: appID}
}
