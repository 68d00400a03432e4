//go:build gui

// Package gui shows alerts in a native window.
package gui

import (
	"errors"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"appstub/dialog"
)

var errShown = errors.New("gui: an alert was already shown in this process")

// Window is a dialog.Presenter backed by a fyne window. The fyne app is
// created on the first Present and its event loop runs on the calling
// goroutine, which must be the main thread.
type Window struct {
	AppID string

	once sync.Once
}

func (w *Window) Present(a dialog.Alert) error {
	err := errShown
	w.once.Do(func() {
		err = nil
		w.run(a)
	})
	return err
}

func (w *Window) run(a dialog.Alert) {
	id := w.AppID
	if id == "" {
		id = "io.appstub.launcher"
	}
	fyneApp := app.NewWithID(id)
	fyneApp.Settings().SetTheme(&crashTheme{})

	win := fyneApp.NewWindow(a.Title)
	win.SetMaster()
	win.SetOnClosed(fyneApp.Quit)
	win.SetContent(content(fyneApp, win, a))
	win.Resize(fyne.NewSize(760, 520))
	win.CenterOnScreen()
	win.ShowAndRun()
}

func content(fyneApp fyne.App, win fyne.Window, a dialog.Alert) fyne.CanvasObject {
	icon := widget.NewIcon(theme.ErrorIcon())
	title := widget.NewLabelWithStyle(a.Title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	summary := widget.NewLabel(a.Summary)
	summary.Wrapping = fyne.TextWrapWord
	header := container.NewBorder(nil, nil, icon, nil, container.NewVBox(title, summary))

	detail := widget.NewLabelWithStyle(a.Detail, fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
	detail.Selectable = true
	scroll := container.NewScroll(detail)
	scroll.SetMinSize(fyne.NewSize(640, 300))

	copyButton := widget.NewButtonWithIcon("Copy", theme.ContentCopyIcon(), func() {
		fyneApp.Clipboard().SetContent(a.Detail)
	})
	okButton := widget.NewButton("OK", win.Close)
	okButton.Importance = widget.HighImportance
	buttons := container.NewHBox(layout.NewSpacer(), copyButton, okButton)

	return container.NewBorder(header, buttons, nil, nil, scroll)
}
