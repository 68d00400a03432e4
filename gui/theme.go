//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// crashTheme is the default theme with a darker report background and a
// fixed red for the error icon.
type crashTheme struct{}

func (c *crashTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameError:
		return color.RGBA{220, 53, 53, 255}
	case theme.ColorNameBackground:
		if variant == theme.VariantDark {
			return color.RGBA{18, 18, 18, 255}
		}
	}
	return theme.DefaultTheme().Color(name, variant)
}

func (c *crashTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (c *crashTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (c *crashTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
