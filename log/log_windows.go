//go:build windows

package log

import (
	"os"
	"path/filepath"
)

func getDefaultDir(app string) (string, error) {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		localAppData = filepath.Join(home, "AppData", "Local")
	}
	return filepath.Join(localAppData, app, "logs"), nil
}
