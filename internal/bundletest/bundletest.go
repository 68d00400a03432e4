// Package bundletest builds throwaway application bundles for tests.
package bundletest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"appstub/bundle"
)

type Options struct {
	Name           string // bundle name without extension, default "MyApp"
	MainModule     string
	RedirectHelper string
	NoInfoPlist    bool
	NoDynLoad      bool
}

// Make creates Name.app under t.TempDir() with every directory of the
// standard layout and returns the path of its executable and its layout.
func Make(t *testing.T, opts Options) (string, bundle.Layout) {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "MyApp"
	}
	root := filepath.Join(t.TempDir(), opts.Name+bundle.Extension)
	resources := filepath.Join(root, "Contents", "Resources")

	dirs := []string{
		filepath.Join(root, "Contents", "MacOS"),
		filepath.Join(resources, "support", "python", "bin"),
		filepath.Join(resources, "support", "python-stdlib"),
		filepath.Join(resources, "app_packages"),
		filepath.Join(resources, "app"),
	}
	if !opts.NoDynLoad {
		dirs = append(dirs, filepath.Join(resources, "support", "python-stdlib", "lib-dynload"))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	exe := filepath.Join(root, "Contents", "MacOS", opts.Name)
	WriteFile(t, exe, "#!/bin/sh\n", 0755)
	WriteFile(t, filepath.Join(resources, "support", "python", "bin", "python3"), "#!/bin/sh\nexit 0\n", 0755)

	if !opts.NoInfoPlist {
		WriteFile(t, filepath.Join(root, "Contents", "Info.plist"), InfoPlist(opts), 0644)
	}

	layout, err := bundle.FromResources(resources)
	if err != nil {
		t.Fatal(err)
	}
	return exe, layout
}

func InfoPlist(opts Options) string {
	extra := ""
	if opts.MainModule != "" {
		extra += fmt.Sprintf("\t<key>MainModule</key>\n\t<string>%s</string>\n", opts.MainModule)
	}
	if opts.RedirectHelper != "" {
		extra += fmt.Sprintf("\t<key>StdoutRedirectHelper</key>\n\t<string>%s</string>\n", opts.RedirectHelper)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleName</key>
	<string>%s</string>
	<key>CFBundleIdentifier</key>
	<string>com.example.%s</string>
	<key>CFBundleShortVersionString</key>
	<string>1.0.0</string>
%s</dict>
</plist>
`, opts.Name, opts.Name, extra)
}

func WriteFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}
