package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the suffix of an application bundle directory.
const Extension = ".app"

// Layout is the on-disk arrangement of a bundle, resolved once at startup.
type Layout struct {
	Root        string // MyApp.app
	Contents    string // MyApp.app/Contents
	Resources   string // MyApp.app/Contents/Resources
	Home        string
	Interpreter string
	Stdlib      string
	DynLoad     string
	Packages    string
	App         string
}

type LayoutError struct {
	Path string
	Err  error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid bundle layout at %s: %v", e.Path, e.Err)
}

func (e *LayoutError) Unwrap() error { return e.Err }

// ResourcesFor returns the resource root implied by an executable living in
// Contents/MacOS. It does not touch the filesystem.
func ResourcesFor(executable string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(executable)), "Resources")
}

// Executable returns the absolute path of executable with symlinks resolved.
func Executable(executable string) (string, error) {
	exe, err := filepath.EvalSymlinks(executable)
	if err != nil {
		return "", &LayoutError{Path: executable, Err: err}
	}
	exe, err = filepath.Abs(exe)
	if err != nil {
		return "", &LayoutError{Path: executable, Err: err}
	}
	return exe, nil
}

// Resolve derives the layout from the running executable. A non-empty
// resourcesOverride replaces the derived resource root.
func Resolve(executable, resourcesOverride string) (Layout, error) {
	exe, err := Executable(executable)
	if err != nil {
		return Layout{}, err
	}

	resources := ResourcesFor(exe)
	if resourcesOverride != "" {
		if resources, err = filepath.Abs(resourcesOverride); err != nil {
			return Layout{}, &LayoutError{Path: resourcesOverride, Err: err}
		}
	}
	return FromResources(resources)
}

// FromResources builds the layout around an existing resource root.
func FromResources(resources string) (Layout, error) {
	info, err := os.Stat(resources)
	if err != nil {
		return Layout{}, &LayoutError{Path: resources, Err: err}
	}
	if !info.IsDir() {
		return Layout{}, &LayoutError{Path: resources, Err: fmt.Errorf("not a directory")}
	}

	contents := filepath.Dir(resources)
	support := filepath.Join(resources, "support")
	home := filepath.Join(support, "python")
	stdlib := filepath.Join(support, "python-stdlib")

	return Layout{
		Root:        filepath.Dir(contents),
		Contents:    contents,
		Resources:   resources,
		Home:        home,
		Interpreter: filepath.Join(home, "bin", "python3"),
		Stdlib:      stdlib,
		DynLoad:     filepath.Join(stdlib, "lib-dynload"),
		Packages:    filepath.Join(resources, "app_packages"),
		App:         filepath.Join(resources, "app"),
	}, nil
}

// Name is the bundle name without its extension, or the directory name when
// the launcher is not running from an application bundle.
func (l Layout) Name() string {
	return strings.TrimSuffix(filepath.Base(l.Root), Extension)
}

// InfoPlist is the path of the bundle metadata file.
func (l Layout) InfoPlist() string {
	return filepath.Join(l.Contents, "Info.plist")
}
