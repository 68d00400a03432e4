package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// Metadata is the subset of Info.plist the launcher reads.
type Metadata struct {
	Name           string `plist:"CFBundleName"`
	Identifier     string `plist:"CFBundleIdentifier"`
	Version        string `plist:"CFBundleShortVersionString"`
	MainModule     string `plist:"MainModule"`
	RedirectHelper string `plist:"StdoutRedirectHelper"`
}

// LoadMetadata reads Contents/Info.plist. Validation of the entry module is
// left to the runtime configuration builder.
func LoadMetadata(l Layout) (Metadata, error) {
	data, err := os.ReadFile(l.InfoPlist())
	if err != nil {
		return Metadata{}, fmt.Errorf("read bundle metadata: %w", err)
	}
	return ParseMetadata(data)
}

func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if _, err := plist.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("parse bundle metadata: %w", err)
	}
	m.MainModule = strings.TrimSpace(m.MainModule)
	m.RedirectHelper = strings.TrimSpace(m.RedirectHelper)
	return m, nil
}

// DisplayName prefers CFBundleName and falls back to the bundle directory.
func (m Metadata) DisplayName(l Layout) string {
	if m.Name != "" {
		return m.Name
	}
	return l.Name()
}

// AppID is used for the dialog's application identity and the log directory.
func (m Metadata) AppID(l Layout) string {
	if m.Identifier != "" {
		return m.Identifier
	}
	return "io.appstub." + strings.ToLower(strings.ReplaceAll(l.Name(), " ", "-"))
}

// RedirectHelperPath resolves the helper relative to the resource root. It
// returns "" when the metadata names none or the file is absent.
func (m Metadata) RedirectHelperPath(l Layout) string {
	if m.RedirectHelper == "" {
		return ""
	}
	p := m.RedirectHelper
	if !filepath.IsAbs(p) {
		p = filepath.Join(l.Resources, p)
	}
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return ""
	}
	return p
}
