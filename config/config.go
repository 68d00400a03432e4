// Package config loads the launcher settings. Values come from built-in
// defaults, then an optional launcher.toml next to the bundle resources, then
// APPSTUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "APPSTUB"
	FileName  = "launcher.toml"

	DefaultDropFrames = 2
)

type Settings struct {
	LogPath     string `mapstructure:"log_path"`
	Resources   string `mapstructure:"resources"`
	Interpreter string `mapstructure:"interpreter"`
	Optimize    int    `mapstructure:"optimize"`
	Unbuffered  bool   `mapstructure:"unbuffered"`
	DropFrames  int    `mapstructure:"drop_frames"`
	Headless    bool   `mapstructure:"headless"`

	// File is the settings file that was read, if any.
	File string `mapstructure:"-"`
}

func Defaults() Settings {
	return Settings{
		Unbuffered: true,
		DropFrames: DefaultDropFrames,
	}
}

// Load reads the settings. dir is the directory searched for launcher.toml;
// an empty dir skips the file.
func Load(dir string) (Settings, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("resources", d.Resources)
	v.SetDefault("interpreter", d.Interpreter)
	v.SetDefault("optimize", d.Optimize)
	v.SetDefault("unbuffered", d.Unbuffered)
	v.SetDefault("drop_frames", d.DropFrames)
	v.SetDefault("headless", d.Headless)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var file string
	if dir != "" {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, fmt.Errorf("read %s: %w", path, err)
			}
			file = path
		} else if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.File = file
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.Optimize < 0 || s.Optimize > 2 {
		return fmt.Errorf("optimize must be 0, 1 or 2, got %d", s.Optimize)
	}
	if s.DropFrames < 0 {
		return fmt.Errorf("drop_frames must not be negative, got %d", s.DropFrames)
	}
	return nil
}
