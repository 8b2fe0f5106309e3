package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigNotReadable is returned when a selected config file cannot be
// opened, parsed or validated.
var ErrConfigNotReadable = errors.New("config not readable")

// builtinSource names the fallback settings when no config file is found.
const builtinSource = "<built-in>"

// Config files looked up in the working directory, in order.
var defaultConfigFiles = []string{"default.config", "hmr.config.json"}

// Settings is the configuration record for a reload session.
type Settings struct {
	Input          string         `mapstructure:"input"`
	DelayMS        int            `mapstructure:"delay_ms"`
	Ignore         []string       `mapstructure:"ignore"`
	IgnorePatterns []string       `mapstructure:"ignore_patterns"`
	Interpreter    string         `mapstructure:"interpreter"`
	Logging        map[string]any `mapstructure:"logging"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() *Settings {
	return &Settings{
		Input:   "src/main.py",
		DelayMS: 5,
		Ignore:  []string{"Scripts", ".src/__pycache__", "Lib", "Include"},
		Logging: map[string]any{
			"version": 1,
			"handlers": map[string]any{
				"console": map[string]any{
					"level":  "INFO",
					"stream": "ext://sys.stdout",
				},
			},
			"root": map[string]any{
				"level":    "INFO",
				"handlers": []any{"console"},
			},
		},
	}
}

// Delay returns the debounce delay.
func (s *Settings) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

// DelaySeconds returns the debounce delay in seconds.
func (s *Settings) DelaySeconds() float64 {
	return float64(s.DelayMS) / 1000
}

// Validate checks the settings invariants.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Input) == "" {
		return errors.New("input script is required")
	}
	if s.DelayMS < 0 {
		return fmt.Errorf("delay_ms must not be negative, got %d", s.DelayMS)
	}
	return nil
}

// LoadSettings resolves the settings for a session. An explicit path is used
// as is; otherwise the default config files are looked up in dir and the
// built-in settings are used when none exists. The second return value names
// the source that was selected.
func LoadSettings(explicit, dir string) (*Settings, string, error) {
	if explicit != "" {
		s, err := readSettings(explicit)
		return s, explicit, err
	}

	for _, name := range defaultConfigFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			s, err := readSettings(path)
			return s, path, err
		}
	}

	return DefaultSettings(), builtinSource, nil
}

func readSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotReadable, path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotReadable, path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotReadable, path, err)
	}
	return &s, nil
}

// configType picks the decoder from the file extension. Anything viper does
// not recognise, default.config included, is read as JSON.
func configType(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if slices.Contains(viper.SupportedExts, ext) {
		return ext
	}
	return "json"
}
