// Package config handles application configuration management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appDirName = "dentsync"

// Calendars maps studios to Google Calendar IDs.
type Calendars struct {
	// Default receives daily notes (studio 0) and anything a studio
	// mapping cannot place.
	Default string `yaml:"default"`
	// ByStudio maps a studio number (1, 2, ...) to its calendar ID.
	ByStudio map[int]string `yaml:"by_studio"`
}

// Windent locates the legacy DBF tables.
type Windent struct {
	AppointmentsDBF string `yaml:"appointments_dbf"`
	PatientsDBF     string `yaml:"patients_dbf"`
}

// Store configures the sync map persistence backend.
type Store struct {
	// Backend is "file" (JSON) or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Sync holds executor tuning knobs.
type Sync struct {
	ChunkSize         int `yaml:"chunk_size"`
	MaxAttempts       int `yaml:"max_attempts"`
	BackoffCapSeconds int `yaml:"backoff_cap_seconds"`
	// RatePerMinute paces remote calls. 0 disables the limiter.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// Config is the top-level application configuration.
type Config struct {
	Timezone  string    `yaml:"timezone"`
	Calendars Calendars `yaml:"calendars"`
	// Colors maps the one-letter appointment type code to a Google
	// Calendar colorId. Unmapped codes fall back to "1".
	Colors  map[string]string `yaml:"colors"`
	Windent Windent           `yaml:"windent"`
	Store   Store             `yaml:"store"`
	Sync    Sync              `yaml:"sync"`

	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`

	DiagnosticsFile string `yaml:"diagnostics_file"`
}

// Default returns the configuration written on first run. The color map
// reproduces the practice's appointment palette.
func Default() *Config {
	return &Config{
		Timezone: "Europe/Rome",
		Calendars: Calendars{
			ByStudio: map[int]string{},
		},
		Colors: map[string]string{
			"V": "6", "U": "1", "I": "3", "C": "9", "H": "11",
			"P": "10", "M": "2", "O": "4", "E": "7", "F": "8",
			"A": "8", "L": "3", "R": "5", "S": "8",
		},
		Windent: Windent{
			AppointmentsDBF: "./windent/user/APPUNTA.DBF",
			PatientsDBF:     "./windent/dati/PAZIENTI.DBF",
		},
		Store: Store{
			Backend: "file",
			Path:    filepath.Join(xdg.ConfigHome, appDirName, "synced_events.json"),
		},
		Sync: Sync{
			ChunkSize:         10,
			MaxAttempts:       3,
			BackoffCapSeconds: 5,
			RatePerMinute:     0,
		},
		CredentialsFile: filepath.Join(xdg.ConfigHome, appDirName, "credentials.json"),
		TokenFile:       filepath.Join(xdg.ConfigHome, appDirName, "token.json"),
		DiagnosticsFile: filepath.Join(xdg.ConfigHome, appDirName, "sync_failures.jsonl"),
	}
}

// Normalize fills in missing or zero values so that partially-filled
// configs from older versions still behave.
func (c *Config) Normalize() {
	def := Default()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Calendars.ByStudio == nil {
		c.Calendars.ByStudio = map[int]string{}
	}
	if c.Colors == nil {
		c.Colors = def.Colors
	}
	if c.Windent.AppointmentsDBF == "" {
		c.Windent.AppointmentsDBF = def.Windent.AppointmentsDBF
	}
	if c.Windent.PatientsDBF == "" {
		c.Windent.PatientsDBF = def.Windent.PatientsDBF
	}
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		c.Store.Backend = "file"
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Sync.ChunkSize <= 0 {
		c.Sync.ChunkSize = def.Sync.ChunkSize
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = def.Sync.MaxAttempts
	}
	if c.Sync.BackoffCapSeconds <= 0 {
		c.Sync.BackoffCapSeconds = def.Sync.BackoffCapSeconds
	}
	if c.Sync.RatePerMinute < 0 {
		c.Sync.RatePerMinute = 0
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = def.CredentialsFile
	}
	if c.TokenFile == "" {
		c.TokenFile = def.TokenFile
	}
	if c.DiagnosticsFile == "" {
		c.DiagnosticsFile = def.DiagnosticsFile
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultPath returns the config file location under the XDG config dir.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appDirName, "config.yaml")
}

// Load reads the YAML config at path. A missing file is created with
// defaults so the user has something to edit.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, since the file references credential locations.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
