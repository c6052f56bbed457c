package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rfi-cleaner/internal/rfi"
	"github.com/roman-kulish/rfi-cleaner/internal/spectrum"
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Storage     StorageConfig     `yaml:"storage"`
	Observation int64             `yaml:"observation"`
	Detection   rfi.Params        `yaml:"detection"`
	Cuts        []CutConfig       `yaml:"cuts"`
	Rectangles  []spectrum.Region `yaml:"rectangles"`
	Apply       ApplyConfig       `yaml:"apply"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Workers  int    `yaml:"workers"` // Detection workers, 0 uses every CPU
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Database string `yaml:"database"`
}

// CutConfig flags bins manually, either a frequency range in MHz or a list of
// bin indices.
type CutConfig struct {
	Lower *float64  `yaml:"lower"`
	Upper *float64  `yaml:"upper"`
	Bins  []int     `yaml:"bins"`
	Mask  MaskValue `yaml:"mask"`
}

// ApplyConfig selects how flagged bins are removed.
type ApplyConfig struct {
	Mode string `yaml:"mode"`
}

// MaskValue is the replacement value of a cut: "auto" or a power in dB.
type MaskValue struct {
	rfi.Mask
}

func (m *MaskValue) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || strings.EqualFold(s, "auto") {
		m.Mask = rfi.AutoMask()
		return nil
	}

	db, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("app.MaskValue: expected \"auto\" or a value in dB, got %q", value.Value)
	}

	m.Mask = rfi.ExplicitDB(db)
	return nil
}

func (m MaskValue) MarshalYAML() (interface{}, error) {
	if db, ok := m.DB(); ok {
		return db, nil
	}
	return "auto", nil
}

// LoadConfig reads the YAML configuration at path. Detection parameters not
// given in the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := Config{
		Settings:  Settings{LogLevel: "info"},
		Detection: rfi.DefaultParams(),
		Apply:     ApplyConfig{Mode: rfi.ModeExclude.String()},
	}
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the parts of the configuration that do not depend on the
// observation. Detection parameters are validated against the data by the
// detector.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Database == "" {
		errs = append(errs, errors.New("storage.database is required"))
	}
	if c.Observation <= 0 {
		errs = append(errs, fmt.Errorf("observation must be a positive ID, got %d", c.Observation))
	}
	if c.Settings.Workers < 0 {
		errs = append(errs, fmt.Errorf("settings.workers must not be negative, got %d", c.Settings.Workers))
	}
	if _, err := rfi.ParseApplyMode(c.Apply.Mode); err != nil {
		errs = append(errs, fmt.Errorf("apply.mode: %w", err))
	}

	for i, cut := range c.Cuts {
		hasRange := cut.Lower != nil || cut.Upper != nil
		switch {
		case hasRange && len(cut.Bins) > 0:
			errs = append(errs, fmt.Errorf("cuts[%d]: either a frequency range or bins, not both", i))
		case hasRange && (cut.Lower == nil || cut.Upper == nil):
			errs = append(errs, fmt.Errorf("cuts[%d]: both lower and upper are required", i))
		case !hasRange && len(cut.Bins) == 0:
			errs = append(errs, fmt.Errorf("cuts[%d]: a frequency range or bins are required", i))
		}
	}

	for i, r := range c.Rectangles {
		if r.TimeStart != nil && r.TimeEnd != nil && *r.TimeStart > *r.TimeEnd {
			errs = append(errs, fmt.Errorf("rectangles[%d]: timeStart %d is after timeEnd %d", i, *r.TimeStart, *r.TimeEnd))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
