package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/local/gutterbot/internal/gutter"
)

// LoadProfile reads a YAML detection profile and applies it on top of base.
// Keys missing from the file keep their value from base, except that
// base_scan_width also rescales the window steps it derives.
//
//	variance_limit: 200
//	band_top: 0.25
func LoadProfile(path string, base gutter.Config) (gutter.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read profile: %w", err)
	}
	var width struct {
		BaseScanWidth *int `yaml:"base_scan_width"`
	}
	if err := yaml.Unmarshal(data, &width); err != nil {
		return base, fmt.Errorf("parse profile %s: %w", path, err)
	}
	cfg := base
	if width.BaseScanWidth != nil {
		cfg = cfg.WithBaseScanWidth(*width.BaseScanWidth)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("profile %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveDetection returns the detection config with the DETECT_PROFILE overrides applied.
func (c Config) ResolveDetection() (gutter.Config, error) {
	if c.Profile == "" {
		if err := c.Detection.Validate(); err != nil {
			return c.Detection, err
		}
		return c.Detection, nil
	}
	return LoadProfile(c.Profile, c.Detection)
}
