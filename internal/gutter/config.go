// Package gutter locates the blank (or shadowed) vertical band that separates
// the two facing pages of a double-page scan.
//
// Detection samples a band of rows in a window around the image center,
// moves the window away from columns that look like printed text, and then
// picks the column holding the longest run of low-intensity pixels.
package gutter

import "fmt"

// Config holds every tunable of the detector. Zero values are not meaningful;
// start from DefaultConfig and override.
type Config struct {
	// BaseScanWidth is the half-width of the initial window around the center.
	BaseScanWidth int `yaml:"base_scan_width"`
	// DarkPixelFloor marks a pixel as text when its intensity is below it. -1 disables.
	DarkPixelFloor int `yaml:"dark_pixel_floor"`
	// VarianceLimit is the largest allowed intensity jump between vertical neighbours.
	VarianceLimit int `yaml:"variance_limit"`
	// AllowedVariances is how many oversized jumps a column may contain.
	AllowedVariances int `yaml:"allowed_variances"`
	// MinWindowWidth triggers a restart from the center when the window gets narrower.
	MinWindowWidth int `yaml:"min_window_width"`
	// VarianceRelaxStep is added to the variance limit on every restart.
	VarianceRelaxStep int `yaml:"variance_relax_step"`

	// ShrinkStep and WidenStep move the window bounds after an anomaly.
	ShrinkStep int `yaml:"shrink_step"`
	WidenStep  int `yaml:"widen_step"`
	// CapMargin is the distance kept between an anomaly column and the hard cap it sets.
	CapMargin int `yaml:"cap_margin"`

	// Tolerance is the intensity below which a sample counts as a hit.
	Tolerance int `yaml:"tolerance"`
	// ToleranceStep is subtracted from Tolerance while total hits exceed HitCap.
	ToleranceStep int `yaml:"tolerance_step"`
	HitCap        int `yaml:"hit_cap"`
	// StreakAnnounce only controls logging of long streaks.
	StreakAnnounce int `yaml:"streak_announce"`

	// BandTop and BandBottom bound the sampled rows as fractions of image height.
	BandTop    float64 `yaml:"band_top"`
	BandBottom float64 `yaml:"band_bottom"`

	MaxAdjustments    int `yaml:"max_adjustments"`
	MaxRestarts       int `yaml:"max_restarts"`
	MaxToleranceSteps int `yaml:"max_tolerance_steps"`
}

// DefaultConfig returns the tuning used on the library-trip scans.
func DefaultConfig() Config {
	c := Config{
		DarkPixelFloor:    90,
		VarianceLimit:     170,
		AllowedVariances:  3,
		VarianceRelaxStep: 30,
		CapMargin:         5,
		Tolerance:         380,
		ToleranceStep:     20,
		HitCap:            8000,
		StreakAnnounce:    30,
		BandTop:           0.2,
		BandBottom:        0.5,
		MaxAdjustments:    256,
		MaxRestarts:       8,
		MaxToleranceSteps: 32,
	}
	return c.WithBaseScanWidth(100)
}

// WithBaseScanWidth sets the base width and the values derived from it:
// the restart threshold (w/3), the shrink step (w/2) and the widen step (w/4).
func (c Config) WithBaseScanWidth(w int) Config {
	c.BaseScanWidth = w
	c.MinWindowWidth = w / 3
	c.ShrinkStep = w / 2
	c.WidenStep = w / 4
	return c
}

// Validate rejects configurations that would make the search meaningless.
func (c Config) Validate() error {
	switch {
	case c.BaseScanWidth <= 0:
		return fmt.Errorf("gutter config: base scan width must be positive, got %d", c.BaseScanWidth)
	case c.MinWindowWidth <= 0:
		return fmt.Errorf("gutter config: min window width must be positive, got %d", c.MinWindowWidth)
	case c.ShrinkStep <= c.WidenStep:
		return fmt.Errorf("gutter config: shrink step %d must exceed widen step %d", c.ShrinkStep, c.WidenStep)
	case c.BandTop < 0 || c.BandBottom > 1 || c.BandTop >= c.BandBottom:
		return fmt.Errorf("gutter config: invalid band %.2f-%.2f", c.BandTop, c.BandBottom)
	case c.Tolerance <= 0:
		return fmt.Errorf("gutter config: tolerance must be positive, got %d", c.Tolerance)
	case c.MaxAdjustments <= 0 || c.MaxRestarts < 0 || c.MaxToleranceSteps < 0:
		return fmt.Errorf("gutter config: iteration caps must not be negative")
	}
	return nil
}

// Sink receives diagnostic events. Detection results never depend on it.
type Sink interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
}

type nopSink struct{}

func (nopSink) Info(string, map[string]any) {}
func (nopSink) Warn(string, map[string]any) {}

func sinkOrNop(s Sink) Sink {
	if s == nil {
		return nopSink{}
	}
	return s
}
