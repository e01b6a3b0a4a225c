package gutter

import (
	"image"
)

// AnomalyKind says why sampling stopped.
type AnomalyKind string

const (
	AnomalyDarkPixel AnomalyKind = "dark_pixel"
	AnomalyVariance  AnomalyKind = "variance"
)

// Anomaly is the first pixel that made a column look like text.
type Anomaly struct {
	Column    int
	Row       int
	Intensity int
	Kind      AnomalyKind
}

// Pixel is one sampled row of a column.
type Pixel struct {
	Row       int
	Intensity int
}

// Column holds the samples of one image column, top to bottom.
type Column struct {
	Index  int
	Pixels []Pixel
}

// ColumnSample is the full sample of a window, columns in ascending index order.
type ColumnSample struct {
	Columns []Column
}

// Band returns the sampled row range [top, bottom) for an image of the given height.
func Band(height int, cfg Config) (int, int) {
	return int(float64(height) * cfg.BandTop), int(float64(height) * cfg.BandBottom)
}

// Intensity is the sum of the 8-bit RGB channels of the pixel at (x, y).
func Intensity(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int(r>>8) + int(g>>8) + int(b>>8)
}

// Sampler reads the band of every column in a window.
type Sampler struct {
	cfg  Config
	sink Sink
}

// NewSampler creates a sampler. sink may be nil.
func NewSampler(cfg Config, sink Sink) *Sampler {
	return &Sampler{cfg: cfg, sink: sinkOrNop(sink)}
}

// Sample reads the band for every column in w. It returns the complete sample,
// or stops at the first anomaly and returns it instead. Column indexes are
// relative to img.Bounds().Min.
func (s *Sampler) Sample(img image.Image, w Window) (ColumnSample, *Anomaly) {
	b := img.Bounds()
	top, bottom := Band(b.Dy(), s.cfg)
	bigJump := w.VarianceLimit + w.VarianceLimit/2

	sample := ColumnSample{Columns: make([]Column, 0, w.Width())}
	for col := w.Left; col < w.Right; col++ {
		column := Column{Index: col, Pixels: make([]Pixel, 0, bottom-top)}
		variances := 0
		prev, havePrev := 0, false

		for row := top; row < bottom; row++ {
			v := Intensity(img, b.Min.X+col, b.Min.Y+row)

			if s.cfg.DarkPixelFloor >= 0 && v < s.cfg.DarkPixelFloor {
				s.sink.Warn("very dark pixel found", map[string]any{
					"intensity": v, "column": col, "row": row,
				})
				return ColumnSample{}, &Anomaly{Column: col, Row: row, Intensity: v, Kind: AnomalyDarkPixel}
			}

			if havePrev {
				diff := abs(v - prev)
				if diff > w.VarianceLimit {
					variances++
					if diff > bigJump {
						s.sink.Warn("large variance between rows", map[string]any{
							"variance": diff, "column": col, "row": row,
						})
					}
				}
				if variances > s.cfg.AllowedVariances {
					s.sink.Warn("too many variances in column, shifting to avoid text", map[string]any{
						"allowed": s.cfg.AllowedVariances, "column": col, "row": row,
					})
					return ColumnSample{}, &Anomaly{Column: col, Row: row, Intensity: v, Kind: AnomalyVariance}
				}
			}

			prev, havePrev = v, true
			column.Pixels = append(column.Pixels, Pixel{Row: row, Intensity: v})
		}
		sample.Columns = append(sample.Columns, column)
	}
	return sample, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
