package gutter

import (
	"image"
	"image/color"
	"testing"
)

func TestSampleCompleteWindow(t *testing.T) {
	img := grayImage(200, 100, func(int, int) uint8 { return 200 })
	s := NewSampler(DefaultConfig(), nil)

	w := Window{Left: 50, Right: 150, VarianceLimit: 170, RightCap: 200}
	sample, anomaly := s.Sample(img, w)
	if anomaly != nil {
		t.Fatalf("unexpected anomaly: %+v", anomaly)
	}
	if len(sample.Columns) != 100 {
		t.Fatalf("columns = %d, want 100", len(sample.Columns))
	}
	for i, col := range sample.Columns {
		if col.Index != 50+i {
			t.Fatalf("column %d has index %d", i, col.Index)
		}
		// rows 20..49 of a 100-row image
		if len(col.Pixels) != 30 {
			t.Fatalf("column %d: %d pixels, want 30", col.Index, len(col.Pixels))
		}
		if col.Pixels[0].Row != 20 || col.Pixels[29].Row != 49 {
			t.Fatalf("column %d: band %d-%d, want 20-49", col.Index, col.Pixels[0].Row, col.Pixels[29].Row)
		}
		if col.Pixels[0].Intensity != 600 {
			t.Fatalf("intensity = %d, want 600", col.Pixels[0].Intensity)
		}
	}
}

func TestSampleDarkPixel(t *testing.T) {
	img := grayImage(200, 100, func(x, y int) uint8 {
		if x == 120 && y == 33 {
			return 20
		}
		return 255
	})
	s := NewSampler(DefaultConfig(), nil)

	_, anomaly := s.Sample(img, Window{Left: 50, Right: 150, VarianceLimit: 170, RightCap: 200})
	if anomaly == nil {
		t.Fatal("expected anomaly")
	}
	if anomaly.Kind != AnomalyDarkPixel || anomaly.Column != 120 || anomaly.Row != 33 || anomaly.Intensity != 60 {
		t.Errorf("anomaly = %+v", anomaly)
	}
}

func TestSampleDarkFloorDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DarkPixelFloor = -1
	img := grayImage(200, 100, func(int, int) uint8 { return 0 })

	_, anomaly := NewSampler(cfg, nil).Sample(img, Window{Left: 50, Right: 150, VarianceLimit: 170, RightCap: 200})
	if anomaly != nil {
		t.Errorf("unexpected anomaly with floor disabled: %+v", anomaly)
	}
}

func TestSampleVarianceBudget(t *testing.T) {
	// rows alternate 765 and 300, a jump of 465 on every step
	img := grayImage(200, 100, func(x, y int) uint8 {
		if x == 90 && y%2 == 1 {
			return 100
		}
		return 255
	})

	tests := []struct {
		name    string
		limit   int
		allowed int
		wantRow int
	}{
		{"default budget", 170, 3, 24},
		{"zero budget", 170, 0, 21},
		{"limit above jump", 500, 3, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AllowedVariances = tt.allowed
			_, anomaly := NewSampler(cfg, nil).Sample(img, Window{Left: 50, Right: 150, VarianceLimit: tt.limit, RightCap: 200})

			if tt.wantRow < 0 {
				if anomaly != nil {
					t.Errorf("unexpected anomaly: %+v", anomaly)
				}
				return
			}
			if anomaly == nil {
				t.Fatal("expected anomaly")
			}
			if anomaly.Kind != AnomalyVariance || anomaly.Column != 90 || anomaly.Row != tt.wantRow {
				t.Errorf("anomaly = %+v, want variance at column 90 row %d", anomaly, tt.wantRow)
			}
		})
	}
}

func TestIntensity(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	if got := Intensity(img, 0, 0); got != 60 {
		t.Errorf("Intensity = %d, want 60", got)
	}
}

func TestBand(t *testing.T) {
	top, bottom := Band(3000, DefaultConfig())
	if top != 600 || bottom != 1500 {
		t.Errorf("Band(3000) = %d-%d, want 600-1500", top, bottom)
	}
}
