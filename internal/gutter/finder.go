package gutter

import (
	"errors"
	"fmt"
	"image"
)

// Step is one sampled window of the search, tagged with its restart index.
type Step struct {
	Window  Window
	Restart int
	Anomaly *Anomaly
}

// Result describes a detected gutter.
type Result struct {
	// Column is relative to the image bounds' Min.X.
	Column     int
	Window     Window
	Tolerance  int
	Reductions int
	Streak     Streak
	TotalHits  int
	Restarts   int
	Trace      []Step
}

// Finder runs the bounded window search followed by streak detection.
// It holds no per-image state and may be shared between goroutines.
type Finder struct {
	cfg      Config
	sink     Sink
	sampler  *Sampler
	detector *Detector
}

// NewFinder validates cfg and builds a finder. sink may be nil.
func NewFinder(cfg Config, sink Sink) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sink = sinkOrNop(sink)
	return &Finder{
		cfg:      cfg,
		sink:     sink,
		sampler:  NewSampler(cfg, sink),
		detector: NewDetector(cfg, sink),
	}, nil
}

// Config returns the configuration the finder was built with.
func (f *Finder) Config() Config { return f.cfg }

// Find locates the gutter column of img.
func (f *Finder) Find(img image.Image) (Result, error) {
	b := img.Bounds()
	top, bottom := Band(b.Dy(), f.cfg)
	if b.Dx() <= 0 || bottom <= top {
		return Result{}, &GeometryError{Reason: fmt.Sprintf("image %dx%d has no sampling band", b.Dx(), b.Dy())}
	}

	var trace []Step
	variance := f.cfg.VarianceLimit
	restarts := 0
	w := InitialWindow(b.Dx(), variance, f.cfg)

	var sample ColumnSample
	for steps := 0; ; steps++ {
		if steps >= f.cfg.MaxAdjustments {
			return Result{Window: w, Restarts: restarts, Trace: trace},
				&GeometryError{Reason: "adjustment limit reached", Window: w, Restarts: restarts, Steps: steps}
		}

		if w.tooNarrow(f.cfg) {
			if restarts >= f.cfg.MaxRestarts {
				return Result{Window: w, Restarts: restarts, Trace: trace},
					&GeometryError{Reason: "window too narrow after all restarts", Window: w, Restarts: restarts, Steps: steps}
			}
			restarts++
			variance += f.cfg.VarianceRelaxStep
			f.sink.Warn("scan too narrow, restarting from center", map[string]any{
				"width": w.Width(), "variance_limit": variance, "restart": restarts,
			})
			w = InitialWindow(b.Dx(), variance, f.cfg)
			if w.tooNarrow(f.cfg) {
				return Result{Window: w, Restarts: restarts, Trace: trace},
					&GeometryError{Reason: "image narrower than the minimum window", Window: w, Restarts: restarts, Steps: steps}
			}
		}

		f.sink.Info("scanning columns", map[string]any{
			"width": w.Width(), "left": w.Left, "right": w.Right,
		})
		s, anomaly := f.sampler.Sample(img, w)
		trace = append(trace, Step{Window: w, Restart: restarts, Anomaly: anomaly})
		if anomaly == nil {
			sample = s
			break
		}
		w = Adjust(w, anomaly.Column, f.cfg)
	}

	det, err := f.detector.Detect(sample, f.cfg.Tolerance)
	if err != nil {
		return Result{Window: w, Restarts: restarts, Trace: trace}, err
	}
	if !w.Contains(det.Column) {
		return Result{}, errors.New("gutter: detected column outside its window")
	}
	f.sink.Info("found column", map[string]any{"column": det.Column, "restarts": restarts})

	return Result{
		Column:     det.Column,
		Window:     w,
		Tolerance:  det.Tolerance,
		Reductions: det.Reductions,
		Streak:     det.Streak,
		TotalHits:  det.TotalHits,
		Restarts:   restarts,
		Trace:      trace,
	}, nil
}
