package gutter

// Window is the [Left, Right) column range being sampled, plus the state that
// travels with it through one chain of adjustments.
type Window struct {
	Left          int
	Right         int
	VarianceLimit int
	// LeftCap and RightCap are hard limits set by earlier anomalies.
	// Without an anomaly they equal the image bounds.
	LeftCap  int
	RightCap int
}

// Width returns Right-Left.
func (w Window) Width() int { return w.Right - w.Left }

// Contains reports whether column lies in [Left, Right).
func (w Window) Contains(column int) bool { return column >= w.Left && column < w.Right }

// InitialWindow centers a window of half-width cfg.BaseScanWidth on the image,
// clamped to the image bounds.
func InitialWindow(imageWidth, varianceLimit int, cfg Config) Window {
	center := imageWidth / 2
	w := Window{
		Left:          center - cfg.BaseScanWidth,
		Right:         center + cfg.BaseScanWidth,
		VarianceLimit: varianceLimit,
		LeftCap:       0,
		RightCap:      imageWidth,
	}
	return w.clamp()
}

func (w Window) clamp() Window {
	if w.Left < w.LeftCap {
		w.Left = w.LeftCap
	}
	if w.Right > w.RightCap {
		w.Right = w.RightCap
	}
	return w
}

// tooNarrow reports whether the window has to be discarded.
func (w Window) tooNarrow(cfg Config) bool {
	return w.Width() <= 0 || w.Width() < cfg.MinWindowWidth
}
