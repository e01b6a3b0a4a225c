package gutter

// Adjust moves the window away from an anomaly at column c.
//
// When c is nearer the right bound (ties included) the search is drifting into
// text on the right: the right cap is tightened to c-CapMargin, Left widens by
// WidenStep and Right shrinks by ShrinkStep. The left case mirrors it. Bounds
// never cross their caps, so the width always drops by at least
// ShrinkStep-WidenStep.
func Adjust(w Window, c int, cfg Config) Window {
	next := w
	if abs(c-w.Right) <= abs(c-w.Left) {
		next.RightCap = min(w.RightCap, c-cfg.CapMargin)
		next.Left = max(w.Left-cfg.WidenStep, w.LeftCap)
		next.Right = min(w.Right-cfg.ShrinkStep, next.RightCap)
	} else {
		next.LeftCap = max(w.LeftCap, c+cfg.CapMargin)
		next.Left = max(w.Left+cfg.ShrinkStep, next.LeftCap)
		next.Right = min(w.Right+cfg.WidenStep, w.RightCap)
	}
	return next
}
