package gutter

import (
	"errors"
	"fmt"
)

// ErrDetectionFailed is matched by every error that means "no gutter found".
var ErrDetectionFailed = errors.New("gutter detection failed")

// GeometryError reports that the window search ran out of restarts or steps.
type GeometryError struct {
	Reason   string
	Window   Window
	Restarts int
	Steps    int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("gutter geometry: %s (window %d-%d, restarts %d, steps %d)",
		e.Reason, e.Window.Left, e.Window.Right, e.Restarts, e.Steps)
}

func (e *GeometryError) Is(target error) bool { return target == ErrDetectionFailed }

// ToleranceSaturationError reports that hits stayed above the cap after every allowed reduction.
type ToleranceSaturationError struct {
	Tolerance  int
	Hits       int
	Cap        int
	Reductions int
}

func (e *ToleranceSaturationError) Error() string {
	return fmt.Sprintf("gutter tolerance saturated: %d hits > cap %d at tolerance %d after %d reductions",
		e.Hits, e.Cap, e.Tolerance, e.Reductions)
}

func (e *ToleranceSaturationError) Is(target error) bool { return target == ErrDetectionFailed }

// NoStreakError reports that no sampled column holds a single hit.
type NoStreakError struct {
	Tolerance int
	Columns   int
}

func (e *NoStreakError) Error() string {
	return fmt.Sprintf("gutter: no streak below tolerance %d in %d columns", e.Tolerance, e.Columns)
}

func (e *NoStreakError) Is(target error) bool { return target == ErrDetectionFailed }

// IsDetectionFailure reports whether err means the image has no usable gutter.
func IsDetectionFailure(err error) bool { return errors.Is(err, ErrDetectionFailed) }
