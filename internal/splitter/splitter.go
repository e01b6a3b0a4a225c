// Package splitter cuts a double-page scan into its left and right pages at
// the detected gutter and writes both halves as JPEG files.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/gutterbot/internal/gutter"
	"github.com/local/gutterbot/internal/imagerender"
	"github.com/local/gutterbot/internal/metrics"
)

// ErrDegenerateSplit is returned when the gutter sits on an image edge.
var ErrDegenerateSplit = errors.New("degenerate split")

// Options controls how halves are written.
type Options struct {
	OutputDir     string
	JPEGQuality   int
	ThumbnailSize int // 0 disables thumbnails
}

// Input is one image to split. Image may carry an already decoded page
// (e.g. a rendered PDF page); otherwise Path is decoded.
type Input struct {
	Path      string
	Image     image.Image
	Base      string // output name stem, defaults to the file name without extension
	OutputDir string // overrides Options.OutputDir
}

// Result lists what a split produced.
type Result struct {
	Source     string
	Base       string
	Column     int
	Width      int
	Height     int
	Left       string
	Right      string
	LeftThumb  string
	RightThumb string
	Detection  gutter.Result
	Duration   time.Duration
}

// Outputs returns every file written, halves first.
func (r Result) Outputs() []string {
	out := []string{r.Left, r.Right}
	if r.LeftThumb != "" {
		out = append(out, r.LeftThumb, r.RightThumb)
	}
	return out
}

// Splitter runs detection and writes the halves.
type Splitter struct {
	finder *gutter.Finder
	opts   Options
}

// New creates a splitter. A zero JPEGQuality falls back to 90.
func New(finder *gutter.Finder, opts Options) *Splitter {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Splitter{finder: finder, opts: opts}
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// PageBase names the output stem for a page of a multi-page source.
func PageBase(base string, page int) string {
	return fmt.Sprintf("%s-p%03d", base, page)
}

// Split decodes, detects, crops and writes one image.
func (s *Splitter) Split(ctx context.Context, in Input) (res Result, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSplit(resultLabel(err), time.Since(start), res.Detection.Restarts, res.Detection.Reductions)
	}()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Source = in.Path
	res.Base = in.Base
	if res.Base == "" {
		res.Base = BaseName(in.Path)
	}

	img := in.Image
	if img == nil {
		img, _, err = imagerender.DecodeFile(in.Path)
		if err != nil {
			return res, err
		}
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	det, err := s.finder.Find(img)
	res.Detection = det
	if err != nil {
		return res, fmt.Errorf("find gutter in %s: %w", res.Base, err)
	}
	res.Column = det.Column
	if det.Column <= 0 || det.Column >= res.Width {
		return res, fmt.Errorf("%w: column %d of width %d", ErrDegenerateSplit, det.Column, res.Width)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	outDir := in.OutputDir
	if outDir == "" {
		outDir = s.opts.OutputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}

	left := imagerender.Crop(img, 0, det.Column)
	right := imagerender.Crop(img, det.Column, res.Width)

	res.Left = filepath.Join(outDir, res.Base+"-left.jpg")
	res.Right = filepath.Join(outDir, res.Base+"-right.jpg")
	if err := imagerender.WriteJPEG(res.Left, left, s.opts.JPEGQuality); err != nil {
		return res, err
	}
	if err := imagerender.WriteJPEG(res.Right, right, s.opts.JPEGQuality); err != nil {
		return res, err
	}

	if s.opts.ThumbnailSize > 0 {
		res.LeftThumb = filepath.Join(outDir, res.Base+"-left-resized.jpg")
		res.RightThumb = filepath.Join(outDir, res.Base+"-right-resized.jpg")
		if err := imagerender.WriteJPEG(res.LeftThumb, imagerender.Thumbnail(left, s.opts.ThumbnailSize), s.opts.JPEGQuality); err != nil {
			return res, err
		}
		if err := imagerender.WriteJPEG(res.RightThumb, imagerender.Thumbnail(right, s.opts.ThumbnailSize), s.opts.JPEGQuality); err != nil {
			return res, err
		}
	}

	res.Duration = time.Since(start)
	log.Info().
		Str("source", res.Base).
		Int("column", res.Column).
		Int("width", res.Width).
		Int("restarts", det.Restarts).
		Int("tolerance", det.Tolerance).
		Dur("took", res.Duration).
		Msg("split image")
	return res, nil
}

func resultLabel(err error) string {
	var de *imagerender.DecodeError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &de):
		return "decode_failed"
	case gutter.IsDetectionFailure(err), errors.Is(err, ErrDegenerateSplit):
		return "detection_failed"
	default:
		return "error"
	}
}
