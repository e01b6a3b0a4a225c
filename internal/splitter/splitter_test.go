package splitter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/gutterbot/internal/gutter"
	"github.com/local/gutterbot/internal/imagerender"
)

// spread is a white 1000×1000 double page with text strokes left of center
// and a gutter shadow at [560, 580). The detector settles on column 560.
func spread() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 1000, 1000))
	for y := 0; y < 1000; y++ {
		for x := 0; x < 1000; x++ {
			v := uint8(255)
			switch {
			case x >= 420 && x <= 520 && (x-420)%4 == 0 && y >= 300 && y < 310:
				v = 10
			case x >= 560 && x < 580:
				v = 70
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func newSplitter(t *testing.T, opts Options) *Splitter {
	t.Helper()
	f, err := gutter.NewFinder(gutter.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(f, opts)
}

func TestSplitWritesHalves(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "trip-0042.png")
	writePNG(t, src, spread())

	s := newSplitter(t, Options{OutputDir: out, ThumbnailSize: 200})
	res, err := s.Split(context.Background(), Input{Path: src})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if res.Column != 560 || res.Base != "trip-0042" {
		t.Errorf("column %d base %q, want 560 trip-0042", res.Column, res.Base)
	}
	if res.Left != filepath.Join(out, "trip-0042-left.jpg") || res.Right != filepath.Join(out, "trip-0042-right.jpg") {
		t.Errorf("outputs = %s, %s", res.Left, res.Right)
	}

	checks := []struct {
		path string
		w, h int
	}{
		{res.Left, 560, 1000},
		{res.Right, 440, 1000},
		{res.LeftThumb, 112, 200},
		{res.RightThumb, 88, 200},
	}
	for _, c := range checks {
		img, format, err := imagerender.DecodeFile(c.path)
		if err != nil {
			t.Errorf("%s: %v", c.path, err)
			continue
		}
		if format != "jpeg" || img.Bounds().Dx() != c.w || img.Bounds().Dy() != c.h {
			t.Errorf("%s: %s %dx%d, want jpeg %dx%d", filepath.Base(c.path), format, img.Bounds().Dx(), img.Bounds().Dy(), c.w, c.h)
		}
	}
	if got := len(res.Outputs()); got != 4 {
		t.Errorf("outputs = %d, want 4", got)
	}
}

func TestSplitPreDecodedPage(t *testing.T) {
	out := t.TempDir()
	s := newSplitter(t, Options{OutputDir: t.TempDir()})

	res, err := s.Split(context.Background(), Input{
		Path:      "book.pdf",
		Image:     spread(),
		Base:      PageBase("book", 3),
		OutputDir: out,
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.Left != filepath.Join(out, "book-p003-left.jpg") {
		t.Errorf("left = %s", res.Left)
	}
	if res.LeftThumb != "" || len(res.Outputs()) != 2 {
		t.Errorf("thumbnails written while disabled: %+v", res.Outputs())
	}
}

func TestSplitDetectionFailureWritesNothing(t *testing.T) {
	out := t.TempDir()
	white := image.NewGray(image.Rect(0, 0, 400, 300))
	for i := range white.Pix {
		white.Pix[i] = 255
	}

	s := newSplitter(t, Options{OutputDir: out})
	_, err := s.Split(context.Background(), Input{Path: "blank.png", Image: white})
	if !gutter.IsDetectionFailure(err) {
		t.Fatalf("expected detection failure, got %v", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Errorf("output dir has %d files after failure", len(entries))
	}
}

func TestSplitDecodeFailure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(src, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newSplitter(t, Options{OutputDir: t.TempDir()}).Split(context.Background(), Input{Path: src})
	var de *imagerender.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if resultLabel(err) != "decode_failed" {
		t.Errorf("label = %s", resultLabel(err))
	}
}

func TestSplitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSplitter(t, Options{OutputDir: t.TempDir()}).Split(ctx, Input{Path: "x.png", Image: spread()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNames(t *testing.T) {
	if got := BaseName("/scans/Trip 7.final.JPG"); got != "Trip 7.final" {
		t.Errorf("BaseName = %q", got)
	}
	if got := PageBase("book", 12); got != "book-p012" {
		t.Errorf("PageBase = %q", got)
	}
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&gutter.NoStreakError{}, "detection_failed"},
		{ErrDegenerateSplit, "detection_failed"},
		{errors.New("disk full"), "error"},
	}
	for _, tt := range tests {
		if got := resultLabel(tt.err); got != tt.want {
			t.Errorf("resultLabel(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
