package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/local/gutterbot/internal/catalog"
	"github.com/local/gutterbot/internal/filetype"
	"github.com/local/gutterbot/internal/gutter"
	"github.com/local/gutterbot/internal/imagerender"
	"github.com/local/gutterbot/internal/ocr"
	"github.com/local/gutterbot/internal/splitter"
	"github.com/local/gutterbot/internal/storage"
)

// spread is a 1000×1000 double page whose gutter shadow starts at column 560.
func spread() image.Image {
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

func blank() image.Image {
	img := image.NewGray(image.Rect(0, 0, 400, 300))
	for i := range img.Pix {
		img.Pix[i] = 255
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

type stubEngine struct{ text string }

func (s stubEngine) Name() string { return "Tesseract" }
func (s stubEngine) Recognize(_ context.Context, path string) (string, error) {
	return s.text + " " + filepath.Base(path), nil
}

type failingEngine struct{}

func (failingEngine) Name() string { return "Cuneiform" }
func (failingEngine) Recognize(context.Context, string) (string, error) {
	return "", errors.New("cuneiform: exit status 1")
}

type fakePublisher struct {
	mu      sync.Mutex
	bundles []storage.Bundle
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, b storage.Bundle) (storage.Published, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Published{}, f.err
	}
	f.bundles = append(f.bundles, b)
	return storage.Published{Keys: b.Files, DescriptionKey: b.Folder + ".txt"}, nil
}

func newRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	f, err := gutter.NewFinder(gutter.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(splitter.New(f, splitter.Options{}), opts)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), blank())
	writePNG(t, filepath.Join(dir, "a.png"), blank())
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	single := filepath.Join(t.TempDir(), "single.png")
	writePNG(t, single, blank())

	pages, skipped := Expand([]string{dir, single, filepath.Join(dir, "missing.png")}, filetype.New())

	var got []string
	for _, p := range pages {
		got = append(got, p.Base)
	}
	if strings.Join(got, ",") != "a,b,single" {
		t.Errorf("pages = %v, want a,b,single", got)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %+v, want notes.txt and missing.png", skipped)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	good := filepath.Join(in, "trip ==SJ==.png")
	bad := filepath.Join(in, "blank.png")
	writePNG(t, good, spread())
	writePNG(t, bad, blank())

	pub := &fakePublisher{}
	r := newRunner(t, Options{Concurrency: 2, Engines: []ocr.Engine{stubEngine{text: "menu"}}, Publisher: pub})

	pages, _ := Expand([]string{in}, filetype.New())
	results, err := r.Run(context.Background(), pages, out, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ok, failed := Summary(results); ok != 1 || failed != 1 {
		t.Fatalf("ok=%d failed=%d", ok, failed)
	}

	// name order: "blank" sorts before "trip"
	if !gutter.IsDetectionFailure(results[0].Err) {
		t.Errorf("blank page error = %v", results[0].Err)
	}
	res := results[1]
	if res.Err != nil {
		t.Fatalf("good page failed: %v", res.Err)
	}
	if res.Split.Column != 560 {
		t.Errorf("column = %d", res.Split.Column)
	}
	wantCats := []string{catalog.CategoryUncurated, catalog.CategoryOCR, catalog.CategorySocialJustice}
	if strings.Join(res.Description.Categories, ";") != strings.Join(wantCats, ";") {
		t.Errorf("categories = %v", res.Description.Categories)
	}
	for _, want := range []string{
		"==Tesseract OCR Result (left)==\nmenu trip ==SJ==-left.jpg\n",
		"==Tesseract OCR Result (right)==\nmenu trip ==SJ==-right.jpg\n",
	} {
		if !strings.Contains(res.Description.Text, want) {
			t.Errorf("description = %q, missing %q", res.Description.Text, want)
		}
	}

	if len(pub.bundles) != 1 {
		t.Fatalf("published %d bundles", len(pub.bundles))
	}
	b := pub.bundles[0]
	if b.Folder != "trip ==SJ==" || len(b.Files) != 2 || b.Metadata["column"] != "560" {
		t.Errorf("bundle = %+v", b)
	}
	if res.Published == nil || res.Published.DescriptionKey == "" {
		t.Errorf("published = %+v", res.Published)
	}
}

func TestRunNoOCRMarkerAndPublishFailure(t *testing.T) {
	in := t.TempDir()
	src := filepath.Join(in, "scan ==NOCR==.png")
	writePNG(t, src, spread())

	pub := &fakePublisher{err: errors.New("bucket unreachable")}
	r := newRunner(t, Options{Engines: []ocr.Engine{stubEngine{text: "x"}}, Publisher: pub})

	res := r.RunPage(context.Background(), Page{Path: src, Base: "scan ==NOCR=="}, t.TempDir(), true)
	if res.Err == nil || !strings.Contains(res.Err.Error(), "bucket unreachable") {
		t.Errorf("err = %v", res.Err)
	}
	if strings.Contains(res.Description.Text, "OCR Result") {
		t.Errorf("OCR ran despite marker: %q", res.Description.Text)
	}
	if res.Description.Categories[0] != catalog.CategoryNoOCR {
		t.Errorf("categories = %v", res.Description.Categories)
	}
}

func TestRunPageDecodeFailure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(src, []byte("\x89PNG\r\n\x1a\ntruncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := newRunner(t, Options{}).RunPage(context.Background(), Page{Path: src, Base: "broken"}, t.TempDir(), false)
	var de *imagerender.DecodeError
	if !errors.As(res.Err, &de) {
		t.Errorf("expected DecodeError, got %v", res.Err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := newRunner(t, Options{}).Run(ctx, []Page{{Path: "a.png", Base: "a"}}, t.TempDir(), false)
	if !errors.Is(err, context.Canceled) || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("err = %v, page err = %v", err, results[0].Err)
	}
}

func TestWithoutPublisherKeepsOutputsLocal(t *testing.T) {
	src := filepath.Join(t.TempDir(), "spread.png")
	writePNG(t, src, spread())

	pub := &fakePublisher{}
	r := newRunner(t, Options{Publisher: pub}).WithoutPublisher()
	res := r.RunPage(context.Background(), Page{Path: src, Base: "spread"}, t.TempDir(), false)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Published != nil || len(pub.bundles) != 0 {
		t.Errorf("page was published: %+v", res.Published)
	}
}

func TestRunPageDropsFailedEngines(t *testing.T) {
	src := filepath.Join(t.TempDir(), "spread.png")
	writePNG(t, src, spread())

	engines := []ocr.Engine{failingEngine{}, stubEngine{text: "menu"}}
	res := newRunner(t, Options{Engines: engines}).RunPage(context.Background(), Page{Path: src, Base: "spread"}, t.TempDir(), true)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if strings.Contains(res.Description.Text, "Cuneiform") {
		t.Errorf("failed engine written: %q", res.Description.Text)
	}
	if strings.Count(res.Description.Text, "OCR Result") != 2 || res.Description.Categories[1] != catalog.CategoryOCR {
		t.Errorf("description = %q, categories = %v", res.Description.Text, res.Description.Categories)
	}

	res = newRunner(t, Options{Engines: []ocr.Engine{failingEngine{}}}).RunPage(context.Background(), Page{Path: src, Base: "spread"}, t.TempDir(), true)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Description.Categories[0] != catalog.CategoryNoOCR {
		t.Errorf("categories = %v, want No OCR first", res.Description.Categories)
	}
}
