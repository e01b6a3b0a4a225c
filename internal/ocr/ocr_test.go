package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeCuneiform writes a shell script that mimics `cuneiform -l LANG -o OUT IMAGE`.
func fakeCuneiform(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "cuneiform")
	script := "#!/bin/sh\n" +
		"while [ $# -gt 1 ]; do\n" +
		"  if [ \"$1\" = \"-o\" ]; then out=\"$2\"; fi\n" +
		"  shift\n" +
		"done\n" +
		body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCuneiformReadsOutput(t *testing.T) {
	bin := fakeCuneiform(t, "printf '  Dining Hall Menu\\n' > \"$out\"\n")
	c := NewCuneiform(bin, "eng", time.Minute)

	if err := c.Available(); err != nil {
		t.Fatalf("Available: %v", err)
	}
	text, err := c.Recognize(context.Background(), "page-left.jpg")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "Dining Hall Menu" {
		t.Errorf("text = %q", text)
	}
}

func TestCuneiformFailure(t *testing.T) {
	bin := fakeCuneiform(t, "echo 'cannot open image' >&2\nexit 3\n")
	_, err := NewCuneiform(bin, "", time.Minute).Recognize(context.Background(), "x.jpg")
	if err == nil || !strings.Contains(err.Error(), "cuneiform") {
		t.Errorf("expected cuneiform error, got %v", err)
	}
}

func TestCuneiformTimeout(t *testing.T) {
	bin := fakeCuneiform(t, "exec sleep 5\n")
	_, err := NewCuneiform(bin, "", 50*time.Millisecond).Recognize(context.Background(), "x.jpg")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCuneiformMissingBinary(t *testing.T) {
	c := NewCuneiform(filepath.Join(t.TempDir(), "no-such-cuneiform"), "", 0)
	if err := c.Available(); err == nil {
		t.Error("expected Available to fail")
	}
}

type stubEngine struct {
	name string
	text string
	err  error
}

func (s stubEngine) Name() string { return s.name }
func (s stubEngine) Recognize(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestRunAllKeepsGoingAfterFailure(t *testing.T) {
	engines := []Engine{
		stubEngine{name: "Tesseract", err: errors.New("no language data")},
		stubEngine{name: "Cuneiform", text: "hello"},
	}
	sections := RunAll(context.Background(), engines, "x.jpg")
	if len(sections) != 2 {
		t.Fatalf("got %d sections", len(sections))
	}
	if sections[0].Err == nil || sections[0].Engine != "Tesseract" {
		t.Errorf("first section = %+v", sections[0])
	}
	if sections[1].Text != "hello" || sections[1].Err != nil {
		t.Errorf("second section = %+v", sections[1])
	}
}
