package filetype

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func encoded(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := enc(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()

	jpg := encoded(t, func(b *bytes.Buffer, m image.Image) error { return jpeg.Encode(b, m, nil) })
	pngData := encoded(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })

	tests := []struct {
		name string
		file string
		data []byte
		want Kind
	}{
		{"jpeg", "scan.jpg", jpg, KindImage},
		// extension lies, bytes win
		{"png named txt", "scan.txt", pngData, KindImage},
		{"pdf", "book.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"), KindPDF},
		{"text", "notes.jpg", []byte("just some notes\n"), KindUnsupported},
		{"svg", "vector.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`), KindUnsupported},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			info, err := d.Detect(path)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if info.Kind != tt.want {
				t.Errorf("kind = %s (mime %s), want %s", info.Kind, info.MIMEType, tt.want)
			}
			if info.Supported() != (tt.want != KindUnsupported) {
				t.Errorf("Supported() = %v", info.Supported())
			}
		})
	}
}

func TestDetectMissingFile(t *testing.T) {
	if _, err := New().Detect(filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDetectBytes(t *testing.T) {
	jpg := encoded(t, func(b *bytes.Buffer, m image.Image) error { return jpeg.Encode(b, m, nil) })
	if info := New().DetectBytes(jpg); info.Kind != KindImage || info.MIMEType != "image/jpeg" {
		t.Errorf("DetectBytes = %+v", info)
	}
}
