package imagerender

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"
)

// Crop returns the columns [x0, x1) of img as a new image with origin (0,0).
// Columns are relative to img.Bounds().Min.
func Crop(img image.Image, x0, x1 int) image.Image {
	b := img.Bounds()
	src := image.Rect(b.Min.X+x0, b.Min.Y, b.Min.X+x1, b.Max.Y)
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	return dst
}

// Thumbnail scales img to fit inside a size×size box, keeping the aspect ratio.
// Images already inside the box are returned unchanged.
func Thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if size <= 0 || (w <= size && h <= size) {
		return img
	}
	var tw, th int
	if w >= h {
		tw = size
		th = max(1, h*size/w)
	} else {
		th = size
		tw = max(1, w*size/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// WriteJPEG encodes img to path at the given quality.
func WriteJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
