package imagerender

import (
	"bufio"
	"fmt"
	"image"
	"os"

	// decoders for the formats scanners commonly produce
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError reports an input that could not be read as an image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeFile opens and decodes an image file. Any failure is a *DecodeError.
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", &DecodeError{Path: path, Err: err}
	}
	return img, format, nil
}
