package imagerender

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// PageCount returns the number of pages in a PDF.
func PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// RenderPage renders a 1-based PDF page at the given DPI.
func RenderPage(pdfPath string, pageNum int, dpi float64) (image.Image, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageNum, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Float64("dpi", dpi).
		Msg("rendered pdf page")

	return img, nil
}
