// Package ocr reads the text of split pages so that published scans carry a
// searchable description.
//
// Tesseract is driven in-process through gosseract and needs libtesseract at
// build and run time:
//
//	apt-get install libtesseract-dev tesseract-ocr
//
// Cuneiform is run as an external command.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// Engine recognizes the text of an image file.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Section is the output of one engine for one image.
type Section struct {
	Engine string
	// Half names the page half the image came from ("left", "right"); empty for whole images.
	Half string
	Text string
	Err  error
}

// Tesseract runs OCR through libtesseract.
type Tesseract struct {
	lang string
}

// NewTesseract creates a Tesseract engine for the given "+"-separated languages.
func NewTesseract(lang string) *Tesseract {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{lang: lang}
}

func (t *Tesseract) Name() string { return "Tesseract" }

// Available reports whether libtesseract answers with a version.
func (t *Tesseract) Available() error {
	client := gosseract.NewClient()
	defer client.Close()
	if client.Version() == "" {
		return errors.New("libtesseract not available")
	}
	return nil
}

// Recognize uses a fresh client per call; gosseract clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.lang); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RunAll runs every engine on imagePath in order. An engine failure is kept
// in its Section and does not stop the others.
func RunAll(ctx context.Context, engines []Engine, imagePath string) []Section {
	sections := make([]Section, 0, len(engines))
	for _, e := range engines {
		text, err := e.Recognize(ctx, imagePath)
		if err != nil {
			log.Warn().Err(err).Str("engine", e.Name()).Str("image", imagePath).Msg("ocr failed")
		} else {
			log.Debug().Str("engine", e.Name()).Int("chars", len(text)).Str("image", imagePath).Msg("ocr done")
		}
		sections = append(sections, Section{Engine: e.Name(), Text: text, Err: err})
	}
	return sections
}
