// Package catalog builds the description published next to each split page:
// OCR text sections followed by category tags derived from markers embedded
// in the scan's file name.
package catalog

import (
	"strings"

	"github.com/local/gutterbot/internal/ocr"
)

// File name markers.
const (
	MarkerNoOCR          = "==NOCR=="
	MarkerHumanAttention = "==PLU=="
	MarkerSocialJustice  = "==SJ=="
	MarkerStudentHousing = "==SH=="
)

// Category names.
const (
	CategoryUncurated      = "Uncurated Images"
	CategoryOCR            = "OCR"
	CategoryNoOCR          = "No OCR"
	CategoryHumanAttention = "Human Attention Needed"
	CategorySocialJustice  = "Social Justice"
	CategoryStudentHousing = "Student Housing"
)

// Markers are the flags found in a file name.
type Markers struct {
	NoOCR          bool
	HumanAttention bool
	SocialJustice  bool
	StudentHousing bool
}

// ParseMarkers scans a file name for known markers.
func ParseMarkers(name string) Markers {
	return Markers{
		NoOCR:          strings.Contains(name, MarkerNoOCR),
		HumanAttention: strings.Contains(name, MarkerHumanAttention),
		SocialJustice:  strings.Contains(name, MarkerSocialJustice),
		StudentHousing: strings.Contains(name, MarkerStudentHousing),
	}
}

// Description is the text and categories attached to a published image.
type Description struct {
	Text       string
	Categories []string
}

// Describe assembles the description for an image. Sections from failed
// engines are dropped; when none are left, because OCR was skipped or every
// engine failed, the image is filed under No OCR.
func Describe(m Markers, sections []ocr.Section) Description {
	var b strings.Builder
	var cats []string

	var usable []ocr.Section
	if !m.NoOCR {
		for _, s := range sections {
			if s.Err == nil {
				usable = append(usable, s)
			}
		}
	}

	if len(usable) == 0 {
		cats = append(cats, CategoryNoOCR, CategoryUncurated)
	} else {
		for _, s := range usable {
			b.WriteString(sectionHeader(s))
			b.WriteString(s.Text)
			b.WriteString("\n")
		}
		cats = append(cats, CategoryUncurated, CategoryOCR)
	}

	if m.HumanAttention {
		cats = append(cats, CategoryHumanAttention)
	}
	if m.SocialJustice {
		cats = append(cats, CategorySocialJustice)
	}
	if m.StudentHousing {
		cats = append(cats, CategoryStudentHousing)
	}

	for _, c := range cats {
		b.WriteString("[[Category:" + c + "]]")
	}
	return Description{Text: b.String(), Categories: cats}
}

// sectionHeader renders "==Tesseract OCR Result (left)==".
func sectionHeader(s ocr.Section) string {
	if s.Half == "" {
		return "==" + s.Engine + " OCR Result==\n"
	}
	return "==" + s.Engine + " OCR Result (" + s.Half + ")==\n"
}
