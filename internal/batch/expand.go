// Package batch turns input paths into pages and splits them concurrently,
// running OCR and publishing the halves when configured.
package batch

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/local/gutterbot/internal/filetype"
	"github.com/local/gutterbot/internal/imagerender"
	"github.com/local/gutterbot/internal/splitter"
)

// Page is one double-page image: a whole image file, or one page of a PDF.
type Page struct {
	Path    string
	PageNum int // 1-based for PDF pages, 0 for image files
	Base    string
}

// Name is the human-readable page identity used in logs and results.
func (p Page) Name() string {
	if p.PageNum > 0 {
		return fmt.Sprintf("%s#%d", p.Path, p.PageNum)
	}
	return p.Path
}

// Load decodes the page. PDF pages are rendered at dpi.
func (p Page) Load(dpi float64) (image.Image, error) {
	if p.PageNum > 0 {
		img, err := imagerender.RenderPage(p.Path, p.PageNum, dpi)
		if err != nil {
			return nil, &imagerender.DecodeError{Path: p.Name(), Err: err}
		}
		return img, nil
	}
	img, _, err := imagerender.DecodeFile(p.Path)
	return img, err
}

// Skipped records an input that produced no pages.
type Skipped struct {
	Path   string
	Reason string
}

// Expand resolves files, directories and PDFs into pages. Directories are
// read one level deep in name order; unsupported files are skipped.
func Expand(paths []string, det *filetype.Detector) ([]Page, []Skipped) {
	var pages []Page
	var skipped []Skipped

	var files []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			skipped = append(skipped, Skipped{Path: p, Reason: err.Error()})
			continue
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			skipped = append(skipped, Skipped{Path: p, Reason: err.Error()})
			continue
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			files = append(files, filepath.Join(p, n))
		}
	}

	for _, f := range files {
		info, err := det.Detect(f)
		if err != nil {
			skipped = append(skipped, Skipped{Path: f, Reason: err.Error()})
			continue
		}
		base := splitter.BaseName(f)
		switch info.Kind {
		case filetype.KindImage:
			pages = append(pages, Page{Path: f, Base: base})
		case filetype.KindPDF:
			n, err := imagerender.PageCount(f)
			if err != nil {
				skipped = append(skipped, Skipped{Path: f, Reason: err.Error()})
				continue
			}
			for i := 1; i <= n; i++ {
				pages = append(pages, Page{Path: f, PageNum: i, Base: splitter.PageBase(base, i)})
			}
		default:
			log.Debug().Str("file", f).Str("mime", info.MIMEType).Msg("skipping unsupported file")
			skipped = append(skipped, Skipped{Path: f, Reason: info.Description})
		}
	}
	return pages, skipped
}
