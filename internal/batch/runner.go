package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/gutterbot/internal/catalog"
	"github.com/local/gutterbot/internal/ocr"
	"github.com/local/gutterbot/internal/splitter"
	"github.com/local/gutterbot/internal/storage"
)

// Publisher uploads a page's outputs. *storage.S3Client implements it.
type Publisher interface {
	Publish(ctx context.Context, b storage.Bundle) (storage.Published, error)
}

// Options tunes a Runner. Engines may be empty to skip OCR; Publisher may be nil.
type Options struct {
	Concurrency int
	PDFDPI      float64
	Engines     []ocr.Engine
	Publisher   Publisher
}

// PageResult is the outcome of one page. Err is set when the page failed;
// other pages are not affected.
type PageResult struct {
	Page        Page
	Split       splitter.Result
	Description catalog.Description
	Published   *storage.Published
	Err         error
}

// Runner splits pages with bounded concurrency.
type Runner struct {
	splitter *splitter.Splitter
	opts     Options
}

func NewRunner(s *splitter.Splitter, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PDFDPI <= 0 {
		opts.PDFDPI = 200
	}
	return &Runner{splitter: s, opts: opts}
}

// WithoutPublisher returns a copy of r that keeps outputs local.
func (r *Runner) WithoutPublisher() *Runner {
	opts := r.opts
	opts.Publisher = nil
	return &Runner{splitter: r.splitter, opts: opts}
}

// Run processes every page and returns results in page order. It only
// returns an error when ctx is cancelled; per-page failures are in the results.
func (r *Runner) Run(ctx context.Context, pages []Page, outDir string, withOCR bool) ([]PageResult, error) {
	results := make([]PageResult, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = PageResult{Page: p, Err: err}
				return err
			}
			results[i] = r.RunPage(gctx, p, outDir, withOCR)
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// RunPage splits one page, then runs OCR and publishing on the halves.
func (r *Runner) RunPage(ctx context.Context, p Page, outDir string, withOCR bool) PageResult {
	res := PageResult{Page: p}

	img, err := p.Load(r.opts.PDFDPI)
	if err != nil {
		res.Err = err
		log.Warn().Err(err).Str("page", p.Name()).Msg("could not load page")
		return res
	}

	split, err := r.splitter.Split(ctx, splitter.Input{Path: p.Path, Image: img, Base: p.Base, OutputDir: outDir})
	res.Split = split
	if err != nil {
		res.Err = err
		log.Warn().Err(err).Str("page", p.Name()).Msg("split failed")
		return res
	}

	markers := catalog.ParseMarkers(filepath.Base(p.Path))
	var sections []ocr.Section
	if withOCR && !markers.NoOCR && len(r.opts.Engines) > 0 {
		for _, half := range []struct{ name, path string }{{"left", split.Left}, {"right", split.Right}} {
			for _, s := range ocr.RunAll(ctx, r.opts.Engines, half.path) {
				s.Half = half.name
				sections = append(sections, s)
			}
		}
	}
	res.Description = catalog.Describe(markers, sections)

	if r.opts.Publisher != nil {
		pub, err := r.opts.Publisher.Publish(ctx, storage.Bundle{
			Folder:      split.Base,
			Files:       split.Outputs(),
			Description: res.Description.Text,
			Metadata: storage.SanitizeMetadata(map[string]string{
				"source":     filepath.Base(p.Path),
				"page":       strconv.Itoa(p.PageNum),
				"column":     strconv.Itoa(split.Column),
				"categories": strings.Join(res.Description.Categories, ";"),
			}),
		})
		if err != nil {
			res.Err = fmt.Errorf("publish %s: %w", split.Base, err)
			return res
		}
		res.Published = &pub
	}
	return res
}

// Summary counts results.
func Summary(results []PageResult) (ok, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}
