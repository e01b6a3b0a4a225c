package dispatcher

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/gutterbot/internal/batch"
	"github.com/local/gutterbot/internal/filetype"
	"github.com/local/gutterbot/internal/queue"
)

// Downloader fetches s3:// sources to local temp files.
type Downloader interface {
	DownloadToTemp(ctx context.Context, s3url string) (string, error)
}

// Outcome summarizes a processed job for the status store.
type Outcome struct {
	Pages   int
	Failed  int
	Columns []int
	Outputs []string
	Errors  []string
}

// SplitProcessor resolves a job's source and runs it through the batch runner.
type SplitProcessor struct {
	runner     *batch.Runner
	detector   *filetype.Detector
	downloader Downloader // nil disables s3:// sources
	outputDir  string
}

func NewSplitProcessor(r *batch.Runner, d Downloader, outputDir string) *SplitProcessor {
	return &SplitProcessor{runner: r, detector: filetype.New(), downloader: d, outputDir: outputDir}
}

// Process splits every page of the job's source. Partial success counts as
// success; the job fails only when no page could be split.
func (p *SplitProcessor) Process(ctx context.Context, job queue.SplitJob) (Outcome, error) {
	local, cleanup, err := p.resolve(ctx, job.Source)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	pages, skipped := batch.Expand([]string{local}, p.detector)
	if len(pages) == 0 {
		reason := "no pages"
		if len(skipped) > 0 {
			reason = skipped[0].Reason
		}
		return Outcome{}, &ValidationError{Message: job.Source + ": " + reason}
	}

	outDir := job.OutputDir
	if outDir == "" {
		outDir = p.outputDir
	}

	runner := p.runner
	if !job.Publish {
		runner = runner.WithoutPublisher()
	}
	results, err := runner.Run(ctx, pages, outDir, job.OCR)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Pages: len(results)}
	var first error
	for _, r := range results {
		if r.Err != nil {
			out.Failed++
			out.Errors = append(out.Errors, r.Page.Name()+": "+r.Err.Error())
			if first == nil {
				first = r.Err
			}
			continue
		}
		out.Columns = append(out.Columns, r.Split.Column)
		out.Outputs = append(out.Outputs, r.Split.Outputs()...)
		if r.Published != nil {
			out.Outputs = append(out.Outputs, r.Published.Keys...)
		}
	}
	if out.Failed == out.Pages {
		return out, &PageFailuresError{Source: job.Source, Pages: out.Pages, First: first}
	}
	return out, nil
}

func (p *SplitProcessor) resolve(ctx context.Context, source string) (string, func(), error) {
	noop := func() {}
	switch {
	case strings.HasPrefix(source, "s3://"):
		if p.downloader == nil {
			return "", noop, &ValidationError{Message: "s3 sources need S3_BUCKET configured"}
		}
		path, err := p.downloader.DownloadToTemp(ctx, source)
		if err != nil {
			return "", noop, err
		}
		return path, func() {
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("file", path).Msg("failed to remove temp download")
			}
		}, nil
	case strings.HasPrefix(source, "file://"):
		return strings.TrimPrefix(source, "file://"), noop, nil
	case strings.Contains(source, "://"):
		return "", noop, &ValidationError{Message: "unsupported source scheme: " + source}
	default:
		return source, noop, nil
	}
}
