package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/gutterbot/internal/batch"
	cfgpkg "github.com/local/gutterbot/internal/config"
	"github.com/local/gutterbot/internal/dispatcher"
	"github.com/local/gutterbot/internal/filetype"
	"github.com/local/gutterbot/internal/gutter"
	logpkg "github.com/local/gutterbot/internal/logger"
	"github.com/local/gutterbot/internal/metrics"
	"github.com/local/gutterbot/internal/ocr"
	"github.com/local/gutterbot/internal/orchestrator"
	"github.com/local/gutterbot/internal/queue"
	"github.com/local/gutterbot/internal/splitter"
	"github.com/local/gutterbot/internal/statuscheck"
	"github.com/local/gutterbot/internal/storage"
	"github.com/local/gutterbot/internal/store"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  %s serve\n  %s split [-out DIR] [-ocr] [-publish] PATH...\n", os.Args[0], os.Args[0])
}

func main() {
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})

	mode, args := "serve", os.Args[1:]
	if len(args) > 0 {
		mode, args = args[0], args[1:]
	}

	var code int
	switch mode {
	case "serve":
		code = serve(cfg)
	case "split":
		code = split(cfg, args)
	default:
		usage()
		code = 2
	}
	logpkg.Close()
	os.Exit(code)
}

// pipeline is the splitter stack shared by both modes.
type pipeline struct {
	runner  *batch.Runner
	engines []ocr.Engine
	s3      *storage.S3Client
}

func buildPipeline(ctx context.Context, cfg cfgpkg.Config) (*pipeline, error) {
	detection, err := cfg.ResolveDetection()
	if err != nil {
		return nil, err
	}
	finder, err := gutter.NewFinder(detection, logpkg.NewSink(*logpkg.Get()))
	if err != nil {
		return nil, err
	}
	sp := splitter.New(finder, splitter.Options{
		OutputDir:     cfg.Output.Dir,
		JPEGQuality:   cfg.Output.JPEGQuality,
		ThumbnailSize: cfg.Output.ThumbnailSize,
	})

	p := &pipeline{}
	if cfg.OCR.Tesseract {
		p.engines = append(p.engines, ocr.NewTesseract(cfg.OCR.Language))
	}
	if cfg.OCR.Cuneiform {
		p.engines = append(p.engines, ocr.NewCuneiform(cfg.OCR.CuneiformBin, cfg.OCR.CuneiformLang, cfg.OCR.CommandTimeout))
	}

	if cfg.Storage.Bucket != "" {
		p.s3, err = storage.NewS3Client(ctx, storage.Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Prefix:          cfg.Storage.Prefix,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
	}

	opts := batch.Options{
		Concurrency: cfg.Worker.Concurrency,
		PDFDPI:      cfg.Output.PDFDPI,
		Engines:     p.engines,
	}
	if p.s3 != nil {
		opts.Publisher = p.s3
	}
	p.runner = batch.NewRunner(sp, opts)
	return p, nil
}

// split runs the batch mode over files, directories and PDFs.
func split(cfg cfgpkg.Config, args []string) int {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	out := fs.String("out", cfg.Output.Dir, "output directory")
	withOCR := fs.Bool("ocr", cfg.OCR.Enabled, "run OCR on each half")
	publish := fs.Bool("publish", cfg.Storage.Publish, "upload outputs to S3")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		return 1
	}
	runner := p.runner
	if !*publish {
		runner = runner.WithoutPublisher()
	}

	pages, skipped := batch.Expand(fs.Args(), filetype.New())
	for _, s := range skipped {
		fmt.Printf("skip  %s: %s\n", s.Path, s.Reason)
	}
	results, err := runner.Run(ctx, pages, *out, *withOCR)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("fail  %s: %v\n", r.Page.Name(), r.Err)
			continue
		}
		fmt.Printf("ok    %s column=%d -> %s %s\n", r.Page.Name(), r.Split.Column, r.Split.Left, r.Split.Right)
	}
	ok, failed := batch.Summary(results)
	log.Info().Int("ok", ok).Int("failed", failed).Int("skipped", len(skipped)).Msg("batch finished")
	if err != nil || ok == 0 {
		return 1
	}
	return 0
}

func serve(cfg cfgpkg.Config) int {
	metrics.Init()

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to redis")
		return 1
	}
	defer rq.Close()

	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to init redis status store")
		return 1
	}
	defer rs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		return 1
	}

	orch := orchestrator.New(orchestrator.Dependencies{Queue: rq, Status: rs}, orchestrator.Options{
		UploadDir:   cfg.HTTP.UploadDir,
		InputRoot:   cfg.HTTP.InputDir,
		OutputRoot:  cfg.Output.Dir,
		MaxUploadMB: cfg.HTTP.MaxUploadMB,
		OCR:         cfg.OCR.Enabled,
		Publish:     cfg.Storage.Publish,
	})
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	checkOpts := statuscheck.Options{Redis: rq, Engines: p.engines}
	if p.s3 != nil {
		checkOpts.Bucket = p.s3
	}
	mux.HandleFunc("/status", statuscheck.New(checkOpts).Handler())

	var worker *dispatcher.Worker
	if cfg.Worker.RunDispatcher {
		var dl dispatcher.Downloader
		if p.s3 != nil {
			dl = p.s3
		}
		worker = dispatcher.New(dispatcher.Config{
			Concurrency:        cfg.Worker.Concurrency,
			JobTimeout:         cfg.Worker.JobTimeout,
			MaxAttempts:        cfg.Worker.JobMaxAttempts,
			RetryBaseDelay:     cfg.Worker.RetryBaseDelay,
			RetryJitter:        cfg.Worker.RetryJitter,
			RetryBackoffFactor: cfg.Worker.RetryBackoffFactor,
		}, rq, rs, dispatcher.NewSplitProcessor(p.runner, dl, cfg.Output.Dir))
		worker.Start()
	}
	go dispatcher.ReportDepths(ctx, rq, 15*time.Second)
	go orchestrator.RunJanitor(ctx, cfg.HTTP.UploadDir, cfg.HTTP.CleanupMaxAge, time.Hour)

	srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	code := 0
	select {
	case <-stop:
	case err := <-errc:
		log.Error().Err(err).Msg("http server error")
		code = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if worker != nil {
		if err := worker.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("workers did not stop in time")
		}
	}
	cancel()
	log.Info().Msg("shutdown complete")
	return code
}
