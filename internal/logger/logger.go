// Package logger configures the process-wide zerolog logger: rotated log
// file, console or JSON stdout, and optional forwarding to Axiom.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "gutterbot"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Axiom
	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var (
	global    zerolog.Logger
	forwarder *axiomForwarder
)

// Init installs the global logger. A failing Axiom setup is reported on
// stderr and logging continues locally.
func Init(opts Options) error {
	writers, err := localWriters(opts)
	if err != nil {
		return err
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		fw, err := newAxiomForwarder(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			forwarder = fw
			writers = append(writers, fw)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	host, _ := os.Hostname()
	global = zerolog.New(io.MultiWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("host", host).
		Logger()
	log.Logger = global
	return nil
}

func localWriters(opts Options) ([]io.Writer, error) {
	var writers []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}
	return writers, nil
}

// Close flushes events still buffered for Axiom.
func Close() {
	if forwarder != nil {
		forwarder.Close()
		forwarder = nil
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }
