package logger

import "github.com/rs/zerolog"

// Sink adapts a zerolog.Logger to the detector's Info/Warn diagnostics.
// Detector chatter goes out at debug level for info events so that a batch
// run at the default level only shows the warnings.
type Sink struct {
	l zerolog.Logger
}

// NewSink returns a Sink writing to l.
func NewSink(l zerolog.Logger) *Sink { return &Sink{l: l} }

func (s *Sink) Info(msg string, fields map[string]any) { s.l.Debug().Fields(fields).Msg(msg) }
func (s *Sink) Warn(msg string, fields map[string]any) { s.l.Warn().Fields(fields).Msg(msg) }
