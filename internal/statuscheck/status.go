package statuscheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/local/gutterbot/internal/ocr"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker is implemented by *storage.S3Client.
type BucketChecker interface {
	HeadBucket(ctx context.Context) error
}

type availability interface {
	Available() error
}

// Checker aggregates health checks for the services a split worker relies on.
type Checker struct {
	redis   RedisPinger
	bucket  BucketChecker
	engines []ocr.Engine
}

type Options struct {
	Redis   RedisPinger
	Bucket  BucketChecker
	Engines []ocr.Engine
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type Summary struct {
	Redis Status            `json:"redis"`
	S3    Status            `json:"s3"`
	OCR   map[string]Status `json:"ocr"`
	Host  Status            `json:"host"`
}

// Ready reports whether the components jobs cannot run without are up.
func (s Summary) Ready() bool { return s.Redis.OK }

func New(opts Options) *Checker {
	return &Checker{redis: opts.Redis, bucket: opts.Bucket, engines: opts.Engines}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis: c.checkRedis(ctx),
		S3:    c.checkS3(ctx),
		OCR:   c.checkOCR(),
		Host:  checkHost(ctx),
	}
}

// Handler serves the summary as JSON; 503 when not ready.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum := c.Summary(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !sum.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(sum)
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.bucket == nil {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.bucket.HeadBucket(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkOCR() map[string]Status {
	out := make(map[string]Status, len(c.engines))
	for _, e := range c.engines {
		st := Status{OK: true, Message: "Available"}
		if a, ok := e.(availability); ok {
			if err := a.Available(); err != nil {
				st = Status{OK: false, Message: trimError(err)}
			}
		}
		out[e.Name()] = st
	}
	return out
}

// checkHost reports memory pressure and load; rendered PDF pages are large.
func checkHost(ctx context.Context) Status {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	msg := fmt.Sprintf("mem %.1f%% used, %d MiB free", vm.UsedPercent, vm.Available>>20)
	if avg, err := load.AvgWithContext(ctx); err == nil {
		msg += fmt.Sprintf(", load %.2f", avg.Load1)
	}
	return Status{OK: vm.UsedPercent < 95, Message: msg}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
