package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Cuneiform runs the cuneiform CLI and reads back its text output.
type Cuneiform struct {
	bin     string
	lang    string
	timeout time.Duration
}

// NewCuneiform creates an engine calling bin (default "cuneiform").
func NewCuneiform(bin, lang string, timeout time.Duration) *Cuneiform {
	if bin == "" {
		bin = "cuneiform"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Cuneiform{bin: bin, lang: lang, timeout: timeout}
}

func (c *Cuneiform) Name() string { return "Cuneiform" }

// Available verifies the binary is on PATH.
func (c *Cuneiform) Available() error {
	if _, err := exec.LookPath(c.bin); err != nil {
		return fmt.Errorf("cuneiform not found in PATH: %w", err)
	}
	return nil
}

func (c *Cuneiform) Recognize(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := filepath.Join(os.TempDir(), fmt.Sprintf("cuneiform_%s.txt", uuid.New().String()))
	defer os.Remove(out)

	args := []string{}
	if c.lang != "" {
		args = append(args, "-l", c.lang)
	}
	args = append(args, "-o", out, imagePath)

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.WaitDelay = time.Second
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Debug().Str("output", strings.TrimSpace(string(output))).Msg("cuneiform failed")
		if ctx.Err() != nil {
			return "", fmt.Errorf("cuneiform: %w", ctx.Err())
		}
		return "", fmt.Errorf("cuneiform: %w", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return "", fmt.Errorf("read cuneiform output: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
