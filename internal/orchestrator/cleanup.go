package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// tempPrefixes are the names our helpers create in os.TempDir().
var tempPrefixes = []string{"s3scan-", "cuneiform_"}

// CleanupTemps removes known temporary files and stale upload directories
// older than maxAge. It returns how many entries were removed.
func CleanupTemps(uploadDir string, maxAge time.Duration) int {
	now := time.Now()
	removed := 0

	if entries, err := os.ReadDir(os.TempDir()); err == nil {
		for _, e := range entries {
			if e.IsDir() || !hasAnyPrefix(e.Name(), tempPrefixes) {
				continue
			}
			info, err := e.Info()
			if err != nil || now.Sub(info.ModTime()) < maxAge {
				continue
			}
			if os.Remove(filepath.Join(os.TempDir(), e.Name())) == nil {
				removed++
			}
		}
	}

	if uploadDir != "" {
		if entries, err := os.ReadDir(uploadDir); err == nil {
			for _, e := range entries {
				info, err := e.Info()
				if err != nil || now.Sub(info.ModTime()) < maxAge {
					continue
				}
				if os.RemoveAll(filepath.Join(uploadDir, e.Name())) == nil {
					removed++
				}
			}
		}
	}
	return removed
}

// RunJanitor calls CleanupTemps every interval until ctx is done.
func RunJanitor(ctx context.Context, uploadDir string, maxAge, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := CleanupTemps(uploadDir, maxAge); n > 0 {
				log.Info().Int("removed", n).Msg("cleaned up stale temp files")
			}
		}
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
