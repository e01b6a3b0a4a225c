package dispatcher

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"strings"

	"github.com/local/gutterbot/internal/gutter"
	"github.com/local/gutterbot/internal/imagerender"
	"github.com/local/gutterbot/internal/splitter"
)

// isFatalError checks if error is fatal and should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}

	// the image itself is the problem; retrying gives the same answer
	if gutter.IsDetectionFailure(err) || errors.Is(err, splitter.ErrDegenerateSplit) {
		return true
	}
	var decErr *imagerender.DecodeError
	if errors.As(err, &decErr) {
		return true
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "nosuchkey") ||
		strings.Contains(errStr, "nosuchbucket") ||
		strings.Contains(errStr, "invalid s3 url")
}

// isTransientError checks if error is transient and worth another attempt
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "eof")
}

// shouldRetry decides whether a failed attempt goes back on the queue.
// Unknown errors are retried until attempts run out.
func shouldRetry(err error, attempt, maxAttempts int) bool {
	if err == nil || isFatalError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return attempt+1 < maxAttempts
}
