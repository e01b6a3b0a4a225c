package dispatcher

import "fmt"

// ValidationError represents a fatal problem with the job itself.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// PageFailuresError reports that no page of a source could be split.
type PageFailuresError struct {
	Source string
	Pages  int
	First  error
}

func (e *PageFailuresError) Error() string {
	return fmt.Sprintf("all %d page(s) of %s failed: %v", e.Pages, e.Source, e.First)
}

func (e *PageFailuresError) Unwrap() error { return e.First }
