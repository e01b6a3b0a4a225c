package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SplitJob asks a worker to split one source. Source is a filesystem path,
// a file:// URL or an s3:// URL.
type SplitJob struct {
	JobID       string    `json:"job_id"`
	Source      string    `json:"source"`
	OutputDir   string    `json:"output_dir,omitempty"`
	OCR         bool      `json:"ocr,omitempty"`
	Publish     bool      `json:"publish,omitempty"`
	Cleanup     bool      `json:"cleanup,omitempty"` // remove Source after the final attempt
	Attempt     int       `json:"attempt"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Encode serializes the job for the stream.
func (j SplitJob) Encode() ([]byte, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return b, nil
}

// DecodeJob parses a stream payload.
func DecodeJob(b []byte) (SplitJob, error) {
	var j SplitJob
	if len(b) == 0 {
		return j, errors.New("decode job: empty payload")
	}
	if err := json.Unmarshal(b, &j); err != nil {
		return j, fmt.Errorf("decode job: %w", err)
	}
	if j.JobID == "" || j.Source == "" {
		return j, errors.New("decode job: missing job_id or source")
	}
	return j, nil
}
