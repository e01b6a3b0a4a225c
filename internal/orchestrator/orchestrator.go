package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/gutterbot/internal/filetype"
	"github.com/local/gutterbot/internal/queue"
	"github.com/local/gutterbot/internal/store"
)

type Queue interface {
	Enqueue(ctx context.Context, job queue.SplitJob) error
	CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Options are request defaults, upload limits and the directories requests may touch.
type Options struct {
	UploadDir string
	// InputRoot confines local /split sources. Empty allows s3:// sources only.
	InputRoot string
	// OutputRoot is where a request's relative output_dir is placed.
	OutputRoot  string
	MaxUploadMB int64
	OCR         bool
	Publish     bool
}

type Dependencies struct {
	Queue  Queue
	Status StatusStore
}

type Orchestrator struct {
	deps     Dependencies
	opts     Options
	detector *filetype.Detector
}

func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = "output"
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 200
	}
	return &Orchestrator{deps: deps, opts: opts, detector: filetype.New()}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/split", o.handleSplit)
	mux.HandleFunc("/split_upload", o.handleSplitUpload)
	mux.HandleFunc("/progress/", o.handleProgress)
	mux.HandleFunc("/cancel", o.handleCancel)
}

type splitReq struct {
	Source    string `json:"source"`
	OutputDir string `json:"output_dir,omitempty"`
	OCR       *bool  `json:"ocr,omitempty"`
	Publish   *bool  `json:"publish,omitempty"`
}

type splitResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (o *Orchestrator) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req splitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}
	source, err := o.checkSource(source)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	outDir, err := o.resolveOutputDir(req.OutputDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := queue.SplitJob{
		JobID:     uuid.NewString(),
		Source:    source,
		OutputDir: outDir,
		OCR:       boolOr(req.OCR, o.opts.OCR),
		Publish:   boolOr(req.Publish, o.opts.Publish),
	}
	o.submit(w, r, job, "Split job created")
}

// handleSplitUpload accepts multipart/form-data with a "file" field, stores it
// in the upload dir and enqueues it. The upload is removed once the job ends.
func (o *Orchestrator) handleSplitUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, o.opts.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	outDir, err := o.resolveOutputDir(r.FormValue("output_dir"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	head := make([]byte, 3072)
	n, _ := io.ReadFull(file, head)
	info := o.detector.DetectBytes(head[:n])
	if !info.Supported() {
		http.Error(w, info.Description, http.StatusUnsupportedMediaType)
		return
	}

	jobID := uuid.NewString()
	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." || name == "/" {
		name = "upload" + info.Extension
	}
	// one directory per job keeps the uploaded name, which becomes the output stem
	dir := filepath.Join(o.opts.UploadDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	localPath := filepath.Join(dir, name)
	out, err := os.Create(localPath)
	if err != nil {
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, io.MultiReader(bytes.NewReader(head[:n]), file)); err != nil {
		out.Close()
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	_ = out.Close()

	job := queue.SplitJob{
		JobID:     jobID,
		Source:    localPath,
		OutputDir: outDir,
		OCR:       formBool(r.FormValue("ocr"), o.opts.OCR),
		Publish:   formBool(r.FormValue("publish"), o.opts.Publish),
		Cleanup:   true,
	}
	o.submit(w, r, job, "Upload job created")
}

func (o *Orchestrator) submit(w http.ResponseWriter, r *http.Request, job queue.SplitJob, msg string) {
	start := time.Now()
	job.SubmittedAt = start.UTC()
	_ = o.deps.Status.Set(r.Context(), job.JobID, store.Status{
		Status:   store.StateQueued,
		Message:  "queued",
		Start:    &start,
		Metadata: map[string]any{"source": job.Source, "ocr": job.OCR, "publish": job.Publish},
	})
	if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("enqueue failed")
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	log.Info().Str("job_id", job.JobID).Str("source", job.Source).Msg("job created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(splitResp{Status: "ok", JobID: job.JobID, Message: msg})
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	if id == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    st.Status == store.StateDone,
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
		"metadata":   st.Metadata,
	})
}

type cancelReq struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.JobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	st, ok, _ := o.deps.Status.Get(r.Context(), req.JobID)
	if ok && st.Terminal() {
		http.Error(w, fmt.Sprintf("job already %s", st.Status), http.StatusConflict)
		return
	}
	if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	st.Status = store.StateCancelled
	if req.Reason != "" {
		st.Message = fmt.Sprintf("Cancelled: %s", req.Reason)
	} else {
		st.Message = "Cancelled"
	}
	now := time.Now()
	st.End = &now
	_ = o.deps.Status.Set(r.Context(), req.JobID, st)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": req.JobID, "status": store.StateCancelled})
}

// checkSource rejects sources the workers cannot resolve and local paths
// that resolve outside the input or upload roots. Local sources come back
// as absolute paths with symlinks resolved.
func (o *Orchestrator) checkSource(source string) (string, error) {
	switch {
	case strings.HasPrefix(source, "s3://"):
		return source, nil
	case strings.HasPrefix(source, "file://"):
		source = strings.TrimPrefix(source, "file://")
	case strings.Contains(source, "://"):
		return "", fmt.Errorf("unsupported source scheme: %s", source)
	}
	resolved, err := filepath.EvalSymlinks(source)
	if err != nil {
		return "", fmt.Errorf("source not readable: %s", source)
	}
	if resolved, err = filepath.Abs(resolved); err != nil {
		return "", fmt.Errorf("invalid source path: %s", source)
	}
	for _, root := range []string{o.opts.InputRoot, o.opts.UploadDir} {
		if within(root, resolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("source outside input directory: %s", source)
}

// resolveOutputDir places a requested output dir under the output root.
// Empty means the worker default.
func (o *Orchestrator) resolveOutputDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", nil
	}
	if filepath.IsAbs(dir) || !filepath.IsLocal(dir) {
		return "", fmt.Errorf("output_dir must be a relative path inside the output directory: %s", dir)
	}
	return filepath.Join(o.opts.OutputRoot, filepath.Clean(dir)), nil
}

// within reports whether path lies inside root once root's symlinks are resolved.
func within(root, path string) bool {
	if root == "" {
		return false
	}
	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	if root, err = filepath.Abs(root); err != nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return filepath.IsLocal(rel) || rel == "."
}
