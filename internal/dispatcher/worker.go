package dispatcher

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/gutterbot/internal/metrics"
	"github.com/local/gutterbot/internal/queue"
	"github.com/local/gutterbot/internal/store"
)

type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, queue.SplitJob, error)
	Ack(ctx context.Context, msgID string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	EnqueueDelayed(ctx context.Context, job queue.SplitJob, executeAt time.Time) error
	AddDLQ(ctx context.Context, job queue.SplitJob, reason string) error
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
}

type Processor interface {
	Process(ctx context.Context, job queue.SplitJob) (Outcome, error)
}

type Config struct {
	Concurrency        int
	JobTimeout         time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
	PollTimeout        time.Duration
}

type Worker struct {
	cfg    Config
	q      Queue
	status StatusStore
	proc   Processor
	name   string
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, q Queue, status StatusStore, proc Processor) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.RetryBackoffFactor < 1 {
		cfg.RetryBackoffFactor = 2
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	host, _ := os.Hostname()
	return &Worker{cfg: cfg, q: q, status: status, proc: proc, name: host, stop: make(chan struct{})}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Stop signals the workers and waits for in-flight jobs until ctx expires.
func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	log.Info().Int("worker", id).Msg("dispatcher worker started")
	consumer := fmt.Sprintf("%s-%d", w.name, id)
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		default:
		}

		msgID, job, err := w.q.Dequeue(context.Background(), consumer, w.cfg.PollTimeout)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if msgID == "" {
			continue
		}
		w.handle(context.Background(), id, msgID, job)
	}
}

// handle runs one delivery of a job and acks it. Failed attempts are either
// rescheduled on the delayed set or moved to the DLQ.
func (w *Worker) handle(ctx context.Context, id int, msgID string, job queue.SplitJob) {
	defer func() {
		if err := w.q.Ack(ctx, msgID); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("ack failed")
		}
	}()

	// an unreadable cancel flag does not drop the job
	cancelled, err := w.q.IsCancelled(ctx, job.JobID)
	if err != nil {
		log.Warn().Err(err).Int("worker", id).Str("job_id", job.JobID).Msg("cancel check failed; processing anyway")
	}
	if cancelled {
		log.Warn().Int("worker", id).Str("job_id", job.JobID).Msg("job cancelled before processing; skipping")
		w.setStatus(ctx, job, store.Status{Status: store.StateCancelled, Progress: 100, Message: "cancelled"})
		metrics.IncJob("cancelled")
		w.cleanup(job)
		return
	}

	start := time.Now()
	w.setStatus(ctx, job, store.Status{
		Status:   store.StateProcessing,
		Progress: 10,
		Message:  fmt.Sprintf("attempt %d", job.Attempt+1),
		Start:    &start,
	})

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	out, err := w.proc.Process(jobCtx, job)
	cancel()
	end := time.Now()

	if err == nil {
		log.Info().
			Int("worker", id).
			Str("job_id", job.JobID).
			Int("pages", out.Pages).
			Int("failed_pages", out.Failed).
			Dur("took", end.Sub(start)).
			Msg("job done")
		w.setStatus(ctx, job, store.Status{
			Status:   store.StateDone,
			Progress: 100,
			Message:  fmt.Sprintf("split %d of %d page(s)", out.Pages-out.Failed, out.Pages),
			Start:    &start,
			End:      &end,
			Metadata: map[string]any{
				"columns": out.Columns,
				"outputs": out.Outputs,
				"errors":  out.Errors,
			},
		})
		metrics.IncJob("success")
		w.cleanup(job)
		return
	}

	if shouldRetry(err, job.Attempt, w.cfg.MaxAttempts) {
		next := job
		next.Attempt++
		delay := w.retryDelay(job.Attempt)
		log.Warn().Err(err).
			Str("job_id", job.JobID).
			Int("attempt", next.Attempt).
			Bool("transient", isTransientError(err)).
			Dur("delay", delay).
			Msg("job failed; retrying")
		qerr := w.q.EnqueueDelayed(ctx, next, time.Now().Add(delay))
		if qerr == nil {
			w.setStatus(ctx, job, store.Status{Status: store.StateRetrying, Progress: 0, Message: err.Error(), Start: &start})
			metrics.IncRetry()
			return
		}
		log.Error().Err(qerr).Str("job_id", job.JobID).Msg("could not reschedule job; moving to dlq")
	}

	log.Error().Err(err).Str("job_id", job.JobID).Int("attempt", job.Attempt+1).Bool("fatal", isFatalError(err)).Msg("job failed")
	if dlqErr := w.q.AddDLQ(ctx, job, err.Error()); dlqErr != nil {
		log.Error().Err(dlqErr).Str("job_id", job.JobID).Msg("dlq push failed")
	}
	w.setStatus(ctx, job, store.Status{Status: store.StateFailed, Progress: 100, Message: err.Error(), Start: &start, End: &end})
	metrics.IncJob("dlq")
	w.cleanup(job)
}

// retryDelay is base * factor^attempt plus up to RetryJitter.
func (w *Worker) retryDelay(attempt int) time.Duration {
	d := time.Duration(float64(w.cfg.RetryBaseDelay) * math.Pow(w.cfg.RetryBackoffFactor, float64(attempt)))
	if w.cfg.RetryJitter > 0 {
		d += rand.N(w.cfg.RetryJitter)
	}
	return d
}

func (w *Worker) setStatus(ctx context.Context, job queue.SplitJob, st store.Status) {
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	st.Metadata["source"] = job.Source
	st.Metadata["attempt"] = job.Attempt + 1
	if err := w.status.Set(ctx, job.JobID, st); err != nil {
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("status update failed")
	}
}

// cleanup removes uploaded sources once the job reached a final state.
func (w *Worker) cleanup(job queue.SplitJob) {
	if !job.Cleanup {
		return
	}
	if err := os.Remove(job.Source); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", job.Source).Msg("failed to remove uploaded source")
	}
	// uploads live in a per-job directory; only removed when empty
	_ = os.Remove(filepath.Dir(job.Source))
}

// DepthReporter is implemented by *queue.RedisQueue.
type DepthReporter interface {
	Depths(ctx context.Context) (int64, int64, int64, error)
}

// ReportDepths updates the queue_depth gauges until ctx is done.
func ReportDepths(ctx context.Context, q DepthReporter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, d, dlq, err := q.Depths(ctx)
			if err != nil {
				continue
			}
			metrics.SetQueueDepth("stream", s)
			metrics.SetQueueDepth("delayed", d)
			metrics.SetQueueDepth("dlq", dlq)
		}
	}
}
