package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Job states.
const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateRetrying   = "retrying"
	StateDone       = "done"
	StateFailed     = "failed"
	StateCancelled  = "cancelled"
)

// Status is the progress record of one split job.
type Status struct {
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Start    *time.Time     `json:"start_time,omitempty"`
	End      *time.Time     `json:"end_time,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Terminal reports whether the job will not change state again.
func (s Status) Terminal() bool {
	return s.Status == StateDone || s.Status == StateFailed || s.Status == StateCancelled
}

type RedisStatus struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStatus(redisURL string) (*RedisStatus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStatus{client: c, keyNS: "split", ttl: 7 * 24 * time.Hour}, nil
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

// Set replaces the stored fields of a job's status and refreshes its TTL.
func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
	m := map[string]any{
		"status":   st.Status,
		"progress": st.Progress,
		"message":  st.Message,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	if st.Metadata != nil {
		b, err := json.Marshal(st.Metadata)
		if err != nil {
			return fmt.Errorf("encode status metadata: %w", err)
		}
		m["metadata"] = string(b)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(jobID), m)
	pipe.Expire(ctx, s.key(jobID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return Status{}, false, err
	}
	if len(res) == 0 {
		return Status{}, false, nil
	}
	return decodeStatus(res), true, nil
}

func decodeStatus(res map[string]string) Status {
	st := Status{
		Status:  res["status"],
		Message: res["message"],
	}
	// parse errors leave the zero value
	st.Progress, _ = strconv.Atoi(res["progress"])
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	if v := res["metadata"]; v != "" {
		_ = json.Unmarshal([]byte(v), &st.Metadata)
	}
	return st
}

// Ping checks redis connectivity.
func (s *RedisStatus) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStatus) Close() error { return s.client.Close() }
