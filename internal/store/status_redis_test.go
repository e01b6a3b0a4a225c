package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDecodeStatus(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	st := decodeStatus(map[string]string{
		"status":   StateDone,
		"progress": "100",
		"message":  "split at column 997",
		"start":    start.Format(time.RFC3339Nano),
		"end":      "garbage",
		"metadata": `{"column":997,"outputs":["a-left.jpg","a-right.jpg"]}`,
	})

	if st.Status != StateDone || st.Progress != 100 || !st.Terminal() {
		t.Errorf("status = %+v", st)
	}
	if st.Start == nil || !st.Start.Equal(start) {
		t.Errorf("start = %v", st.Start)
	}
	if st.End != nil {
		t.Errorf("unparsable end should stay nil, got %v", st.End)
	}
	if st.Metadata["column"] != float64(997) {
		t.Errorf("metadata = %v", st.Metadata)
	}
}

func TestDecodeStatusBadProgress(t *testing.T) {
	st := decodeStatus(map[string]string{"status": StateProcessing, "progress": "abc"})
	if st.Progress != 0 || st.Terminal() {
		t.Errorf("status = %+v", st)
	}
}

func TestRedisStatusRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := NewRedisStatus(url)
	if err != nil {
		t.Fatalf("NewRedisStatus: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	id := uuid.NewString()
	defer s.client.Del(ctx, s.key(id))

	now := time.Now().UTC()
	if err := s.Set(ctx, id, Status{Status: StateQueued, Start: &now, Metadata: map[string]any{"source": "a.jpg"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", ok, err)
	}
	if got.Status != StateQueued || got.Metadata["source"] != "a.jpg" {
		t.Errorf("got %+v", got)
	}
	if ttl := s.client.TTL(ctx, s.key(id)).Val(); ttl <= 0 {
		t.Errorf("ttl = %v, want positive", ttl)
	}

	if _, ok, _ := s.Get(ctx, uuid.NewString()); ok {
		t.Error("unknown job should not be found")
	}
}
