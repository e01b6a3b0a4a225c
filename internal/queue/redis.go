// Package queue carries split jobs between the HTTP API and the workers on a
// Redis stream with a consumer group. Retries wait in a sorted set until due.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisQueue struct {
	client *redis.Client

	Stream     string
	Group      string
	CancelKey  string
	DelayedKey string
	DLQStream  string

	// ClaimIdle is how long a delivered message may stay unacked before
	// another consumer takes it over. Zero disables reclaiming.
	ClaimIdle time.Duration

	pollInterval time.Duration
	stop         chan struct{}
}

// NewRedisQueue connects, creates the stream and group if missing and starts
// moving due retries back onto the stream.
func NewRedisQueue(redisURL, stream, group string, poll time.Duration) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	q := &RedisQueue{
		client:       c,
		Stream:       stream,
		Group:        group,
		CancelKey:    stream + ":cancelled",
		DelayedKey:   stream + ":delayed",
		DLQStream:    stream + ":dlq",
		ClaimIdle:    10 * time.Minute,
		pollInterval: poll,
		stop:         make(chan struct{}),
	}
	if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("xgroup create: %w", err)
	}
	go q.runMover()
	return q, nil
}

// go-redis returns the raw Redis error string
func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error {
	close(q.stop)
	return q.client.Close()
}

func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue appends the job as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, job SplitJob) error {
	payload, err := job.Encode()
	if err != nil {
		return err
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		Values: map[string]any{"data": string(payload)},
	}).Err()
}

// EnqueueDelayed parks a job until executeAt.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job SplitJob, executeAt time.Time) error {
	payload, err := job.Encode()
	if err != nil {
		return err
	}
	return q.client.ZAdd(ctx, q.DelayedKey, redis.Z{Score: float64(executeAt.Unix()), Member: string(payload)}).Err()
}

// Dequeue returns the next message for consumer. Stale messages of other
// consumers are taken over first. An empty message ID means the timeout
// elapsed with nothing to do. Undecodable messages are acked, copied to the
// DLQ and reported with their ID so the caller can log them.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, SplitJob, error) {
	msg, ok, err := q.claimStale(ctx, consumer)
	if err != nil {
		return "", SplitJob{}, err
	}
	if !ok {
		msg, ok, err = q.readNew(ctx, consumer, timeout)
		if err != nil || !ok {
			return "", SplitJob{}, err
		}
	}

	raw := payloadOf(msg)
	job, err := DecodeJob(raw)
	if err != nil {
		_ = q.Ack(ctx, msg.ID)
		_ = q.addDLQRaw(ctx, raw, err.Error())
		return msg.ID, SplitJob{}, err
	}
	return msg.ID, job, nil
}

func (q *RedisQueue) readNew(ctx context.Context, consumer string, timeout time.Duration) (redis.XMessage, bool, error) {
	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.Group,
		Consumer: consumer,
		Streams:  []string{q.Stream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return redis.XMessage{}, false, nil
	}
	if err != nil {
		return redis.XMessage{}, false, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return redis.XMessage{}, false, nil
	}
	return res[0].Messages[0], true, nil
}

func (q *RedisQueue) claimStale(ctx context.Context, consumer string) (redis.XMessage, bool, error) {
	if q.ClaimIdle <= 0 {
		return redis.XMessage{}, false, nil
	}
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.Stream,
		Group:    q.Group,
		Consumer: consumer,
		MinIdle:  q.ClaimIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return redis.XMessage{}, false, nil
	}
	if err != nil {
		return redis.XMessage{}, false, err
	}
	if len(msgs) == 0 {
		return redis.XMessage{}, false, nil
	}
	return msgs[0], true, nil
}

func payloadOf(msg redis.XMessage) []byte {
	switch t := msg.Values["data"].(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	}
	return nil
}

func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
	if msgID == "" {
		return nil
	}
	return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// CancelJob flags a job; workers skip flagged jobs they have not started.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
	return q.client.SAdd(ctx, q.CancelKey, jobID).Err()
}

func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	return q.client.SIsMember(ctx, q.CancelKey, jobID).Result()
}

// AddDLQ records a job that will not be retried, with the reason.
func (q *RedisQueue) AddDLQ(ctx context.Context, job SplitJob, reason string) error {
	payload, err := job.Encode()
	if err != nil {
		return err
	}
	return q.addDLQRaw(ctx, payload, reason)
}

func (q *RedisQueue) addDLQRaw(ctx context.Context, payload []byte, reason string) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.DLQStream,
		Values: map[string]any{"data": string(payload), "reason": reason},
	}).Err()
}

// Depths returns the stream, delayed set and DLQ lengths.
func (q *RedisQueue) Depths(ctx context.Context) (stream, delayed, dlq int64, err error) {
	pipe := q.client.Pipeline()
	xlen := pipe.XLen(ctx, q.Stream)
	zcard := pipe.ZCard(ctx, q.DelayedKey)
	dxlen := pipe.XLen(ctx, q.DLQStream)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return xlen.Val(), zcard.Val(), dxlen.Val(), nil
}
