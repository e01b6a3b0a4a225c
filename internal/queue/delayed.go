package queue

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func (q *RedisQueue) runMover() {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if n, err := q.moveDue(ctx, time.Now()); err != nil {
				log.Warn().Err(err).Msg("delayed job move failed")
			} else if n > 0 {
				log.Debug().Int("jobs", n).Msg("requeued delayed jobs")
			}
			cancel()
		}
	}
}

// moveDue requeues up to 100 delayed jobs due at now. A member is only
// re-added by the process whose ZREM removed it, so concurrent movers in
// several servers never duplicate a retry.
func (q *RedisQueue) moveDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.DelayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, payload := range due {
		removed, err := q.client.ZRem(ctx, q.DelayedKey, payload).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.Stream, Values: map[string]any{"data": payload}}).Err(); err != nil {
			// put it back so the retry is not lost
			_ = q.client.ZAdd(ctx, q.DelayedKey, redis.Z{Score: float64(now.Unix()), Member: payload}).Err()
			return moved, err
		}
		moved++
	}
	return moved, nil
}
