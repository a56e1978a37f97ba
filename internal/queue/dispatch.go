// Package queue is the asynchronous boundary to the render farm. Ids of
// jobs entering the queued state are pushed onto a Redis list; farm workers
// claim them with a blocking pop and report lifecycle transitions back over
// the callback endpoints. Nothing here waits on the farm.
package queue

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the farm drains.
const DefaultQueueName = "abode:render:jobs"

// RedisDispatcher pushes job ids to the farm's Redis list.
type RedisDispatcher struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisDispatcher(rdb *redis.Client, queueName string) *RedisDispatcher {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &RedisDispatcher{rdb: rdb, queueName: queueName}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, jobID string) error {
	return d.rdb.LPush(ctx, d.queueName, jobID).Err()
}

// Claim blocks until a job id is available (BRPOP). Farm workers call this;
// the API process never does.
func (d *RedisDispatcher) Claim(ctx context.Context) (string, error) {
	res, err := d.rdb.BRPop(ctx, 0, d.queueName).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// MemoryDispatcher records dispatched ids in order. Used by tests and as
// the fallback when no Redis address is configured.
type MemoryDispatcher struct {
	mu  sync.Mutex
	ids []string
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, jobID)
	return nil
}

// Dispatched returns a copy of every id pushed so far, oldest first.
func (d *MemoryDispatcher) Dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.ids))
	copy(out, d.ids)
	return out
}
