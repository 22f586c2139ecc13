package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"tle_zone_contest/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when no job arrived within the poll window.
var ErrEmpty = errors.New("queue: no job available")

// FinalizationQueue carries contest finalization jobs to the worker.
type FinalizationQueue interface {
	Push(ctx context.Context, job model.FinalizationJob) error
	// Pop blocks up to the queue's poll window for the next job.
	Pop(ctx context.Context) (*model.FinalizationJob, error)
}

type RedisFinalizationQueue struct {
	rdb  *redis.Client
	name string
	poll time.Duration
}

func NewRedisFinalizationQueue(rdb *redis.Client, name string) *RedisFinalizationQueue {
	return &RedisFinalizationQueue{rdb: rdb, name: name, poll: 5 * time.Second}
}

func (q *RedisFinalizationQueue) Push(ctx context.Context, job model.FinalizationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal finalization job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("failed to push finalization job to Redis queue: %w", err)
	}
	return nil
}

func (q *RedisFinalizationQueue) Pop(ctx context.Context) (*model.FinalizationJob, error) {
	// BRPop returns [queueName, value].
	res, err := q.rdb.BRPop(ctx, q.poll, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	if len(res) < 2 || res[1] == "" {
		return nil, ErrEmpty
	}

	var job model.FinalizationJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal finalization job %q: %w", res[1], err)
	}
	return &job, nil
}

// ChannelFinalizationQueue is the in-process queue used with the memory driver.
type ChannelFinalizationQueue struct {
	jobs chan model.FinalizationJob
	poll time.Duration
}

func NewChannelFinalizationQueue(size int) *ChannelFinalizationQueue {
	return &ChannelFinalizationQueue{jobs: make(chan model.FinalizationJob, size), poll: time.Second}
}

func (q *ChannelFinalizationQueue) Push(ctx context.Context, job model.FinalizationJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelFinalizationQueue) Pop(ctx context.Context) (*model.FinalizationJob, error) {
	timer := time.NewTimer(q.poll)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *ChannelFinalizationQueue) Len() int {
	return len(q.jobs)
}
