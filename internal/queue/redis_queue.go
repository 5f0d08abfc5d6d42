package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/config"
)

// Redis key prefixes
const (
	queuePrefix   = "queue:"
	delayedPrefix = "delayed:"
	failedPrefix  = "failed:"
	jobPrefix     = "jobs:"
)

// NewRedisClient connects to the configured Redis server
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisQueue is a Redis-backed job queue. Ready jobs sit in a list,
// delayed and retried jobs in a sorted set scored by run time, and jobs
// that exhausted their retries in a failed list.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{
		client: client,
		logger: logger.With("component", "queue"),
		now:    time.Now,
	}
}

// Client exposes the underlying Redis client
func (q *RedisQueue) Client() *redis.Client {
	return q.client
}

// Enqueue adds a job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	now := q.now()
	job, err := NewJob(queueName, payload, now, opts...)
	if err != nil {
		return "", err
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if job.RunAt.After(now) {
			pipe.ZAdd(ctx, delayedPrefix+queueName, &redis.Z{
				Score:  float64(job.RunAt.Unix()),
				Member: jobBytes,
			})
		} else {
			pipe.LPush(ctx, queuePrefix+queueName, jobBytes)
		}
		pipe.Set(ctx, jobPrefix+job.ID, jobBytes, DefaultTTL)
		return nil
	})
	if err != nil {
		return "", apperrors.Store("push job to queue", err)
	}

	return job.ID, nil
}

// Dequeue gets a job from the queue, waiting up to one second. It returns
// nil when the queue is empty.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	q.moveReadyDelayedJobs(ctx, queueName)

	result, err := q.client.BRPop(ctx, 1*time.Second, queuePrefix+queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	job.Status = JobStatusProcessing
	job.UpdatedAt = q.now()
	if err := q.save(ctx, &job); err != nil {
		q.logger.Warn("failed to update job status", "job_id", job.ID, "error", err)
	}

	return &job, nil
}

// moveReadyDelayedJobs moves delayed jobs that are ready to run to the main
// queue. A job is only pushed by the worker that removed it from the set.
func (q *RedisQueue) moveReadyDelayedJobs(ctx context.Context, queueName string) {
	jobs, err := q.client.ZRangeByScore(ctx, delayedPrefix+queueName, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		q.logger.Error("failed to read delayed jobs", "queue", queueName, "error", err)
		return
	}

	for _, jobStr := range jobs {
		removed, err := q.client.ZRem(ctx, delayedPrefix+queueName, jobStr).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, queuePrefix+queueName, jobStr).Err(); err != nil {
			q.logger.Error("failed to move delayed job", "queue", queueName, "error", err)
		}
	}
}

// Complete marks a job as completed
func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	job.Status = JobStatusCompleted
	job.UpdatedAt = q.now()
	return q.save(ctx, job)
}

// Fail records a job failure. The job is rescheduled with exponential
// backoff until MaxRetries; after that, or for a Permanent error, it is
// parked on the failed list.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	now := q.now()
	job.Error = jobErr.Error()
	job.UpdatedAt = now

	if !IsPermanent(jobErr) && job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = JobStatusPending
		job.RunAt = now.Add(calculateBackoff(job.RetryCount))

		jobBytes, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, delayedPrefix+job.Queue, &redis.Z{
				Score:  float64(job.RunAt.Unix()),
				Member: jobBytes,
			})
			pipe.Set(ctx, jobPrefix+job.ID, jobBytes, DefaultTTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		q.logger.Warn("job scheduled for retry", "job_id", job.ID, "queue", job.Queue, "retry", job.RetryCount, "run_at", job.RunAt, "error", jobErr)
		return nil
	}

	job.Status = JobStatusFailed
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, failedPrefix+job.Queue, jobBytes)
		pipe.Set(ctx, jobPrefix+job.ID, jobBytes, DefaultTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to park failed job: %w", err)
	}
	q.logger.Error("job failed permanently", "job_id", job.ID, "queue", job.Queue, "retries", job.RetryCount, "error", jobErr)
	return nil
}

// GetJob loads the last known state of a job
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, jobPrefix+jobID).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get job details: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Stats reports the size of each list backing a queue
func (q *RedisQueue) Stats(ctx context.Context, queueName string) (*QueueStats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, queuePrefix+queueName)
	delayed := pipe.ZCard(ctx, delayedPrefix+queueName)
	failed := pipe.LLen(ctx, failedPrefix+queueName)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return &QueueStats{
		Queue:   queueName,
		Waiting: waiting.Val(),
		Delayed: delayed.Val(),
		Failed:  failed.Val(),
	}, nil
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.Set(ctx, jobPrefix+job.ID, jobBytes, DefaultTTL).Err()
}
