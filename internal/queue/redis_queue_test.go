package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/apperrors"
)

type testPayload struct {
	ChatID string `json:"chat_id"`
}

// newTestRedisQueue returns a queue on an in-process Redis whose clock is
// driven by the returned pointer
func newTestRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := NewRedisQueue(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	q.now = func() time.Time { return now }
	return q, mr, &now
}

func stats(t *testing.T, q *RedisQueue, queueName string) *QueueStats {
	t.Helper()
	s, err := q.Stats(context.Background(), queueName)
	require.NoError(t, err)
	return s
}

func TestRedisQueueEnqueueDequeueComplete(t *testing.T) {
	q, _, _ := newTestRedisQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, QueueRegistration, testPayload{ChatID: "42"})
	require.NoError(t, err)
	assert.Equal(t, &QueueStats{Queue: QueueRegistration, Waiting: 1}, stats(t, q, QueueRegistration))

	stored, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, DefaultRetryCount, stored.MaxRetries)

	job, err := q.Dequeue(ctx, QueueRegistration)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobStatusProcessing, job.Status)

	var payload testPayload
	require.NoError(t, job.Decode(&payload))
	assert.Equal(t, "42", payload.ChatID)

	stored, err = q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusProcessing, stored.Status)

	require.NoError(t, q.Complete(ctx, job))
	stored, err = q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, stored.Status)
	assert.Equal(t, &QueueStats{Queue: QueueRegistration}, stats(t, q, QueueRegistration))
}

func TestRedisQueueDelayedJobWaitsForRunAt(t *testing.T) {
	q, _, now := newTestRedisQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, QueuePartnerCheck, testPayload{ChatID: "7"}, WithDelay(time.Minute), WithJobID("check-1"))
	require.NoError(t, err)
	assert.Equal(t, "check-1", id)
	assert.Equal(t, &QueueStats{Queue: QueuePartnerCheck, Delayed: 1}, stats(t, q, QueuePartnerCheck))

	q.moveReadyDelayedJobs(ctx, QueuePartnerCheck)
	assert.Equal(t, int64(1), stats(t, q, QueuePartnerCheck).Delayed)

	*now = now.Add(61 * time.Second)
	q.moveReadyDelayedJobs(ctx, QueuePartnerCheck)
	assert.Equal(t, &QueueStats{Queue: QueuePartnerCheck, Waiting: 1}, stats(t, q, QueuePartnerCheck))

	job, err := q.Dequeue(ctx, QueuePartnerCheck)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "check-1", job.ID)
}

func TestRedisQueueFailRetriesWithBackoffThenParks(t *testing.T) {
	q, _, now := newTestRedisQueue(t)
	ctx := context.Background()
	outage := apperrors.Store("insert reward", errors.New("connection reset"))

	id, err := q.Enqueue(ctx, QueueTransactionBonus, testPayload{ChatID: "1"}, WithMaxRetries(2))
	require.NoError(t, err)

	for retry := 1; retry <= 2; retry++ {
		job, err := q.Dequeue(ctx, QueueTransactionBonus)
		require.NoError(t, err)
		require.NotNil(t, job, "retry %d", retry)

		failedAt := *now
		require.NoError(t, q.Fail(ctx, job, outage))
		assert.Equal(t, retry, job.RetryCount)
		assert.Equal(t, JobStatusPending, job.Status)
		assert.Contains(t, job.Error, "connection reset")

		base := 5 * time.Second << retry
		delay := job.RunAt.Sub(failedAt)
		assert.GreaterOrEqual(t, delay, base*8/10-time.Second, "retry %d", retry)
		assert.LessOrEqual(t, delay, base*12/10, "retry %d", retry)
		assert.Equal(t, &QueueStats{Queue: QueueTransactionBonus, Delayed: 1}, stats(t, q, QueueTransactionBonus))

		*now = job.RunAt.Add(time.Second)
	}

	job, err := q.Dequeue(ctx, QueueTransactionBonus)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, q.Fail(ctx, job, outage))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, &QueueStats{Queue: QueueTransactionBonus, Failed: 1}, stats(t, q, QueueTransactionBonus))
	stored, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)
}

func TestRedisQueuePermanentErrorSkipsRetries(t *testing.T) {
	q, _, _ := newTestRedisQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, QueueRegistration, testPayload{ChatID: "1"})
	require.NoError(t, err)
	job, err := q.Dequeue(ctx, QueueRegistration)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.Fail(ctx, job, Permanent(apperrors.Invalid("chat_id is required"))))
	assert.Zero(t, job.RetryCount)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, &QueueStats{Queue: QueueRegistration, Failed: 1}, stats(t, q, QueueRegistration))
}

func TestRedisQueueEnqueueOutageIsStoreError(t *testing.T) {
	q, mr, _ := newTestRedisQueue(t)
	mr.Close()

	_, err := q.Enqueue(context.Background(), QueueRegistration, testPayload{ChatID: "1"})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
