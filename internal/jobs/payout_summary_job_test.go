package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/payout"
)

type fakeSummarizer struct {
	summary *payout.Summary
	err     error
}

func (f fakeSummarizer) Summary(ctx context.Context) (*payout.Summary, error) {
	return f.summary, f.err
}

type fakeBacklog struct {
	total decimal.Decimal
	count int64
}

func (f fakeBacklog) PendingAmbassadorTotal(ctx context.Context) (decimal.Decimal, int64, error) {
	return f.total, f.count, nil
}

// memoryCache stores values like the Redis client does
type memoryCache struct {
	values map[string]string
	ttl    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCache) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestPayoutSummaryJobRunAndLatest(t *testing.T) {
	cache := newMemoryCache()
	summary := &payout.Summary{
		PendingCommissionUSD:   decimal.NewFromInt(8),
		PendingCommissionCount: 2,
		FailedCount:            1,
	}
	job := NewPayoutSummaryJob(fakeSummarizer{summary: summary}, fakeBacklog{total: decimal.NewFromInt(70), count: 1},
		cache, 10*time.Minute, quietLogger())

	_, err := job.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snapshot, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.AmbassadorPendingUSD.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, 20*time.Minute, cache.ttl[PayoutSnapshotKey])

	latest, err := job.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, latest.Rewards.PendingCommissionUSD.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, int64(2), latest.Rewards.PendingCommissionCount)
	assert.Equal(t, int64(1), latest.AmbassadorsWithPending)
}

func TestPayoutSummaryJobPropagatesErrors(t *testing.T) {
	cache := newMemoryCache()
	job := NewPayoutSummaryJob(fakeSummarizer{err: errors.New("db down")}, fakeBacklog{}, cache, time.Minute, quietLogger())

	_, err := job.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, cache.values)
}

func TestNewScheduler(t *testing.T) {
	job := NewPayoutSummaryJob(fakeSummarizer{summary: &payout.Summary{}}, fakeBacklog{}, newMemoryCache(), time.Hour, quietLogger())
	s, err := NewScheduler(job, quietLogger())
	require.NoError(t, err)
	assert.Len(t, s.scheduler.Jobs(), 1)
}
