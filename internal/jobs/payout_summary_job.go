package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/payout"
)

// PayoutSnapshotKey is where the latest payout backlog is cached
const PayoutSnapshotKey = "payouts:summary"

// PayoutSnapshot is the payout backlog at one point in time
type PayoutSnapshot struct {
	Rewards                *payout.Summary `json:"rewards"`
	AmbassadorPendingUSD   decimal.Decimal `json:"ambassador_pending_usd"`
	AmbassadorsWithPending int64           `json:"ambassadors_with_pending"`
	GeneratedAt            time.Time       `json:"generated_at"`
}

// RewardSummarizer produces the reward backlog
type RewardSummarizer interface {
	Summary(ctx context.Context) (*payout.Summary, error)
}

// AmbassadorBacklog sums pending ambassador balances
type AmbassadorBacklog interface {
	PendingAmbassadorTotal(ctx context.Context) (decimal.Decimal, int64, error)
}

// SnapshotCache is the slice of the Redis client the job writes through
type SnapshotCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// ErrNoSnapshot means no snapshot has been computed yet
var ErrNoSnapshot = errors.New("no payout snapshot available")

// PayoutSummaryJob periodically computes the payout backlog and caches it
// for the admin surface
type PayoutSummaryJob struct {
	rewards     RewardSummarizer
	ambassadors AmbassadorBacklog
	cache       SnapshotCache
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewPayoutSummaryJob creates the payout summary job
func NewPayoutSummaryJob(rewards RewardSummarizer, ambassadors AmbassadorBacklog, cache SnapshotCache, interval time.Duration, logger *slog.Logger) *PayoutSummaryJob {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &PayoutSummaryJob{
		rewards:     rewards,
		ambassadors: ambassadors,
		cache:       cache,
		interval:    interval,
		logger:      logger.With("component", "payout_summary_job"),
		now:         time.Now,
	}
}

// Run computes a fresh snapshot and caches it for two intervals
func (j *PayoutSummaryJob) Run(ctx context.Context) (*PayoutSnapshot, error) {
	rewards, err := j.rewards.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize rewards: %w", err)
	}
	pending, count, err := j.ambassadors.PendingAmbassadorTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ambassador balances: %w", err)
	}

	snapshot := &PayoutSnapshot{
		Rewards:                rewards,
		AmbassadorPendingUSD:   pending,
		AmbassadorsWithPending: count,
		GeneratedAt:            j.now(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout snapshot: %w", err)
	}
	if err := j.cache.Set(ctx, PayoutSnapshotKey, data, 2*j.interval).Err(); err != nil {
		return nil, fmt.Errorf("failed to cache payout snapshot: %w", err)
	}

	j.logger.Info("payout snapshot refreshed",
		"pending_commission_usd", rewards.PendingCommissionUSD.String(),
		"pending_commission_count", rewards.PendingCommissionCount,
		"failed_rewards", rewards.FailedCount,
		"ambassador_pending_usd", pending.String(),
	)
	return snapshot, nil
}

// Latest returns the cached snapshot
func (j *PayoutSummaryJob) Latest(ctx context.Context) (*PayoutSnapshot, error) {
	data, err := j.cache.Get(ctx, PayoutSnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payout snapshot: %w", err)
	}

	var snapshot PayoutSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout snapshot: %w", err)
	}
	return &snapshot, nil
}

// Scheduler runs recurring jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler schedules the payout summary job every interval. Runs never
// overlap.
func NewScheduler(summary *PayoutSummaryJob, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(summary.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), summary.interval)
		defer cancel()
		if _, err := summary.Run(ctx); err != nil {
			summary.logger.Error("payout snapshot failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule payout summary: %w", err)
	}

	return &Scheduler{scheduler: s, logger: logger.With("component", "scheduler")}, nil
}

// Start starts the scheduler in the background
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", "jobs", len(s.scheduler.Jobs()))
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}
