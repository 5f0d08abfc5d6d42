// Package payout is the reward payout state machine. Every transition is a
// single conditional update on the current status; a rejected transition
// writes nothing.
package payout

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/store"
)

// transitions is the allowed state graph
var transitions = map[models.RewardStatus][]models.RewardStatus{
	models.RewardStatusPending: {
		models.RewardStatusAccumulated,
		models.RewardStatusPaidTON,
		models.RewardStatusFailed,
	},
	models.RewardStatusFailed:      {models.RewardStatusPending},
	models.RewardStatusAccumulated: {models.RewardStatusPaidTON},
}

// CanTransition reports whether from -> to is part of the state graph
func CanTransition(from, to models.RewardStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Store is the subset of the reward store the state machine needs
type Store interface {
	GetReward(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
	TransitionReward(ctx context.Context, id uuid.UUID, from, to models.RewardStatus, extra map[string]interface{}) (bool, error)
	BulkTransitionRewards(ctx context.Context, filter store.RewardFilter, from, to models.RewardStatus, extra map[string]interface{}) (int64, error)
	ListRewards(ctx context.Context, filter store.RewardFilter, page, pageSize int) ([]models.ReferralReward, int64, error)
	SummarizeRewards(ctx context.Context) ([]store.RewardSummary, error)
}

// Filter selects rewards for a bulk payout
type Filter struct {
	TypePrefix string `json:"type_prefix"`
	ReferrerID string `json:"referrer_id"`
}

// PointCrediter re-runs the balance credit of a point reward
type PointCrediter interface {
	RecreditReward(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
}

// Service drives reward status transitions. Only commission rewards are
// paid in TON; point rewards settle to accumulated when their balance
// credit lands, and a retry hands them back to the PointCrediter.
type Service struct {
	store    Store
	crediter PointCrediter
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new payout state machine
func NewService(st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "payout"),
		now:    time.Now,
	}
}

// SetPointCrediter wires the engine that re-credits point rewards on retry
func (s *Service) SetPointCrediter(c PointCrediter) {
	s.crediter = c
}

// PaySingle marks a pending commission as paid in TON. A reward that is
// already paid is rejected, never re-paid.
func (s *Service) PaySingle(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
	if err := s.requireCommission(ctx, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.RewardStatusPending, models.RewardStatusPaidTON,
		map[string]interface{}{"paid_at": s.now()})
}

// SettleAccumulated pays out a reward that was parked as accumulated
func (s *Service) SettleAccumulated(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
	if err := s.requireCommission(ctx, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.RewardStatusAccumulated, models.RewardStatusPaidTON,
		map[string]interface{}{"paid_at": s.now()})
}

// Accumulate parks a pending commission without paying it
func (s *Service) Accumulate(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
	if err := s.requireCommission(ctx, id); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.RewardStatusPending, models.RewardStatusAccumulated, nil)
}

// MarkFailed records a failed payout attempt for a pending reward
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.ReferralReward, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payout failed"
	}
	return s.transition(ctx, id, models.RewardStatusPending, models.RewardStatusFailed,
		map[string]interface{}{"failure_reason": reason})
}

// Retry makes a failed commission eligible for the next payout pass. A
// point reward is re-credited instead and ends accumulated.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
	reward, err := s.store.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reward.RewardType.IsCommission() {
		if s.crediter == nil {
			return nil, apperrors.Precondition("reward %s is a %s reward and cannot be re-credited here", id, reward.RewardType)
		}
		return s.crediter.RecreditReward(ctx, id)
	}
	return s.transition(ctx, id, models.RewardStatusFailed, models.RewardStatusPending,
		map[string]interface{}{"failure_reason": ""})
}

// PayAllPending marks every pending commission matching filter as paid in
// one statement and returns how many moved. An empty type prefix selects
// every commission; a prefix outside commission_ is rejected.
func (s *Service) PayAllPending(ctx context.Context, filter Filter) (int64, error) {
	if filter.TypePrefix == "" {
		filter.TypePrefix = models.CommissionRewardPrefix
	}
	if !strings.HasPrefix(filter.TypePrefix, models.CommissionRewardPrefix) {
		return 0, apperrors.Invalid("type prefix %q does not select commission rewards", filter.TypePrefix)
	}

	count, err := s.store.BulkTransitionRewards(ctx,
		store.RewardFilter{TypePrefix: filter.TypePrefix, ReferrerID: filter.ReferrerID},
		models.RewardStatusPending, models.RewardStatusPaidTON,
		map[string]interface{}{"paid_at": s.now()},
	)
	if err != nil {
		s.logger.Error("bulk payout failed", "type_prefix", filter.TypePrefix, "referrer", filter.ReferrerID, "error", err)
		return 0, err
	}

	s.logger.Info("bulk payout applied", "type_prefix", filter.TypePrefix, "referrer", filter.ReferrerID, "count", count)
	return count, nil
}

func (s *Service) requireCommission(ctx context.Context, id uuid.UUID) error {
	reward, err := s.store.GetReward(ctx, id)
	if err != nil {
		return err
	}
	if !reward.RewardType.IsCommission() {
		return apperrors.Precondition("reward %s is a %s reward; only commissions are paid in TON", id, reward.RewardType)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to models.RewardStatus, extra map[string]interface{}) (*models.ReferralReward, error) {
	ok, err := s.store.TransitionReward(ctx, id, from, to, extra)
	if err != nil {
		s.logger.Error("reward transition failed", "reward_id", id, "from", from, "to", to, "error", err)
		return nil, err
	}

	if !ok {
		current, err := s.store.GetReward(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.Precondition("reward %s is %s, expected %s", id, current.Status, from)
	}

	s.logger.Info("reward transitioned", "reward_id", id, "from", from, "to", to)
	return s.store.GetReward(ctx, id)
}

// List pages through rewards
func (s *Service) List(ctx context.Context, filter store.RewardFilter, page, pageSize int) ([]models.ReferralReward, int64, error) {
	return s.store.ListRewards(ctx, filter, page, pageSize)
}

// Summary is the payout backlog
type Summary struct {
	Rows                   []store.RewardSummary `json:"rows"`
	PendingCommissionUSD   decimal.Decimal       `json:"pending_commission_usd"`
	PendingCommissionCount int64                 `json:"pending_commission_count"`
	FailedCount            int64                 `json:"failed_count"`
	GeneratedAt            time.Time             `json:"generated_at"`
}

// Summary aggregates rewards by type and status
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	rows, err := s.store.SummarizeRewards(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Rows: rows, PendingCommissionUSD: decimal.Zero, GeneratedAt: s.now()}
	for _, row := range rows {
		switch {
		case row.Status == models.RewardStatusPending && row.RewardType.IsCommission():
			sum.PendingCommissionUSD = sum.PendingCommissionUSD.Add(row.AmountUSD)
			sum.PendingCommissionCount += row.Count
		case row.Status == models.RewardStatusFailed:
			sum.FailedCount += row.Count
		}
	}
	return sum, nil
}
