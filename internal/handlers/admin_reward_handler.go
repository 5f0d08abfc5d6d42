package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loyaltyclub/backend/internal/jobs"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/payout"
	"github.com/loyaltyclub/backend/internal/store"
)

// RewardAdmin is the payout state machine as seen by operators
type RewardAdmin interface {
	PaySingle(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
	SettleAccumulated(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
	Accumulate(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.ReferralReward, error)
	Retry(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
	PayAllPending(ctx context.Context, filter payout.Filter) (int64, error)
	List(ctx context.Context, filter store.RewardFilter, page, pageSize int) ([]models.ReferralReward, int64, error)
	Summary(ctx context.Context) (*payout.Summary, error)
}

// SnapshotReader returns the last cached payout backlog
type SnapshotReader interface {
	Latest(ctx context.Context) (*jobs.PayoutSnapshot, error)
}

// AdminRewardHandler handles reward payout requests
type AdminRewardHandler struct {
	rewards   RewardAdmin
	snapshots SnapshotReader
}

// NewAdminRewardHandler creates a new admin reward handler. snapshots may be
// nil when no scheduler runs.
func NewAdminRewardHandler(rewards RewardAdmin, snapshots SnapshotReader) *AdminRewardHandler {
	return &AdminRewardHandler{rewards: rewards, snapshots: snapshots}
}

type rewardTransition func(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)

func (h *AdminRewardHandler) transition(fn rewardTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		reward, err := fn(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reward)
	}
}

// Pay marks a pending reward as paid
func (h *AdminRewardHandler) Pay(c *gin.Context) { h.transition(h.rewards.PaySingle)(c) }

// Settle pays an accumulated reward
func (h *AdminRewardHandler) Settle(c *gin.Context) { h.transition(h.rewards.SettleAccumulated)(c) }

// Accumulate parks a pending reward
func (h *AdminRewardHandler) Accumulate(c *gin.Context) { h.transition(h.rewards.Accumulate)(c) }

// Retry re-queues a failed commission or re-credits a point reward
func (h *AdminRewardHandler) Retry(c *gin.Context) { h.transition(h.rewards.Retry)(c) }

// Fail records a failed payout attempt with an optional reason
func (h *AdminRewardHandler) Fail(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	h.transition(func(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
		return h.rewards.MarkFailed(ctx, id, req.Reason)
	})(c)
}

// PayPending pays every pending commission matching the filter
func (h *AdminRewardHandler) PayPending(c *gin.Context) {
	var filter payout.Filter
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&filter); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	count, err := h.rewards.PayAllPending(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": count})
}

// List pages through rewards filtered by type prefix, referrer and status
func (h *AdminRewardHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	filter := store.RewardFilter{
		TypePrefix: c.Query("type_prefix"),
		ReferrerID: c.Query("referrer_id"),
		Status:     models.RewardStatus(c.Query("status")),
	}

	rewards, total, err := h.rewards.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards": rewards,
		"pagination": gin.H{
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// Summary returns the live reward backlog
func (h *AdminRewardHandler) Summary(c *gin.Context) {
	summary, err := h.rewards.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Snapshot returns the backlog computed by the scheduler
func (h *AdminRewardHandler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": jobs.ErrNoSnapshot.Error(), "code": "not_found"})
		return
	}

	snapshot, err := h.snapshots.Latest(c.Request.Context())
	if errors.Is(err, jobs.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
