package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loyaltyclub/backend/internal/jobs"
	"github.com/loyaltyclub/backend/internal/referral"
)

// ReferralReader answers tree queries synchronously
type ReferralReader interface {
	ResolveReferrer(ctx context.Context, token string) (string, bool, error)
	LoadAncestors(ctx context.Context, userID string, maxLevel int) ([]referral.Ancestor, error)
}

// EventEnqueuer queues referral events for the job workers
type EventEnqueuer interface {
	EnqueueRegistration(ctx context.Context, payload jobs.RegistrationPayload) (string, error)
	EnqueueTransactionBonus(ctx context.Context, payload jobs.TransactionBonusPayload) (string, error)
	EnqueuePartnerCheck(ctx context.Context, payload jobs.PartnerCheckPayload) (string, error)
}

// ReferralHandler accepts bot events and serves tree lookups
type ReferralHandler struct {
	reader ReferralReader
	events EventEnqueuer
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(reader ReferralReader, events EventEnqueuer) *ReferralHandler {
	return &ReferralHandler{reader: reader, events: events}
}

// Resolve decodes a start token into its referrer
func (h *ReferralHandler) Resolve(c *gin.Context) {
	referrerID, ok, err := h.reader.ResolveReferrer(c.Request.Context(), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	var referrer *string
	if ok {
		referrer = &referrerID
	}
	c.JSON(http.StatusOK, gin.H{"referrer_id": referrer})
}

// Ancestors lists the referrers of a user, nearest first
func (h *ReferralHandler) Ancestors(c *gin.Context) {
	maxLevel, _ := strconv.Atoi(c.DefaultQuery("max_level", "3"))

	ancestors, err := h.reader.LoadAncestors(c.Request.Context(), c.Param("chat_id"), maxLevel)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id":   c.Param("chat_id"),
		"ancestors": ancestors,
	})
}

// Register queues a first /start
func (h *ReferralHandler) Register(c *gin.Context) {
	var payload jobs.RegistrationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	jobID, err := h.events.EnqueueRegistration(c.Request.Context(), payload)
	h.accepted(c, jobID, err)
}

// Transaction queues a transaction bonus fan-out
func (h *ReferralHandler) Transaction(c *gin.Context) {
	var payload jobs.TransactionBonusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	jobID, err := h.events.EnqueueTransactionBonus(c.Request.Context(), payload)
	h.accepted(c, jobID, err)
}

// PartnerCheck queues a partner commission fan-out
func (h *ReferralHandler) PartnerCheck(c *gin.Context) {
	var payload jobs.PartnerCheckPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	jobID, err := h.events.EnqueuePartnerCheck(c.Request.Context(), payload)
	h.accepted(c, jobID, err)
}

func (h *ReferralHandler) accepted(c *gin.Context, jobID string, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}
