package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/middleware"
	"github.com/loyaltyclub/backend/internal/models"
)

// AmbassadorAdmin is the ambassador engine as seen by operators
type AmbassadorAdmin interface {
	Register(ctx context.Context, chatID, name string, maxPartners int) (*models.Ambassador, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Ambassador, error)
	AttachPartner(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string) error
	DetachPartner(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string) error
	Partners(ctx context.Context, ambassadorID uuid.UUID) ([]models.AmbassadorPartner, error)
	RecordEarning(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string, checkAmount, commissionPct decimal.Decimal) (*models.AmbassadorEarning, error)
	Earnings(ctx context.Context, ambassadorID uuid.UUID, limit int) ([]models.AmbassadorEarning, error)
	ConfirmPayout(ctx context.Context, ambassadorID uuid.UUID, confirmedBy string) (decimal.Decimal, error)
	SetStatus(ctx context.Context, id uuid.UUID, to models.AmbassadorStatus) error
}

// AdminAmbassadorHandler handles ambassador management requests
type AdminAmbassadorHandler struct {
	ambassadors AmbassadorAdmin
}

// NewAdminAmbassadorHandler creates a new admin ambassador handler
func NewAdminAmbassadorHandler(ambassadors AmbassadorAdmin) *AdminAmbassadorHandler {
	return &AdminAmbassadorHandler{ambassadors: ambassadors}
}

// CreateAmbassadorRequest promotes a user to ambassador
type CreateAmbassadorRequest struct {
	ChatID      string `json:"chat_id" binding:"required"`
	Name        string `json:"name"`
	MaxPartners int    `json:"max_partners"`
}

// AttachPartnerRequest attaches a partner venue
type AttachPartnerRequest struct {
	PartnerChatID string `json:"partner_chat_id" binding:"required"`
}

// RecordEarningRequest attributes one partner check
type RecordEarningRequest struct {
	PartnerChatID string          `json:"partner_chat_id" binding:"required"`
	CheckAmount   decimal.Decimal `json:"check_amount"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
}

// SetStatusRequest changes the moderation status
type SetStatusRequest struct {
	Status models.AmbassadorStatus `json:"status" binding:"required"`
}

// Create registers an ambassador
func (h *AdminAmbassadorHandler) Create(c *gin.Context) {
	var req CreateAmbassadorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	a, err := h.ambassadors.Register(c.Request.Context(), req.ChatID, req.Name, req.MaxPartners)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Get returns an ambassador with balances
func (h *AdminAmbassadorHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	a, err := h.ambassadors.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListPartners returns the partner portfolio
func (h *AdminAmbassadorHandler) ListPartners(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	partners, err := h.ambassadors.Partners(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}

// AttachPartner adds a partner; attaching twice is a no-op
func (h *AdminAmbassadorHandler) AttachPartner(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req AttachPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.ambassadors.AttachPartner(c.Request.Context(), id, req.PartnerChatID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ambassador_id": id, "partner_chat_id": req.PartnerChatID})
}

// DetachPartner removes a partner
func (h *AdminAmbassadorHandler) DetachPartner(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.ambassadors.DetachPartner(c.Request.Context(), id, c.Param("partner_chat_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordEarning attributes a partner check to the ambassador
func (h *AdminAmbassadorHandler) RecordEarning(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req RecordEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	earning, err := h.ambassadors.RecordEarning(c.Request.Context(), id, req.PartnerChatID, req.CheckAmount, req.CommissionPct)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, earning)
}

// ListEarnings returns the latest earnings
func (h *AdminAmbassadorHandler) ListEarnings(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	earnings, err := h.ambassadors.Earnings(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": earnings})
}

// ConfirmPayout pays out the pending balance, attributed to the caller
func (h *AdminAmbassadorHandler) ConfirmPayout(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	amount, err := h.ambassadors.ConfirmPayout(c.Request.Context(), id, middleware.Subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ambassador_id": id, "paid": amount})
}

// SetStatus applies a moderation transition
func (h *AdminAmbassadorHandler) SetStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.ambassadors.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ambassador_id": id, "status": req.Status})
}
