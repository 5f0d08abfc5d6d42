package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmbassadorStatus is the moderation state of an ambassador
type AmbassadorStatus string

const (
	AmbassadorActive    AmbassadorStatus = "active"
	AmbassadorSuspended AmbassadorStatus = "suspended"
	AmbassadorBlocked   AmbassadorStatus = "blocked"
)

// Ambassador is a referrer with a capped partner portfolio earning a
// currency-denominated share of partner checks
type Ambassador struct {
	Base
	ChatID         string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"chat_id"`
	Name           string           `gorm:"type:varchar(255)" json:"name"`
	AmbassadorCode string           `gorm:"type:varchar(100);not null;uniqueIndex" json:"ambassador_code"`
	Status         AmbassadorStatus `gorm:"type:varchar(20);not null" json:"status"`
	MaxPartners    int              `gorm:"not null" json:"max_partners"`
	BalancePending decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"balance_pending"`
	TotalEarnings  decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"total_earnings"`
	TotalPaid      decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"total_paid"`
	LastPayoutAt   *time.Time       `json:"last_payout_at,omitempty"`
}

// AmbassadorPartner attaches a partner to an ambassador
type AmbassadorPartner struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AmbassadorID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ambassador_partner" json:"ambassador_id"`
	PartnerChatID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_ambassador_partner;index" json:"partner_chat_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// AmbassadorEarning is one attributed check; immutable once created
type AmbassadorEarning struct {
	Base
	AmbassadorID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"ambassador_id"`
	PartnerChatID    string          `gorm:"type:varchar(64);not null" json:"partner_chat_id"`
	CheckAmount      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"check_amount"`
	CommissionPct    decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"commission_pct"`
	GrossAmount      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"gross_amount"`
	PlatformFee      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"platform_fee"`
	AmbassadorAmount decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"ambassador_amount"`
}

// AmbassadorPayout records one confirmed payout of the pending balance
type AmbassadorPayout struct {
	Base
	AmbassadorID uuid.UUID       `gorm:"type:uuid;not null;index" json:"ambassador_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	ConfirmedBy  string          `gorm:"type:varchar(64)" json:"confirmed_by"`
}
