package models

import "time"

// User is a loyalty program member keyed by Telegram chat id
type User struct {
	ChatID            string    `gorm:"type:varchar(64);primaryKey" json:"chat_id"`
	ReferredBy        *string   `gorm:"type:varchar(64);index" json:"referred_by,omitempty"`
	ReferralCode      *string   `gorm:"type:varchar(64);uniqueIndex" json:"referral_code,omitempty"`
	Balance           int64     `gorm:"not null;default:0" json:"balance"`
	CommissionBalance int64     `gorm:"not null;default:0" json:"commission_balance"`
	IsPartner         bool      `gorm:"not null;default:false" json:"is_partner"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BalanceField names one of the two point pools on a user
type BalanceField string

const (
	// BalanceSpendable is the redeemable pool credited by transaction bonuses
	BalanceSpendable BalanceField = "balance"
	// BalanceCommission is the pool credited by registration bonuses
	BalanceCommission BalanceField = "commission_balance"
)

// Valid reports whether f names a known balance column
func (f BalanceField) Valid() bool {
	return f == BalanceSpendable || f == BalanceCommission
}
