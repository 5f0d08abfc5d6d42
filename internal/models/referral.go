package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxReferralLevel bounds the referrer tree depth
const MaxReferralLevel = 3

// ReferralTreeLink is a directed edge referrer -> referred at a fixed level
type ReferralTreeLink struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ReferrerChatID    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_tree_link_pair" json:"referrer_chat_id"`
	ReferredChatID    string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_tree_link_pair;index" json:"referred_chat_id"`
	Level             int        `gorm:"not null" json:"level"`
	IsActive          bool       `gorm:"not null;default:false" json:"is_active"`
	TotalEarnedPoints int64      `gorm:"not null;default:0" json:"total_earned_points"`
	TotalTransactions int64      `gorm:"not null;default:0" json:"total_transactions"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// RewardType classifies a referral reward
type RewardType string

const (
	RewardRegistration RewardType = "registration"
	RewardTransaction  RewardType = "transaction"
	RewardCommissionL1 RewardType = "commission_l1"
	RewardCommissionL2 RewardType = "commission_l2"
	RewardCommissionL3 RewardType = "commission_l3"
	RewardAchievement  RewardType = "achievement"
)

// CommissionRewardPrefix selects currency-denominated commission rewards
const CommissionRewardPrefix = "commission_"

// CommissionRewardType returns commission_l<level>
func CommissionRewardType(level int) RewardType {
	switch level {
	case 1:
		return RewardCommissionL1
	case 2:
		return RewardCommissionL2
	default:
		return RewardCommissionL3
	}
}

// IsCommission reports whether t is currency-denominated
func (t RewardType) IsCommission() bool {
	return strings.HasPrefix(string(t), CommissionRewardPrefix)
}

// RewardStatus is the payout state of a reward
type RewardStatus string

const (
	RewardStatusPending     RewardStatus = "pending"
	RewardStatusAccumulated RewardStatus = "accumulated"
	RewardStatusPaidTON     RewardStatus = "paid_ton"
	RewardStatusFailed      RewardStatus = "failed"
)

// ReferralReward is an immutable ledger row; only Status and its
// bookkeeping columns change after creation.
type ReferralReward struct {
	Base
	ReferrerChatID string          `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_reward_tx_dedupe" json:"referrer_chat_id"`
	ReferredChatID string          `gorm:"type:varchar(64);not null;index" json:"referred_chat_id"`
	RewardType     RewardType      `gorm:"type:varchar(32);not null;index;uniqueIndex:idx_reward_tx_dedupe" json:"reward_type"`
	Level          int             `gorm:"not null;default:0" json:"level"`
	Points         int64           `gorm:"not null;default:0" json:"points"`
	AmountUSD      decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"amount_usd"`
	Status         RewardStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	TransactionID  *string         `gorm:"type:varchar(128);uniqueIndex:idx_reward_tx_dedupe" json:"transaction_id,omitempty"`
	FailureReason  string          `gorm:"type:text" json:"failure_reason,omitempty"`
	MetaData       JSON            `gorm:"type:text" json:"metadata,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}
