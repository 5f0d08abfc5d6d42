package referral

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/payout"
	"github.com/loyaltyclub/backend/internal/store"
)

func TestFailedTransactionBonusIsCreditedOnRetry(t *testing.T) {
	failing := &failingStore{failBalanceFor: "u3"}
	svc, st := newTestService(t, func(s *store.Store) Store {
		failing.Store = s
		return failing
	})
	seedChain(t, svc, st)
	ctx := context.Background()

	res := svc.AwardTransactionBonuses(ctx, "u5", 1000, "tx-2")
	require.Len(t, res.Failed, 1)
	failed := rewardsFor(t, st, "u5", models.RewardTransaction)[1]
	require.Equal(t, "u3", failed.ReferrerChatID)
	require.Equal(t, models.RewardStatusFailed, failed.Status)

	payouts := payout.NewService(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	payouts.SetPointCrediter(svc)

	// the outage is still there: the reward goes back to failed
	_, err := payouts.Retry(ctx, failed.ID)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	still, err := st.GetReward(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStatusFailed, still.Status)
	assert.Zero(t, loadUser(t, st, "u3").Balance)

	failing.failBalanceFor = ""
	retried, err := payouts.Retry(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStatusAccumulated, retried.Status)
	assert.Empty(t, retried.FailureReason)
	assert.Equal(t, int64(40), loadUser(t, st, "u3").Balance)

	links, err := st.FindLinksByReferred(ctx, "u5", 3)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, int64(40), links[1].TotalEarnedPoints)
	assert.Equal(t, int64(1), links[1].TotalTransactions)

	redelivered := svc.AwardTransactionBonuses(ctx, "u5", 1000, "tx-2")
	assert.Empty(t, redelivered.Credited)
	assert.Len(t, redelivered.Skipped, 3)
	assert.Equal(t, int64(40), loadUser(t, st, "u3").Balance)

	_, err = payouts.PaySingle(ctx, failed.ID)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
	_, err = svc.RecreditReward(ctx, failed.ID)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
	assert.Equal(t, int64(40), loadUser(t, st, "u3").Balance)
}

func TestAwardTransactionBonusesResumesPendingReward(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)
	ctx := context.Background()

	// a reward claimed by an attempt that stopped before the credit
	txID := "tx-3"
	inserted, err := st.InsertReward(ctx, &models.ReferralReward{
		ReferrerChatID: "u4",
		ReferredChatID: "u5",
		RewardType:     models.RewardTransaction,
		Level:          1,
		Points:         80,
		Status:         models.RewardStatusPending,
		TransactionID:  &txID,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	res := svc.AwardTransactionBonuses(ctx, "u5", 1000, txID)
	require.NoError(t, res.Err())
	assert.Len(t, res.Credited, 3)
	assert.Equal(t, int64(80), loadUser(t, st, "u4").Balance)

	for _, r := range rewardsFor(t, st, "u5", models.RewardTransaction) {
		assert.Equal(t, models.RewardStatusAccumulated, r.Status)
	}

	again := svc.AwardTransactionBonuses(ctx, "u5", 1000, txID)
	assert.Empty(t, again.Credited)
	assert.Equal(t, int64(80), loadUser(t, st, "u4").Balance)
}

func TestRecreditRewardPendingAndCommission(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedUser(t, st, "r", "", "")
	ctx := context.Background()

	key := registrationKey("n")
	stuck := &models.ReferralReward{
		ReferrerChatID: "r",
		ReferredChatID: "n",
		RewardType:     models.RewardRegistration,
		Level:          1,
		Points:         100,
		Status:         models.RewardStatusPending,
		TransactionID:  &key,
	}
	_, err := st.InsertReward(ctx, stuck)
	require.NoError(t, err)

	credited, err := svc.RecreditReward(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RewardStatusAccumulated, credited.Status)
	assert.Equal(t, int64(100), loadUser(t, st, "r").CommissionBalance)
	assert.Zero(t, loadUser(t, st, "r").Balance)

	commission := &models.ReferralReward{
		ReferrerChatID: "r",
		ReferredChatID: "p",
		RewardType:     models.RewardCommissionL1,
		Level:          1,
		Status:         models.RewardStatusFailed,
	}
	_, err = st.InsertReward(ctx, commission)
	require.NoError(t, err)

	_, err = svc.RecreditReward(ctx, commission.ID)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}
