package referral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/store"
)

func TestAwardRegistrationBonuses(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	res := svc.AwardRegistrationBonuses(context.Background(), "u5", "u4")
	require.NoError(t, res.Err())
	assert.Equal(t, int64(135), res.TotalPoints())
	assert.Len(t, res.Credited, 3)

	assert.Equal(t, int64(100), loadUser(t, st, "u4").CommissionBalance)
	assert.Equal(t, int64(25), loadUser(t, st, "u3").CommissionBalance)
	assert.Equal(t, int64(10), loadUser(t, st, "u2").CommissionBalance)
	assert.Zero(t, loadUser(t, st, "u1").CommissionBalance)
	assert.Zero(t, loadUser(t, st, "u5").CommissionBalance)
	assert.Zero(t, loadUser(t, st, "u4").Balance)

	rewards := rewardsFor(t, st, "u5", models.RewardRegistration)
	require.Len(t, rewards, 3)
	referrers := map[string]bool{}
	for _, r := range rewards {
		referrers[r.ReferrerChatID] = true
		assert.Equal(t, models.RewardStatusAccumulated, r.Status)
	}
	assert.Len(t, referrers, 3)

	links, err := st.FindLinksByReferred(context.Background(), "u5", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(100), links[0].TotalEarnedPoints)
	assert.Zero(t, links[0].TotalTransactions)
}

func TestAwardRegistrationBonusesWithoutReferrer(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	res := svc.AwardRegistrationBonuses(context.Background(), "u5", "")
	assert.Empty(t, res.Credited)
	assert.Empty(t, rewardsFor(t, st, "u5", models.RewardRegistration))
}

func TestAwardTransactionBonuses(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	res := svc.AwardTransactionBonuses(context.Background(), "u5", 1000, "tx-1")
	require.NoError(t, res.Err())

	assert.Equal(t, int64(80), loadUser(t, st, "u4").Balance)
	assert.Equal(t, int64(40), loadUser(t, st, "u3").Balance)
	assert.Equal(t, int64(20), loadUser(t, st, "u2").Balance)
	assert.Zero(t, loadUser(t, st, "u4").CommissionBalance)

	rewards := rewardsFor(t, st, "u5", models.RewardTransaction)
	require.Len(t, rewards, 3)
	for _, r := range rewards {
		require.NotNil(t, r.TransactionID)
		assert.Equal(t, "tx-1", *r.TransactionID)
	}

	links, err := st.FindLinksByReferred(context.Background(), "u5", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(80), links[0].TotalEarnedPoints)
	assert.Equal(t, int64(1), links[0].TotalTransactions)
	assert.True(t, links[0].IsActive)
	assert.NotNil(t, links[0].LastTransactionAt)
}

func TestAwardTransactionBonusesFloorsSmallAmounts(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	res := svc.AwardTransactionBonuses(context.Background(), "u5", 25, "tx-small")
	require.NoError(t, res.Err())

	assert.Equal(t, int64(2), loadUser(t, st, "u4").Balance)
	assert.Equal(t, int64(1), loadUser(t, st, "u3").Balance)
	assert.Zero(t, loadUser(t, st, "u2").Balance)

	rewards := rewardsFor(t, st, "u5", models.RewardTransaction)
	require.Len(t, rewards, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, res.Skipped[0].Level)

	res = svc.AwardTransactionBonuses(context.Background(), "u5", 5, "tx-tiny")
	assert.Empty(t, res.Credited)
	assert.Len(t, res.Skipped, 3)
}

func TestAwardTransactionBonusesIgnoresNonPositive(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	for _, points := range []int64{0, -10} {
		res := svc.AwardTransactionBonuses(context.Background(), "u5", points, "tx")
		assert.Empty(t, res.Credited)
		assert.Empty(t, res.Skipped)
	}
	assert.Zero(t, loadUser(t, st, "u4").Balance)
}

func TestAwardTransactionBonusesDeduplicatesTransaction(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)
	ctx := context.Background()

	svc.AwardTransactionBonuses(ctx, "u5", 1000, "tx-dup")
	res := svc.AwardTransactionBonuses(ctx, "u5", 1000, "tx-dup")

	assert.Empty(t, res.Credited)
	assert.Len(t, res.Skipped, 3)
	assert.Equal(t, int64(80), loadUser(t, st, "u4").Balance)
	assert.Len(t, rewardsFor(t, st, "u5", models.RewardTransaction), 3)
}

func TestAwardTransactionBonusesIsolatesLevelFailure(t *testing.T) {
	svc, st := newTestService(t, func(s *store.Store) Store {
		return &failingStore{Store: s, failBalanceFor: "u3"}
	})
	seedChain(t, svc, st)

	res := svc.AwardTransactionBonuses(context.Background(), "u5", 1000, "tx-2")

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].Level)
	assert.ErrorIs(t, res.Err(), apperrors.ErrStoreUnavailable)
	assert.Nil(t, res.Aborted())
	assert.Len(t, res.Credited, 2)

	assert.Equal(t, int64(80), loadUser(t, st, "u4").Balance)
	assert.Zero(t, loadUser(t, st, "u3").Balance)
	assert.Equal(t, int64(20), loadUser(t, st, "u2").Balance)

	rewards := rewardsFor(t, st, "u5", models.RewardTransaction)
	require.Len(t, rewards, 3)
	assert.Equal(t, models.RewardStatusAccumulated, rewards[0].Status)
	assert.Equal(t, models.RewardStatusFailed, rewards[1].Status)
	assert.Contains(t, rewards[1].FailureReason, "connection reset")
	assert.Equal(t, models.RewardStatusAccumulated, rewards[2].Status)
}

func TestAwardRegistrationBonusesAbortsWhenTreeUnreadable(t *testing.T) {
	svc, st := newTestService(t, func(s *store.Store) Store {
		return &brokenLinksStore{Store: s}
	})
	seedUser(t, st, "a", "", "")
	seedUser(t, st, "b", "a", "")

	res := svc.AwardRegistrationBonuses(context.Background(), "b", "a")
	require.Error(t, res.Aborted())
	assert.ErrorIs(t, res.Aborted(), apperrors.ErrStoreUnavailable)
	assert.Zero(t, loadUser(t, st, "a").CommissionBalance)
}
