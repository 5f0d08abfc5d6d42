package referral

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/database/dbtest"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/store"
)

func newTestService(t *testing.T, wrap func(*store.Store) Store) (*Service, *store.Store) {
	t.Helper()
	st := store.New(dbtest.Open(t))
	var backend Store = st
	if wrap != nil {
		backend = wrap(st)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(backend, config.DefaultReferralConfig(), log), st
}

func seedUser(t *testing.T, st *store.Store, chatID, referredBy, code string) {
	t.Helper()
	user := &models.User{ChatID: chatID}
	if referredBy != "" {
		user.ReferredBy = &referredBy
	}
	if code != "" {
		user.ReferralCode = &code
	}
	created, err := st.CreateUser(context.Background(), user)
	require.NoError(t, err)
	require.True(t, created)
}

// seedChain creates u1 <- u2 <- u3 <- u4 <- u5, each referred by the
// previous one, and materialises the links of u5
func seedChain(t *testing.T, svc *Service, st *store.Store) {
	t.Helper()
	seedUser(t, st, "u1", "", "CODE1")
	seedUser(t, st, "u2", "u1", "CODE2")
	seedUser(t, st, "u3", "u2", "CODE3")
	seedUser(t, st, "u4", "u3", "CODE4")
	seedUser(t, st, "u5", "u4", "CODE5")

	_, err := svc.CreateLinks(context.Background(), "u5", "u4")
	require.NoError(t, err)
}

func loadUser(t *testing.T, st *store.Store, chatID string) *models.User {
	t.Helper()
	user, err := st.GetUser(context.Background(), chatID)
	require.NoError(t, err)
	return user
}

func rewardsFor(t *testing.T, st *store.Store, referred string, rewardType models.RewardType) []models.ReferralReward {
	t.Helper()
	var rewards []models.ReferralReward
	err := st.DB().
		Where("referred_chat_id = ? AND reward_type = ?", referred, rewardType).
		Order("level ASC").
		Find(&rewards).Error
	require.NoError(t, err)
	return rewards
}

// failingStore injects a balance failure for one referrer until the field
// is cleared
type failingStore struct {
	*store.Store
	failBalanceFor string
}

func (f *failingStore) CreditReward(ctx context.Context, reward *models.ReferralReward, field models.BalanceField) (bool, error) {
	if reward.ReferrerChatID == f.failBalanceFor {
		return false, apperrors.Store("credit reward", errors.New("connection reset"))
	}
	return f.Store.CreditReward(ctx, reward, field)
}

// flakyLinkStore fails the next failLinks link inserts
type flakyLinkStore struct {
	*store.Store
	failLinks int
}

func (f *flakyLinkStore) InsertLink(ctx context.Context, link *models.ReferralTreeLink) (bool, error) {
	if f.failLinks > 0 {
		f.failLinks--
		return false, apperrors.Store("insert tree link", errors.New("connection reset"))
	}
	return f.Store.InsertLink(ctx, link)
}

// brokenLinksStore fails every ancestor lookup
type brokenLinksStore struct {
	*store.Store
}

func (b *brokenLinksStore) FindLinksByReferred(ctx context.Context, referred string, maxLevel int) ([]models.ReferralTreeLink, error) {
	return nil, apperrors.Store("find tree links", errors.New("timeout"))
}
