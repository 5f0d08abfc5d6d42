package referral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/models"
)

func TestResolveReferrer(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedUser(t, st, "100", "", "ALPHA")
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		want  string
		ok    bool
	}{
		{"partner token", "partner_100", "100", true},
		{"partner token with spaces", "  partner_100 ", "100", true},
		{"unknown partner", "partner_999", "", false},
		{"empty partner", "partner_", "", false},
		{"code token", "ref_ALPHA", "100", true},
		{"unknown code", "ref_BETA", "", false},
		{"empty code", "ref_", "", false},
		{"malformed", "hello", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := svc.ResolveReferrer(ctx, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateLinksCapsAtThreeLevels(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	var links []models.ReferralTreeLink
	require.NoError(t, st.DB().Where("referred_chat_id = ?", "u5").Order("level").Find(&links).Error)

	require.Len(t, links, 3)
	assert.Equal(t, "u4", links[0].ReferrerChatID)
	assert.Equal(t, 1, links[0].Level)
	assert.Equal(t, "u3", links[1].ReferrerChatID)
	assert.Equal(t, 2, links[1].Level)
	assert.Equal(t, "u2", links[2].ReferrerChatID)
	assert.Equal(t, 3, links[2].Level)
}

func TestCreateLinksIsIdempotent(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)

	created, err := svc.CreateLinks(context.Background(), "u5", "u4")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	require.NoError(t, st.DB().Model(&models.ReferralTreeLink{}).Where("referred_chat_id = ?", "u5").Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestCreateLinksShortChain(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedUser(t, st, "root", "", "")
	seedUser(t, st, "child", "root", "")

	created, err := svc.CreateLinks(context.Background(), "child", "root")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	ancestors, err := svc.LoadAncestors(context.Background(), "child", 3)
	require.NoError(t, err)
	assert.Equal(t, []Ancestor{{ReferrerID: "root", Level: 1}}, ancestors)
}

func TestCreateLinksNoop(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedUser(t, st, "solo", "", "")
	ctx := context.Background()

	for _, referrer := range []string{"", "solo", "ghost"} {
		created, err := svc.CreateLinks(ctx, "solo", referrer)
		require.NoError(t, err)
		assert.Zero(t, created, "referrer %q", referrer)
	}

	var count int64
	require.NoError(t, st.DB().Model(&models.ReferralTreeLink{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLoadAncestors(t *testing.T) {
	svc, st := newTestService(t, nil)
	seedChain(t, svc, st)
	ctx := context.Background()

	ancestors, err := svc.LoadAncestors(ctx, "u5", 3)
	require.NoError(t, err)
	assert.Equal(t, []Ancestor{
		{ReferrerID: "u4", Level: 1},
		{ReferrerID: "u3", Level: 2},
		{ReferrerID: "u2", Level: 3},
	}, ancestors)

	ancestors, err = svc.LoadAncestors(ctx, "u5", 2)
	require.NoError(t, err)
	assert.Len(t, ancestors, 2)

	ancestors, err = svc.LoadAncestors(ctx, "u5", 10)
	require.NoError(t, err)
	assert.Len(t, ancestors, 3)

	ancestors, err = svc.LoadAncestors(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}
