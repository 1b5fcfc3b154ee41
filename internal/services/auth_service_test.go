package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/textcentre/textcentre-backend/internal/dto"
	"github.com/textcentre/textcentre-backend/internal/models"
)

func newAuthFixture(t *testing.T) (*AuthService, *ReferralService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()
	entitlements := NewEntitlementService(db, NewUsageService(db, cfg))
	referrals := NewReferralService(db, entitlements, NewNotifier(db, cfg), cfg.ReferralRewardDays)
	return NewAuthService(db, cfg, referrals), referrals, db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, db := newAuthFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name:     "Alice Wonder",
		Email:    "alice@example.com",
		Password: "sup3rsecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.False(t, resp.User.IsPremium)

	// Password must be stored hashed.
	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "alice@example.com").Error)
	assert.NotEqual(t, "sup3rsecret", user.Password)

	_, err = svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "sup3rsecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "First", Email: "dup@example.com", Password: "password1",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Second", Email: "dup@example.com", Password: "password2",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

// A bad referral code is ignored; registration must still succeed.
func TestRegisterWithBadReferralCode(t *testing.T) {
	svc, _, db := newAuthFixture(t)

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name:         "Hopeful",
		Email:        "hopeful@example.com",
		Password:     "password1",
		ReferralCode: "bogus0000",
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Referral{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterWithReferralCodeCreatesPendingEntry(t *testing.T) {
	svc, referrals, db := newAuthFixture(t)

	referrerResp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ref Errer", Email: "referrer@example.com", Password: "password1",
	})
	require.NoError(t, err)
	code, err := referrals.GetOrAssignCode(context.Background(), referrerResp.User.ID)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), &dto.RegisterRequest{
		Name:         "New Comer",
		Email:        "newcomer@example.com",
		Password:     "password1",
		ReferralCode: code,
	})
	require.NoError(t, err)

	var entry models.Referral
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, models.ReferralPending, entry.Status)
	assert.Equal(t, referrerResp.User.ID, entry.ReferrerID)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Rotator", Email: "rotate@example.com", Password: "password1",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), &dto.RefreshRequest{
		RefreshToken: resp.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	// The old token was revoked by the rotation.
	_, err = svc.Refresh(context.Background(), &dto.RefreshRequest{
		RefreshToken: resp.RefreshToken,
	})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
