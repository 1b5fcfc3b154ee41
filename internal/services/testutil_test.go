package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/textcentre/textcentre-backend/internal/config"
	"github.com/textcentre/textcentre-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A fresh connection would see a fresh in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.Usage{},
		&models.Referral{},
		&models.Book{},
		&models.UserBook{},
		&models.Payment{},
		&models.Notification{},
		&models.RefreshToken{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTAccessExpiry:    15 * time.Minute,
		JWTRefreshExpiry:   720 * time.Hour,
		FreeBooksLimit:     5,
		FreePreviewsLimit:  10,
		FreeAIQueriesLimit: 5,
		ReferralRewardDays: 30,
		CheckoutSuccessURL: "https://example.com/success",
		CheckoutCancelURL:  "https://example.com/cancel",
		BillingPortalURL:   "https://example.com/account",
	}
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		Name:     name,
		Email:    email,
		Password: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestSubscription(t *testing.T, db *gorm.DB, userID uuid.UUID, status string, periodEnd time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		PlanID:               "monthly",
		StripeSubscriptionID: "sub_" + uuid.NewString(),
		Status:               status,
		CurrentPeriodStart:   periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:     periodEnd,
		LastEventAt:          time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}
