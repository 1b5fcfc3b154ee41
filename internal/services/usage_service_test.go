package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textcentre/textcentre-backend/internal/models"
)

func TestUsageGetCreatesWithDefaults(t *testing.T) {
	db := newTestDB(t)
	svc := NewUsageService(db, testConfig())
	user := createTestUser(t, db, "Alice Reader", "alice@example.com")

	usage, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, usage.BooksLimit)
	assert.Equal(t, 10, usage.PreviewsLimit)
	assert.Equal(t, 5, usage.AIQueriesLimit)
	assert.Zero(t, usage.BooksRead)
	assert.Zero(t, usage.PreviewsViewed)
	assert.Zero(t, usage.AIQueriesUsed)
	assert.WithinDuration(t, time.Now().UTC(), usage.LastResetDate, time.Minute)

	// Second call returns the same row, not a new one.
	again, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, usage.ID, again.ID)
}

func TestUsageIncrementStopsAtLimit(t *testing.T) {
	db := newTestDB(t)
	svc := NewUsageService(db, testConfig())
	user := createTestUser(t, db, "Bob", "bob@example.com")

	_, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok, err := svc.Increment(context.Background(), user.ID, models.UsageBooks)
		require.NoError(t, err)
		assert.True(t, ok, "increment %d should succeed", i)
	}

	ok, err := svc.Increment(context.Background(), user.ID, models.UsageBooks)
	require.NoError(t, err)
	assert.False(t, ok, "increment past the limit must fail")

	usage, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.BooksRead)
}

// N concurrent attempts against a limit of 5 must yield exactly 5 successes
// and leave the counter at the limit, never past it.
func TestUsageIncrementConcurrent(t *testing.T) {
	db := newTestDB(t)
	svc := NewUsageService(db, testConfig())
	user := createTestUser(t, db, "Carol", "carol@example.com")

	_, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Increment(context.Background(), user.ID, models.UsageAIQueries)
			if err != nil {
				return
			}
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)

	usage, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.AIQueriesUsed)
}

func TestUsageResetAfterMonthPreservesLimits(t *testing.T) {
	db := newTestDB(t)
	svc := NewUsageService(db, testConfig())
	user := createTestUser(t, db, "Dave", "dave@example.com")

	usage, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)

	stale := time.Now().UTC().AddDate(0, -2, 0)
	require.NoError(t, db.Model(&models.Usage{}).Where("id = ?", usage.ID).
		Updates(map[string]interface{}{
			"books_read":      4,
			"previews_viewed": 9,
			"ai_queries_used": 5,
			"last_reset_date": stale,
		}).Error)

	require.NoError(t, svc.ResetIfPeriodElapsed(context.Background(), user.ID))

	fresh, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.BooksRead)
	assert.Zero(t, fresh.PreviewsViewed)
	assert.Zero(t, fresh.AIQueriesUsed)
	assert.Equal(t, 5, fresh.BooksLimit)
	assert.Equal(t, 10, fresh.PreviewsLimit)
	assert.Equal(t, 5, fresh.AIQueriesLimit)
	assert.True(t, fresh.LastResetDate.After(stale))
}

func TestUsageResetMidPeriodIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewUsageService(db, testConfig())
	user := createTestUser(t, db, "Eve", "eve@example.com")

	_, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	ok, err := svc.Increment(context.Background(), user.ID, models.UsageBooks)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.ResetIfPeriodElapsed(context.Background(), user.ID))

	usage, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.BooksRead)
}

func TestUsageUnknownKind(t *testing.T) {
	db := newTestDB(t)
	svc := NewUsageService(db, testConfig())
	user := createTestUser(t, db, "Frank", "frank@example.com")

	_, err := svc.Increment(context.Background(), user.ID, "downloads")
	assert.Error(t, err)
}
