//go:build integration

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"squadfeed/internal/database"
	"squadfeed/internal/featureflags"
	"squadfeed/internal/models"
	"squadfeed/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgres starts a throwaway PostgreSQL and applies the SQL migrations.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("squadfeed"),
		tcpostgres.WithUsername("squadfeed"),
		tcpostgres.WithPassword("squadfeed"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	if err != nil {
		t.Skipf("Skipping test: postgres container unavailable: %v", err)
	}

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigrations(ctx, db))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, n int) []uint {
	t.Helper()
	users := repository.NewUserRepository(db)
	ids := make([]uint, n)
	for i := range ids {
		u := models.User{Username: fmt.Sprintf("user%d", i)}
		require.NoError(t, users.Create(context.Background(), &u))
		ids[i] = u.ID
	}
	return ids
}

func seedPost(t *testing.T, db *gorm.DB, author uint) uint {
	t.Helper()
	ctx := context.Background()
	squad := models.Squad{Handle: fmt.Sprintf("squad-%d", author), Name: "Squad"}
	require.NoError(t, repository.NewSquadRepository(db).Create(ctx, &squad, author))
	post := models.Post{Title: "t", Slug: "t", Content: "c", AuthorID: author, SquadID: squad.ID}
	require.NoError(t, repository.NewPostRepository(db).Create(ctx, &post))
	return post.ID
}

func assertCounterMatchesLedger(t *testing.T, db *gorm.DB, postID uint) int64 {
	t.Helper()
	var counter models.PostUpvoteCounter
	require.NoError(t, db.Where("post_id = ?", postID).Take(&counter).Error)
	var ledger int64
	require.NoError(t, db.Model(&models.UserUpvote{}).Where("post_id = ?", postID).Count(&ledger).Error)
	assert.Equal(t, ledger, counter.Upvotes)
	return counter.Upvotes
}

func TestIntegration_ConcurrentUpvotes(t *testing.T) {
	db := setupPostgres(t)
	users := seedUsers(t, db, 20)
	postID := seedPost(t, db, users[0])
	svc := NewEngagementService(repository.NewEngagementRepository(db), nil, featureflags.NewManager(featureflags.Defaults))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, uid := range users {
		wg.Add(1)
		go func(uid uint) {
			defer wg.Done()
			_, err := svc.ToggleUpvote(ctx, uid, postID)
			errs <- err
		}(uid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, len(users), assertCounterMatchesLedger(t, db, postID))

	// half take their upvote back
	for _, uid := range users[:10] {
		wg.Add(1)
		go func(uid uint) {
			defer wg.Done()
			_, err := svc.ToggleUpvote(ctx, uid, postID)
			assert.NoError(t, err)
		}(uid)
	}
	wg.Wait()
	assert.EqualValues(t, 10, assertCounterMatchesLedger(t, db, postID))
}

func TestIntegration_SamePairTogglesStayConsistent(t *testing.T) {
	db := setupPostgres(t)
	users := seedUsers(t, db, 1)
	postID := seedPost(t, db, users[0])
	svc := NewEngagementService(repository.NewEngagementRepository(db), nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ToggleUpvote(ctx, users[0], postID)
		}()
	}
	wg.Wait()

	upvotes := assertCounterMatchesLedger(t, db, postID)
	assert.LessOrEqual(t, upvotes, int64(1))
}

func TestIntegration_ConcurrentViewsCountOnce(t *testing.T) {
	db := setupPostgres(t)
	users := seedUsers(t, db, 2)
	postID := seedPost(t, db, users[0])
	svc := NewEngagementService(repository.NewEngagementRepository(db), nil, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counted int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.RegisterView(ctx, users[1], postID)
			assert.NoError(t, err)
			if outcome == ViewCounted {
				mu.Lock()
				counted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, counted)
	var views models.PostViewCounter
	require.NoError(t, db.Where("post_id = ?", postID).Take(&views).Error)
	assert.Equal(t, int64(1), views.Views)
}

func TestIntegration_ConcurrentStreakTouchesExtendOnce(t *testing.T) {
	db := setupPostgres(t)
	users := seedUsers(t, db, 1)
	uid := users[0]

	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	require.NoError(t, db.Create(&models.Streak{
		UserID: uid, StreakStart: yesterday.AddDate(0, 0, -4), StreakEnd: yesterday, UpdatedAt: yesterday,
		StreakLength: 5, LongestStreak: 5,
	}).Error)

	svc := NewStreakService(repository.NewStreakRepository(db), nil, time.UTC,
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		extended int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Touch(ctx, uid)
			if !assert.NoError(t, err) {
				return
			}
			if res.Transition == StreakExtended {
				mu.Lock()
				extended++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, extended)
	got, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 6, got.StreakLength)
	assert.Equal(t, 6, got.LongestStreak)
}
