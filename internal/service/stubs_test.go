package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"squadfeed/internal/models"
	"squadfeed/internal/notifications"
	"squadfeed/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, uint, uint) (*models.FeedPost, error)
	getBySlugFn     func(context.Context, string, uint) (*models.FeedPost, error)
	updateFn        func(context.Context, *models.Post) error
	deleteFn        func(context.Context, uint) error
	feedPageFn      func(context.Context, repository.FeedQuery) ([]models.FeedPost, error)
	isSquadMemberFn func(context.Context, uint, uint) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.FeedPost, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.FeedPost, error) {
	return s.getBySlugFn(ctx, slug, viewerID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) FeedPage(ctx context.Context, q repository.FeedQuery) ([]models.FeedPost, error) {
	return s.feedPageFn(ctx, q)
}
func (s *postRepoStub) IsSquadMember(ctx context.Context, squadID, userID uint) (bool, error) {
	return s.isSquadMemberFn(ctx, squadID, userID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:        func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:       func(_ context.Context, _, _ uint) (*models.FeedPost, error) { return &models.FeedPost{}, nil },
		getBySlugFn:     func(_ context.Context, _ string, _ uint) (*models.FeedPost, error) { return nil, repository.ErrPostNotFound },
		updateFn:        func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
		feedPageFn:      func(_ context.Context, _ repository.FeedQuery) ([]models.FeedPost, error) { return nil, nil },
		isSquadMemberFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
}

// engagementRepoStub is a stub for repository.EngagementRepository.
type engagementRepoStub struct {
	toggleFn     func(context.Context, uint, uint) (*repository.UpvoteToggle, error)
	viewFn       func(context.Context, uint, uint) (bool, error)
	hasUpvotedFn func(context.Context, uint, uint) (bool, error)
}

func (s *engagementRepoStub) ToggleUpvote(ctx context.Context, userID, postID uint) (*repository.UpvoteToggle, error) {
	return s.toggleFn(ctx, userID, postID)
}
func (s *engagementRepoStub) RegisterView(ctx context.Context, userID, postID uint) (bool, error) {
	return s.viewFn(ctx, userID, postID)
}
func (s *engagementRepoStub) HasUpvoted(ctx context.Context, userID, postID uint) (bool, error) {
	return s.hasUpvotedFn(ctx, userID, postID)
}

// publisherStub records published events.
type publisherStub struct {
	mu     sync.Mutex
	events []notifications.EngagementEvent
	err    error
}

func (p *publisherStub) PublishEngagement(_ context.Context, ev notifications.EngagementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *publisherStub) published() []notifications.EngagementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.EngagementEvent(nil), p.events...)
}

// memStreakRepo is an in-memory repository.StreakRepository with the same
// conditional-write semantics as the database implementation.
type memStreakRepo struct {
	mu      sync.Mutex
	records map[uint]models.Streak
	gets    int
	writes  int
	// beforeWrite runs ahead of each conditional write, under no lock.
	beforeWrite func(r *memStreakRepo)
	getErr      error
}

func newMemStreakRepo() *memStreakRepo {
	return &memStreakRepo{records: map[uint]models.Streak{}}
}

func (r *memStreakRepo) put(s models.Streak) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s.UserID] = s
}

func (r *memStreakRepo) record(userID uint) models.Streak {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[userID]
}

func (r *memStreakRepo) Get(_ context.Context, userID uint) (*models.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return nil, r.getErr
	}
	s, ok := r.records[userID]
	if !ok {
		return nil, repository.ErrStreakNotFound
	}
	return &s, nil
}

func (r *memStreakRepo) Provision(_ context.Context, userID uint, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[userID]; ok {
		return false, nil
	}
	r.records[userID] = models.Streak{UserID: userID, StreakStart: now, StreakEnd: now, UpdatedAt: now, StreakLength: 1, LongestStreak: 1}
	return true, nil
}

func (r *memStreakRepo) Extend(_ context.Context, userID uint, observed repository.DayWindow, now time.Time) (*models.Streak, error) {
	return r.write(userID, observed, func(s *models.Streak) {
		s.StreakLength++
		if s.StreakLength > s.LongestStreak {
			s.LongestStreak = s.StreakLength
		}
		s.StreakEnd = now
		s.UpdatedAt = now
	})
}

func (r *memStreakRepo) Reset(_ context.Context, userID uint, observed repository.DayWindow, now time.Time) (*models.Streak, error) {
	return r.write(userID, observed, func(s *models.Streak) {
		if s.StreakLength > s.LongestStreak {
			s.LongestStreak = s.StreakLength
		}
		s.StreakLength = 1
		s.StreakStart = now
		s.StreakEnd = now
		s.UpdatedAt = now
	})
}

func (r *memStreakRepo) write(userID uint, observed repository.DayWindow, apply func(*models.Streak)) (*models.Streak, error) {
	if r.beforeWrite != nil {
		r.beforeWrite(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[userID]
	if !ok || s.UpdatedAt.Before(observed.Start) || !s.UpdatedAt.Before(observed.End) {
		return nil, repository.ErrStreakConflict
	}
	apply(&s)
	r.records[userID] = s
	r.writes++
	return &s, nil
}

// memSnapshotCache is an in-memory SnapshotCache with injectable failures.
type memSnapshotCache struct {
	mu          sync.Mutex
	entries     map[uint]models.StreakSnapshot
	getErr      error
	setErr      error
	invalidated int
}

func newMemSnapshotCache() *memSnapshotCache {
	return &memSnapshotCache{entries: map[uint]models.StreakSnapshot{}}
}

func (c *memSnapshotCache) Get(_ context.Context, userID uint) (models.StreakSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return models.StreakSnapshot{}, false, c.getErr
	}
	s, ok := c.entries[userID]
	return s, ok, nil
}

func (c *memSnapshotCache) Set(_ context.Context, userID uint, snap models.StreakSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[userID] = snap
	return nil
}

func (c *memSnapshotCache) Invalidate(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	delete(c.entries, userID)
	return nil
}

func (c *memSnapshotCache) entry(userID uint) (models.StreakSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[userID]
	return s, ok
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}
