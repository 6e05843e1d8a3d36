package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"squadfeed/internal/cache"
	"squadfeed/internal/featureflags"
	"squadfeed/internal/middleware"
	"squadfeed/internal/models"
	"squadfeed/internal/notifications"
	"squadfeed/internal/observability"
	"squadfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// maxTouchAttempts bounds re-evaluation after losing a conditional write.
const maxTouchAttempts = 3

// StreakTransition is the effect a touch had on the streak.
type StreakTransition string

const (
	StreakUnchanged StreakTransition = "unchanged"
	StreakExtended  StreakTransition = "extended"
	StreakReset     StreakTransition = "reset"
)

// StreakResult is the streak state after a touch.
type StreakResult struct {
	Transition StreakTransition
	Streak     models.StreakSnapshot
}

// Changed reports whether the touch wrote a new record.
func (r *StreakResult) Changed() bool { return r.Transition != StreakUnchanged }

// SnapshotCache is the streak read-through cache. Errors are never fatal to a touch.
type SnapshotCache interface {
	Get(ctx context.Context, userID uint) (models.StreakSnapshot, bool, error)
	Set(ctx context.Context, userID uint, snap models.StreakSnapshot) error
	Invalidate(ctx context.Context, userID uint) error
}

type StreakService struct {
	repo      repository.StreakRepository
	cache     SnapshotCache
	loc       *time.Location
	now       func() time.Time
	loads     singleflight.Group
	publisher EventPublisher
	flags     *featureflags.Manager
}

// StreakOption customizes a StreakService.
type StreakOption func(*StreakService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StreakOption {
	return func(s *StreakService) { s.now = now }
}

// WithStreakEvents publishes a streak_updated event after each change.
func WithStreakEvents(p EventPublisher, flags *featureflags.Manager) StreakOption {
	return func(s *StreakService) {
		s.publisher = p
		s.flags = flags
	}
}

// NewStreakService builds the tracker. Calendar days are evaluated in loc
// (UTC when nil); snapshots may be nil to run without a cache.
func NewStreakService(repo repository.StreakRepository, snapshots SnapshotCache, loc *time.Location, opts ...StreakOption) *StreakService {
	if loc == nil {
		loc = time.UTC
	}
	s := &StreakService{repo: repo, cache: snapshots, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Touch records activity for userID now and advances the streak when the
// calendar day changed since the last recorded activity.
func (s *StreakService) Touch(ctx context.Context, userID uint) (res *StreakResult, err error) {
	if userID == 0 {
		return nil, models.NewMissingParameterError("userId")
	}

	ctx, span := observability.StartSpan(ctx, "streak", "Touch",
		attribute.Int64("user.id", int64(userID)))
	defer span.End(&err)

	now := s.now()
	for attempt := 0; attempt < maxTouchAttempts; attempt++ {
		snap, err := s.snapshot(ctx, userID)
		if err != nil {
			return nil, storageError(err, "Streak", userID)
		}

		transition := classify(snap.UpdatedAt, now, s.loc)
		if transition == StreakUnchanged {
			observability.StreakTransitions.WithLabelValues(string(transition)).Inc()
			return &StreakResult{Transition: transition, Streak: snap}, nil
		}

		observed := dayOf(snap.UpdatedAt, s.loc)
		var rec *models.Streak
		if transition == StreakExtended {
			rec, err = s.repo.Extend(ctx, userID, observed, now)
		} else {
			rec, err = s.repo.Reset(ctx, userID, observed, now)
		}
		if errors.Is(err, repository.ErrStreakConflict) {
			observability.StreakConflicts.Inc()
			middleware.Logger.InfoContext(ctx, "streak write lost to a concurrent touch, re-reading",
				slog.Uint64("user_id", uint64(userID)),
				slog.Int("attempt", attempt+1))
			s.dropCache(ctx, userID)
			continue
		}
		if err != nil {
			return nil, storageError(err, "Streak", userID)
		}

		res = &StreakResult{Transition: transition, Streak: rec.Snapshot()}
		s.storeCache(ctx, userID, res.Streak)
		observability.StreakTransitions.WithLabelValues(string(transition)).Inc()
		span.AddAttributes(attribute.String("streak.transition", string(transition)))
		s.publish(ctx, userID, res.Streak)
		return res, nil
	}

	return nil, models.NewInternalError(fmt.Errorf("streak for user %d after %d attempts: %w",
		userID, maxTouchAttempts, repository.ErrStreakConflict))
}

// Get returns the durable streak record.
func (s *StreakService) Get(ctx context.Context, userID uint) (*models.Streak, error) {
	if userID == 0 {
		return nil, models.NewMissingParameterError("userId")
	}
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, storageError(err, "Streak", userID)
	}
	return rec, nil
}

// Provision creates the initial streak for a new account. It reports false
// when the user already had one.
func (s *StreakService) Provision(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, models.NewMissingParameterError("userId")
	}
	created, err := s.repo.Provision(ctx, userID, s.now())
	if err != nil {
		return false, storageError(err, "Streak", userID)
	}
	if created {
		s.dropCache(ctx, userID)
	}
	return created, nil
}

// snapshot reads through the cache. Concurrent misses for one user share a
// single durable read.
func (s *StreakService) snapshot(ctx context.Context, userID uint) (models.StreakSnapshot, error) {
	if s.cache != nil {
		snap, found, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			s.cacheDegraded(ctx, "get", userID, err)
		case found:
			observability.CacheLookups.WithLabelValues("hit").Inc()
			return snap, nil
		default:
			observability.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	v, err, _ := s.loads.Do(strconv.FormatUint(uint64(userID), 10), func() (interface{}, error) {
		rec, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		snap := rec.Snapshot()
		s.storeCache(ctx, userID, snap)
		return snap, nil
	})
	if err != nil {
		return models.StreakSnapshot{}, err
	}
	return v.(models.StreakSnapshot), nil
}

func (s *StreakService) storeCache(ctx context.Context, userID uint, snap models.StreakSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, snap); err != nil {
		s.cacheDegraded(ctx, "set", userID, err)
	}
}

func (s *StreakService) dropCache(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.cacheDegraded(ctx, "invalidate", userID, err)
	}
}

func (s *StreakService) cacheDegraded(ctx context.Context, op string, userID uint, err error) {
	result := "error"
	if cache.IsUnavailable(err) {
		result = "open"
	}
	if op == "get" {
		observability.CacheLookups.WithLabelValues(result).Inc()
	}
	middleware.Logger.WarnContext(ctx, "streak cache unavailable, using database",
		slog.String("op", op),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("error", err.Error()))
}

func (s *StreakService) publish(ctx context.Context, userID uint, snap models.StreakSnapshot) {
	if s.publisher == nil || !s.flags.Enabled(featureflags.EngagementEvents, userID) {
		return
	}
	ev := notifications.EngagementEvent{
		Type:       notifications.EventStreakUpdated,
		ActorID:    userID,
		Streak:     snap.StreakLength,
		OccurredAt: snap.UpdatedAt,
	}
	if err := s.publisher.PublishEngagement(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish streak event",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}

// classify compares the calendar dates of last and now in loc. A last
// activity dated after now (clock skew) counts as today.
func classify(last, now time.Time, loc *time.Location) StreakTransition {
	switch days := civilDays(last, now, loc); {
	case days <= 0:
		return StreakUnchanged
	case days == 1:
		return StreakExtended
	default:
		return StreakReset
	}
}

// civilDays is the number of calendar days from a to b in loc.
func civilDays(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// dayOf is the [midnight, next midnight) window in loc containing t.
func dayOf(t time.Time, loc *time.Location) repository.DayWindow {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return repository.DayWindow{Start: start, End: time.Date(y, m, d+1, 0, 0, 0, 0, loc)}
}
