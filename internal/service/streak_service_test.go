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

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) StreakOption {
	return WithClock(func() time.Time { return t })
}

func seeded(userID uint, length, longest int, updated time.Time) models.Streak {
	return models.Streak{
		UserID:        userID,
		StreakStart:   updated.AddDate(0, 0, -(length - 1)),
		StreakEnd:     updated,
		UpdatedAt:     updated,
		StreakLength:  length,
		LongestStreak: longest,
	}
}

func TestStreakService_Touch_Transitions(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		longest     int
		last        time.Time
		now         time.Time
		want        StreakTransition
		wantLength  int
		wantLongest int
	}{
		{"same day", 4, 10, at(2024, 1, 1, 8), at(2024, 1, 1, 23), StreakUnchanged, 4, 10},
		{"next day", 4, 10, at(2024, 1, 1, 23), at(2024, 1, 2, 0), StreakExtended, 5, 10},
		{"next day beats longest", 10, 10, at(2024, 1, 1, 9), at(2024, 1, 2, 9), StreakExtended, 11, 11},
		{"gap resets", 4, 10, at(2024, 1, 1, 9), at(2024, 1, 3, 9), StreakReset, 1, 10},
		{"gap keeps current run as longest", 12, 10, at(2024, 1, 1, 9), at(2024, 2, 1, 9), StreakReset, 1, 12},
		{"month boundary", 2, 2, at(2024, 2, 29, 12), at(2024, 3, 1, 1), StreakExtended, 3, 3},
		{"last update in the future", 3, 3, at(2024, 1, 5, 9), at(2024, 1, 4, 9), StreakUnchanged, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemStreakRepo()
			repo.put(seeded(1, tt.length, tt.longest, tt.last))
			svc := NewStreakService(repo, newMemSnapshotCache(), time.UTC, fixedClock(tt.now))

			res, err := svc.Touch(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Transition)
			assert.Equal(t, tt.wantLength, res.Streak.StreakLength)
			assert.Equal(t, tt.wantLongest, res.Streak.LongestStreak)
			assert.Equal(t, tt.want != StreakUnchanged, res.Changed())

			stored := repo.record(1)
			assert.Equal(t, tt.wantLength, stored.StreakLength)
			if tt.want == StreakUnchanged {
				assert.Zero(t, repo.writes)
				assert.True(t, tt.last.Equal(stored.UpdatedAt))
			} else {
				assert.True(t, tt.now.Equal(stored.UpdatedAt))
			}
		})
	}
}

func TestStreakService_Touch_ResetExample(t *testing.T) {
	repo := newMemStreakRepo()
	repo.put(seeded(1, 4, 10, at(2024, 1, 1, 12)))
	now := at(2024, 1, 3, 12)
	svc := NewStreakService(repo, nil, nil, fixedClock(now))

	res, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StreakReset, res.Transition)
	assert.Equal(t, models.StreakSnapshot{UpdatedAt: now, StreakLength: 1, LongestStreak: 10}, res.Streak)

	stored := repo.record(1)
	assert.True(t, now.Equal(stored.StreakStart))
	assert.True(t, now.Equal(stored.StreakEnd))
}

func TestStreakService_Touch_CalendarDaysInConfiguredZone(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	// 23:30 and 00:30 local are different days even though both are Jan 2 in UTC.
	last := time.Date(2024, 1, 1, 23, 30, 0, 0, est)
	now := time.Date(2024, 1, 2, 0, 30, 0, 0, est)

	repo := newMemStreakRepo()
	repo.put(seeded(1, 1, 1, last.UTC()))
	res, err := NewStreakService(repo, nil, est, fixedClock(now)).Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StreakExtended, res.Transition)

	repo = newMemStreakRepo()
	repo.put(seeded(1, 1, 1, last.UTC()))
	res, err = NewStreakService(repo, nil, time.UTC, fixedClock(now)).Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StreakUnchanged, res.Transition)
}

func TestStreakService_Touch_ReadThroughCache(t *testing.T) {
	repo := newMemStreakRepo()
	repo.put(seeded(1, 2, 2, at(2024, 1, 1, 9)))
	snapshots := newMemSnapshotCache()
	svc := NewStreakService(repo, snapshots, time.UTC, fixedClock(at(2024, 1, 1, 10)))

	_, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets, "miss loads from the database")
	cached, ok := snapshots.entry(1)
	require.True(t, ok, "miss populates the cache")
	assert.Equal(t, 2, cached.StreakLength)

	_, err = svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets, "hit skips the database")
}

func TestStreakService_Touch_WriteThrough(t *testing.T) {
	repo := newMemStreakRepo()
	repo.put(seeded(1, 2, 2, at(2024, 1, 1, 9)))
	snapshots := newMemSnapshotCache()
	now := at(2024, 1, 2, 9)
	svc := NewStreakService(repo, snapshots, time.UTC, fixedClock(now))

	_, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)

	cached, ok := snapshots.entry(1)
	require.True(t, ok)
	assert.Equal(t, models.StreakSnapshot{UpdatedAt: now, StreakLength: 3, LongestStreak: 3}, cached)
}

func TestStreakService_Touch_CacheFailuresAreBypassed(t *testing.T) {
	repo := newMemStreakRepo()
	repo.put(seeded(1, 2, 2, at(2024, 1, 1, 9)))
	snapshots := newMemSnapshotCache()
	snapshots.getErr = errors.New("dial tcp: connection refused")
	snapshots.setErr = errors.New("dial tcp: connection refused")
	svc := NewStreakService(repo, snapshots, time.UTC, fixedClock(at(2024, 1, 2, 9)))

	res, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StreakExtended, res.Transition)
	assert.Equal(t, 3, repo.record(1).StreakLength)
}

func TestStreakService_Touch_StaleCacheDoesNotDoubleCount(t *testing.T) {
	repo := newMemStreakRepo()
	// another process already extended the streak today and its cache write was lost
	repo.put(seeded(1, 6, 6, at(2024, 1, 2, 7)))
	snapshots := newMemSnapshotCache()
	require.NoError(t, snapshots.Set(context.Background(), 1, models.StreakSnapshot{
		UpdatedAt: at(2024, 1, 1, 9), StreakLength: 5, LongestStreak: 5,
	}))
	svc := NewStreakService(repo, snapshots, time.UTC, fixedClock(at(2024, 1, 2, 9)))

	res, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StreakUnchanged, res.Transition)
	assert.Equal(t, 6, res.Streak.StreakLength)
	assert.Equal(t, 6, repo.record(1).StreakLength)
	assert.Equal(t, 1, snapshots.invalidated)
}

func TestStreakService_Touch_LosesRaceThenReevaluates(t *testing.T) {
	repo := newMemStreakRepo()
	repo.put(seeded(1, 3, 3, at(2024, 1, 1, 9)))
	now := at(2024, 1, 2, 9)
	once := sync.Once{}
	repo.beforeWrite = func(r *memStreakRepo) {
		once.Do(func() {
			// a concurrent touch commits first
			r.put(seeded(1, 4, 4, now.Add(-time.Minute)))
		})
	}
	svc := NewStreakService(repo, newMemSnapshotCache(), time.UTC, fixedClock(now))

	res, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StreakUnchanged, res.Transition)
	assert.Equal(t, 4, repo.record(1).StreakLength)
}

func TestStreakService_Touch_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemStreakRepo()
	day := at(2024, 1, 1, 9)
	repo.put(seeded(1, 3, 3, day))
	repo.beforeWrite = func(r *memStreakRepo) {
		// every write races a touch that moves the record to a fresh past day
		day = day.AddDate(0, 0, -2)
		r.put(seeded(1, 3, 3, day))
	}
	svc := NewStreakService(repo, nil, time.UTC, fixedClock(at(2024, 1, 5, 9)))

	_, err := svc.Touch(context.Background(), 1)
	appErr := assertAppError(t, err, models.CodeInternal)
	assert.ErrorIs(t, appErr, repository.ErrStreakConflict)
}

func TestStreakService_Touch_Errors(t *testing.T) {
	svc := NewStreakService(newMemStreakRepo(), nil, time.UTC)

	_, err := svc.Touch(context.Background(), 0)
	assertAppError(t, err, models.CodeValidation)

	_, err = svc.Touch(context.Background(), 42)
	assertAppError(t, err, models.CodeNotFound)

	repo := newMemStreakRepo()
	repo.getErr = errors.New("too many connections")
	_, err = NewStreakService(repo, nil, time.UTC).Touch(context.Background(), 42)
	assertAppError(t, err, models.CodeInternal)
}

func TestStreakService_Touch_PublishesChanges(t *testing.T) {
	repo := newMemStreakRepo()
	repo.put(seeded(1, 1, 1, at(2024, 1, 1, 9)))
	pub := &publisherStub{}
	now := at(2024, 1, 2, 9)
	svc := NewStreakService(repo, nil, time.UTC, fixedClock(now), WithStreakEvents(pub, allFlags()))

	_, err := svc.Touch(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.Touch(context.Background(), 1)
	require.NoError(t, err)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, notifications.EventStreakUpdated, events[0].Type)
	assert.Equal(t, 2, events[0].Streak)
}

func TestStreakService_GetAndProvision(t *testing.T) {
	repo := newMemStreakRepo()
	snapshots := newMemSnapshotCache()
	now := at(2024, 6, 1, 9)
	svc := NewStreakService(repo, snapshots, time.UTC, fixedClock(now))
	ctx := context.Background()

	_, err := svc.Get(ctx, 3)
	assertAppError(t, err, models.CodeNotFound)

	created, err := svc.Provision(ctx, 3)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Provision(ctx, 3)
	require.NoError(t, err)
	assert.False(t, created)

	rec, err := svc.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakLength)
	assert.True(t, now.Equal(rec.UpdatedAt))

	_, err = svc.Provision(ctx, 0)
	assertAppError(t, err, models.CodeValidation)
}

func TestCivilDays(t *testing.T) {
	assert.Equal(t, 0, civilDays(at(2024, 1, 1, 0), at(2024, 1, 1, 23), time.UTC))
	assert.Equal(t, 1, civilDays(at(2024, 12, 31, 23), at(2025, 1, 1, 0), time.UTC))
	assert.Equal(t, 366, civilDays(at(2024, 1, 1, 0), at(2025, 1, 1, 0), time.UTC))
	assert.Equal(t, -1, civilDays(at(2024, 1, 2, 0), at(2024, 1, 1, 0), time.UTC))

	w := dayOf(at(2024, 3, 10, 15), time.UTC)
	assert.Equal(t, at(2024, 3, 10, 0), w.Start)
	assert.Equal(t, at(2024, 3, 11, 0), w.End)
}
