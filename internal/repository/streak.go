package repository

import (
	"context"
	"errors"
	"time"

	"squadfeed/internal/models"
	"squadfeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DayWindow is a half-open UTC interval [Start, End) covering one calendar day.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// StreakRepository persists streak records. Extend and Reset are conditional
// writes: they apply only while the stored updated_at still falls inside the
// day window the caller observed, and return ErrStreakConflict otherwise.
type StreakRepository interface {
	Get(ctx context.Context, userID uint) (*models.Streak, error)
	Provision(ctx context.Context, userID uint, now time.Time) (bool, error)
	Extend(ctx context.Context, userID uint, observed DayWindow, now time.Time) (*models.Streak, error)
	Reset(ctx context.Context, userID uint, observed DayWindow, now time.Time) (*models.Streak, error)
}

type streakRepository struct {
	db *gorm.DB
}

// NewStreakRepository creates a new streak repository
func NewStreakRepository(db *gorm.DB) StreakRepository {
	return &streakRepository{db: db}
}

func (r *streakRepository) Get(ctx context.Context, userID uint) (*models.Streak, error) {
	var s models.Streak
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStreakNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Provision creates a length-1 streak starting now. It reports false when the
// user already has a record.
func (r *streakRepository) Provision(ctx context.Context, userID uint, now time.Time) (bool, error) {
	now = dbTime(now)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Streak{
			UserID:        userID,
			StreakStart:   now,
			StreakEnd:     now,
			UpdatedAt:     now,
			StreakLength:  1,
			LongestStreak: 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Extend adds one day to the streak and raises longest_streak if exceeded.
func (r *streakRepository) Extend(ctx context.Context, userID uint, observed DayWindow, now time.Time) (*models.Streak, error) {
	now = dbTime(now)
	return r.conditionalUpdate(ctx, userID, observed, map[string]interface{}{
		"streak_length":  gorm.Expr("streak_length + 1"),
		"longest_streak": gorm.Expr("CASE WHEN longest_streak < streak_length + 1 THEN streak_length + 1 ELSE longest_streak END"),
		"streak_end":     now,
		"updated_at":     now,
	})
}

// Reset starts a new streak of length one, preserving the longest seen.
func (r *streakRepository) Reset(ctx context.Context, userID uint, observed DayWindow, now time.Time) (*models.Streak, error) {
	now = dbTime(now)
	return r.conditionalUpdate(ctx, userID, observed, map[string]interface{}{
		"streak_length":  1,
		"longest_streak": gorm.Expr("CASE WHEN longest_streak < streak_length THEN streak_length ELSE longest_streak END"),
		"streak_start":   now,
		"streak_end":     now,
		"updated_at":     now,
	})
}

func (r *streakRepository) conditionalUpdate(ctx context.Context, userID uint, observed DayWindow, set map[string]interface{}) (*models.Streak, error) {
	defer observability.TrackQuery("conditional_update", "streaks")()

	var out models.Streak
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Streak{}).
			Where("user_id = ? AND updated_at >= ? AND updated_at < ?",
				userID, dbTime(observed.Start), dbTime(observed.End)).
			UpdateColumns(set)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStreakConflict
		}
		return tx.Where("user_id = ?", userID).Take(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// dbTime normalizes to UTC at the storage precision (microseconds) so values
// read back compare equal to what was written.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
