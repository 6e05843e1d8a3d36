package models

import "time"

// Streak is the durable daily-activity record for one user.
// StreakLength >= 1 and LongestStreak >= StreakLength.
type Streak struct {
	UserID        uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	StreakStart   time.Time `gorm:"not null" json:"streak_start"`
	StreakEnd     time.Time `gorm:"not null" json:"streak_end"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	StreakLength  int       `gorm:"not null;default:1" json:"streak_length"`
	LongestStreak int       `gorm:"not null;default:1" json:"longest_streak"`
}

// TableName specifies the table name for GORM.
func (Streak) TableName() string {
	return "streaks"
}

// StreakSnapshot is the cached projection of a Streak.
type StreakSnapshot struct {
	UpdatedAt     time.Time `json:"updated_at"`
	StreakLength  int       `json:"streak_length"`
	LongestStreak int       `json:"longest_streak"`
}

// Snapshot projects the record onto its cached form.
func (s *Streak) Snapshot() StreakSnapshot {
	return StreakSnapshot{
		UpdatedAt:     s.UpdatedAt,
		StreakLength:  s.StreakLength,
		LongestStreak: s.LongestStreak,
	}
}
