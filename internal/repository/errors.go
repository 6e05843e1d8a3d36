package repository

import "errors"

var (
	// ErrPostNotFound is returned when a post (or its counter rows) does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrStreakNotFound is returned when a user has no streak record.
	ErrStreakNotFound = errors.New("streak not found")
	// ErrStreakConflict is returned when a conditional streak write matched no
	// row because a concurrent touch already moved the record.
	ErrStreakConflict = errors.New("streak changed concurrently")
	// ErrToggleContention is returned when an upvote toggle kept losing races
	// to concurrent toggles on the same (user, post) pair.
	ErrToggleContention = errors.New("upvote toggle contention")
)
