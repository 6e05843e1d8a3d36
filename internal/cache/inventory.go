package cache

import (
	"fmt"
	"time"
)

const (
	StreakKeyPrefix = "streak:%d"
)

const (
	// StreakTTL bounds how long a snapshot may outlive its durable record's last write.
	StreakTTL = 24 * time.Hour
)

func StreakKey(userID uint) string {
	return fmt.Sprintf(StreakKeyPrefix, userID)
}
