package database

import "squadfeed/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// ordered so referenced tables are created first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Squad{},
		&models.SquadMember{},
		&models.Post{},
		&models.PostUpvoteCounter{},
		&models.PostViewCounter{},
		&models.UserUpvote{},
		&models.UserView{},
		&models.Streak{},
	}
}
