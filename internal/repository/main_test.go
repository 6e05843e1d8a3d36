package repository

import (
	"context"
	"fmt"
	"testing"

	"squadfeed/internal/database"
	"squadfeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB returns an isolated in-memory database with the full schema.
// A single connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

type fixture struct {
	db    *gorm.DB
	posts PostRepository
	squad models.Squad
	users []models.User
}

func newFixture(t *testing.T, userCount int) *fixture {
	t.Helper()
	db := setupTestDB(t)
	ctx := context.Background()

	f := &fixture{db: db, posts: NewPostRepository(db)}
	users := NewUserRepository(db)
	for i := 0; i < userCount; i++ {
		u := models.User{Username: fmt.Sprintf("user%d", i+1)}
		require.NoError(t, users.Create(ctx, &u))
		f.users = append(f.users, u)
	}

	f.squad = models.Squad{Handle: "gophers", Name: "Gophers"}
	require.NoError(t, NewSquadRepository(db).Create(ctx, &f.squad, f.users[0].ID))
	return f
}

// addPost creates a post with explicit counter values.
func (f *fixture) addPost(t *testing.T, upvotes, views int64) models.Post {
	t.Helper()
	p := models.Post{
		Title:    "post",
		Slug:     "post",
		Content:  "content",
		AuthorID: f.users[0].ID,
		SquadID:  f.squad.ID,
		Tags:     []string{"golang"},
	}
	require.NoError(t, f.posts.Create(context.Background(), &p))
	require.NoError(t, f.db.Model(&models.PostUpvoteCounter{}).Where("post_id = ?", p.ID).Update("upvotes", upvotes).Error)
	require.NoError(t, f.db.Model(&models.PostViewCounter{}).Where("post_id = ?", p.ID).Update("views", views).Error)
	return p
}
