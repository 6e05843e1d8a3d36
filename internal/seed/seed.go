// Package seed populates a database with demo users, squads, posts and
// engagement. Intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"squadfeed/internal/middleware"
	"squadfeed/internal/models"
	"squadfeed/internal/repository"
	"squadfeed/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumSquads   int
	NumPosts    int
	ShouldClean bool
	// RandSeed makes runs reproducible; 0 is a valid seed.
	RandSeed int64
}

// Publisher creates posts through the same path as the API.
type Publisher interface {
	CreatePost(ctx context.Context, in service.CreatePostInput) (*models.FeedPost, error)
}

// Engager records upvotes and views.
type Engager interface {
	ToggleUpvote(ctx context.Context, actorID, postID uint) (*service.ToggleResult, error)
	RegisterView(ctx context.Context, actorID, postID uint) (service.ViewOutcome, error)
}

// StreakProvisioner creates the initial streak for a new account.
type StreakProvisioner interface {
	Provision(ctx context.Context, userID uint) (bool, error)
}

// Result summarizes a seeding run.
type Result struct {
	Users   int
	Squads  int
	Posts   int
	Upvotes int
	Views   int
}

// Seeder drives the services to create demo data.
type Seeder struct {
	db      *gorm.DB
	squads  repository.SquadRepository
	factory *Factory
	posts   Publisher
	engage  Engager
	streaks StreakProvisioner
}

// NewSeeder wires a seeder against db and the given services.
func NewSeeder(db *gorm.DB, posts Publisher, engage Engager, streaks StreakProvisioner, randSeed int64) *Seeder {
	squads := repository.NewSquadRepository(db)
	return &Seeder{
		db:      db,
		squads:  squads,
		factory: NewFactory(repository.NewUserRepository(db), squads, randSeed),
		posts:   posts,
		engage:  engage,
		streaks: streaks,
	}
}

// Seed populates the database according to opts.
func (s *Seeder) Seed(ctx context.Context, opts Options) (*Result, error) {
	if opts.NumUsers < 1 || opts.NumSquads < 1 {
		return nil, fmt.Errorf("need at least one user and one squad")
	}
	middleware.Logger.InfoContext(ctx, "seeding database",
		slog.Int("users", opts.NumUsers), slog.Int("squads", opts.NumSquads), slog.Int("posts", opts.NumPosts))

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	res := &Result{}
	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		if _, err := s.streaks.Provision(ctx, u.ID); err != nil {
			return res, fmt.Errorf("provision streak for user %d: %w", u.ID, err)
		}
		users = append(users, u)
	}
	res.Users = len(users)

	members := make(map[uint][]*models.User, opts.NumSquads)
	squads := make([]*models.Squad, 0, opts.NumSquads)
	for i := 0; i < opts.NumSquads; i++ {
		owner := users[i%len(users)]
		sq, err := s.factory.CreateSquad(ctx, owner)
		if err != nil {
			return res, fmt.Errorf("create squad: %w", err)
		}
		members[sq.ID] = []*models.User{owner}
		for _, u := range users {
			if u.ID == owner.ID || s.factory.Intn(2) == 0 {
				continue
			}
			if err := s.squads.AddMember(ctx, sq.ID, u.ID, models.SquadRoleMember); err != nil {
				return res, fmt.Errorf("add member: %w", err)
			}
			members[sq.ID] = append(members[sq.ID], u)
		}
		squads = append(squads, sq)
	}
	res.Squads = len(squads)

	for i := 0; i < opts.NumPosts; i++ {
		sq := squads[s.factory.Intn(len(squads))]
		crew := members[sq.ID]
		author := crew[s.factory.Intn(len(crew))]
		title, content := s.factory.PostText()

		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			UserID: author.ID, SquadID: sq.ID, Title: title, Content: content,
		})
		if err != nil {
			return res, fmt.Errorf("create post: %w", err)
		}
		res.Posts++

		for _, u := range users {
			switch s.factory.Intn(4) {
			case 0:
				continue
			case 1:
				if _, err := s.engage.ToggleUpvote(ctx, u.ID, post.ID); err != nil {
					return res, fmt.Errorf("upvote post %d: %w", post.ID, err)
				}
				res.Upvotes++
			}
			if _, err := s.engage.RegisterView(ctx, u.ID, post.ID); err != nil {
				return res, fmt.Errorf("view post %d: %w", post.ID, err)
			}
			res.Views++
		}
	}

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("posts", res.Posts), slog.Int("upvotes", res.Upvotes), slog.Int("views", res.Views))
	return res, nil
}

// ClearAll removes all seeded rows, dependents first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{
		&models.UserUpvote{},
		&models.UserView{},
		&models.PostUpvoteCounter{},
		&models.PostViewCounter{},
		&models.Post{},
		&models.SquadMember{},
		&models.Squad{},
		&models.Streak{},
		&models.User{},
	} {
		if err := tx.Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}
