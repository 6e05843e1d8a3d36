// Command seed fills the database with demo users, squads, posts and engagement.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"squadfeed/internal/bootstrap"
	"squadfeed/internal/config"
	"squadfeed/internal/seed"
	"squadfeed/internal/server"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numSquads := flag.Int("squads", 5, "Number of squads to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	// The server wiring gives seeded data the same sanitizing, tagging and
	// cache behavior as API traffic.
	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}
	defer func() {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	s := seed.NewSeeder(db, srv.PostService(), srv.EngagementService(), srv.StreakService(), *randSeed)
	res, err := s.Seed(ctx, seed.Options{
		NumUsers:    *numUsers,
		NumSquads:   *numSquads,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		RandSeed:    *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d squads, %d posts, %d upvotes, %d views",
		res.Users, res.Squads, res.Posts, res.Upvotes, res.Views)
}
