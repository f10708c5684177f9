// Command seed fills a development database with fixtures and generated data.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"tutorx/internal/config"
	"tutorx/internal/database"
	"tutorx/internal/middleware"
	"tutorx/internal/seed"
)

func main() {
	fixturesOnly := flag.Bool("fixtures-only", false, "Load fixtures.yml and skip generated data")
	clean := flag.Bool("clean", false, "Delete all domain rows before seeding")
	learners := flag.Int("learners", 40, "Generated learners")
	tutors := flag.Int("tutors", 15, "Generated tutors")
	posts := flag.Int("posts", 3, "Posts per generated tutor")
	comments := flag.Int("comments", 2, "Comments per post")
	ratings := flag.Int("ratings", 5, "Ratings per generated tutor")
	follows := flag.Int("follows", 4, "Follows per user")
	fakerSeed := flag.Int64("seed", 0, "Faker seed (0 = random)")
	flag.Parse()

	log := middleware.Logger
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsProduction() {
		log.Error("refusing to seed a production database")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ctx := context.Background()

	if *clean {
		if err := seed.Clean(ctx, db); err != nil {
			log.Error("cleanup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("database cleaned")
	}

	fx, err := seed.DefaultFixtures()
	if err != nil {
		log.Error("invalid fixtures", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sum, err := seed.ApplyFixtures(ctx, db, fx)
	if err != nil {
		log.Error("fixture seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("fixtures loaded", slog.String("summary", sum.String()))

	if !*fixturesOnly {
		if _, err := seed.Run(ctx, db, seed.Options{
			Learners:        *learners,
			Tutors:          *tutors,
			PostsPerTutor:   *posts,
			CommentsPerPost: *comments,
			RatingsPerTutor: *ratings,
			FollowsPerUser:  *follows,
			Seed:            *fakerSeed,
		}, log); err != nil {
			log.Error("generated seeding failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	log.Info("seeding done", slog.String("password", seed.DefaultPassword))
}
