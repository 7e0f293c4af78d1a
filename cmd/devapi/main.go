// Package main runs the in-memory development backend.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chub/internal/config"
	"chub/internal/devapi"
	"chub/internal/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	port := flag.String("port", cfg.DevAPIPort, "listen port")
	users := flag.Int("seed-users", cfg.DevAPISeedUsers, "number of fake users to create")
	posts := flag.Int("seed-posts", 3, "posts per seeded user")
	comments := flag.Int("seed-comments", 2, "comments per seeded post")
	prayers := flag.Int("seed-prayers", 10, "seeded prayer requests")
	flag.Parse()

	logger := observability.ConfigureGlobal(os.Stderr, observability.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	srv := devapi.New(devapi.Options{JWTSecret: cfg.DevAPIJWTSecret, Logger: logger})
	if *users > 0 {
		sum, err := srv.Seed(devapi.SeedOptions{
			Users:           *users,
			PostsPerUser:    *posts,
			CommentsPerPost: *comments,
			Prayers:         *prayers,
		})
		if err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		for _, u := range sum.Users {
			logger.Info("seeded user", slog.String("email", u.Email), slog.String("password", devapi.SeedPassword))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Listen(ctx, ":"+*port); err != nil {
		log.Fatalf("devapi error: %v", err)
	}
}
