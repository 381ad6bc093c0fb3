// Package main runs the bootstrap seeding routine once and exits.
package main

import (
	"context"
	"fmt"
	"os"

	"tabula/internal/bootstrap"
	"tabula/internal/core/convention"
	"tabula/internal/infrastructure/storage/postgres"
	"tabula/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := bootstrap.Run(ctx, pool, convention.Default()); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}

	log.Info("seeding completed successfully")
}
