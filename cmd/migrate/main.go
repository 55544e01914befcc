// Command migrate applies the guestbook schema to the configured database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"senbon/internal/config"
	"senbon/internal/database"
	"senbon/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	timeout := flag.Duration("timeout", 30*time.Second, "overall time limit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("no database connection configured; set DATABASE_URL or POSTGRES_URL")
	}

	db, err := database.Connect(cfg, middleware.Logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := database.NewSchemaManager(db, middleware.Logger).Apply(ctx); err != nil {
		return fmt.Errorf("schema apply failed: %w", err)
	}
	log.Printf("guestbook schema applied (source %s)", cfg.DatabaseURLKey)
	return nil
}
