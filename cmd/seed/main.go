// Command seed inserts demo guestbook entries into the configured store.
package main

import (
	"context"
	"flag"
	"log"

	"senbon/internal/config"
	"senbon/internal/middleware"
	"senbon/internal/repository"
	"senbon/internal/seed"
)

func main() {
	approved := flag.Int("approved", 25, "Number of approved entries")
	pending := flag.Int("pending", 5, "Number of pending entries")
	rejected := flag.Int("rejected", 2, "Number of rejected entries")
	days := flag.Int("days", 30, "Spread created_at over this many days")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Println("No database configured; seeding the in-memory store only checks the generator.")
	}

	repo, err := repository.NewFromConfig(cfg, middleware.Logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	res, err := seed.NewSeeder(repo, seed.SeedOptions{
		Approved: *approved,
		Pending:  *pending,
		Rejected: *rejected,
		MaxDays:  *days,
	}).Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed after %d entries: %v", res.Total(), err)
	}

	log.Printf("Seeded %d entries (%d approved, %d pending, %d rejected) into %s",
		res.Total(), res.Approved, res.Pending, res.Rejected, repo.Backend())
}
