package repository

import (
	"log/slog"

	"senbon/internal/config"
	"senbon/internal/database"
)

// NewFromConfig picks the store once per process: the persistent store when a
// connection string was resolved, the in-memory store otherwise. No query is
// issued here; the schema is ensured lazily on first use.
func NewFromConfig(cfg *config.Config, log *slog.Logger) (GuestbookRepository, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("No database connection configured; using the in-memory guestbook store")
		return NewMemoryGuestbookRepository(), nil
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	schema := database.NewSchemaManager(db, log)
	return NewGormGuestbookRepository(db, schema, cfg.DBQueryTimeout()), nil
}
