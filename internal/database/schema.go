package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"senbon/internal/models"

	"gorm.io/gorm"
)

// TableName is the guestbook table.
const TableName = "guestbook"

// schemaStatements are idempotent; each is safe to re-run against any
// earlier version of the table.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS guestbook (
		id TEXT PRIMARY KEY,
		name TEXT,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		edited BOOLEAN NOT NULL DEFAULT FALSE,
		approved BOOLEAN NOT NULL DEFAULT TRUE,
		ip_hash TEXT,
		rejected BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`ALTER TABLE guestbook ADD COLUMN IF NOT EXISTS approved BOOLEAN NOT NULL DEFAULT TRUE`,
	`ALTER TABLE guestbook ADD COLUMN IF NOT EXISTS ip_hash TEXT`,
	`ALTER TABLE guestbook ADD COLUMN IF NOT EXISTS rejected BOOLEAN NOT NULL DEFAULT FALSE`,
	`CREATE INDEX IF NOT EXISTS guestbook_created_at_idx ON guestbook (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS guestbook_ip_hash_idx ON guestbook (ip_hash)`,
}

// SchemaManager ensures the guestbook table and its indexes exist.
//
// Ensure is called lazily before store operations. Failures are logged and
// swallowed so the service keeps running against whatever schema exists.
// Once a pass completes without a connectivity error it is not repeated.
type SchemaManager struct {
	db  *gorm.DB
	log *slog.Logger

	mu   sync.Mutex
	done bool
}

// NewSchemaManager returns a SchemaManager for db.
func NewSchemaManager(db *gorm.DB, log *slog.Logger) *SchemaManager {
	return &SchemaManager{db: db, log: log}
}

// Ensure runs the schema statements unless a previous pass settled them.
func (m *SchemaManager) Ensure(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return
	}

	err := m.apply(ctx)
	if err == nil {
		m.done = true
		return
	}

	m.log.WarnContext(ctx, "guestbook schema ensure failed; continuing with existing schema",
		slog.String("error", err.Error()))

	// Privilege or dialect errors will not go away on retry; connectivity
	// errors might.
	var se *models.StoreError
	if !errors.As(err, &se) || !se.Retryable {
		m.done = true
	}
}

// Apply runs every statement and returns the joined failures. Used by the
// migrate command, where the caller wants to see what went wrong.
func (m *SchemaManager) Apply(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.apply(ctx)
	if err == nil {
		m.done = true
	}
	return err
}

func (m *SchemaManager) apply(ctx context.Context) error {
	var errs []error
	for _, stmt := range schemaStatements {
		if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			se := models.NewStoreError("ensure_schema", err)
			if se.Retryable {
				return se
			}
			errs = append(errs, fmt.Errorf("%s: %w", firstLine(stmt), err))
		}
	}
	return errors.Join(errs...)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '(' {
			return s[:i]
		}
	}
	return s
}
