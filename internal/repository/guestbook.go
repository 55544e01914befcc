// Package repository provides the guestbook entry store: a GORM-backed
// persistent implementation and an in-process fallback with the same contract.
package repository

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"senbon/internal/models"

	"github.com/google/uuid"
)

// Page bounds applied by every store implementation.
const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

var errDuplicateID = errors.New("duplicate entry id")

// GuestbookRepository defines the storage contract for guestbook entries.
// Both implementations must pass the same conformance suite.
type GuestbookRepository interface {
	// Backend names the implementation ("memory", "postgres", ...).
	Backend() string
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Insert stores a new entry, assigning ID and CreatedAt when empty.
	Insert(ctx context.Context, entry *models.GuestbookEntry) error
	// GetByID returns a NotFound AppError when id does not exist.
	GetByID(ctx context.Context, id string) (*models.GuestbookEntry, error)
	// ListByStatus returns entries newest first, ties broken by id descending.
	ListByStatus(ctx context.Context, status models.EntryStatus, limit, offset int) ([]*models.GuestbookEntry, error)
	// LatestByFingerprint returns the newest entry for fingerprint, or nil.
	LatestByFingerprint(ctx context.Context, fingerprint string) (*models.GuestbookEntry, error)
	// UpdateModeration sets both flags and UpdatedAt and returns the entry as
	// written. NotFound if id is unknown.
	UpdateModeration(ctx context.Context, id string, approved, rejected bool, at time.Time) (*models.GuestbookEntry, error)
	// DeleteByID removes an entry. When ownerFingerprint is non-nil the stored
	// fingerprint must match or the call fails with Forbidden.
	DeleteByID(ctx context.Context, id string, ownerFingerprint *string) error
	// Count returns the number of stored entries in any state.
	Count(ctx context.Context) (int64, error)
}

// ClampPage bounds limit to [1, MaxListLimit] and offset to >= 0.
func ClampPage(limit, offset int) (int, int) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// prepareInsert fills generated fields and checks the message invariant.
func prepareInsert(entry *models.GuestbookEntry) error {
	n := utf8.RuneCountInString(entry.Message)
	if n == 0 || n > models.MaxMessageLength {
		return models.NewInvalidInputError(models.CodeInvalidMessage, "message must be 1-480 characters")
	}
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return models.NewStoreError("insert", err)
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	return nil
}

// newerFirst orders entries by created_at descending, then id descending.
func newerFirst(a, b *models.GuestbookEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func notFound(id string) error {
	return models.NewNotFoundError("Guestbook entry", id)
}

func forbidden() error {
	return models.NewForbiddenError("entry belongs to another submitter")
}
