package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"senbon/internal/models"
)

// memoryGuestbookRepository is the fallback store used when no database is
// configured. entries is kept sorted newest first; every read and write holds
// mu, so a listing is always a consistent snapshot.
type memoryGuestbookRepository struct {
	mu      sync.RWMutex
	entries []*models.GuestbookEntry
}

// NewMemoryGuestbookRepository creates an empty in-process store.
func NewMemoryGuestbookRepository() GuestbookRepository {
	return &memoryGuestbookRepository{}
}

func (r *memoryGuestbookRepository) Backend() string { return "memory" }

func (r *memoryGuestbookRepository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *memoryGuestbookRepository) Insert(ctx context.Context, entry *models.GuestbookEntry) error {
	if err := ctx.Err(); err != nil {
		return models.NewStoreError("insert", err)
	}
	if err := prepareInsert(entry); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(entry.ID) >= 0 {
		return models.NewStoreError("insert", errDuplicateID)
	}
	stored := entry.Clone()
	pos := sort.Search(len(r.entries), func(i int) bool {
		return newerFirst(stored, r.entries[i])
	})
	r.entries = slices.Insert(r.entries, pos, stored)
	return nil
}

func (r *memoryGuestbookRepository) GetByID(_ context.Context, id string) (*models.GuestbookEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, notFound(id)
	}
	return r.entries[i].Clone(), nil
}

func (r *memoryGuestbookRepository) ListByStatus(_ context.Context, status models.EntryStatus, limit, offset int) ([]*models.GuestbookEntry, error) {
	limit, offset = ClampPage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.GuestbookEntry, 0, limit)
	skipped := 0
	for _, e := range r.entries {
		if !e.Matches(status) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, e.Clone())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryGuestbookRepository) LatestByFingerprint(_ context.Context, fingerprint string) (*models.GuestbookEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.SubmitterFingerprint == fingerprint {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memoryGuestbookRepository) UpdateModeration(_ context.Context, id string, approved, rejected bool, at time.Time) (*models.GuestbookEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, notFound(id)
	}
	e := r.entries[i]
	e.Approved = approved
	e.Rejected = rejected
	e.UpdatedAt = &at
	return e.Clone(), nil
}

func (r *memoryGuestbookRepository) DeleteByID(_ context.Context, id string, ownerFingerprint *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return notFound(id)
	}
	if ownerFingerprint != nil && r.entries[i].SubmitterFingerprint != *ownerFingerprint {
		return forbidden()
	}
	r.entries = slices.Delete(r.entries, i, i+1)
	return nil
}

func (r *memoryGuestbookRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}

// indexOf must be called with mu held.
func (r *memoryGuestbookRepository) indexOf(id string) int {
	return slices.IndexFunc(r.entries, func(e *models.GuestbookEntry) bool {
		return e.ID == id
	})
}
