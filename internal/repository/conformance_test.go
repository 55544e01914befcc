package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"senbon/internal/database"
	"senbon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) GuestbookRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	// every connection to :memory: gets its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&guestbookRow{}))

	schema := database.NewSchemaManager(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewGormGuestbookRepository(db, schema, 5*time.Second)
}

// forEachStore runs fn against every GuestbookRepository implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, repo GuestbookRepository)) {
	t.Helper()
	stores := map[string]func(t *testing.T) GuestbookRepository{
		"memory": func(*testing.T) GuestbookRepository { return NewMemoryGuestbookRepository() },
		"sqlite": newSQLiteRepository,
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entryAt(i int, approved bool, fingerprint string) *models.GuestbookEntry {
	return &models.GuestbookEntry{
		Name:                 fmt.Sprintf("visitor %d", i),
		Message:              fmt.Sprintf("message %d", i),
		CreatedAt:            baseTime.Add(time.Duration(i) * time.Second),
		Approved:             approved,
		SubmitterFingerprint: fingerprint,
	}
}

func TestGuestbookRepository_Insert(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		e := &models.GuestbookEntry{Name: "Alex", Message: "Hello", SubmitterFingerprint: "fp-a"}
		require.NoError(t, repo.Insert(ctx, e))
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alex", got.Name)
		assert.Equal(t, "Hello", got.Message)
		assert.Equal(t, "fp-a", got.SubmitterFingerprint)
		assert.Nil(t, got.UpdatedAt)
		assert.Equal(t, models.StatusPending, got.Status())
		assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
	})
}

func TestGuestbookRepository_InsertRejectsInvalidMessage(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		tests := []struct {
			name    string
			message string
		}{
			{"empty", ""},
			{"too long", string(make([]rune, models.MaxMessageLength+1))},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := repo.Insert(ctx, &models.GuestbookEntry{Message: tt.message})
				assert.ErrorIs(t, err, models.ErrInvalidInput)
			})
		}

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGuestbookRepository_ListByStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		approved := entryAt(1, true, "")
		pending := entryAt(2, false, "")
		rejected := entryAt(3, false, "")
		rejected.Rejected = true
		both := entryAt(4, true, "")
		both.Rejected = true
		for _, e := range []*models.GuestbookEntry{approved, pending, rejected, both} {
			require.NoError(t, repo.Insert(ctx, e))
		}

		got, err := repo.ListByStatus(ctx, models.StatusApproved, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, approved.ID, got[0].ID)

		got, err = repo.ListByStatus(ctx, models.StatusPending, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, pending.ID, got[0].ID)
	})
}

func TestGuestbookRepository_PaginationIsStable(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		// insert out of order; the store sorts
		for _, i := range []int{5, 17, 2, 23, 11, 0, 8, 14, 20, 3, 24, 1, 9, 12, 16, 4, 22, 6, 18, 10, 13, 21, 7, 19, 15} {
			require.NoError(t, repo.Insert(ctx, entryAt(i, true, "")))
		}

		first, err := repo.ListByStatus(ctx, models.StatusApproved, 10, 0)
		require.NoError(t, err)
		second, err := repo.ListByStatus(ctx, models.StatusApproved, 10, 10)
		require.NoError(t, err)
		require.Len(t, first, 10)
		require.Len(t, second, 10)

		all := append(first, second...)
		seen := make(map[string]bool)
		for i, e := range all {
			assert.False(t, seen[e.ID], "duplicate id %s across pages", e.ID)
			seen[e.ID] = true
			assert.Equal(t, fmt.Sprintf("message %d", 24-i), e.Message)
		}

		again, err := repo.ListByStatus(ctx, models.StatusApproved, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, ids(second), ids(again))
	})
}

func TestGuestbookRepository_TiesBrokenByIDDescending(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		for _, id := range []string{"b", "c", "a"} {
			e := entryAt(0, true, "")
			e.ID = id
			require.NoError(t, repo.Insert(ctx, e))
		}

		got, err := repo.ListByStatus(ctx, models.StatusApproved, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, ids(got))
	})
}

func TestGuestbookRepository_PageBounds(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()
		for i := 0; i < MaxListLimit+5; i++ {
			require.NoError(t, repo.Insert(ctx, entryAt(i, true, "")))
		}

		tests := []struct {
			name   string
			limit  int
			offset int
			want   int
		}{
			{"zero limit clamps to one", 0, 0, 1},
			{"negative limit clamps to one", -3, 0, 1},
			{"large limit clamps to max", 500, 0, MaxListLimit},
			{"negative offset clamps to zero", 5, -10, 5},
			{"offset past end", 10, 1000, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.ListByStatus(ctx, models.StatusApproved, tt.limit, tt.offset)
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
				assert.NotNil(t, got)
			})
		}
	})
}

func TestGuestbookRepository_LatestByFingerprint(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		none, err := repo.LatestByFingerprint(ctx, "fp-a")
		require.NoError(t, err)
		assert.Nil(t, none)

		older := entryAt(1, true, "fp-a")
		newer := entryAt(5, true, "fp-a")
		other := entryAt(9, true, "fp-b")
		for _, e := range []*models.GuestbookEntry{newer, older, other} {
			require.NoError(t, repo.Insert(ctx, e))
		}

		got, err := repo.LatestByFingerprint(ctx, "fp-a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, newer.ID, got.ID)
	})
}

func TestGuestbookRepository_UpdateModeration(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		e := entryAt(1, false, "")
		require.NoError(t, repo.Insert(ctx, e))

		at := baseTime.Add(time.Hour)
		updated, err := repo.UpdateModeration(ctx, e.ID, true, false, at)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, e.ID, updated.ID)
		assert.Equal(t, e.Message, updated.Message)
		assert.Equal(t, models.StatusApproved, updated.Status())
		require.NotNil(t, updated.UpdatedAt)
		assert.True(t, at.Equal(*updated.UpdatedAt))

		got, err := repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status())
		require.NotNil(t, got.UpdatedAt)
		assert.True(t, at.Equal(*got.UpdatedAt))

		// rejected entries can be un-rejected
		updated, err = repo.UpdateModeration(ctx, e.ID, false, true, at)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, updated.Status())
		updated, err = repo.UpdateModeration(ctx, e.ID, true, false, at)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, updated.Status())
		got, err = repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status())
	})
}

func TestGuestbookRepository_UpdateModerationUnknownID(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		updated, err := repo.UpdateModeration(ctx, "missing", true, false, baseTime)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Nil(t, updated)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestGuestbookRepository_DeleteByID(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		owned := entryAt(1, true, "fp-owner")
		anon := entryAt(2, true, "")
		require.NoError(t, repo.Insert(ctx, owned))
		require.NoError(t, repo.Insert(ctx, anon))

		stranger := "fp-stranger"
		owner := "fp-owner"

		err := repo.DeleteByID(ctx, owned.ID, &stranger)
		assert.ErrorIs(t, err, models.ErrForbidden)

		err = repo.DeleteByID(ctx, anon.ID, &owner)
		assert.ErrorIs(t, err, models.ErrForbidden, "entries without a fingerprint have no owner")

		require.NoError(t, repo.DeleteByID(ctx, owned.ID, &owner))
		err = repo.DeleteByID(ctx, owned.ID, &owner)
		assert.ErrorIs(t, err, models.ErrNotFound)

		require.NoError(t, repo.DeleteByID(ctx, anon.ID, nil))
		err = repo.DeleteByID(ctx, anon.ID, nil)
		assert.ErrorIs(t, err, models.ErrNotFound)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGuestbookRepository_ApprovedListingUnderConcurrentWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo GuestbookRepository) {
		ctx := context.Background()

		const writers = 4
		const perWriter = 15

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					e := entryAt(w*perWriter+i, i%2 == 0, "")
					if err := repo.Insert(ctx, e); err != nil {
						t.Errorf("insert: %v", err)
						return
					}
					if i%3 == 0 {
						if _, err := repo.UpdateModeration(ctx, e.ID, true, true, time.Now()); err != nil {
							t.Errorf("update: %v", err)
							return
						}
					}
				}
			}(w)
		}

		done := make(chan struct{})
		var readers sync.WaitGroup
		for r := 0; r < 2; r++ {
			readers.Add(1)
			go func() {
				defer readers.Done()
				for {
					select {
					case <-done:
						return
					default:
					}
					page, err := repo.ListByStatus(ctx, models.StatusApproved, MaxListLimit, 0)
					if err != nil {
						t.Errorf("list: %v", err)
						return
					}
					seen := make(map[string]bool, len(page))
					for _, e := range page {
						if e.Status() != models.StatusApproved {
							t.Errorf("entry %s listed as approved with status %s", e.ID, e.Status())
						}
						if seen[e.ID] {
							t.Errorf("entry %s listed twice", e.ID)
						}
						seen[e.ID] = true
					}
				}
			}()
		}

		wg.Wait()
		close(done)
		readers.Wait()

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, writers*perWriter, n)
	})
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{10, 0, 10, 0},
		{0, 0, 1, 0},
		{51, 3, 50, 3},
		{7, -1, 7, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.limit, tt.offset), func(t *testing.T) {
			l, o := ClampPage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, l)
			assert.Equal(t, tt.wantOffset, o)
		})
	}
}

func ids(entries []*models.GuestbookEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
