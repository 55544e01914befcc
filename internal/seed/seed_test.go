package seed

import (
	"context"
	"testing"
	"unicode/utf8"

	"senbon/internal/models"
	"senbon/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Run(t *testing.T) {
	repo := repository.NewMemoryGuestbookRepository()
	s := NewSeeder(repo, SeedOptions{Approved: 12, Pending: 4, Rejected: 2, Seed: 42})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, res.Total())

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 18, n)

	approved, err := repo.ListByStatus(context.Background(), models.StatusApproved, repository.MaxListLimit, 0)
	require.NoError(t, err)
	assert.Len(t, approved, 12)

	pending, err := repo.ListByStatus(context.Background(), models.StatusPending, repository.MaxListLimit, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestSeeder_BuildEntry(t *testing.T) {
	s := NewSeeder(repository.NewMemoryGuestbookRepository(), SeedOptions{Seed: 7, MaxDays: 3})

	for _, status := range []models.EntryStatus{models.StatusApproved, models.StatusPending, models.StatusRejected} {
		e := s.BuildEntry(status)
		assert.Equal(t, status, e.Status())
		assert.NotEmpty(t, e.Name)
		n := utf8.RuneCountInString(e.Message)
		assert.True(t, n > 0 && n <= models.MaxMessageLength)
		assert.Len(t, e.SubmitterFingerprint, 64)
		assert.False(t, e.CreatedAt.After(s.now))
	}
}
