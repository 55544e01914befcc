package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"senbon/internal/models"
	"senbon/internal/observability"
	"senbon/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// guestbookRepoStub is a stub for repository.GuestbookRepository. Nil
// funcs fall through to an in-memory store.
type guestbookRepoStub struct {
	repository.GuestbookRepository
	insertFn func(context.Context, *models.GuestbookEntry) error
	listFn   func(context.Context, models.EntryStatus, int, int) ([]*models.GuestbookEntry, error)
	latestFn func(context.Context, string) (*models.GuestbookEntry, error)
	getFn    func(context.Context, string) (*models.GuestbookEntry, error)
}

func newRepoStub() *guestbookRepoStub {
	return &guestbookRepoStub{GuestbookRepository: repository.NewMemoryGuestbookRepository()}
}

func (s *guestbookRepoStub) GetByID(ctx context.Context, id string) (*models.GuestbookEntry, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return s.GuestbookRepository.GetByID(ctx, id)
}

func (s *guestbookRepoStub) Insert(ctx context.Context, e *models.GuestbookEntry) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, e)
	}
	return s.GuestbookRepository.Insert(ctx, e)
}

func (s *guestbookRepoStub) ListByStatus(ctx context.Context, status models.EntryStatus, limit, offset int) ([]*models.GuestbookEntry, error) {
	if s.listFn != nil {
		return s.listFn(ctx, status, limit, offset)
	}
	return s.GuestbookRepository.ListByStatus(ctx, status, limit, offset)
}

func (s *guestbookRepoStub) LatestByFingerprint(ctx context.Context, fp string) (*models.GuestbookEntry, error) {
	if s.latestFn != nil {
		return s.latestFn(ctx, fp)
	}
	return s.GuestbookRepository.LatestByFingerprint(ctx, fp)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(repo repository.GuestbookRepository, policy Policy) (*GuestbookService, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewGuestbookService(repo, policy)
	svc.now = clock.Now
	return svc, clock
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestGuestbookService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name string
		in   SubmitInput
		code string
	}{
		{"honeypot filled", SubmitInput{Message: "hello", Honeypot: "x"}, models.CodeInvalidSubmission},
		{"empty message", SubmitInput{Message: ""}, models.CodeInvalidMessage},
		{"whitespace message", SubmitInput{Message: " \n\t "}, models.CodeInvalidMessage},
		{"message too long", SubmitInput{Message: strings.Repeat("a", models.MaxMessageLength+1)}, models.CodeInvalidMessage},
		{"multibyte message too long", SubmitInput{Message: strings.Repeat("é", models.MaxMessageLength+1)}, models.CodeInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryGuestbookRepository()
			svc, _ := newTestService(repo, Policy{AutoApprove: true, RateLimitEnabled: true})

			_, err := svc.Submit(context.Background(), tt.in)
			assertAppError(t, err, tt.code)
			assert.ErrorIs(t, err, models.ErrInvalidInput)

			n, err := repo.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n, "store must be unchanged")
		})
	}
}

func TestGuestbookService_SubmitAcceptsBoundaryLengths(t *testing.T) {
	svc, clock := newTestService(repository.NewMemoryGuestbookRepository(), Policy{AutoApprove: true})

	for i, msg := range []string{"a", strings.Repeat("ü", models.MaxMessageLength), "  padded  "} {
		clock.Advance(time.Minute)
		e, err := svc.Submit(context.Background(), SubmitInput{Message: msg, ClientIP: "10.0.0.1"})
		require.NoError(t, err, "case %d", i)
		assert.Equal(t, strings.TrimSpace(msg), e.Message)
	}
}

func TestGuestbookService_SubmitNormalizesName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", models.DefaultName},
		{"blank", "   ", models.DefaultName},
		{"trimmed", "  Alex  ", "Alex"},
		{"capped", strings.Repeat("n", 60), strings.Repeat("n", models.MaxNameLength)},
		{"capped then trimmed", strings.Repeat("n", 49) + "   tail", strings.Repeat("n", 49)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestGuestbookService_StatusFollowsAutoApprove(t *testing.T) {
	for _, autoApprove := range []bool{true, false} {
		svc, _ := newTestService(repository.NewMemoryGuestbookRepository(), Policy{AutoApprove: autoApprove})

		e, err := svc.Submit(context.Background(), SubmitInput{Name: "Alex", Message: "Hello", ClientIP: "10.0.0.1"})
		require.NoError(t, err)
		assert.False(t, e.Rejected)
		if autoApprove {
			assert.Equal(t, models.StatusApproved, e.Status())
		} else {
			assert.Equal(t, models.StatusPending, e.Status())
		}
	}
}

func TestGuestbookService_RateLimitWindow(t *testing.T) {
	repo := repository.NewMemoryGuestbookRepository()
	svc, clock := newTestService(repo, Policy{AutoApprove: true, RateLimitEnabled: true, Window: 30 * time.Second})
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{Message: "first", ClientIP: "203.0.113.7"})
	require.NoError(t, err)

	clock.Advance(29 * time.Second)
	_, err = svc.Submit(ctx, SubmitInput{Message: "second", ClientIP: "203.0.113.7"})
	assertAppError(t, err, models.CodeRateLimited)
	assert.ErrorIs(t, err, models.ErrRateLimited)

	// another address is unaffected
	_, err = svc.Submit(ctx, SubmitInput{Message: "other", ClientIP: "203.0.113.8"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = svc.Submit(ctx, SubmitInput{Message: "third", ClientIP: "203.0.113.7"})
	require.NoError(t, err)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestGuestbookService_RateLimitDisabled(t *testing.T) {
	svc, _ := newTestService(repository.NewMemoryGuestbookRepository(), Policy{AutoApprove: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, SubmitInput{Message: "again", ClientIP: "203.0.113.7"})
		require.NoError(t, err)
	}
}

func TestGuestbookService_SubmitSurfacesStoreError(t *testing.T) {
	repo := newRepoStub()
	repo.insertFn = func(context.Context, *models.GuestbookEntry) error {
		return models.NewStoreError("insert", context.DeadlineExceeded)
	}
	svc, _ := newTestService(repo, Policy{AutoApprove: true})

	_, err := svc.Submit(context.Background(), SubmitInput{Message: "hello", ClientIP: "10.0.0.1"})
	assert.ErrorIs(t, err, models.ErrStore)
}

func TestGuestbookService_ListDegradesOnStoreError(t *testing.T) {
	repo := newRepoStub()
	repo.listFn = func(context.Context, models.EntryStatus, int, int) ([]*models.GuestbookEntry, error) {
		return nil, models.NewStoreError("list", errors.New("connection refused"))
	}
	svc, _ := newTestService(repo, Policy{})

	entries, err := svc.List(context.Background(), models.StatusApproved, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestGuestbookService_SubmissionMetrics(t *testing.T) {
	svc, _ := newTestService(repository.NewMemoryGuestbookRepository(), Policy{AutoApprove: true, RateLimitEnabled: true})
	ctx := context.Background()

	count := func(outcome string) float64 {
		return testutil.ToFloat64(observability.SubmissionsTotal.WithLabelValues(outcome))
	}
	honeypot, invalid, approved, limited := count("honeypot"), count("invalid"), count("approved"), count("rate_limited")

	_, err := svc.Submit(ctx, SubmitInput{Message: "hi", Honeypot: "x", ClientIP: "192.0.2.9"})
	require.Error(t, err)
	_, err = svc.Submit(ctx, SubmitInput{Message: " ", ClientIP: "192.0.2.9"})
	require.Error(t, err)
	_, err = svc.Submit(ctx, SubmitInput{Message: "hi", ClientIP: "192.0.2.9"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{Message: "again", ClientIP: "192.0.2.9"})
	require.Error(t, err)

	assert.Equal(t, honeypot+1, count("honeypot"))
	assert.Equal(t, invalid+1, count("invalid"))
	assert.Equal(t, approved+1, count("approved"))
	assert.Equal(t, limited+1, count("rate_limited"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("203.0.113.7")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint(" 203.0.113.7 "))
	assert.NotEqual(t, a, Fingerprint("203.0.113.8"))
	assert.NotContains(t, a, "203")
}
