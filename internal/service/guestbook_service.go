// Package service holds the guestbook submission pipeline, the moderation
// engine and the query layer on top of a repository.GuestbookRepository.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"senbon/internal/models"
	"senbon/internal/observability"
	"senbon/internal/repository"
)

// DefaultRateLimitWindow is the minimum gap between two submissions from the
// same fingerprint.
const DefaultRateLimitWindow = 30 * time.Second

// Policy controls how new submissions are admitted.
type Policy struct {
	AutoApprove      bool
	RateLimitEnabled bool
	Window           time.Duration
}

// SubmitInput is a public submission plus the caller's network address.
type SubmitInput struct {
	Name     string
	Message  string
	Honeypot string
	ClientIP string
}

type GuestbookService struct {
	repo   repository.GuestbookRepository
	policy Policy
	now    func() time.Time
}

func NewGuestbookService(repo repository.GuestbookRepository, policy Policy) *GuestbookService {
	if policy.Window <= 0 {
		policy.Window = DefaultRateLimitWindow
	}
	return &GuestbookService{
		repo:   repo,
		policy: policy,
		now:    time.Now,
	}
}

// Policy returns the admission policy in effect.
func (s *GuestbookService) Policy() Policy {
	return s.policy
}

// Fingerprint returns the hex SHA-256 digest of a client address.
func Fingerprint(clientIP string) string {
	ip := strings.TrimSpace(clientIP)
	if ip == "" {
		ip = "unknown"
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// NormalizeName trims and caps a display name, substituting the placeholder
// when nothing is left.
func NormalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) > models.MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:models.MaxNameLength]))
	}
	if name == "" {
		return models.DefaultName
	}
	return name
}

// Submit runs the submission pipeline and stores the new entry.
func (s *GuestbookService) Submit(ctx context.Context, in SubmitInput) (*models.GuestbookEntry, error) {
	if strings.TrimSpace(in.Honeypot) != "" {
		observability.SubmissionsTotal.WithLabelValues("honeypot").Inc()
		return nil, models.NewInvalidInputError(models.CodeInvalidSubmission, "submission rejected")
	}

	message := strings.TrimSpace(in.Message)
	if n := utf8.RuneCountInString(message); n == 0 || n > models.MaxMessageLength {
		observability.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, models.NewInvalidInputError(models.CodeInvalidMessage, "message must be 1-480 characters")
	}

	fingerprint := Fingerprint(in.ClientIP)
	now := s.now().UTC().Truncate(time.Microsecond)

	if s.policy.RateLimitEnabled {
		latest, err := s.repo.LatestByFingerprint(ctx, fingerprint)
		if err != nil {
			observability.SubmissionsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if latest != nil && now.Sub(latest.CreatedAt) < s.policy.Window {
			observability.SubmissionsTotal.WithLabelValues("rate_limited").Inc()
			return nil, models.NewRateLimitedError("please wait before posting again")
		}
	}

	entry := &models.GuestbookEntry{
		Name:                 NormalizeName(in.Name),
		Message:              message,
		CreatedAt:            now,
		Approved:             s.policy.AutoApprove,
		SubmitterFingerprint: fingerprint,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		observability.SubmissionsTotal.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "guestbook insert failed", "backend", s.repo.Backend(), "err", err)
		return nil, err
	}

	observability.SubmissionsTotal.WithLabelValues(string(entry.Status())).Inc()
	slog.InfoContext(ctx, "guestbook entry created",
		"id", entry.ID,
		"status", entry.Status(),
		"fingerprint", fingerprint[:8],
	)
	return entry, nil
}

// List returns one page of entries in status, newest first. Store failures
// degrade to an empty page.
func (s *GuestbookService) List(ctx context.Context, status models.EntryStatus, limit, offset int) ([]*models.GuestbookEntry, error) {
	entries, err := s.repo.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		if errors.Is(err, models.ErrStore) {
			slog.WarnContext(ctx, "guestbook listing unavailable, returning empty page",
				"status", status, "err", err)
			return []*models.GuestbookEntry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *GuestbookService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
