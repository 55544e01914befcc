package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"senbon/internal/models"
	"senbon/internal/observability"
	"senbon/internal/repository"
)

// ModerationService applies admin transitions and deletions.
type ModerationService struct {
	repo repository.GuestbookRepository
	now  func() time.Time
}

// NewModerationService returns a new ModerationService.
func NewModerationService(repo repository.GuestbookRepository) *ModerationService {
	return &ModerationService{repo: repo, now: time.Now}
}

// ResolveFlags fills in an omitted flag: rejected defaults to !approved and
// approved defaults to false. At least one must be present.
func ResolveFlags(approved, rejected *bool) (bool, bool, error) {
	if approved == nil && rejected == nil {
		return false, false, models.NewInvalidInputError(models.CodeInvalidRequest, "approved or rejected is required")
	}
	a := approved != nil && *approved
	r := !a
	if rejected != nil {
		r = *rejected
	}
	return a, r, nil
}

// SetModeration writes the flag pair for id and returns the updated entry.
// Both flags may be true; the entry then reads as rejected.
func (s *ModerationService) SetModeration(ctx context.Context, id string, approved, rejected bool) (*models.GuestbookEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewInvalidInputError(models.CodeMissingID, "id is required")
	}

	at := s.now().UTC().Truncate(time.Microsecond)
	entry, err := s.repo.UpdateModeration(ctx, id, approved, rejected, at)
	if err != nil {
		return nil, err
	}

	status := entry.Status()
	observability.ModerationTransitionsTotal.WithLabelValues(string(status)).Inc()
	slog.InfoContext(ctx, "guestbook entry moderated", "id", id, "status", status)

	return entry, nil
}

// Delete removes id. A nil owner means an admin caller; otherwise the stored
// fingerprint must equal *owner.
func (s *ModerationService) Delete(ctx context.Context, id string, owner *string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.NewInvalidInputError(models.CodeMissingID, "id is required")
	}
	if err := s.repo.DeleteByID(ctx, id, owner); err != nil {
		return err
	}
	slog.InfoContext(ctx, "guestbook entry deleted", "id", id, "by_admin", owner == nil)
	return nil
}
