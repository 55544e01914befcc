package server

import (
	"strings"

	"senbon/internal/middleware"
	"senbon/internal/models"
	"senbon/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateEntryRequest is the public submission body. Hp is the honeypot field
// a human never sees.
type CreateEntryRequest struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Hp      string `json:"hp"`
}

// DeleteEntryRequest carries the id when it is not in the query string.
type DeleteEntryRequest struct {
	ID string `json:"id"`
}

// ListGuestbook returns approved entries. Pending entries are available to
// admins with ?status=pending.
func (s *Server) ListGuestbook(c *fiber.Ctx) error {
	status := models.StatusApproved
	if raw := strings.TrimSpace(c.Query("status")); raw == string(models.StatusPending) {
		if !s.auth.IsAdmin(c) {
			return models.RespondWithError(c, models.NewUnauthorizedError("admin credential required"))
		}
		status = models.StatusPending
	}

	page := parsePagination(c)
	entries, err := s.guestbookService.List(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(fiber.Map{
		"items": models.ToResponses(entries),
	})
}

// CreateGuestbookEntry runs the submission pipeline. A body that does not
// decode is refused, so a mistyped honeypot never reads as empty.
func (s *Server) CreateGuestbookEntry(c *fiber.Ctx) error {
	var req CreateEntryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, models.NewInvalidInputError(models.CodeInvalidSubmission, "submission rejected"))
		}
	}

	entry, err := s.guestbookService.Submit(c.UserContext(), service.SubmitInput{
		Name:     req.Name,
		Message:  req.Message,
		Honeypot: req.Hp,
		ClientIP: middleware.ClientIP(c),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"item":     entry.ToResponse(),
		"approved": entry.Status() == models.StatusApproved,
	})
}

// EditGuestbookEntry always refuses; entries are immutable once posted.
func (s *Server) EditGuestbookEntry(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(models.ErrorResponse{
		Error: models.CodeEditingDisabled,
		Code:  models.CodeEditingDisabled,
	})
}

// DeleteGuestbookEntry removes an entry. Admins may delete anything; other
// callers only entries submitted from their own address.
func (s *Server) DeleteGuestbookEntry(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		var req DeleteEntryRequest
		if parseJSONBody(c, &req) {
			id = strings.TrimSpace(req.ID)
		}
	}
	if id == "" {
		return models.RespondWithError(c, models.NewInvalidInputError(models.CodeMissingID, "id is required"))
	}

	var owner *string
	if !s.auth.IsAdmin(c) {
		fp := service.Fingerprint(middleware.ClientIP(c))
		owner = &fp
	}

	if err := s.moderationService.Delete(c.UserContext(), id, owner); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
