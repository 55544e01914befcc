package server

import (
	"strings"

	"senbon/internal/models"
	"senbon/internal/service"

	"github.com/gofiber/fiber/v2"
)

const minTokenLength = 4

// ModerationRequest sets the flag pair of one entry. Omitted flags are
// filled in by service.ResolveFlags.
type ModerationRequest struct {
	ID       string `json:"id"`
	Approved *bool  `json:"approved"`
	Rejected *bool  `json:"rejected"`
}

// VerifyTokenRequest is the admin panel's credential check.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// ListForModeration lists entries for the admin panel, pending by default.
func (s *Server) ListForModeration(c *fiber.Ctx) error {
	status, ok := models.ParseStatus(strings.TrimSpace(c.Query("status")))
	if !ok {
		status = models.StatusPending
	}

	page := parsePagination(c)
	entries, err := s.guestbookService.List(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": status,
		"items":  models.ToResponses(entries),
	})
}

// ModerateGuestbookEntry applies an approve/reject transition.
func (s *Server) ModerateGuestbookEntry(c *fiber.Ctx) error {
	var req ModerationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewInvalidInputError(models.CodeInvalidRequest, "invalid request body"))
	}
	if strings.TrimSpace(req.ID) == "" {
		return models.RespondWithError(c, models.NewInvalidInputError(models.CodeMissingID, "id is required"))
	}

	approved, rejected, err := service.ResolveFlags(req.Approved, req.Rejected)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	entry, err := s.moderationService.SetModeration(c.UserContext(), req.ID, approved, rejected)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":   true,
		"item": entry.ToResponse(),
	})
}

// VerifyAdminToken reports whether the submitted token is the admin secret.
func (s *Server) VerifyAdminToken(c *fiber.Ctx) error {
	var req VerifyTokenRequest
	parseJSONBody(c, &req)

	token := strings.TrimSpace(req.Token)
	if len(token) < minTokenLength {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"valid": false})
	}
	return c.JSON(fiber.Map{"valid": s.auth.Valid(token)})
}
