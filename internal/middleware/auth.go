package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"senbon/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminTokenHeader is the dedicated admin credential header.
const AdminTokenHeader = "X-Admin-Token"

const adminLocalKey = "isAdmin"

// ExtractAdminToken returns the admin credential carried by the request.
// It checks the X-Admin-Token header, then a Bearer Authorization header,
// then (for GET and HEAD only) the token query parameter.
func ExtractAdminToken(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get(AdminTokenHeader)); v != "" {
		return v
	}

	authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		if v := strings.TrimSpace(authHeader[7:]); v != "" {
			return v
		}
	}

	if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

// AdminAuth validates requests against a single shared secret.
type AdminAuth struct {
	digest [sha256.Size]byte
	set    bool
}

// NewAdminAuth builds an AdminAuth for token. An empty token rejects everyone.
func NewAdminAuth(token string) *AdminAuth {
	token = strings.TrimSpace(token)
	if token == "" {
		return &AdminAuth{}
	}
	return &AdminAuth{digest: sha256.Sum256([]byte(token)), set: true}
}

// Valid compares provided with the configured secret in constant time.
// Both sides are hashed first so the comparison does not leak the length.
func (a *AdminAuth) Valid(provided string) bool {
	if a == nil || !a.set || provided == "" {
		return false
	}
	got := sha256.Sum256([]byte(provided))
	return subtle.ConstantTimeCompare(a.digest[:], got[:]) == 1
}

// IsAdmin reports whether the request carries a valid credential.
func (a *AdminAuth) IsAdmin(c *fiber.Ctx) bool {
	if v, cached := c.Locals(adminLocalKey).(bool); cached {
		return v
	}
	ok := a.Valid(ExtractAdminToken(c))
	c.Locals(adminLocalKey, ok)
	return ok
}

// Required rejects requests without a valid admin credential.
func (a *AdminAuth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.IsAdmin(c) {
			return models.RespondWithError(c, models.NewUnauthorizedError("admin credential required"))
		}
		return c.Next()
	}
}
