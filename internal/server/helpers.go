package server

import (
	"strconv"
	"strings"

	"senbon/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit and offset. Values that do not parse fall back
// to the defaults; parsed values are clamped into range.
func parsePagination(c *fiber.Ctx) Pagination {
	limit := queryInt(c, "limit", repository.DefaultListLimit)
	offset := queryInt(c, "offset", 0)
	limit, offset = repository.ClampPage(limit, offset)
	return Pagination{Limit: limit, Offset: offset}
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// parseJSONBody decodes the request body into out when one is present.
// Malformed bodies leave out untouched.
func parseJSONBody(c *fiber.Ctx, out interface{}) bool {
	if len(c.Body()) == 0 {
		return false
	}
	return c.BodyParser(out) == nil
}
