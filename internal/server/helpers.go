package server

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/nocson47/beaconofknowledge/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already committed the response. Handlers return nil
// on it so the error handler does not overwrite the body.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageSize    = 20
	maxPaginationLimit = 100
)

// Pagination is a resolved limit/offset window for list endpoints.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit plus either offset or a 1-based page. Bad values fall back to
// defaultLimit and offset 0; limit is capped at maxPaginationLimit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	p := Pagination{Limit: c.QueryInt("limit", defaultLimit)}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultLimit
	case p.Limit > maxPaginationLimit:
		p.Limit = maxPaginationLimit
	}

	if c.Query("offset") == "" {
		if page := c.QueryInt("page", 1); page > 1 {
			p.Offset = (page - 1) * p.Limit
		}
		return p
	}
	p.Offset = max(c.QueryInt("offset", 0), 0)
	return p
}

// parseID reads a positive numeric route param. On failure it answers 400 itself.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam turns a route param into an error label: "id" is "ID", "parentReplyId" is
// "parent reply ID". Anything without an Id suffix is returned as is.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	stem, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}

	var b strings.Builder
	for i, r := range stem {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	b.WriteString(" ID")
	return b.String()
}

// currentUserID is 0 for anonymous requests.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// parseBody decodes the request body into dst or answers 400.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
