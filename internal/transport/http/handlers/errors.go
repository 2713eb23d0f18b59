package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var (
	errInvalidPayload = domain.NewError(domain.KindValidation, "InvalidPayload", "request body is not valid JSON")
	errInvalidQuery   = domain.NewError(domain.KindValidation, "InvalidQuery", "query parameters are invalid")
)

// RespondWithError writes the failure envelope for err. Classified errors map to their
// kind's status; anything else becomes a generic 500.
func RespondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// bindJSON decodes the request body, answering 400 on malformed input. An empty body
// decodes to the zero value so field-level validation can name what is missing.
func bindJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondWithError(c, errInvalidPayload)
		return false
	}
	return true
}

// pagination reads limit and offset, clamping limit to [1, maxPageLimit].
func pagination(c *gin.Context) (limit, offset int, valid bool) {
	limit, offset = defaultPageLimit, 0

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondWithError(c, errInvalidQuery)
			return 0, 0, false
		}
		limit = min(parsed, maxPageLimit)
	}

	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			RespondWithError(c, errInvalidQuery)
			return 0, 0, false
		}
		offset = parsed
	}

	return limit, offset, true
}

// currentAccount returns the authenticated caller; RequireAuth guarantees it on protected routes.
func currentAccount(c *gin.Context) (domain.Account, bool) {
	account, found := middleware.CurrentAccount(c)
	if !found {
		RespondWithError(c, domain.ErrNoToken)
	}
	return account, found
}

func optionalQuery(c *gin.Context, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}
