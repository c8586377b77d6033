package helpers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

const (
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderCostLimit          = "X-Cost-Limit"
	HeaderCostCurrent        = "X-Cost-Current"
)

func GetPrincipalIDFromContext(c echo.Context) (string, error) {
	id, ok := GetPrincipalIDRaw(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid principal context")
	}
	return id, nil
}

func GetDecisionFromContext(c echo.Context) (*quota.Decision, error) {
	d, ok := GetDecisionRaw(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "admission decision not available in context")
	}
	return d, nil
}

func GetJWTTokenFromContext(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}
	return token, nil
}

// WriteDecisionHeaders sets the admission headers for every field the decision carries.
func WriteDecisionHeaders(c echo.Context, d *quota.Decision) {
	h := c.Response().Header()
	if d.Limit != nil {
		h.Set(HeaderRateLimitLimit, strconv.Itoa(*d.Limit))
	}
	if d.Remaining != nil {
		h.Set(HeaderRateLimitRemaining, strconv.Itoa(*d.Remaining))
	}
	if d.CostLimitUSD != nil {
		h.Set(HeaderCostLimit, fmt.Sprintf("%.4f", *d.CostLimitUSD))
	}
	if d.CostCurrentUSD != nil {
		h.Set(HeaderCostCurrent, fmt.Sprintf("%.4f", *d.CostCurrentUSD))
	}
	if !d.Admitted && d.RetryAfterSeconds != nil {
		h.Set(HeaderRetryAfter, strconv.Itoa(*d.RetryAfterSeconds))
	}
}
