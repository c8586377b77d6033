package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/helpers"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/middleware"
	tmocks "github.com/lizTheDeveloper/llm-tutor-sub000/test/mocks"
)

const secret = "test-secret"

func signToken(t *testing.T, claims jwt.RegisteredClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "identity",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func runJWT(t *testing.T, m *middleware.JWTMiddleware, authHeader string) (*httptest.ResponseRecorder, string, error) {
	t.Helper()
	e := echo.New()
	var principal string
	handler := m.RequireJWT()(func(c echo.Context) error {
		principal, _ = helpers.GetPrincipalIDRaw(c)
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	err := handler(e.NewContext(req, rec))
	return rec, principal, err
}

func requireHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	htErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, code, htErr.Code)
}

func TestJWTMiddleware_MissingTokenReturns401(t *testing.T) {
	m := middleware.NewJWTMiddleware(secret, "", logrus.New())
	_, _, err := runJWT(t, m, "")
	requireHTTPStatus(t, err, http.StatusUnauthorized)

	_, _, err = runJWT(t, m, "Token abc")
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ValidTokenSetsPrincipal(t *testing.T) {
	m := middleware.NewJWTMiddleware(secret, "identity", logrus.New())
	token := signToken(t, validClaims("user-42"), jwt.SigningMethodHS256, []byte(secret))

	rec, principal, err := runJWT(t, m, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-42", principal)
}

func TestJWTMiddleware_RejectsBadTokens(t *testing.T) {
	m := middleware.NewJWTMiddleware(secret, "identity", logrus.New())

	expired := validClaims("user-42")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := validClaims("user-42")
	noExpiry.ExpiresAt = nil
	wrongIssuer := validClaims("user-42")
	wrongIssuer.Issuer = "someone-else"

	cases := map[string]string{
		"wrong secret": signToken(t, validClaims("user-42"), jwt.SigningMethodHS256, []byte("other")),
		"expired":      signToken(t, expired, jwt.SigningMethodHS256, []byte(secret)),
		"no expiry":    signToken(t, noExpiry, jwt.SigningMethodHS256, []byte(secret)),
		"wrong issuer": signToken(t, wrongIssuer, jwt.SigningMethodHS256, []byte(secret)),
		"no subject":   signToken(t, validClaims(""), jwt.SigningMethodHS256, []byte(secret)),
		"garbage":      "not.a.jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := runJWT(t, m, "Bearer "+token)
			requireHTTPStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func runAdmission(t *testing.T, gate *tmocks.EnforcementGateMock, principal string) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	m := middleware.NewAdmissionMiddleware(gate, logrus.New())
	reached := false
	handler := m.Enforce(quota.OperationChat)(func(c echo.Context) error {
		reached = true
		d, err := helpers.GetDecisionFromContext(c)
		require.NoError(t, err)
		require.True(t, d.Admitted)
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principal != "" {
		helpers.SetPrincipalID(c, principal)
	}
	err := handler(c)
	return rec, reached, err
}

func TestAdmissionMiddleware_AdmittedSetsHeaders(t *testing.T) {
	gate := &tmocks.EnforcementGateMock{AdmitFn: func(ctx context.Context, p string, op quota.OperationClass, now time.Time) *quota.Decision {
		require.Equal(t, "user-1", p)
		require.Equal(t, quota.OperationChat, op)
		return quota.NewAdmitted(quota.TierStandard, 10, 7).WithCost(1, 0.25)
	}}
	rec, reached, err := runAdmission(t, gate, "user-1")
	require.NoError(t, err)
	require.True(t, reached)
	require.Equal(t, "10", rec.Header().Get(helpers.HeaderRateLimitLimit))
	require.Equal(t, "7", rec.Header().Get(helpers.HeaderRateLimitRemaining))
	require.Equal(t, "1.0000", rec.Header().Get(helpers.HeaderCostLimit))
	require.Equal(t, "0.2500", rec.Header().Get(helpers.HeaderCostCurrent))
	require.Empty(t, rec.Header().Get(helpers.HeaderRetryAfter))
}

func TestAdmissionMiddleware_RateLimitedReturns429(t *testing.T) {
	gate := &tmocks.EnforcementGateMock{AdmitFn: func(ctx context.Context, p string, op quota.OperationClass, now time.Time) *quota.Decision {
		return quota.NewRateLimited(quota.TierStandard, quota.WindowMinute, 10, 42*time.Second)
	}}
	rec, reached, err := runAdmission(t, gate, "user-1")
	require.NoError(t, err)
	require.False(t, reached)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "42", rec.Header().Get(helpers.HeaderRetryAfter))
	require.Equal(t, "0", rec.Header().Get(helpers.HeaderRateLimitRemaining))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["admitted"])
	require.Equal(t, "rate_limited_minute", body["reason"])
	require.EqualValues(t, 42, body["retry_after_seconds"])
	require.Nil(t, body["cost_limit_usd"])
	require.Contains(t, body["error"], "rate limit exceeded")
}

func TestAdmissionMiddleware_CostLimitedReturns429WithResetMessage(t *testing.T) {
	gate := &tmocks.EnforcementGateMock{AdmitFn: func(ctx context.Context, p string, op quota.OperationClass, now time.Time) *quota.Decision {
		return quota.NewCostLimited(quota.TierStandard, 1, 1.05, 3*time.Hour)
	}}
	rec, _, err := runAdmission(t, gate, "user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "10800", rec.Header().Get(helpers.HeaderRetryAfter))
	require.Equal(t, "1.0500", rec.Header().Get(helpers.HeaderCostCurrent))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "cost_limit_exceeded", body["reason"])
	require.Contains(t, body["error"], "resets at UTC midnight")
}

func TestAdmissionMiddleware_RequiresPrincipal(t *testing.T) {
	_, reached, err := runAdmission(t, &tmocks.EnforcementGateMock{}, "")
	requireHTTPStatus(t, err, http.StatusUnauthorized)
	require.False(t, reached)
}

func TestRequestLogging_RecordsPrincipalAndOperationClass(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := echo.New()
	gate := &tmocks.EnforcementGateMock{AdmitFn: func(ctx context.Context, p string, op quota.OperationClass, now time.Time) *quota.Decision {
		return quota.NewRateLimited(quota.TierStandard, quota.WindowMinute, 10, time.Second)
	}}
	admission := middleware.NewAdmissionMiddleware(gate, nil)
	handler := middleware.NewLoggingMiddleware(logger).RequestLogging()(
		admission.Enforce(quota.OperationChat)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admissions/chat", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	helpers.SetPrincipalID(c, "user-1")
	require.NoError(t, handler(c))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "request completed", entry.Message)
	require.Equal(t, "req-1", entry.Data["request_id"])
	require.Equal(t, "user-1", entry.Data["principal"])
	require.Equal(t, quota.OperationChat, entry.Data["operation_class"])
	require.Equal(t, http.StatusTooManyRequests, entry.Data["status"])
	require.Equal(t, "req-1", rec.Header().Get(middleware.HeaderRequestID))
}
