package middleware

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/helpers"
)

// JWTMiddleware verifies bearer tokens issued by the identity service and exposes the
// token subject as the principal id.
type JWTMiddleware struct {
	secret []byte
	issuer string
	logger *logrus.Logger
}

func NewJWTMiddleware(secret, issuer string, logger *logrus.Logger) *JWTMiddleware {
	return &JWTMiddleware{secret: []byte(secret), issuer: issuer, logger: logger}
}

// RequireJWT rejects requests without a valid HMAC-signed token carrying a subject.
func (m *JWTMiddleware) RequireJWT() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := helpers.GetJWTTokenFromContext(c)
			if err != nil {
				return err
			}

			claims := &jwt.RegisteredClaims{}
			opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
			if m.issuer != "" {
				opts = append(opts, jwt.WithIssuer(m.issuer))
			}
			_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return m.secret, nil
			}, opts...)
			if err != nil {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path, "error": err.Error()}).Warn("JWT validation failed")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}

			helpers.SetPrincipalID(c, claims.Subject)
			if m.logger != nil {
				m.logger.WithFields(logrus.Fields{"principal": claims.Subject}).Debug("jwt validated and principal context set")
			}
			return next(c)
		}
	}
}
