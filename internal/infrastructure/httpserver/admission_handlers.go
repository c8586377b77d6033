package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/infrastructure/httpserver/helpers"
)

// admit runs after the admission middleware has already decided; it only echoes the
// decision so that callers outside this process can use the gate over HTTP.
func (s *Server) admit(c echo.Context) error {
	d, err := helpers.GetDecisionFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
