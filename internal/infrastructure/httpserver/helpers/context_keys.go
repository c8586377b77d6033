package helpers

import (
	"github.com/labstack/echo/v4"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
)

type ctxKey string

const (
	keyPrincipalID    ctxKey = "principal_id"
	keyDecision       ctxKey = "admission_decision"
	keyOperationClass ctxKey = "operation_class"
)

func SetPrincipalID(c echo.Context, id string) { c.Set(string(keyPrincipalID), id) }
func GetPrincipalIDRaw(c echo.Context) (string, bool) {
	v := c.Get(string(keyPrincipalID))
	id, ok := v.(string)
	return id, ok && id != ""
}

func SetDecision(c echo.Context, d *quota.Decision) { c.Set(string(keyDecision), d) }
func GetDecisionRaw(c echo.Context) (*quota.Decision, bool) {
	v := c.Get(string(keyDecision))
	d, ok := v.(*quota.Decision)
	return d, ok && d != nil
}

func SetOperationClass(c echo.Context, op quota.OperationClass) {
	c.Set(string(keyOperationClass), op)
}
func GetOperationClassRaw(c echo.Context) (quota.OperationClass, bool) {
	v := c.Get(string(keyOperationClass))
	op, ok := v.(quota.OperationClass)
	return op, ok
}
