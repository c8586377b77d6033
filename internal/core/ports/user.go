package ports

import (
	"context"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
)

// PrincipalDirectory resolves a principal to its role. Implementations return
// user.RoleUnknown together with a non-nil error when the lookup fails.
type PrincipalDirectory interface {
	GetRole(ctx context.Context, principalID string) (user.UserRole, error)
}
