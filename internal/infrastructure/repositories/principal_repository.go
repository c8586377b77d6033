package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/quota"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
)

// PrincipalRepository reads roles from the users table owned by the identity service.
type PrincipalRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewPrincipalRepository(db *sqlx.DB, logger *logrus.Logger) *PrincipalRepository {
	return &PrincipalRepository{db: db, logger: logger}
}

// GetRole returns the principal's role. Missing, inactive and unrecognised principals are
// lookup failures wrapped with quota.ErrDirectoryLookup.
func (r *PrincipalRepository) GetRole(ctx context.Context, principalID string) (user.UserRole, error) {
	var row struct {
		Role     user.UserRole `db:"role"`
		IsActive bool          `db:"is_active"`
	}
	query := `SELECT role, is_active FROM users WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, principalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if r.logger != nil {
				r.logger.WithFields(logrus.Fields{"principal": principalID}).Debug("db: principal not found")
			}
			return user.RoleUnknown, fmt.Errorf("%w: principal %s not found", quota.ErrDirectoryLookup, principalID)
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"principal": principalID}).WithError(err).Error("db: failed to get principal role")
		}
		return user.RoleUnknown, fmt.Errorf("%w: %w", quota.ErrDirectoryLookup, err)
	}
	if !row.IsActive {
		return user.RoleUnknown, fmt.Errorf("%w: principal %s is inactive", quota.ErrDirectoryLookup, principalID)
	}
	if !row.Role.IsValid() {
		return user.RoleUnknown, fmt.Errorf("%w: principal %s has unknown role %q", quota.ErrDirectoryLookup, principalID, row.Role)
	}
	return row.Role, nil
}
