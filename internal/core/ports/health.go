package ports

import "context"

// HealthChecker checks one dependency (shared store, directory database).
type HealthChecker interface {
	Name() string
	// Check returns nil when the dependency is reachable.
	Check(ctx context.Context) error
}
