package chi

import (
	"context"

	"github.com/nkkko/pushreg/internal/domain"
)

// Registry defines the subscription operations required by the Chi API.
// Method signatures match domain.Registry.
type Registry interface {
	domain.Registry
}

// OwnerDeleter runs the account cleanup steps for a deleted owner
type OwnerDeleter interface {
	Run(ctx context.Context, owner domain.Owner) error

	// Steps returns the step names in execution order
	Steps() []string
}
