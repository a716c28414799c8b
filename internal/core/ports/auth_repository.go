package ports

import (
	"context"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// AuthRepository defines the interface for user account persistence.
// Create is the createPrivilegedUser capability of the registration flow.
type AuthRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}
