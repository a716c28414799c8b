package ports

import (
	"context"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// RegisterInput is a self-registration request for a privileged role.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Role       string
	AccessCode string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
