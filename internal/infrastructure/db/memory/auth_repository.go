package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// AuthRepository implements ports.AuthRepository in memory, keyed by e-mail.
type AuthRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewAuthRepository() *AuthRepository {
	return &AuthRepository{users: make(map[string]domain.User)}
}

func (r *AuthRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.users[key]; exists {
		return nil, domain.ErrUserExists
	}
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[key] = u
	return &u, nil
}

func (r *AuthRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}
