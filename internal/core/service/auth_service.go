package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

// AuthService implements self-registration for privileged roles and login.
// It is the caller of the consumption service: an account is only created
// after the presented access code (or the manager secret) checks out.
type AuthService struct {
	repo          ports.AuthRepository
	codes         ports.ConsumptionService
	managerSecret string
	jwtSecret     string
	tokenTTL      time.Duration
	log           zerolog.Logger
}

func NewAuthService(
	repo ports.AuthRepository,
	codes ports.ConsumptionService,
	managerSecret, jwtSecret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		repo:          repo,
		codes:         codes,
		managerSecret: managerSecret,
		jwtSecret:     jwtSecret,
		tokenTTL:      tokenTTL,
		log:           log,
	}
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.AccessCode) == "" {
		return nil, fmt.Errorf("%w: access code is required", domain.ErrInvalidInput)
	}

	// Refuse known accounts before a code gets burned on them.
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: lookup user: %w", err)
	}

	if role == domain.RoleManager {
		if !s.managerSecretMatches(in.AccessCode) {
			return nil, domain.ErrInvalidAccessCode
		}
	} else {
		if _, err := s.codes.ValidateAndConsume(ctx, ports.ConsumeInput{
			Role:             role,
			Code:             in.AccessCode,
			ConsumerIdentity: email,
		}); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if !errors.Is(err, domain.ErrUserExists) {
			s.log.Error().Err(err).Str("email", email).Str("role", string(role)).Msg("user creation failed after access code check")
		}
		return nil, err
	}

	s.log.Info().Str("email", email).Str("role", string(role)).Msg("privileged user registered")
	return created, nil
}

// managerSecretMatches compares in constant time. An unset secret disables
// manager self-registration.
func (s *AuthService) managerSecretMatches(presented string) bool {
	if s.managerSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(s.managerSecret)) == 1
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
