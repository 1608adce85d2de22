package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/repository"
)

// UserService coordina reglas de negocio para usuarios internos.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
	}
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already registered")
	ErrInvalidUser  = errors.New("invalid user")
	ErrInvalidEmail = errors.New("invalid email")
)

// SaveNewUser registra al usuario; un sujeto externo ya registrado da ErrUserExists.
// El rol nunca se toma del payload: todo usuario nuevo es USER.
func (s *UserService) SaveNewUser(ctx context.Context, input domain.User) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		return domain.User{}, ErrInvalidUser
	}
	email := normalizeEmail(input.Email)
	if strings.TrimSpace(input.Email) != "" && email == "" {
		return domain.User{}, ErrInvalidEmail
	}

	_, err := s.users.GetByExternalID(ctx, externalID)
	if err == nil {
		return domain.User{}, ErrUserExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}

	user := domain.User{
		ExternalID: externalID,
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Name:       strings.TrimSpace(input.Name),
		Email:      email,
		Role:       domain.RoleUser,
	}
	if user.Name == "" {
		user.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	created, err := s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrConflict) {
		return domain.User{}, ErrUserExists
	}
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", created.ID), zap.String("external_id", externalID))
	return created, nil
}

// GetInternalUser busca al usuario por su sujeto externo.
func (s *UserService) GetInternalUser(ctx context.Context, externalID string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByExternalID(ctx, externalID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

func normalizeEmail(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return ""
	}
	return raw
}
