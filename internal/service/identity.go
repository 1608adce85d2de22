package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
)

// IdentityResolver traduce el header de un request en la identidad de quien llama.
// Nunca falla: un llamante desconocido se devuelve como domain.UnknownCaller.
type IdentityResolver interface {
	ResolveCaller(ctx context.Context, header messaging.Header) domain.CallerIdentity
}

// UserLookup la implementan UserService (local) y UserInfoProducer (por el bus).
type UserLookup interface {
	GetInternalUser(ctx context.Context, externalID string) (domain.User, error)
}

// UserIdentityResolver resuelve contra el registro de usuarios (repositorio o bus).
type UserIdentityResolver struct {
	users  UserLookup
	logger *zap.Logger
}

func NewUserIdentityResolver(users UserLookup, logger *zap.Logger) *UserIdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserIdentityResolver{users: users, logger: logger}
}

func (r *UserIdentityResolver) ResolveCaller(ctx context.Context, header messaging.Header) domain.CallerIdentity {
	externalID := strings.TrimSpace(header.ExternalID)
	if externalID == "" || r.users == nil {
		return domain.UnknownCaller()
	}
	user, err := r.users.GetInternalUser(ctx, externalID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			r.logger.Warn("caller lookup failed", zap.String("external_id", externalID), zap.Error(err))
		}
		return domain.UnknownCaller()
	}
	return domain.CallerIdentity{
		ID:   user.ExternalID,
		Role: normalizeRole(user.Role),
	}
}

func normalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return domain.RoleUser
	}
	return role
}
