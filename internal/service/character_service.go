package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/repository"
)

var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrForbidden         = errors.New("character does not belong to caller")
)

// CharacterService aplica las reglas de visibilidad sobre personajes guardados.
type CharacterService struct {
	logger     *zap.Logger
	characters repository.CharacterRepository
}

func NewCharacterService(logger *zap.Logger, characters repository.CharacterRepository) *CharacterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CharacterService{logger: logger, characters: characters}
}

// List devuelve todo a un admin, lo propio a un usuario y nada a un llamante sin resolver.
func (s *CharacterService) List(ctx context.Context, caller domain.CallerIdentity) ([]domain.Character, error) {
	switch {
	case !caller.Resolved():
		return []domain.Character{}, nil
	case caller.IsAdmin():
		return s.characters.ListAll(ctx)
	default:
		return s.characters.ListByOwner(ctx, caller.ID)
	}
}

// Delete permite a un admin borrar cualquier personaje y a un usuario solo los suyos.
func (s *CharacterService) Delete(ctx context.Context, id string, caller domain.CallerIdentity) error {
	if caller.IsAdmin() {
		if err := s.characters.Delete(ctx, id); err != nil {
			return mapCharacterErr(err)
		}
		s.logger.Info("admin deleted character", zap.String("character_id", id), zap.String("admin_id", caller.ID))
		return nil
	}

	character, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return mapCharacterErr(err)
	}
	if !caller.Resolved() || character.OwnerID != caller.ID {
		s.logger.Warn("unauthorized character deletion attempt", zap.String("character_id", id), zap.String("caller_id", caller.ID))
		return ErrForbidden
	}
	if err := s.characters.Delete(ctx, id); err != nil {
		return mapCharacterErr(err)
	}
	s.logger.Info("user deleted character", zap.String("character_id", id), zap.String("user_id", caller.ID))
	return nil
}

func mapCharacterErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCharacterNotFound
	}
	return err
}
