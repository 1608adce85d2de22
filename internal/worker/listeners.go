// Package worker registra los listeners del bus que atienden personajes y usuarios.
package worker

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
	"pnp-generator/internal/repository"
	"pnp-generator/internal/service"
)

// CharacterListener atiende las rutas de personajes de un solo tipo de juego.
type CharacterListener struct {
	logger     *zap.Logger
	generator  *service.GenerationService
	characters *service.CharacterService
	identity   service.IdentityResolver
}

func NewCharacterListener(
	logger *zap.Logger,
	generator *service.GenerationService,
	characters *service.CharacterService,
	identity service.IdentityResolver,
) *CharacterListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CharacterListener{
		logger:     logger,
		generator:  generator,
		characters: characters,
		identity:   identity,
	}
}

// Register conecta las rutas directas y el topic desacoplado del tipo de juego.
func (l *CharacterListener) Register(srv *messaging.Server) {
	gameType := l.generator.GameType()
	srv.Handle(messaging.CreateCharacter, l.create)
	srv.HandleWithResult(messaging.GenerateTopic(gameType), messaging.GenerateFinished, l.generate)
	srv.Handle(messaging.GetAllCharacters, l.list)
	srv.Handle(messaging.DeleteCharacter, l.delete)
}

// forThisGame descarta requests de otro sistema de juego; otro worker los atiende.
func (l *CharacterListener) forThisGame(req messaging.Envelope) bool {
	want := l.generator.GameType().String()
	return strings.EqualFold(strings.TrimSpace(req.Action), want)
}

func (l *CharacterListener) create(ctx context.Context, req messaging.Envelope) (any, error) {
	if !l.forThisGame(req) {
		return nil, messaging.ErrIgnored
	}
	return l.generateFor(ctx, messaging.CreateCharacter, req)
}

// generate atiende el topic "<GAME>_generate"; la accion no se exige.
func (l *CharacterListener) generate(ctx context.Context, req messaging.Envelope) (any, error) {
	return l.generateFor(ctx, messaging.GenerateTopic(l.generator.GameType()), req)
}

func (l *CharacterListener) generateFor(ctx context.Context, key string, req messaging.Envelope) (any, error) {
	seed, err := messaging.RequestAs[*domain.Character](key, req)
	if err != nil {
		return nil, err
	}
	caller := l.identity.ResolveCaller(ctx, req.Header)
	return l.generator.Generate(ctx, seed, caller)
}

func (l *CharacterListener) list(ctx context.Context, req messaging.Envelope) (any, error) {
	if !l.forThisGame(req) {
		return nil, messaging.ErrIgnored
	}
	caller := l.identity.ResolveCaller(ctx, req.Header)
	return l.characters.List(ctx, caller)
}

func (l *CharacterListener) delete(ctx context.Context, req messaging.Envelope) (any, error) {
	if !l.forThisGame(req) {
		return nil, messaging.ErrIgnored
	}
	id, err := messaging.RequestAs[string](messaging.DeleteCharacter, req)
	if err != nil {
		return nil, err
	}
	caller := l.identity.ResolveCaller(ctx, req.Header)
	if err := l.characters.Delete(ctx, id, caller); err != nil {
		return nil, err
	}
	return nil, nil
}

// UserListener atiende GET_INTERNAL_USER y SAVE_NEW_USER.
type UserListener struct {
	logger *zap.Logger
	users  *service.UserService
}

func NewUserListener(logger *zap.Logger, users *service.UserService) *UserListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserListener{logger: logger, users: users}
}

func (l *UserListener) Register(srv *messaging.Server) {
	srv.Handle(messaging.GetInternalUser, l.getInternalUser)
	srv.Handle(messaging.SaveNewUser, l.saveNewUser)
}

// getInternalUser responde null si el usuario no existe.
func (l *UserListener) getInternalUser(ctx context.Context, req messaging.Envelope) (any, error) {
	externalID, err := messaging.RequestAs[string](messaging.GetInternalUser, req)
	if err != nil {
		return nil, err
	}
	if externalID == "" {
		externalID = req.Header.ExternalID
	}
	user, err := l.users.GetInternalUser(ctx, externalID)
	if errors.Is(err, service.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (l *UserListener) saveNewUser(ctx context.Context, req messaging.Envelope) (any, error) {
	user, err := messaging.RequestAs[domain.User](messaging.SaveNewUser, req)
	if err != nil {
		return nil, err
	}
	if user.ExternalID == "" {
		user.ExternalID = req.Header.ExternalID
	}
	return l.users.SaveNewUser(ctx, user)
}

// CatalogListener sirve las clases y genomas del catalogo de un tipo de juego.
type CatalogListener struct {
	logger   *zap.Logger
	catalog  repository.Catalog
	gameType domain.GameType
}

func NewCatalogListener(logger *zap.Logger, catalog repository.Catalog, gameType domain.GameType) *CatalogListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogListener{logger: logger, catalog: catalog, gameType: gameType}
}

func (l *CatalogListener) Register(srv *messaging.Server) {
	srv.Handle(messaging.ClassesKey(l.gameType), l.classes)
	srv.Handle(messaging.SpeciesKey(l.gameType), l.species)
}

func (l *CatalogListener) classes(ctx context.Context, _ messaging.Envelope) (any, error) {
	classes, err := l.catalog.ListClasses(ctx, l.gameType)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("classes served", zap.Int("count", len(classes)))
	return classes, nil
}

func (l *CatalogListener) species(ctx context.Context, _ messaging.Envelope) (any, error) {
	origins, err := l.catalog.ListOrigins(ctx, l.gameType)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("species served", zap.Int("count", len(origins)))
	return origins, nil
}
