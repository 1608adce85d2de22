package worker

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pnp-generator/internal/config"
	"pnp-generator/internal/dice"
	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
	"pnp-generator/internal/repository"
	"pnp-generator/internal/service"
)

// Setup arma el servidor del worker: catalogo, repositorios, servicios y listeners.
// Con pool nil usa repositorios en memoria.
func Setup(cfg *config.Config, bus messaging.Bus, pool *pgxpool.Pool, logger *zap.Logger) (*messaging.Server, error) {
	gameType, ok := domain.ParseGameType(cfg.GameType)
	if !ok {
		return nil, fmt.Errorf("unknown GAME_TYPE %q", cfg.GameType)
	}
	catalog, err := repository.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	source, err := dice.NewSource(cfg.RNGSeed)
	if err != nil {
		return nil, fmt.Errorf("dice source: %w", err)
	}

	var (
		characters repository.CharacterRepository
		users      repository.UserRepository
	)
	if pool != nil {
		characters = repository.NewPgCharacterRepository(pool)
		users = repository.NewPgUserRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		characters = repository.NewMemoryCharacterRepository()
		users = repository.NewMemoryUserRepository()
	}

	userSvc := service.NewUserService(logger, users)
	generator := service.NewGenerationService(logger, catalog, characters, source, gameType)
	identity := service.NewUserIdentityResolver(userSvc, logger)

	srv := messaging.NewServer(bus, messaging.WorkerGroup(gameType), logger, cfg.WorkerConcurrency)
	NewCharacterListener(logger, generator, service.NewCharacterService(logger, characters), identity).Register(srv)
	NewUserListener(logger, userSvc).Register(srv)
	NewCatalogListener(logger, catalog, gameType).Register(srv)
	return srv, nil
}

// Run arranca el servidor y bloquea hasta que ctx termine.
func Run(ctx context.Context, srv *messaging.Server) error {
	if err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}
