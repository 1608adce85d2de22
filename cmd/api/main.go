package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pnp-generator/internal/config"
	"pnp-generator/internal/db"
	"pnp-generator/internal/domain"
	apihttp "pnp-generator/internal/http"
	"pnp-generator/internal/messaging"
	"pnp-generator/internal/service"
	"pnp-generator/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	gameType, ok := domain.ParseGameType(cfg.GameType)
	if !ok {
		logger.Fatal("unknown game type", zap.String("game_type", cfg.GameType))
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	g, ctx := errgroup.WithContext(ctx)

	var (
		bus     messaging.Bus
		replies messaging.ReplyCache
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		cancel()
		bus = messaging.NewRedisBus(redisClient, logger)
		replies = messaging.NewRedisReplyCache(redisClient, cfg.ReplyTTL)
	} else {
		// Sin Redis el worker corre dentro del mismo proceso sobre un bus en memoria.
		logger.Warn("REDIS_ADDR not set, running embedded worker on in-memory bus")
		memBus := messaging.NewMemoryBus()
		memCache := messaging.NewMemoryReplyCache(cfg.ReplyTTL, cfg.ReplyCacheMax)
		g.Go(func() error {
			memCache.Run(ctx, time.Minute)
			return nil
		})
		bus, replies = memBus, memCache

		var pool *pgxpool.Pool
		if cfg.DatabaseURL != "" {
			pool, err = db.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				logger.Fatal("db connect", zap.Error(err))
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				logger.Fatal("db migrate", zap.Error(err))
			}
		}
		srv, err := worker.Setup(cfg, memBus, pool, logger)
		if err != nil {
			logger.Fatal("worker setup", zap.Error(err))
		}
		g.Go(func() error { return worker.Run(ctx, srv) })
	}

	if cfg.Decoupled() {
		sub, err := messaging.NewReplyListener(bus, replies, messaging.GenerateFinished, logger).Start(ctx)
		if err != nil {
			logger.Fatal("reply listener", zap.Error(err))
		}
		defer sub.Close()
	}

	dispatcher := messaging.NewDispatcher(bus, logger, cfg.RPCTimeout, replies)
	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	userHandler := apihttp.NewUserHandler(logger, service.NewUserInfoProducer(dispatcher), jwtSvc)
	characterHandler := apihttp.NewCharacterHandler(logger, service.NewCharacterProducer(logger, dispatcher, cfg.Decoupled()), gameType)
	catalogHandler := apihttp.NewCatalogHandler(logger, service.NewCatalogProducer(dispatcher), gameType)
	router := apihttp.NewRouter(logger, jwtSvc, userHandler, characterHandler, catalogHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("dispatch_mode", cfg.DispatchMode),
			zap.Duration("rpc_timeout", cfg.RPCTimeout),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
