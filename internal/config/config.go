package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	DispatchDirect    = "direct"
	DispatchDecoupled = "decoupled"
)

// Config centraliza la configuración del servicio y del worker.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`

	GameType          string        `env:"GAME_TYPE" envDefault:"GENEFUNK"`
	DispatchMode      string        `env:"DISPATCH_MODE" envDefault:"direct"`
	RPCTimeout        time.Duration `env:"RPC_TIMEOUT" envDefault:"10s"`
	ReplyTTL          time.Duration `env:"REPLY_TTL" envDefault:"10m"`
	ReplyCacheMax     int           `env:"REPLY_CACHE_MAX" envDefault:"10000"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"8"`
	CatalogPath       string        `env:"CATALOG_PATH"`
	RNGSeed           int64         `env:"RNG_SEED" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DispatchMode {
	case DispatchDirect, DispatchDecoupled:
	default:
		return fmt.Errorf("DISPATCH_MODE must be %q or %q, got %q", DispatchDirect, DispatchDecoupled, c.DispatchMode)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT must be positive")
	}
	return nil
}

// Decoupled indica si la generacion se despacha fire-and-forget.
func (c *Config) Decoupled() bool {
	return c.DispatchMode == DispatchDecoupled
}
