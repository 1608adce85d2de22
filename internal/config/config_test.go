package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "GAME_TYPE", "DISPATCH_MODE", "RPC_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.GameType != "GENEFUNK" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RPCTimeout != 10*time.Second || cfg.Decoupled() {
		t.Fatalf("expected direct dispatch with 10s timeout, got %s %s", cfg.DispatchMode, cfg.RPCTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DISPATCH_MODE", "decoupled")
	t.Setenv("RPC_TIMEOUT", "250ms")
	t.Setenv("WORKER_CONCURRENCY", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Decoupled() || cfg.RPCTimeout != 250*time.Millisecond || cfg.WorkerConcurrency != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigRejectsUnknownDispatchMode(t *testing.T) {
	t.Setenv("DISPATCH_MODE", "carrier-pigeon")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected validation error")
	}
}
