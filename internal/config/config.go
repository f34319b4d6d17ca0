// Package config loads runtime configuration from built-in defaults, an
// optional .env file, and PLUNKIT_-prefixed environment variables, using
// the godotenv-based environment loading used elsewhere in the retrieved
// corpus. It reads no command-line flags; cmd/plunkit-server applies its
// own flags on top of the loaded Config.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every tunable the core and its collaborators need.
type Config struct {
	GameAddr             string
	HTTPAddr             string
	StorageDSN           string
	CompressionThreshold int
	ViewDistance         int32
	SandboxFuelBudget    uint64
	SandboxMemoryLimit   uint32
	SandboxTableLimit    uint32
}

// Default returns the spec's documented defaults: game port 25565, HTTP
// management port 3001, view distance 2, compression disabled.
func Default() Config {
	return Config{
		GameAddr:             ":25565",
		HTTPAddr:             ":3001",
		StorageDSN:           "",
		CompressionThreshold: 0,
		ViewDistance:         2,
		SandboxFuelBudget:    1_000_000_000,
		SandboxMemoryLimit:   512 * 1024 * 1024,
		SandboxTableLimit:    10_000,
	}
}

// Load starts from Default(), applies a .env file if present (silently
// ignored if absent, matching godotenv.Load's conventional use), then
// applies PLUNKIT_-prefixed environment variable overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("config: no .env file loaded")
	}

	cfg := Default()
	if v, ok := os.LookupEnv("PLUNKIT_GAME_ADDR"); ok {
		cfg.GameAddr = v
	}
	if v, ok := os.LookupEnv("PLUNKIT_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("PLUNKIT_STORAGE_DSN"); ok {
		cfg.StorageDSN = v
	}
	if v, ok := os.LookupEnv("PLUNKIT_COMPRESSION_THRESHOLD"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CompressionThreshold = n
		}
	}
	if v, ok := os.LookupEnv("PLUNKIT_VIEW_DISTANCE"); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.ViewDistance = int32(n)
		}
	}
	if v, ok := os.LookupEnv("PLUNKIT_SANDBOX_FUEL_BUDGET"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.SandboxFuelBudget = n
		}
	}
	if v, ok := os.LookupEnv("PLUNKIT_SANDBOX_MEMORY_LIMIT"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.SandboxMemoryLimit = uint32(n)
		}
	}
	return cfg
}
