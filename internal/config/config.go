package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	BaseURL  string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// ArchivePath is the SQLite file for finished sessions. Empty disables it.
	ArchivePath string

	DefaultTurn time.Duration
	// CommandRate bounds commands per second on one websocket.
	CommandRate float64
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	cfg := Config{
		Port:          get("PORT", "8080"),
		BaseURL:       strings.TrimRight(get("BASE_URL", ""), "/"),
		LogLevel:      get("LOG_LEVEL", "info"),
		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD"),
		ArchivePath:   get("ARCHIVE_PATH", ""),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil || cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB: invalid value %q", getenv("REDIS_DB"))
	}
	if cfg.SnapshotTTL, err = time.ParseDuration(get("SNAPSHOT_TTL", "6h")); err != nil || cfg.SnapshotTTL <= 0 {
		return Config{}, fmt.Errorf("SNAPSHOT_TTL: invalid value %q", getenv("SNAPSHOT_TTL"))
	}
	secs, err := strconv.Atoi(get("DEFAULT_TURN_SECONDS", "60"))
	if err != nil || secs < 5 || secs > 600 {
		return Config{}, fmt.Errorf("DEFAULT_TURN_SECONDS: want 5..600, got %q", getenv("DEFAULT_TURN_SECONDS"))
	}
	cfg.DefaultTurn = time.Duration(secs) * time.Second
	if cfg.CommandRate, err = strconv.ParseFloat(get("COMMAND_RATE", "10"), 64); err != nil || cfg.CommandRate <= 0 {
		return Config{}, fmt.Errorf("COMMAND_RATE: invalid value %q", getenv("COMMAND_RATE"))
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}
