package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fishbowl/internal/archive"
	"fishbowl/internal/config"
	"fishbowl/internal/game"
	"fishbowl/internal/handlers"
	"fishbowl/internal/logger"
	"fishbowl/internal/room"
)

const (
	pruneInterval = time.Minute
	pruneIdle     = 30 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("web", zerolog.InfoLevel)
		boot.Fatal().Err(err).Msg("load config")
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.New("web", level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snaps room.SnapshotStore = room.NewMemorySnapshots()
	if cfg.RedisAddr != "" {
		client, err := room.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
		}
		defer client.Close()
		snaps = room.NewRedisSnapshots(client, cfg.SnapshotTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("snapshots in redis")
	}

	var repo archive.Repository
	if cfg.ArchivePath != "" {
		db, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ArchivePath).Msg("open archive")
		}
		defer db.Close()
		repo = db
	}

	turn := game.DefaultTurnSettings()
	turn.Duration = cfg.DefaultTurn
	store := room.NewStore(room.Options{
		Snapshots: snaps,
		Archive:   repo,
		Logger:    logger.New("room", level),
		Turn:      turn,
	})
	defer store.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.RequestLogger(log))
	r.Use(middleware.Recoverer)

	handlers.NewHomeHandler(store, repo, log).RegisterRoutes(r)
	handlers.NewGameHandler(store, handlers.GameOptions{
		BaseURL:     cfg.BaseURL,
		CommandRate: cfg.CommandRate,
		Logger:      log,
	}).RegisterRoutes(r)

	// Event streams and websockets stay open, so there is no write timeout.
	// They end with the signal context, which lets Shutdown drain.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.Prune(pruneIdle)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Msgf("listening on http://localhost%s", cfg.Addr())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("serve")
	}
}
