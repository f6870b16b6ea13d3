package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/agents"
	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/snappy-loop/bulletin/internal/handlers"
	"github.com/snappy-loop/bulletin/internal/mcpserver"
	"github.com/snappy-loop/bulletin/internal/services"
	"github.com/snappy-loop/bulletin/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("provider", cfg.GenerationProvider).Msg("Starting One Minute Bulletin")

	provider, err := agents.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize generation provider")
	}
	defer provider.Close()

	introCtx, introCancel := context.WithTimeout(context.Background(), 30*time.Second)
	intro := storage.LoadIntro(introCtx, cfg)
	introCancel()
	bulletins := services.NewBulletinService(provider.Audio, provider.Image, intro, cfg)
	h := handlers.NewHandler(bulletins, cfg)

	r := mux.NewRouter()
	h.Routes(r)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	if cfg.MCPEnabled {
		mcp := mcpserver.NewServer(bulletins)
		r.Handle("/mcp", mcpserver.AuthMiddleware(cfg.MCPToken)(mcp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
