package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/mailmerge/internal/api"
	"github.com/blockedby/mailmerge/internal/app"
	"github.com/blockedby/mailmerge/internal/config"
	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/web"
)

const (
	apiTitle       = "Mailmerge API"
	apiDescription = "Validate and run personalized bulk mail dispatches"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting mailmerge server")

	// 3. Setup context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 4. Run config
	rc, err := config.LoadRunConfig(cfg.RunConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RunConfigPath).Msg("failed to load run config")
	}

	// 5. Graph, audit sinks, history, nats
	components, err := app.Build(ctx, cfg, rc, app.Options{}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dispatch components")
	}
	defer components.Close()

	// 6. WebSocket hub
	hub := web.NewHub()
	go hub.Run()
	defer hub.Stop()

	// 7. Dispatcher
	runner := dispatcher.NewRunner(components.Deps(web.NewHubNotifier(hub)))
	manager := dispatcher.NewRunManager(runner)

	// 8. API
	deps := &api.Dependencies{
		Manager:   manager,
		RunConfig: rc,
		Preflight: components.Preflight,
	}
	if components.History != nil {
		deps.History = components.History
	}

	apiServer := api.NewServer(&api.Config{
		Port:        cfg.HTTPPort,
		Title:       apiTitle,
		Description: apiDescription,
		Version:     "1.0.0",
	}, deps)

	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, apiServer.Handler(), hub)
	apiServer.MountDocsOn(server.Router(), apiTitle, apiDescription)

	// 9. Start
	log.Info().Int("port", cfg.HTTPPort).Msg("starting http server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()

	// 10. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	manager.Stop()
	if active := manager.Current(); active != nil {
		select {
		case <-active.Done():
			if out := active.Outcome(); out != nil {
				log.Info().
					Str("run_id", active.ID.String()).
					Int("processed", out.Processed).
					Int("requested", out.Requested).
					Msg("run stopped for shutdown")
			}
		case <-time.After(30 * time.Second):
			log.Warn().Str("run_id", active.ID.String()).Msg("run did not stop in time")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	log.Info().Msg("shutdown complete")
}
