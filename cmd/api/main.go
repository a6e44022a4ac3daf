package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dude/internal/assets"
	"dude/internal/gateway"
	"dude/internal/generation"
	"dude/internal/http/handlers"
	httpapi "dude/internal/http/httpapi"
	"dude/internal/infra"
	"dude/internal/infra/geoip"
	"dude/internal/notify"
	"dude/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	gatewayClient, err := gateway.NewClient(gateway.Options{
		APIKey:  cfg.GatewayAPIKey,
		BaseURL: cfg.GatewayBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation gateway")
	}

	library := assets.NewLibrary(runner, fileStore, logger)
	controller, err := generation.NewController(generation.ControllerOptions{
		Gateway:  gatewayClient,
		Library:  library,
		Media:    fileStore,
		Journal:  generation.NewPGJournal(runner),
		Notifier: notify.NewLogNotifier(logger),
		Store:    generation.NewStore(),
		Logger:   logger,
		Config: generation.Config{
			PollInterval:      cfg.PollInterval,
			GenerationTimeout: cfg.GenerationTimeout,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation controller")
	}
	defer controller.Close()

	// Pick up any operation that was in flight when the previous process died.
	if err := controller.Recover(ctx); err != nil {
		logger.Warn().Err(err).Msg("generation recovery failed")
	}

	countries, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	app := &handlers.App{
		Config:     cfg,
		Logger:     logger,
		Controller: controller,
		Library:    library,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, countries))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
