package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/chat"
	"github.com/finpersona/backend/internal/config"
	"github.com/finpersona/backend/internal/intelligence"
	"github.com/finpersona/backend/internal/logging"
	"github.com/finpersona/backend/internal/recommend"
	"github.com/finpersona/backend/internal/server"
	"github.com/finpersona/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	st, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	adv := advisor.NewOpenAIAdvisor(logger, advisor.Options{
		APIKey:      cfg.Advisor.APIKey,
		BaseURL:     cfg.Advisor.BaseURL,
		Model:       cfg.Advisor.Model,
		CallTimeout: cfg.Advisor.CallTimeout,
	})

	recommender := recommend.NewService(st, adv, logger)
	recommender.WithConcurrency(cfg.Advisor.CandidateConcurrency)
	intel := intelligence.NewService(st, adv, logger)

	chatWorker := chat.NewWorker(st, adv, logger, cfg.Chat.QueueSize)
	go chatWorker.Start(ctx)

	if cfg.Jobs.RefreshEnabled {
		logger.Info("background refresh enabled", "interval", cfg.Jobs.RefreshInterval)
		go intel.RunPeriodicRefresh(ctx, cfg.Jobs.RefreshInterval, cfg.Jobs.InterUserDelay)
	}

	apiHandlers := server.NewAPIHandlers(logger, recommender, intel, chatWorker, st)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: st},
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
	}
}

// buildStore connects to the document store, falling back to the in-memory
// store when no URI is configured so local development works out of the box.
func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Store, error) {
	if cfg.Store.URI == "" {
		logger.Warn("STORE_URI not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	opts := store.Options{
		URI:            cfg.Store.URI,
		Database:       cfg.Store.Database,
		ConnectTimeout: cfg.Store.ConnectTimeout,
	}
	return store.NewMongoStore(ctx, opts)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
