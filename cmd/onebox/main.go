package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/api"
	"github.com/mikey/onebox/internal/bootstrap"
	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/di"
	"github.com/mikey/onebox/internal/imapsync"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	seeder *bootstrap.Seeder,
	pipeline *core.EmailPipeline,
	accounts []core.AccountConfig,
	server *api.Server,
	llmClient core.LLMClient,
	cache core.CategoryCache,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prepare the index, the vector collection and the seed snippets
	seeder.Run(ctx)

	// Start mailbox synchronization for every configured account
	syncCfg := cfg.GetSync()
	normalizer := imapsync.NewNormalizer(logger)
	var managers []*imapsync.Manager
	for _, account := range accounts {
		if account.Host == "" || account.User == "" {
			logger.Warn("Skipping account without credentials",
				zap.String("account_id", account.AccountID))
			continue
		}

		session := imapsync.NewSession(account, logger)
		manager := imapsync.NewManager(account, session, pipeline, normalizer, logger,
			syncCfg.BackfillWindow, syncCfg.WatchdogInterval)
		if err := manager.Start(ctx); err != nil {
			logger.Error("Failed to start mailbox sync",
				zap.String("account_id", account.AccountID),
				zap.Error(err))
			continue
		}
		managers = append(managers, manager)
		logger.Info("Mailbox sync started",
			zap.String("account_id", account.AccountID),
			zap.Strings("folders", account.Folders))
	}

	// Start the HTTP API
	server.Start()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")
	cancel()

	for _, manager := range managers {
		manager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop API server", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
