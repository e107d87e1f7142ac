package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/di"
	"github.com/mikey/phish-triage/internal/ports"
)

func main() {
	_ = godotenv.Load()

	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	gateways []ports.Gateway,
	analyzer core.Analyzer,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	if len(gateways) == 0 {
		logger.Warn("No gateways enabled, nothing to serve")
	}

	var g errgroup.Group
	for _, gw := range gateways {
		g.Go(gw.Start)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		for _, gw := range gateways {
			if err := gw.Stop(); err != nil {
				logger.Error("Failed to stop gateway", zap.Error(err))
			}
		}
	}()

	err := g.Wait()

	// Close any resources that need closing
	if closer, ok := analyzer.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("Failed to close analyzer client", zap.Error(cerr))
		}
	}
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return err
}
