package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/slate/internal/api"
	"github.com/mattjoyce/slate/internal/auth"
	"github.com/mattjoyce/slate/internal/config"
	"github.com/mattjoyce/slate/internal/lock"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/scheduler"
	"github.com/mattjoyce/slate/internal/webhook"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("slate starting", "version", version, "config", *configPath)

	lockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.AcquirePIDLock(lockPath)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			logger.Error("another slate instance is running", "path", lockPath, "error", err)
		} else {
			logger.Error("failed to acquire instance lock", "path", lockPath, "error", err)
		}
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired instance lock", "path", lockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer rt.Close(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 2)

	if cfg.API.Enabled {
		server := api.New(apiConfig(cfg), api.Deps{
			Bus:          rt.bus,
			Actions:      rt.dispatcher,
			Jobs:         rt.jobs.Store(),
			Applications: rt.apps,
			Hub:          rt.hub,
		}, log.WithComponent("api"))
		go func() {
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	if len(cfg.Webhooks.Endpoints) > 0 {
		hooksConfig, err := webhook.FromConfig(cfg.Webhooks)
		if err != nil {
			logger.Error("failed to configure webhooks", "error", err)
			return 1
		}
		hooks := webhook.New(hooksConfig, rt.bus, log.WithComponent("webhook"))
		go func() {
			if err := hooks.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("webhook: %w", err)
			}
		}()
		logger.Info("webhook server enabled", "listen", hooksConfig.Listen, "endpoints", len(hooksConfig.Endpoints))
	}

	sched := scheduler.New(cfg.Maintenance, cfg.Applications, rt.apps, rt.jobs.Store(), rt.hub, log.Get())
	sched.Start(ctx)
	defer sched.Stop()

	logger.Info("slate running (press Ctrl+C to stop)",
		"actions", len(rt.dispatcher.Descriptors()),
		"applications", len(rt.apps.Applications()))

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("slate stopped")
	return 0
}

func apiConfig(cfg *config.Config) api.Config {
	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	return api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
		Tokens: tokens,
	}
}
