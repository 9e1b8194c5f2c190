package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crossban/internal/config"
	"crossban/internal/crash"
	"crossban/internal/logger"
	"crossban/internal/reddit"
	"crossban/internal/runner"
	"crossban/internal/service"
	"crossban/internal/storage"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")

	// Define command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single reconciliation pass and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging first
	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	// The ledger is the single source of truth; there is nothing to
	// reconcile against without it.
	if !cfg.Database.Enabled {
		log.Fatalf("Database must be enabled: the ledger lives there")
	}
	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	service.Initialize(cfg)
	service.InitRepositories()

	client := reddit.NewHTTPClient(cfg.Reddit)
	r := runner.New(client, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		r.RunPass(ctx)
		return
	}

	interval := time.Duration(cfg.Bot.PassIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	crash.SafeGoroutine("pass-loop", func() {
		r.RunPass(ctx)
		for {
			select {
			case <-ticker.C:
				r.RunPass(ctx)
			case <-ctx.Done():
				return
			}
		}
	})

	// Create a channel for receiving OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for signal
	sig := <-sigChan
	log.Printf("Received signal: %v, shutting down...", sig)

	// A pass may be interrupted between subs; ledger mutations are
	// idempotent so the next run picks up cleanly.
	cancel()
	log.Println("Shutdown complete")
}
