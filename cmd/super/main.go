// Superuser tool: manually ban or unban a user across every trusted sub,
// bypassing the mod log. Actions are paced and logged like reconciliation
// actions so the public action log stays complete.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/time/rate"

	"crossban/internal/config"
	"crossban/internal/logger"
	"crossban/internal/models"
	"crossban/internal/reddit"
	"crossban/internal/service"
	"crossban/internal/storage"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: super -action <ban|unban> -user u/<username> [-reason <text>]\n")
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	action := flag.String("action", "", "Action to perform (ban or unban)")
	user := flag.String("user", "", "Target username")
	reason := flag.String("reason", "Manual override", "Reason recorded with the action")
	flag.Parse()

	if (*action != "ban" && *action != "unban") || *user == "" {
		usage()
	}
	username := models.NormalizeUsername(*user)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	if cfg.Database.Enabled {
		if err := storage.Initialize(cfg); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		service.Initialize(cfg)
		service.InitRepositories()
	}

	client := reddit.NewHTTPClient(cfg.Reddit)
	ctx := context.Background()

	actor := cfg.Reddit.Username + " (super)"
	limiter := rate.NewLimiter(rate.Every(time.Duration(cfg.Bot.ActionIntervalSeconds)*time.Second), 1)

	logger.Infof("Superuser %s of u/%s across %v", *action, username, cfg.Bot.TrustedSubs)

	failures := 0
	for _, sub := range cfg.Bot.TrustedSubs {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		switch *action {
		case "ban":
			note := fmt.Sprintf("%s: superuser manual ban. Reason: %s", cfg.Bot.ReasonTag, *reason)
			err = client.Ban(ctx, sub, username, cfg.Bot.ReasonTag, note)
			if err == nil {
				logger.Infof("[BANNED] u/%s in r/%s", username, sub)
				service.RecordOutcome(models.OutcomeBanned, username, sub, models.OriginManual, actor, *reason)
			}
		case "unban":
			err = client.Unban(ctx, sub, username)
			if err == nil {
				logger.Infof("[UNBANNED] u/%s in r/%s", username, sub)
				service.RecordOutcome(models.OutcomeUnbanned, username, sub, models.OriginManual, actor, *reason)
			}
		}

		if err != nil {
			failures++
			logger.Errorf("Failed in r/%s for u/%s: %v", sub, username, err)
		}
	}

	// Keep the ledger consistent with what was just done by hand
	if cfg.Database.Enabled {
		switch *action {
		case "ban":
			if existing := service.FindRecord(username); existing == nil {
				record := &models.BanRecord{
					Username:    username,
					OriginSub:   models.OriginManual,
					ReasonTag:   cfg.Bot.ReasonTag,
					SourceLogID: fmt.Sprintf("super:%s:%d", username, time.Now().UTC().Unix()),
				}
				if err := service.RecordBan(record); err != nil {
					logger.Warningf("Error recording manual ban in ledger: %v", err)
				}
			}
		case "unban":
			if err := service.Forgive(username, actor, models.OriginManual); err != nil {
				logger.Warningf("Error recording forgiveness in ledger: %v", err)
			}
		}
	}

	logger.Infof("Superuser %s complete for u/%s (%d failures)", *action, username, failures)
	if failures > 0 {
		os.Exit(1)
	}
}
