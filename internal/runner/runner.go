package runner

import (
	"context"
	"errors"
	"time"

	"crossban/internal/config"
	"crossban/internal/crash"
	"crossban/internal/executor"
	"crossban/internal/ingest"
	"crossban/internal/logger"
	"crossban/internal/modcache"
	"crossban/internal/models"
	"crossban/internal/override"
	"crossban/internal/reconcile"
	"crossban/internal/reddit"
	"crossban/internal/service"
	"crossban/internal/stats"
)

// Runner drives one reconciliation pass end to end: ingestion and overrides
// first, then enforcement per trusted sub. Passes for different subs share
// one ledger snapshot and one moderator cache, both scoped to the pass.
type Runner struct {
	client reddit.Client
	cfg    *config.Config
}

// New creates a Runner
func New(client reddit.Client, cfg *config.Config) *Runner {
	return &Runner{client: client, cfg: cfg}
}

// RunPass performs one full pass. It may be interrupted between subs; all
// ledger mutations are keyed and idempotent, so partial progress is safe.
func (r *Runner) RunPass(ctx context.Context) {
	defer crash.RecoverWithStack("reconciliation-pass")

	started := time.Now()
	logger.Infof("Starting pass over %d trusted subs", len(r.cfg.Bot.TrustedSubs))

	service.PruneExpired(r.cfg.Bot.RetentionDays)

	mods := modcache.New(r.client)

	// Phase 1: fold mod log events and modmail overrides into the ledger
	ingestor := ingest.NewIngestor(r.client, r.cfg, mods)
	resolver := override.NewResolver(r.client, r.cfg, mods)
	for _, sub := range r.cfg.Bot.TrustedSubs {
		if ctx.Err() != nil {
			return
		}
		if err := ingestor.IngestSub(ctx, sub); err != nil {
			logger.Warningf("Ingestion skipped for r/%s: %v", sub, err)
		}
		if err := resolver.ProcessSub(ctx, sub); err != nil {
			logger.Warningf("Modmail check skipped for r/%s: %v", sub, err)
		}
	}

	// Phase 2: re-sync the ledger snapshot and enforce it sub by sub
	records, err := service.ActiveRecords()
	if err != nil {
		logger.Errorf("Ledger unavailable, aborting pass: %v", err)
		return
	}

	exec := executor.NewExecutor(r.client, r.cfg)
	for _, sub := range r.cfg.Bot.TrustedSubs {
		if ctx.Err() != nil {
			return
		}
		r.enforceSub(ctx, sub, records, mods, exec)
	}

	logger.Infof("Pass finished in %s", time.Since(started).Round(time.Second))
	report := stats.BuildReport(service.OutcomesSince(time.Now().UTC().AddDate(0, 0, -7)), time.Now().UTC())
	logger.Debugf("Weekly activity:\n%s", report)
}

// enforceSub reconciles one sub's live ban list against the ledger snapshot
func (r *Runner) enforceSub(ctx context.Context, sub string, records []*models.BanRecord, mods *modcache.ModeratorCache, exec *executor.Executor) {
	banned, err := r.client.ListBannedUsers(ctx, sub)
	if err != nil {
		if errors.Is(err, reddit.ErrForbidden) {
			logger.Warningf("No access to ban list of r/%s, skipping sub", sub)
		} else {
			logger.Warningf("Error listing bans of r/%s, skipping sub: %v", sub, err)
		}
		return
	}

	liveBans := make(map[string]string, len(banned))
	for _, b := range banned {
		liveBans[b.Username] = b.Note
	}

	exemptUsers := make(map[string]bool, len(r.cfg.Bot.ExemptUsers))
	for _, u := range r.cfg.Bot.ExemptUsers {
		exemptUsers[u] = true
	}

	plan := reconcile.BuildPlan(reconcile.Input{
		Sub:         sub,
		Records:     records,
		LiveBans:    liveBans,
		Moderators:  mods.Moderators(ctx, sub),
		ExemptUsers: exemptUsers,
		ReasonTag:   r.cfg.Bot.ReasonTag,
	})
	if len(plan) == 0 {
		logger.Debugf("r/%s already consistent with ledger", sub)
		return
	}

	logger.Infof("Applying %d actions in r/%s", len(plan), sub)
	exec.Apply(ctx, sub, plan)
}
