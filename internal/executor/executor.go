package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"crossban/internal/config"
	"crossban/internal/logger"
	"crossban/internal/models"
	"crossban/internal/reconcile"
	"crossban/internal/reddit"
	"crossban/internal/service"
)

const (
	// extended sleep after the platform reports rate limiting
	rateLimitBackoff = 60 * time.Second
	// rate limit hits tolerated before the rest of the sub is abandoned
	maxBackoffs = 2
)

// Executor applies a reconciliation plan against one sub at a time, pacing
// actions through a token bucket instead of fixed sleeps.
type Executor struct {
	client  reddit.Client
	cfg     *config.Config
	limiter *rate.Limiter
	backoff time.Duration
}

// NewExecutor creates an Executor with the configured minimum action spacing
func NewExecutor(client reddit.Client, cfg *config.Config) *Executor {
	interval := time.Duration(cfg.Bot.ActionIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	return &Executor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		backoff: rateLimitBackoff,
	}
}

// Apply executes the plan's actions serially. Failures are isolated per
// action: one bad action never blocks the rest of the plan, except a
// permission error, which abandons the sub for this pass.
func (e *Executor) Apply(ctx context.Context, sub string, plan []reconcile.Action) {
	bansToday := service.BansIssuedToday()
	backoffs := 0

	for _, action := range plan {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}

		if action.Kind == reconcile.ActionBan &&
			e.cfg.Bot.DailyBanLimit > 0 && bansToday >= e.cfg.Bot.DailyBanLimit {
			logger.Warningf("Daily ban limit (%d) reached, deferring ban of u/%s in r/%s",
				e.cfg.Bot.DailyBanLimit, action.Username, sub)
			continue
		}

		err := e.execute(ctx, action)
		if err == nil {
			e.recordSuccess(action)
			if action.Kind == reconcile.ActionBan {
				bansToday++
			}
			continue
		}

		switch {
		case errors.Is(err, reddit.ErrTargetGone):
			logger.Infof("u/%s no longer exists, retiring record", action.Username)
			if retireErr := service.Retire(action.Username); retireErr != nil {
				logger.Warningf("Error retiring record for u/%s: %v", action.Username, retireErr)
			}
		case errors.Is(err, reddit.ErrRateLimited):
			backoffs++
			if backoffs > maxBackoffs {
				logger.Warningf("Rate limited %d times in r/%s, abandoning remainder of pass", backoffs, sub)
				return
			}
			logger.Warningf("Rate limited in r/%s, backing off %s: %v", sub, e.backoff, err)
			select {
			case <-time.After(e.backoff):
			case <-ctx.Done():
				return
			}
			// The action itself is abandoned and retried next pass
		case errors.Is(err, reddit.ErrForbidden):
			logger.Warningf("No ban rights in r/%s, skipping sub for this pass: %v", sub, err)
			return
		default:
			// Not every gone-account failure surfaces as ErrTargetGone;
			// some endpoints report free-form errors. Confirm against the
			// account itself before writing the failure off.
			if known, lookupErr := e.client.IsUserKnown(ctx, action.Username); lookupErr == nil && !known {
				logger.Infof("u/%s no longer exists, retiring record", action.Username)
				if retireErr := service.Retire(action.Username); retireErr != nil {
					logger.Warningf("Error retiring record for u/%s: %v", action.Username, retireErr)
				}
				continue
			}
			logger.Errorf("Error applying %s of u/%s in r/%s: %v", action.Kind, action.Username, sub, err)
		}
	}
}

func (e *Executor) execute(ctx context.Context, action reconcile.Action) error {
	switch action.Kind {
	case reconcile.ActionBan:
		note := fmt.Sprintf("%s: cross-sub ban from r/%s", e.cfg.Bot.ReasonTag, action.SourceSub)
		return e.client.Ban(ctx, action.TargetSub, action.Username, e.cfg.Bot.ReasonTag, note)
	case reconcile.ActionUnban:
		return e.client.Unban(ctx, action.TargetSub, action.Username)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (e *Executor) recordSuccess(action reconcile.Action) {
	outcome := models.OutcomeBanned
	if action.Kind == reconcile.ActionUnban {
		outcome = models.OutcomeUnbanned
	}
	logger.Infof("[%s] u/%s in r/%s (%s)", outcome, action.Username, action.TargetSub, action.Reason)
	service.RecordOutcome(outcome, action.Username, action.TargetSub, action.SourceSub, models.ActorAuto, action.Reason)
}
