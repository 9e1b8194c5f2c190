package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crossban/internal/config"
	"crossban/internal/logger"
	"crossban/internal/modcache"
	"crossban/internal/models"
	"crossban/internal/reddit"
	"crossban/internal/service"
)

// Ingestor folds one trusted sub's moderation log into the ledger.
type Ingestor struct {
	client reddit.Client
	cfg    *config.Config
	mods   *modcache.ModeratorCache
}

// NewIngestor creates an Ingestor sharing the pass-scoped moderator cache
func NewIngestor(client reddit.Client, cfg *config.Config, mods *modcache.ModeratorCache) *Ingestor {
	return &Ingestor{client: client, cfg: cfg, mods: mods}
}

// IngestSub scans the sub's recent moderation actions and folds qualifying
// ban and unban events into the ledger. A platform failure for this sub is
// returned to the caller and must not affect other subs' ingestion.
func (ing *Ingestor) IngestSub(ctx context.Context, sub string) error {
	sub = models.NormalizeSub(sub)
	actions, err := ing.client.ListModerationActions(ctx, sub, ing.cfg.Bot.ModLogLimit)
	if err != nil {
		return fmt.Errorf("listing mod log of r/%s: %w", sub, err)
	}

	cutoff := time.Now().UTC().Add(-ing.cfg.Bot.Lookback())
	ingested := 0
	for _, action := range actions {
		if action.CreatedAt.Before(cutoff) {
			continue
		}

		switch action.Action {
		case reddit.ActionBanUser:
			if ing.ingestBan(ctx, sub, action) {
				ingested++
			}
		case reddit.ActionUnbanUser:
			ing.ingestUnban(sub, action)
		}
	}

	if ingested > 0 {
		logger.Infof("Ingested %d ban events from r/%s", ingested, sub)
	}
	return nil
}

// ingestBan creates a ledger record for a qualifying ban action
func (ing *Ingestor) ingestBan(ctx context.Context, sub string, action reddit.ModAction) bool {
	if !ing.matchesReasonTag(action) {
		return false
	}
	username := models.NormalizeUsername(action.TargetUser)
	if username == "" {
		return false
	}
	if ing.cfg.Bot.IsExemptUser(username) {
		return false
	}
	if ing.mods.IsModerator(ctx, sub, username) {
		logger.Debugf("Skipping ban of u/%s: moderator of origin r/%s", username, sub)
		return false
	}
	// Idempotency: the same log entry is never folded twice, and a user
	// already in the ledger is never recorded again from another origin.
	if service.HasIngested(action.ID) {
		return false
	}
	if service.FindRecord(username) != nil {
		return false
	}

	record := &models.BanRecord{
		Username:    username,
		OriginSub:   sub,
		ReasonTag:   ing.cfg.Bot.ReasonTag,
		SourceLogID: action.ID,
	}
	if err := service.RecordBan(record); err != nil {
		logger.Warningf("Error recording ban of u/%s from r/%s: %v", username, sub, err)
		return false
	}
	logger.Infof("Recorded cross-sub ban of u/%s from r/%s (log %s)", username, sub, action.ID)
	return true
}

// ingestUnban interprets an observed unban as a forgiveness signal: global
// when issued in the record's origin sub, a local exemption otherwise.
func (ing *Ingestor) ingestUnban(sub string, action reddit.ModAction) {
	username := models.NormalizeUsername(action.TargetUser)
	record := service.FindRecord(username)
	if record == nil || record.IsRetired() {
		return
	}

	if sub == record.OriginSub {
		if record.IsForgiven() {
			return
		}
		if err := service.Forgive(username, action.Moderator, sub); err != nil {
			logger.Warningf("Error forgiving u/%s after unban in r/%s: %v", username, sub, err)
			return
		}
		logger.Infof("u/%s forgiven: unbanned in origin r/%s by %s", username, sub, action.Moderator)
		return
	}

	if record.ExemptIn(sub) {
		return
	}
	if _, err := service.Exempt(username, sub); err != nil {
		logger.Warningf("Error exempting u/%s in r/%s: %v", username, sub, err)
		return
	}
	logger.Infof("u/%s exempted in r/%s: local unban observed", username, sub)
}

// matchesReasonTag reports whether the action's free text carries the
// system's reason tag. Matching is case-insensitive substring containment.
func (ing *Ingestor) matchesReasonTag(action reddit.ModAction) bool {
	tag := strings.ToLower(ing.cfg.Bot.ReasonTag)
	if tag == "" {
		return false
	}
	return strings.Contains(strings.ToLower(action.Description), tag) ||
		strings.Contains(strings.ToLower(action.Detail), tag)
}
