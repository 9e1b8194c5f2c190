package modcache

import (
	"context"
	"sync"

	"crossban/internal/logger"
	"crossban/internal/models"
	"crossban/internal/reddit"
)

// ModeratorCache is a read-through cache of per-sub moderator lists scoped
// to a single reconciliation pass. It is created at the start of a pass and
// discarded with it, so moderator changes are picked up on the next run.
type ModeratorCache struct {
	client reddit.Client

	mu   sync.RWMutex
	subs map[string]map[string]bool
}

// New creates an empty cache backed by the given client
func New(client reddit.Client) *ModeratorCache {
	return &ModeratorCache{
		client: client,
		subs:   make(map[string]map[string]bool),
	}
}

// Moderators returns the moderator set for a sub, fetching it on first use.
// A fetch failure is logged and cached as an empty set for the rest of the
// pass, matching the "unknown means not a moderator" reading.
func (c *ModeratorCache) Moderators(ctx context.Context, sub string) map[string]bool {
	sub = models.NormalizeSub(sub)

	c.mu.RLock()
	mods, ok := c.subs[sub]
	c.mu.RUnlock()
	if ok {
		return mods
	}

	mods = make(map[string]bool)
	names, err := c.client.ListModerators(ctx, sub)
	if err != nil {
		logger.Warningf("Error listing moderators of r/%s: %v", sub, err)
	} else {
		for _, name := range names {
			mods[models.NormalizeUsername(name)] = true
		}
	}

	c.mu.Lock()
	c.subs[sub] = mods
	c.mu.Unlock()
	return mods
}

// IsModerator reports whether username moderates sub
func (c *ModeratorCache) IsModerator(ctx context.Context, sub, username string) bool {
	return c.Moderators(ctx, sub)[models.NormalizeUsername(username)]
}
