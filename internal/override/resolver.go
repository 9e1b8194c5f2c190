package override

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
	"crossban/internal/stats"
)

// commandPrefix marks modmail messages addressed to this bot
const commandPrefix = "/xsub"

// Command is one parsed override request from the command channel
type Command struct {
	Action   string
	Username string
	Reason   string
}

// Resolver applies pardon, exemption and manual override commands received
// through each trusted sub's modmail onto the ledger.
type Resolver struct {
	client reddit.Client
	cfg    *config.Config
	mods   *modcache.ModeratorCache
}

// NewResolver creates a Resolver sharing the pass-scoped moderator cache
func NewResolver(client reddit.Client, cfg *config.Config, mods *modcache.ModeratorCache) *Resolver {
	return &Resolver{client: client, cfg: cfg, mods: mods}
}

// ProcessSub scans the sub's modmail for commands from its moderators and
// applies them. A platform failure for this sub is returned to the caller
// and must not affect other subs.
func (r *Resolver) ProcessSub(ctx context.Context, sub string) error {
	sub = models.NormalizeSub(sub)
	commands, err := r.client.ListModmailCommands(ctx, sub)
	if err != nil {
		return fmt.Errorf("listing modmail of r/%s: %w", sub, err)
	}

	for _, mail := range commands {
		cmd, ok := ParseCommand(mail.Body)
		if !ok {
			continue
		}
		// Authorization: the sender must moderate the sub they act for
		if !r.mods.IsModerator(ctx, sub, mail.Sender) {
			logger.Debugf("Ignoring %s command from non-moderator u/%s in r/%s", cmd.Action, mail.Sender, sub)
			continue
		}

		reply, err := r.Apply(cmd, mail.Sender, sub, mail.ConversationID)
		if err != nil {
			logger.Warningf("Error applying %s for u/%s from r/%s: %v", cmd.Action, cmd.Username, sub, err)
			reply = fmt.Sprintf("Failed to apply %s for u/%s, please retry later.", cmd.Action, cmd.Username)
		}
		if replyErr := r.client.ReplyModmail(ctx, mail.ConversationID, reply); replyErr != nil {
			logger.Warningf("Error replying to modmail %s: %v", mail.ConversationID, replyErr)
		}
	}
	return nil
}

// ParseCommand parses a modmail body into a command. It returns false for
// messages that are not addressed to the bot.
func ParseCommand(body string) (Command, bool) {
	fields := strings.Fields(body)
	if len(fields) < 2 || !strings.EqualFold(fields[0], commandPrefix) {
		return Command{}, false
	}

	cmd := Command{Action: strings.ToLower(fields[1])}
	switch cmd.Action {
	case "status":
		return cmd, true
	case "pardon", "exempt", "ban", "unban":
		if len(fields) < 3 {
			return Command{}, false
		}
		cmd.Username = models.NormalizeUsername(fields[2])
		if cmd.Username == "" {
			return Command{}, false
		}
		if len(fields) > 3 {
			cmd.Reason = strings.Join(fields[3:], " ")
		}
		return cmd, true
	default:
		return Command{}, false
	}
}

// Apply executes a parsed command on behalf of sender acting for sub and
// returns the reply text. Every branch is an idempotent ledger mutation;
// enforcement itself happens in the next reconciliation phase.
func (r *Resolver) Apply(cmd Command, sender, sub, conversationID string) (string, error) {
	switch cmd.Action {
	case "pardon":
		if err := service.Forgive(cmd.Username, sender, sub); err != nil {
			return "", err
		}
		return fmt.Sprintf("u/%s has been forgiven and will not be banned.", cmd.Username), nil

	case "exempt":
		found, err := service.Exempt(cmd.Username, sub)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("No ban record found for u/%s.", cmd.Username), nil
		}
		return fmt.Sprintf("u/%s has been exempted from bans in r/%s.", cmd.Username, sub), nil

	case "ban":
		if err := r.manualBan(cmd, sender, sub, conversationID); err != nil {
			return "", err
		}
		return fmt.Sprintf("u/%s will be banned across all trusted subs.", cmd.Username), nil

	case "unban":
		// A manual unban is global forgiveness; reconciliation lifts the
		// bans sub by sub.
		if err := service.Forgive(cmd.Username, sender, sub); err != nil {
			return "", err
		}
		return fmt.Sprintf("u/%s will be unbanned across all trusted subs.", cmd.Username), nil

	case "status":
		report := stats.BuildReport(service.OutcomesSince(time.Now().UTC().AddDate(0, 0, -7)), time.Now().UTC())
		return report, nil

	default:
		return "", fmt.Errorf("unknown command %q", cmd.Action)
	}
}

// manualBan records a superuser ban in the ledger. The conversation id is
// the idempotency key, so redelivery of the same modmail is a no-op.
func (r *Resolver) manualBan(cmd Command, sender, sub, conversationID string) error {
	sourceLogID := "manual:" + conversationID
	if service.HasIngested(sourceLogID) {
		return nil
	}
	if existing := service.FindRecord(cmd.Username); existing != nil {
		return nil
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "Manual override"
	}
	record := &models.BanRecord{
		Username:    cmd.Username,
		OriginSub:   sub,
		ReasonTag:   r.cfg.Bot.ReasonTag,
		SourceLogID: sourceLogID,
	}
	if err := service.RecordBan(record); err != nil {
		return err
	}
	logger.Infof("Manual ban of u/%s recorded by u/%s from r/%s (%s)", cmd.Username, sender, sub, reason)
	return nil
}
