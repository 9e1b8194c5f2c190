package reddit

import (
	"context"
	"time"
)

// mod log action kinds this system cares about
const (
	ActionBanUser   = "banuser"
	ActionUnbanUser = "unbanuser"
)

// ModAction is one entry of a sub's moderation log
type ModAction struct {
	ID          string
	Action      string
	Sub         string
	Moderator   string
	TargetUser  string
	Description string
	Detail      string
	CreatedAt   time.Time
}

// BannedUser is one entry of a sub's live ban list
type BannedUser struct {
	Username string
	Note     string
}

// ModmailCommand is the latest message of a modmail conversation, used as
// the command channel for pardon/exempt/ban/unban/status commands.
type ModmailCommand struct {
	ConversationID string
	Sub            string
	Sender         string
	Body           string
}

// Client is the moderation platform surface the reconciler runs against.
// Implementations map platform failures onto the sentinel errors in this
// package so callers can classify them with errors.Is.
type Client interface {
	// ListModerationActions returns up to limit entries of the sub's
	// moderation log, newest first.
	ListModerationActions(ctx context.Context, sub string, limit int) ([]ModAction, error)
	// ListBannedUsers returns the sub's live ban list.
	ListBannedUsers(ctx context.Context, sub string) ([]BannedUser, error)
	// Ban bans username in sub with the given reason tag and note.
	Ban(ctx context.Context, sub, username, reasonTag, note string) error
	// Unban lifts a ban on username in sub.
	Unban(ctx context.Context, sub, username string) error
	// ListModerators returns the usernames of the sub's moderators.
	ListModerators(ctx context.Context, sub string) ([]string, error)
	// IsUserKnown reports whether the account still exists on the platform.
	IsUserKnown(ctx context.Context, username string) (bool, error)
	// ListModmailCommands returns the latest message of each open modmail
	// conversation addressed to the sub.
	ListModmailCommands(ctx context.Context, sub string) ([]ModmailCommand, error)
	// ReplyModmail posts a reply into a modmail conversation.
	ReplyModmail(ctx context.Context, conversationID, body string) error
}
