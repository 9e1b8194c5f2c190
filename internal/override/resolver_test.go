package override

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crossban/internal/config"
	"crossban/internal/modcache"
	"crossban/internal/models"
	"crossban/internal/reddit"
	"crossban/internal/service"
)

// fakeClient serves canned modmail and moderator lists and records replies
type fakeClient struct {
	reddit.Client
	modmail    map[string][]reddit.ModmailCommand
	moderators map[string][]string
	replies    map[string]string
}

func (f *fakeClient) ListModmailCommands(_ context.Context, sub string) ([]reddit.ModmailCommand, error) {
	return f.modmail[sub], nil
}

func (f *fakeClient) ListModerators(_ context.Context, sub string) ([]string, error) {
	return f.moderators[sub], nil
}

func (f *fakeClient) ReplyModmail(_ context.Context, conversationID, body string) error {
	if f.replies == nil {
		f.replies = make(map[string]string)
	}
	f.replies[conversationID] = body
	return nil
}

func setupLedger(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	service.UseDatabase(db)
}

func newResolver(client reddit.Client) *Resolver {
	cfg := &config.Config{Bot: config.BotConfig{
		ReasonTag:   "Auto XSub Pact Ban",
		TrustedSubs: []string{"s1", "s2"},
	}}
	return NewResolver(client, cfg, modcache.New(client))
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/xsub pardon u/Alice")
	require.True(t, ok)
	assert.Equal(t, Command{Action: "pardon", Username: "alice"}, cmd)

	cmd, ok = ParseCommand("/XSUB ban u/bob repeated harassment")
	require.True(t, ok)
	assert.Equal(t, "ban", cmd.Action)
	assert.Equal(t, "bob", cmd.Username)
	assert.Equal(t, "repeated harassment", cmd.Reason)

	cmd, ok = ParseCommand("/xsub status")
	require.True(t, ok)
	assert.Equal(t, "status", cmd.Action)

	for _, body := range []string{
		"",
		"hello mods",
		"/xsub",
		"/xsub pardon",
		"/xsub frobnicate u/alice",
		"pardon u/alice",
	} {
		_, ok := ParseCommand(body)
		assert.False(t, ok, "body %q", body)
	}
}

func TestPardonCreatesPlaceholder(t *testing.T) {
	setupLedger(t)
	resolver := newResolver(&fakeClient{})

	reply, err := resolver.Apply(Command{Action: "pardon", Username: "alice"}, "mod1", "s1", "convo-1")
	require.NoError(t, err)
	assert.Contains(t, reply, "u/alice has been forgiven")

	record := service.FindRecord("alice")
	require.NotNil(t, record)
	assert.Equal(t, models.OriginManual, record.OriginSub)
	assert.True(t, record.IsForgiven())
	assert.Equal(t, "mod1", record.OverriddenBy)

	// Re-issuing the pardon is a safe no-op
	_, err = resolver.Apply(Command{Action: "pardon", Username: "alice"}, "mod2", "s2", "convo-2")
	require.NoError(t, err)
	record = service.FindRecord("alice")
	assert.Equal(t, "mod1", record.OverriddenBy)
}

func TestExemptReportsNotFound(t *testing.T) {
	setupLedger(t)
	resolver := newResolver(&fakeClient{})

	reply, err := resolver.Apply(Command{Action: "exempt", Username: "alice"}, "mod1", "s3", "convo-1")
	require.NoError(t, err)
	assert.Contains(t, reply, "No ban record found")

	require.NoError(t, service.RecordBan(&models.BanRecord{
		Username: "alice", OriginSub: "s1", SourceLogID: "log-1",
	}))

	reply, err = resolver.Apply(Command{Action: "exempt", Username: "alice"}, "mod1", "s3", "convo-2")
	require.NoError(t, err)
	assert.Contains(t, reply, "exempted from bans in r/s3")

	record := service.FindRecord("alice")
	assert.True(t, record.ExemptIn("s3"))
	assert.False(t, record.IsForgiven())
}

func TestManualBanIsIdempotentPerConversation(t *testing.T) {
	setupLedger(t)
	resolver := newResolver(&fakeClient{})

	cmd := Command{Action: "ban", Username: "troll", Reason: "ban evasion"}
	_, err := resolver.Apply(cmd, "mod1", "s1", "convo-1")
	require.NoError(t, err)

	record := service.FindRecord("troll")
	require.NotNil(t, record)
	assert.Equal(t, "s1", record.OriginSub)
	assert.Equal(t, "manual:convo-1", record.SourceLogID)

	// Redelivered modmail must not duplicate or reset the record
	_, err = resolver.Apply(cmd, "mod1", "s1", "convo-1")
	require.NoError(t, err)
	records, err := service.ActiveRecords()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestManualUnbanForgives(t *testing.T) {
	setupLedger(t)
	resolver := newResolver(&fakeClient{})

	require.NoError(t, service.RecordBan(&models.BanRecord{
		Username: "alice", OriginSub: "s1", SourceLogID: "log-1",
	}))

	reply, err := resolver.Apply(Command{Action: "unban", Username: "alice"}, "mod1", "s2", "convo-1")
	require.NoError(t, err)
	assert.Contains(t, reply, "unbanned across all trusted subs")
	assert.True(t, service.FindRecord("alice").IsForgiven())
}

func TestStatusReturnsReport(t *testing.T) {
	setupLedger(t)
	resolver := newResolver(&fakeClient{})

	service.RecordOutcome(models.OutcomeBanned, "alice", "s2", "s1", models.ActorAuto, "")

	reply, err := resolver.Apply(Command{Action: "status", Username: ""}, "mod1", "s1", "convo-1")
	require.NoError(t, err)
	assert.Contains(t, reply, "Weekly bans per sub")
	assert.Contains(t, reply, "r/s1")
}

func TestProcessSubIgnoresNonModerators(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{
		modmail: map[string][]reddit.ModmailCommand{"s1": {
			{ConversationID: "convo-1", Sub: "s1", Sender: "rando", Body: "/xsub pardon u/alice"},
			{ConversationID: "convo-2", Sub: "s1", Sender: "mod1", Body: "/xsub pardon u/bob"},
			{ConversationID: "convo-3", Sub: "s1", Sender: "mod1", Body: "unrelated question"},
		}},
		moderators: map[string][]string{"s1": {"mod1"}},
	}
	resolver := newResolver(client)

	require.NoError(t, resolver.ProcessSub(context.Background(), "s1"))

	assert.Nil(t, service.FindRecord("alice"))
	require.NotNil(t, service.FindRecord("bob"))

	// Only the authorized command got a reply
	assert.NotContains(t, client.replies, "convo-1")
	assert.Contains(t, client.replies["convo-2"], "u/bob has been forgiven")
	assert.NotContains(t, client.replies, "convo-3")
}
