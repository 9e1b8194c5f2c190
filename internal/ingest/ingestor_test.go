package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crossban/internal/config"
	"crossban/internal/modcache"
	"crossban/internal/reddit"
	"crossban/internal/service"
)

const reasonTag = "Auto XSub Pact Ban"

// fakeClient serves canned mod logs and moderator lists; everything else
// panics via the embedded nil interface.
type fakeClient struct {
	reddit.Client
	actions    map[string][]reddit.ModAction
	moderators map[string][]string
	logErr     error
}

func (f *fakeClient) ListModerationActions(_ context.Context, sub string, _ int) ([]reddit.ModAction, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	return f.actions[sub], nil
}

func (f *fakeClient) ListModerators(_ context.Context, sub string) ([]string, error) {
	return f.moderators[sub], nil
}

func testConfig() *config.Config {
	return &config.Config{Bot: config.BotConfig{
		ReasonTag:       reasonTag,
		TrustedSubs:     []string{"s1", "s2"},
		ExemptUsers:     []string{"protected"},
		LookbackMinutes: 45,
		ModLogLimit:     100,
	}}
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

func banAction(id, sub, user string) reddit.ModAction {
	return reddit.ModAction{
		ID:          id,
		Action:      reddit.ActionBanUser,
		Sub:         sub,
		Moderator:   "mod1",
		TargetUser:  user,
		Description: reasonTag,
		CreatedAt:   time.Now().UTC(),
	}
}

func newIngestor(client reddit.Client) *Ingestor {
	return NewIngestor(client, testConfig(), modcache.New(client))
}

func TestIngestCreatesRecord(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{actions: map[string][]reddit.ModAction{
		"s1": {banAction("log-1", "s1", "Alice")},
	}}

	require.NoError(t, newIngestor(client).IngestSub(context.Background(), "s1"))

	record := service.FindRecord("alice")
	require.NotNil(t, record)
	assert.Equal(t, "s1", record.OriginSub)
	assert.Equal(t, "log-1", record.SourceLogID)
	assert.False(t, record.IsForgiven())
}

func TestIngestIsIdempotent(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{actions: map[string][]reddit.ModAction{
		"s1": {banAction("log-1", "s1", "alice")},
	}}
	ing := newIngestor(client)

	require.NoError(t, ing.IngestSub(context.Background(), "s1"))
	require.NoError(t, ing.IngestSub(context.Background(), "s1"))

	records, err := service.ActiveRecords()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestIngestCoalescesPerUser(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{actions: map[string][]reddit.ModAction{
		"s1": {banAction("log-1", "s1", "alice")},
		"s2": {banAction("log-2", "s2", "alice")},
	}}
	ing := newIngestor(client)

	require.NoError(t, ing.IngestSub(context.Background(), "s1"))
	require.NoError(t, ing.IngestSub(context.Background(), "s2"))

	records, err := service.ActiveRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].OriginSub)
}

func TestIngestSkipsNonQualifyingActions(t *testing.T) {
	setupLedger(t)

	unrelated := banAction("log-1", "s1", "alice")
	unrelated.Description = "spamming"

	stale := banAction("log-2", "s1", "bob")
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)

	modTarget := banAction("log-3", "s1", "themod")
	exempt := banAction("log-4", "s1", "protected")

	client := &fakeClient{
		actions:    map[string][]reddit.ModAction{"s1": {unrelated, stale, modTarget, exempt}},
		moderators: map[string][]string{"s1": {"themod"}},
	}

	require.NoError(t, newIngestor(client).IngestSub(context.Background(), "s1"))

	records, err := service.ActiveRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIngestSubstringTagMatch(t *testing.T) {
	setupLedger(t)

	action := banAction("log-1", "s1", "alice")
	action.Description = "removed under the auto xsub pact ban policy"
	client := &fakeClient{actions: map[string][]reddit.ModAction{"s1": {action}}}

	require.NoError(t, newIngestor(client).IngestSub(context.Background(), "s1"))
	assert.NotNil(t, service.FindRecord("alice"))
}

func TestUnbanInOriginForgives(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{actions: map[string][]reddit.ModAction{
		"s1": {banAction("log-1", "s1", "alice")},
	}}
	ing := newIngestor(client)
	require.NoError(t, ing.IngestSub(context.Background(), "s1"))

	client.actions["s1"] = []reddit.ModAction{{
		ID:         "log-2",
		Action:     reddit.ActionUnbanUser,
		Sub:        "s1",
		Moderator:  "mod1",
		TargetUser: "alice",
		CreatedAt:  time.Now().UTC(),
	}}
	require.NoError(t, ing.IngestSub(context.Background(), "s1"))

	record := service.FindRecord("alice")
	require.NotNil(t, record)
	assert.True(t, record.IsForgiven())
	assert.Equal(t, "mod1", record.OverriddenBy)
	assert.Equal(t, "s1", record.OverrideSub)
}

func TestUnbanElsewhereExemptsLocally(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{actions: map[string][]reddit.ModAction{
		"s1": {banAction("log-1", "s1", "alice")},
	}}
	ing := newIngestor(client)
	require.NoError(t, ing.IngestSub(context.Background(), "s1"))

	client.actions["s2"] = []reddit.ModAction{{
		ID:         "log-2",
		Action:     reddit.ActionUnbanUser,
		Sub:        "s2",
		Moderator:  "mod2",
		TargetUser: "alice",
		CreatedAt:  time.Now().UTC(),
	}}
	require.NoError(t, ing.IngestSub(context.Background(), "s2"))

	record := service.FindRecord("alice")
	require.NotNil(t, record)
	assert.False(t, record.IsForgiven())
	assert.True(t, record.ExemptIn("s2"))
	assert.False(t, record.ExemptIn("s1"))
}

func TestIngestReturnsPlatformError(t *testing.T) {
	setupLedger(t)
	client := &fakeClient{logErr: reddit.ErrForbidden}

	err := newIngestor(client).IngestSub(context.Background(), "s1")
	assert.ErrorIs(t, err, reddit.ErrForbidden)
}
