package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossban/internal/models"
)

const reasonTag = "Auto XSub Pact Ban"

func record(username, origin string) *models.BanRecord {
	return &models.BanRecord{Username: username, OriginSub: origin}
}

func input(sub string, records ...*models.BanRecord) Input {
	return Input{
		Sub:         sub,
		Records:     records,
		LiveBans:    map[string]string{},
		Moderators:  map[string]bool{},
		ExemptUsers: map[string]bool{},
		ReasonTag:   reasonTag,
	}
}

func TestBanEmittedForUnbannedUser(t *testing.T) {
	in := input("s2", record("alice", "s1"))

	plan := BuildPlan(in)

	require.Len(t, plan, 1)
	assert.Equal(t, ActionBan, plan[0].Kind)
	assert.Equal(t, "alice", plan[0].Username)
	assert.Equal(t, "s2", plan[0].TargetSub)
	assert.Equal(t, "s1", plan[0].SourceSub)
}

func TestNoActionWhenAlreadyTagged(t *testing.T) {
	in := input("s2", record("alice", "s1"))
	in.LiveBans["alice"] = "auto xsub pact ban: cross-sub ban from r/s1"

	assert.Empty(t, BuildPlan(in))
}

func TestForgivenEmitsUnban(t *testing.T) {
	rec := record("alice", "s1")
	now := time.Now().UTC()
	rec.Forgive("mod1", "s1", now)

	// Banned with our tag in s2: must be lifted
	in := input("s2", rec)
	in.LiveBans["alice"] = reasonTag + ": cross-sub ban from r/s1"

	plan := BuildPlan(in)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUnban, plan[0].Kind)
	assert.Equal(t, "forgiven", plan[0].Reason)

	// Not banned in s3: forgiveness never produces a ban
	assert.Empty(t, BuildPlan(input("s3", rec)))
}

func TestForgivenNeverRebansAnywhere(t *testing.T) {
	rec := record("alice", "s1")
	rec.Forgive("mod1", "s1", time.Now().UTC())

	for _, sub := range []string{"s1", "s2", "s3"} {
		for _, action := range BuildPlan(input(sub, rec)) {
			assert.NotEqual(t, ActionBan, action.Kind)
		}
	}
}

func TestExemptionIsLocal(t *testing.T) {
	rec := record("alice", "s1")
	rec.AddExemptSub("s3")

	// Exempt sub with a tagged live ban: unban
	in := input("s3", rec)
	in.LiveBans["alice"] = reasonTag
	plan := BuildPlan(in)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUnban, plan[0].Kind)
	assert.Equal(t, "exempt in r/s3", plan[0].Reason)

	// Other subs still enforce the ban
	plan = BuildPlan(input("s2", rec))
	require.Len(t, plan, 1)
	assert.Equal(t, ActionBan, plan[0].Kind)
}

func TestUntaggedBanIsNeverLifted(t *testing.T) {
	rec := record("alice", "s1")
	rec.Forgive("mod1", "s1", time.Now().UTC())

	// The ban belongs to the sub's own moderators, not to us
	in := input("s2", rec)
	in.LiveBans["alice"] = "spamming the wiki"

	assert.Empty(t, BuildPlan(in))
}

func TestModeratorsAndStaticExemptsAreNotBanned(t *testing.T) {
	in := input("s2", record("alice", "s1"), record("bob", "s1"))
	in.Moderators["alice"] = true
	in.ExemptUsers["bob"] = true

	assert.Empty(t, BuildPlan(in))
}

func TestRetiredRecordIsSkipped(t *testing.T) {
	rec := record("alice", "s1")
	rec.Retire(time.Now().UTC())

	assert.Empty(t, BuildPlan(input("s2", rec)))
}

func TestAtMostOneActionPerUser(t *testing.T) {
	records := []*models.BanRecord{
		record("alice", "s1"),
		record("bob", "s1"),
		record("carol", "s2"),
	}
	now := time.Now().UTC()
	records[1].Forgive("mod1", "s1", now)

	in := input("s2", records...)
	in.LiveBans["bob"] = reasonTag

	plan := BuildPlan(in)
	seen := map[string]int{}
	for _, action := range plan {
		seen[action.Username]++
	}
	for user, count := range seen {
		assert.Equal(t, 1, count, "user %s", user)
	}
}

func TestTaggedBan(t *testing.T) {
	assert.True(t, TaggedBan("AUTO XSUB PACT BAN", reasonTag))
	assert.True(t, TaggedBan("note: auto xsub pact ban from r/s1", reasonTag))
	assert.False(t, TaggedBan("manual ban for spam", reasonTag))
	assert.False(t, TaggedBan("anything", ""))
}
