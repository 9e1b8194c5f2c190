package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crossban/internal/models"
)

func outcome(action, username, src, actor string, at time.Time) *models.ActionOutcome {
	return &models.ActionOutcome{
		Action: action, Username: username, TargetSub: "s2", SourceSub: src, Actor: actor, CreatedAt: at,
	}
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	outcomes := []*models.ActionOutcome{
		outcome(models.OutcomeBanned, "alice", "s1", models.ActorAuto, now.Add(-time.Hour)),
		outcome(models.OutcomeBanned, "bob", "s1", models.ActorAuto, now.Add(-2*time.Hour)),
		outcome(models.OutcomeBanned, "carol", "s3", "mod1 (super)", now.AddDate(0, 0, -2)),
		// Unbans and out-of-week bans are not counted weekly
		outcome(models.OutcomeUnbanned, "dave", "s1", models.ActorAuto, now.Add(-time.Hour)),
		outcome(models.OutcomeBanned, "eve", "s1", models.ActorAuto, now.AddDate(0, 0, -9)),
	}

	report := BuildReport(outcomes, now)

	assert.Contains(t, report, "Daily ban count:")
	assert.Contains(t, report, "2026-08-29  r/s1  2")
	assert.Contains(t, report, "2026-08-27  r/s3  1")
	assert.Contains(t, report, "2026-08-20  r/s1  1")

	assert.Contains(t, report, "Weekly bans per sub:")
	assert.Contains(t, report, "r/s1  2")
	assert.Contains(t, report, "r/s3  1")

	assert.Contains(t, report, "Top banning moderators:")
	assert.Contains(t, report, "u/mod1 (super)  1")
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil, time.Now().UTC())
	assert.Contains(t, report, "none")
}
