package reconcile

import (
	"fmt"
	"strings"

	"crossban/internal/models"
)

// ActionKind distinguishes ban from unban plan entries
type ActionKind string

const (
	ActionBan   ActionKind = "ban"
	ActionUnban ActionKind = "unban"
)

// Action is one corrective step of a reconciliation plan
type Action struct {
	Kind      ActionKind
	Username  string
	TargetSub string
	SourceSub string
	Reason    string
}

// Input is everything a plan computation needs: the ledger snapshot, the
// target sub's live ban list and the pass-scoped screening sets.
type Input struct {
	Sub         string
	Records     []*models.BanRecord
	LiveBans    map[string]string // username -> ban note
	Moderators  map[string]bool
	ExemptUsers map[string]bool
	ReasonTag   string
}

// BuildPlan compares the ledger snapshot against the target sub's live ban
// list and returns the corrective actions. Each record is visited exactly
// once and records are unique per username, so the plan carries at most one
// action per user.
func BuildPlan(in Input) []Action {
	sub := models.NormalizeSub(in.Sub)
	var plan []Action

	for _, record := range in.Records {
		if record.IsRetired() {
			continue
		}

		username := record.Username
		note, banned := in.LiveBans[username]
		tagged := banned && TaggedBan(note, in.ReasonTag)

		if record.IsForgiven() || record.ExemptIn(sub) {
			// Override state only ever lifts our own bans
			if tagged {
				reason := "forgiven"
				if !record.IsForgiven() {
					reason = fmt.Sprintf("exempt in r/%s", sub)
				}
				plan = append(plan, Action{
					Kind:      ActionUnban,
					Username:  username,
					TargetSub: sub,
					SourceSub: record.OriginSub,
					Reason:    reason,
				})
			}
			continue
		}

		if in.ExemptUsers[username] || in.Moderators[username] {
			continue
		}

		if !tagged {
			plan = append(plan, Action{
				Kind:      ActionBan,
				Username:  username,
				TargetSub: sub,
				SourceSub: record.OriginSub,
				Reason:    fmt.Sprintf("cross-sub ban from r/%s", record.OriginSub),
			})
		}
	}
	return plan
}

// TaggedBan reports whether a live ban's note identifies it as bot-issued.
// Matching is case-insensitive substring containment.
func TaggedBan(note, reasonTag string) bool {
	if reasonTag == "" {
		return false
	}
	return strings.Contains(strings.ToLower(note), strings.ToLower(reasonTag))
}
