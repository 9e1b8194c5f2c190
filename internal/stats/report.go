package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"crossban/internal/models"
)

// BuildReport renders ban activity from the public action log: daily ban
// counts per source sub, weekly per-sub totals and the most active
// moderators. Output is deterministic for a given input.
func BuildReport(outcomes []*models.ActionOutcome, now time.Time) string {
	weekAgo := now.AddDate(0, 0, -7)

	dailyCounts := make(map[string]map[string]int)
	weeklyCounts := make(map[string]int)
	actorCounts := make(map[string]int)

	for _, outcome := range outcomes {
		if outcome.Action != models.OutcomeBanned {
			continue
		}
		src := outcome.SourceSub
		if src == "" {
			src = "unknown"
		}
		day := outcome.CreatedAt.UTC().Format("2006-01-02")
		if dailyCounts[day] == nil {
			dailyCounts[day] = make(map[string]int)
		}
		dailyCounts[day][src]++

		if !outcome.CreatedAt.Before(weekAgo) {
			weeklyCounts[src]++
		}
		if outcome.Actor != "" && outcome.Actor != models.ActorAuto {
			actorCounts[outcome.Actor]++
		}
	}

	var b strings.Builder

	b.WriteString("Daily ban count:\n")
	days := sortedKeys(dailyCounts)
	for i := len(days) - 1; i >= 0; i-- {
		day := days[i]
		for _, sub := range sortedIntKeys(dailyCounts[day]) {
			fmt.Fprintf(&b, "  %s  r/%s  %d\n", day, sub, dailyCounts[day][sub])
		}
	}
	if len(days) == 0 {
		b.WriteString("  none\n")
	}

	b.WriteString("\nWeekly bans per sub:\n")
	writeCounts(&b, weeklyCounts, "r/")

	b.WriteString("\nTop banning moderators:\n")
	writeCounts(&b, actorCounts, "u/")

	return b.String()
}

// writeCounts renders a count map sorted by descending count, then name
func writeCounts(b *strings.Builder, counts map[string]int, prefix string) {
	if len(counts) == 0 {
		b.WriteString("  none\n")
		return
	}
	names := sortedIntKeys(counts)
	sort.SliceStable(names, func(i, j int) bool {
		return counts[names[i]] > counts[names[j]]
	})
	for _, name := range names {
		fmt.Fprintf(b, "  %s%s  %d\n", prefix, name, counts[name])
	}
}

func sortedKeys(m map[string]map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
