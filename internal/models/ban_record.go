package models

import (
	"sort"
	"strings"
	"time"
)

// OriginManual marks records created by a pardon or manual command rather
// than an observed mod log event.
const OriginManual = "manual"

// BanRecord is one row of the cross-sub ban ledger. There is at most one
// record per username; bans of the same user observed later from other
// origin subs do not create additional rows.
type BanRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	OriginSub    string `gorm:"index;size:64;not null"`
	ReasonTag    string `gorm:"size:255"`
	SourceLogID  string `gorm:"uniqueIndex;size:128"`
	OverriddenBy string `gorm:"size:64;default:''"`
	OverrideSub  string `gorm:"size:64;default:''"`
	ForgivenAt   *time.Time
	ExemptSubs   string `gorm:"type:text"`
	RetiredAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeUsername lowercases a username and strips the u/ prefix
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "u/"))
}

// NormalizeSub lowercases a sub name and strips the r/ prefix
func NormalizeSub(sub string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(sub), "r/"))
}

// IsForgiven reports whether the record is globally forgiven
func (r *BanRecord) IsForgiven() bool {
	return r.ForgivenAt != nil
}

// IsRetired reports whether the record is inert
func (r *BanRecord) IsRetired() bool {
	return r.RetiredAt != nil
}

// Forgive marks the record globally forgiven. It is a no-op if already forgiven.
func (r *BanRecord) Forgive(moderator, sub string, at time.Time) bool {
	if r.IsForgiven() {
		return false
	}
	r.ForgivenAt = &at
	r.OverriddenBy = NormalizeUsername(moderator)
	r.OverrideSub = NormalizeSub(sub)
	return true
}

// Retire marks the record inert. It is a no-op if already retired.
func (r *BanRecord) Retire(at time.Time) bool {
	if r.IsRetired() {
		return false
	}
	r.RetiredAt = &at
	return true
}

// ExemptIn reports whether the record carries a per-sub exemption for sub
func (r *BanRecord) ExemptIn(sub string) bool {
	sub = NormalizeSub(sub)
	for _, s := range r.exemptList() {
		if s == sub {
			return true
		}
	}
	return false
}

// AddExemptSub adds a per-sub exemption. It returns false if the sub was
// already exempt, making repeated exemption commands safe no-ops.
func (r *BanRecord) AddExemptSub(sub string) bool {
	sub = NormalizeSub(sub)
	if sub == "" || r.ExemptIn(sub) {
		return false
	}
	subs := append(r.exemptList(), sub)
	sort.Strings(subs)
	r.ExemptSubs = strings.Join(subs, ",")
	return true
}

func (r *BanRecord) exemptList() []string {
	if r.ExemptSubs == "" {
		return nil
	}
	parts := strings.Split(r.ExemptSubs, ",")
	subs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			subs = append(subs, p)
		}
	}
	return subs
}
