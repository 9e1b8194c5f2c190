package service

import (
	"fmt"
	"time"

	"crossban/internal/logger"
	"crossban/internal/models"
)

// errNoLedger is returned when the database is not wired
var errNoLedger = fmt.Errorf("ledger store is not available")

// HasIngested reports whether a mod log entry was already folded into the
// ledger. Errors are treated as "already ingested" so a flaky read never
// produces a duplicate row.
func HasIngested(sourceLogID string) bool {
	if ledgerRepository == nil {
		return true
	}
	seen, err := ledgerRepository.HasSourceLogID(sourceLogID)
	if err != nil {
		logger.Warningf("Error checking source log id %s: %v", sourceLogID, err)
		return true
	}
	return seen
}

// RecordBan creates a new ledger record for an observed ban event
func RecordBan(record *models.BanRecord) error {
	if ledgerRepository == nil {
		return errNoLedger
	}
	record.Username = models.NormalizeUsername(record.Username)
	record.OriginSub = models.NormalizeSub(record.OriginSub)
	return ledgerRepository.Create(record)
}

// FindRecord returns the ledger record for a username, or nil
func FindRecord(username string) *models.BanRecord {
	if ledgerRepository == nil {
		return nil
	}
	record, err := ledgerRepository.FindByUsername(username)
	if err != nil {
		logger.Warningf("Error finding record for %s: %v", username, err)
		return nil
	}
	return record
}

// ActiveRecords returns a snapshot of all non-retired ledger records.
// Only total ledger unavailability is fatal to a pass, so this returns
// the error for the caller to decide.
func ActiveRecords() ([]*models.BanRecord, error) {
	if ledgerRepository == nil {
		return nil, errNoLedger
	}
	return ledgerRepository.ListActive()
}

// Forgive sets global forgiveness on a user's record. A placeholder record
// with origin "manual" is created when none exists. Re-issuing is a no-op.
func Forgive(username, moderator, sub string) error {
	if ledgerRepository == nil {
		return errNoLedger
	}
	record, err := ledgerRepository.FindByUsername(username)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if record == nil {
		// Placeholder rows need a synthetic source log key: the column
		// carries a unique index, so leaving it empty would collide on
		// the second placeholder ever created.
		name := models.NormalizeUsername(username)
		record = &models.BanRecord{
			Username:    name,
			OriginSub:   models.OriginManual,
			SourceLogID: "pardon:" + name,
		}
		record.Forgive(moderator, sub, now)
		return ledgerRepository.Create(record)
	}
	if !record.Forgive(moderator, sub, now) {
		return nil
	}
	return ledgerRepository.Save(record)
}

// Exempt adds a per-sub exemption to a user's record. It reports false
// when no record exists; exemptions never create placeholder rows.
func Exempt(username, sub string) (bool, error) {
	if ledgerRepository == nil {
		return false, errNoLedger
	}
	record, err := ledgerRepository.FindByUsername(username)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if !record.AddExemptSub(sub) {
		return true, nil
	}
	return true, ledgerRepository.Save(record)
}

// Retire marks a user's record inert, e.g. when the account no longer exists
func Retire(username string) error {
	if ledgerRepository == nil {
		return errNoLedger
	}
	return ledgerRepository.MarkRetired(username, time.Now().UTC())
}

// PruneExpired removes forgiven or retired rows older than the retention window
func PruneExpired(retentionDays int) {
	if ledgerRepository == nil || retentionDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	pruned, err := ledgerRepository.PruneExpired(cutoff)
	if err != nil {
		logger.Warningf("Error pruning expired records: %v", err)
		return
	}
	if pruned > 0 {
		logger.Infof("Pruned %d expired ledger records", pruned)
	}
}

// RecordOutcome appends a row to the public action log
func RecordOutcome(action, username, targetSub, sourceSub, actor, detail string) {
	if outcomeRepository == nil {
		return
	}
	outcome := &models.ActionOutcome{
		Action:    action,
		Username:  models.NormalizeUsername(username),
		TargetSub: models.NormalizeSub(targetSub),
		SourceSub: models.NormalizeSub(sourceSub),
		Actor:     actor,
		Detail:    detail,
	}
	if err := outcomeRepository.Append(outcome); err != nil {
		logger.Warningf("Error recording %s outcome for %s: %v", action, username, err)
	}
}

// BansIssuedToday counts BANNED outcomes since UTC midnight
func BansIssuedToday() int {
	if outcomeRepository == nil {
		return 0
	}
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := outcomeRepository.CountBansSince(midnight)
	if err != nil {
		logger.Warningf("Error counting today's bans: %v", err)
		return 0
	}
	return int(count)
}

// OutcomesSince returns outcome rows recorded at or after since
func OutcomesSince(since time.Time) []*models.ActionOutcome {
	if outcomeRepository == nil {
		return nil
	}
	outcomes, err := outcomeRepository.ListSince(since)
	if err != nil {
		logger.Warningf("Error listing outcomes: %v", err)
		return nil
	}
	return outcomes
}
