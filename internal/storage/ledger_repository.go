package storage

import (
	"errors"
	"time"

	"crossban/internal/models"

	"gorm.io/gorm"
)

// LedgerRepository handles database operations for BanRecord
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// MigrateTable ensures the BanRecord table exists
func (r *LedgerRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.BanRecord{})
}

// Create inserts a new BanRecord
func (r *LedgerRepository) Create(record *models.BanRecord) error {
	return r.db.Create(record).Error
}

// Save persists all fields of an existing record
func (r *LedgerRepository) Save(record *models.BanRecord) error {
	return r.db.Save(record).Error
}

// Upsert inserts the record or, if a row for the username exists, updates
// its override fields. Safe under at-least-once retry.
func (r *LedgerRepository) Upsert(record *models.BanRecord) error {
	existing, err := r.FindByUsername(record.Username)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.Create(record).Error
	}
	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	return r.db.Save(record).Error
}

// FindByUsername returns the record for a username, or nil if none exists
func (r *LedgerRepository) FindByUsername(username string) (*models.BanRecord, error) {
	var record models.BanRecord
	result := r.db.Where("username = ?", models.NormalizeUsername(username)).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// HasSourceLogID reports whether a mod log entry was already ingested
func (r *LedgerRepository) HasSourceLogID(sourceLogID string) (bool, error) {
	var count int64
	result := r.db.Model(&models.BanRecord{}).Where("source_log_id = ?", sourceLogID).Count(&count)
	return count > 0, result.Error
}

// ListActive returns all records that have not been retired
func (r *LedgerRepository) ListActive() ([]*models.BanRecord, error) {
	var records []*models.BanRecord
	result := r.db.Where("retired_at IS NULL").Order("username").Find(&records)
	return records, result.Error
}

// MarkRetired sets retired_at on the record for a username
func (r *LedgerRepository) MarkRetired(username string, at time.Time) error {
	result := r.db.Model(&models.BanRecord{}).
		Where("username = ? AND retired_at IS NULL", models.NormalizeUsername(username)).
		Updates(map[string]interface{}{"retired_at": at, "updated_at": at})
	return result.Error
}

// PruneExpired deletes rows whose forgiveness or retirement is older than
// the cutoff. Active rows are never deleted.
func (r *LedgerRepository) PruneExpired(cutoff time.Time) (int64, error) {
	result := r.db.Where("retired_at < ? OR forgiven_at < ?", cutoff, cutoff).
		Delete(&models.BanRecord{})
	return result.RowsAffected, result.Error
}
