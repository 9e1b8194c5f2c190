package storage

import (
	"time"

	"crossban/internal/models"

	"gorm.io/gorm"
)

// OutcomeRepository handles database operations for ActionOutcome
type OutcomeRepository struct {
	db *gorm.DB
}

// NewOutcomeRepository creates a new OutcomeRepository
func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// MigrateTable ensures the ActionOutcome table exists
func (r *OutcomeRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.ActionOutcome{})
}

// Append inserts a new outcome row
func (r *OutcomeRepository) Append(outcome *models.ActionOutcome) error {
	return r.db.Create(outcome).Error
}

// CountBansSince counts BANNED outcomes recorded at or after since
func (r *OutcomeRepository) CountBansSince(since time.Time) (int64, error) {
	var count int64
	result := r.db.Model(&models.ActionOutcome{}).
		Where("action = ? AND created_at >= ?", models.OutcomeBanned, since).
		Count(&count)
	return count, result.Error
}

// ListSince returns outcomes recorded at or after since, oldest first
func (r *OutcomeRepository) ListSince(since time.Time) ([]*models.ActionOutcome, error) {
	var outcomes []*models.ActionOutcome
	result := r.db.Where("created_at >= ?", since).Order("created_at").Find(&outcomes)
	return outcomes, result.Error
}
