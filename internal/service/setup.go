package service

import (
	"crossban/internal/config"
	"crossban/internal/logger"
	"crossban/internal/storage"

	"gorm.io/gorm"
)

var (
	ledgerRepository  *storage.LedgerRepository
	outcomeRepository *storage.OutcomeRepository
	globalConfig      *config.Config
)

// Initialize initializes the service with configuration
func Initialize(cfg *config.Config) {
	globalConfig = cfg
}

// InitRepositories initializes the repositories if database is enabled
func InitRepositories() {
	if storage.DB != nil {
		UseDatabase(storage.DB)
	}
}

// UseDatabase wires the repositories to the given connection and ensures
// their tables exist
func UseDatabase(db *gorm.DB) {
	ledgerRepository = storage.NewLedgerRepository(db)
	if err := ledgerRepository.MigrateTable(); err != nil {
		logger.Warningf("Error migrating BanRecord table: %v", err)
	}
	outcomeRepository = storage.NewOutcomeRepository(db)
	if err := outcomeRepository.MigrateTable(); err != nil {
		logger.Warningf("Error migrating ActionOutcome table: %v", err)
	}
}
