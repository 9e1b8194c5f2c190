package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crossban/internal/models"
)

func setupLedger(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	UseDatabase(db)
}

func TestForgivePlaceholdersForMultipleUsers(t *testing.T) {
	setupLedger(t)

	// Pardons for users the ledger has never seen each create their own
	// placeholder row; the second one must not trip the unique source
	// log index.
	require.NoError(t, Forgive("alice", "mod1", "s1"))
	require.NoError(t, Forgive("bob", "mod2", "s2"))

	for _, name := range []string{"alice", "bob"} {
		record := FindRecord(name)
		require.NotNil(t, record, name)
		assert.Equal(t, models.OriginManual, record.OriginSub)
		assert.True(t, record.IsForgiven())
	}
	assert.Equal(t, "mod1", FindRecord("alice").OverriddenBy)
	assert.Equal(t, "mod2", FindRecord("bob").OverriddenBy)
}

func TestForgiveKeepsExistingSourceLogID(t *testing.T) {
	setupLedger(t)

	require.NoError(t, RecordBan(&models.BanRecord{
		Username: "alice", OriginSub: "s1", SourceLogID: "log-1",
	}))

	require.NoError(t, Forgive("alice", "mod1", "s1"))

	record := FindRecord("alice")
	require.NotNil(t, record)
	assert.True(t, record.IsForgiven())
	assert.Equal(t, "log-1", record.SourceLogID)
}
