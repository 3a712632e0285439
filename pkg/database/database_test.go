package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"library_management/pkg/models"
)

func TestConfigureMigratesAndPings(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:configure_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, Configure(db))
	assert.NoError(t, Ping(db))

	for _, model := range models.All() {
		assert.True(t, db.Migrator().HasTable(model))
	}
}
