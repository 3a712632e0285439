package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library_management/pkg/database"
	"library_management/pkg/logging"
	"library_management/pkg/models"
	"library_management/pkg/store"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestSeedTestDataIsIdempotent(t *testing.T) {
	repo := store.New(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, seedTestData(ctx, repo, logging.Discard()))
	require.NoError(t, seedTestData(ctx, repo, logging.Discard()))

	book, err := repo.FindBookByID(ctx, seedISBN)
	require.NoError(t, err)
	assert.Equal(t, "Le Guin", book.Author.LastName)

	copies, err := repo.FindCopiesByBook(ctx, seedISBN)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	for _, c := range copies {
		assert.Equal(t, models.Available, c.Availability)
	}

	librarian, err := repo.FindAccountByUsername(ctx, "librarian")
	require.NoError(t, err)
	assert.Equal(t, models.KindLibrarian, librarian.Kind)
	assert.Nil(t, librarian.Active)
}
