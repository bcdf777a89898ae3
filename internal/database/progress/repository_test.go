package progress

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kitaabse/audiobooks/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	dbPath := "./test_progress_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Book{}, &entities.ListeningProgress{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, repo, cleanup
}

func TestRepository_GetOrCreate(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	p, created, err := repo.GetOrCreate(1, 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, p.CurrentPage)

	again, created, err := repo.GetOrCreate(1, 10)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)
}

func TestRepository_UpdateCheckpoint(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	p, _, err := repo.GetOrCreate(1, 10)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateCheckpoint(p, 50, 10, 30, 45))
	assert.Equal(t, 10, p.CurrentPage)
	assert.Equal(t, 30, p.CurrentPosition)
	assert.Equal(t, 20, p.CompletionPercentage)
	assert.Equal(t, 45, p.TotalListenedTime)
	assert.False(t, p.IsCompleted)

	// Listened time accumulates across checkpoints.
	require.NoError(t, repo.UpdateCheckpoint(p, 50, 50, 0, 15))
	assert.Equal(t, 100, p.CompletionPercentage)
	assert.Equal(t, 60, p.TotalListenedTime)
	assert.True(t, p.IsCompleted)

	// Regressing to an earlier page lowers the percentage.
	require.NoError(t, repo.UpdateCheckpoint(p, 50, 5, 0, 0))
	assert.Equal(t, 10, p.CompletionPercentage)
	assert.False(t, p.IsCompleted)
}
