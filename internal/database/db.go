// internal/database/db.go
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"discord-thread-bot/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store-level error taxonomy. Callers branch on these with errors.Is.
var (
	ErrDuplicateKey = errors.New("thread context already exists")
	ErrNotFound     = errors.New("thread context not found")
	ErrCorruptData  = errors.New("thread context data corrupt")
)

type DB struct {
	*gorm.DB
}

// NewDB opens the thread context store and runs migrations. The default
// backend is an embedded SQLite file; postgres is selected by driver name
// for deployments that already run one.
func NewDB(driver, sqlitePath, postgresDSN string) (*DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "postgres":
		dialector = postgres.Open(postgresDSN)
	case "sqlite", "":
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := gormDB.AutoMigrate(&models.ThreadContextRow{}); err != nil {
		return nil, err
	}

	return &DB{gormDB}, nil
}

// InsertThreadContext stores a freshly created context. Inserting an
// existing thread_id fails with ErrDuplicateKey.
func (db *DB) InsertThreadContext(context *models.ThreadContext) error {
	row, err := context.ToRow()
	if err != nil {
		return err
	}

	if err := db.Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, context.ThreadID)
		}
		return err
	}
	return nil
}

// GetThreadContext loads one context by thread id. A missing row is
// ErrNotFound; an undecodable messages blob is ErrCorruptData.
func (db *DB) GetThreadContext(threadID string) (*models.ThreadContext, error) {
	var row models.ThreadContextRow

	if err := db.First(&row, "thread_id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
		}
		return nil, err
	}

	context, err := row.ToContext()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, threadID, err)
	}
	return context, nil
}

// UpdateThreadContext replaces the transcript, last activity and message
// count of an existing context in one statement, leaving every other
// column untouched. Fails with ErrNotFound if the row is absent.
func (db *DB) UpdateThreadContext(threadID string, messages []models.ThreadMessage, lastActivity time.Time, messageCount int) error {
	encoded, err := models.EncodeMessages(messages)
	if err != nil {
		return err
	}

	result := db.Model(&models.ThreadContextRow{}).
		Where("thread_id = ?", threadID).
		Updates(map[string]interface{}{
			"messages":      encoded,
			"last_activity": lastActivity,
			"message_count": messageCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	return nil
}

// SetThreadActive flips the is_active flag. Flipping an absent or
// already-flipped row is not an error.
func (db *DB) SetThreadActive(threadID string, active bool) error {
	return db.Model(&models.ThreadContextRow{}).
		Where("thread_id = ?", threadID).
		Update("is_active", active).Error
}

// DeleteThread removes a context row entirely. Returns true iff a row was
// actually removed.
func (db *DB) DeleteThread(threadID string) (bool, error) {
	result := db.Delete(&models.ThreadContextRow{}, "thread_id = ?", threadID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ActiveThreadCount counts contexts still marked active.
func (db *DB) ActiveThreadCount() (int64, error) {
	var count int64
	err := db.Model(&models.ThreadContextRow{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

// GetUserThreads returns every context created by one user.
func (db *DB) GetUserThreads(userID string) ([]*models.ThreadContext, error) {
	var rows []models.ThreadContextRow

	if err := db.Find(&rows, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}

	contexts := make([]*models.ThreadContext, 0, len(rows))
	for _, row := range rows {
		context, err := row.ToContext()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptData, row.ThreadID, err)
		}
		contexts = append(contexts, context)
	}
	return contexts, nil
}

// CleanupOldThreads hard-deletes every context whose last activity is
// before the cutoff, active or not, and returns the number removed.
func (db *DB) CleanupOldThreads(cutoff time.Time) (int64, error) {
	result := db.Delete(&models.ThreadContextRow{}, "last_activity < ?", cutoff)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
