package database

import (
	"errors"
	"time"

	"github.com/inkstonehq/inkstone/backend/internal/journal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRecountDiaryWords = "2026-08-12_recount_diary_page_words"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRecountDiaryWords, apply: recountDiaryPageWords},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// recountDiaryPageWords repairs stored word counts written before counts were
// recomputed from content on every write.
func recountDiaryPageWords(db *gorm.DB) error {
	var pages []journal.DiaryPage
	if err := db.Find(&pages).Error; err != nil {
		return err
	}
	for _, page := range pages {
		actual := journal.WordCount(page.Content)
		if page.WordCount == actual {
			continue
		}
		if err := db.Model(&journal.DiaryPage{}).
			Where("user_id = ? AND date = ?", page.UserID, page.Date).
			Update("word_count", actual).Error; err != nil {
			return err
		}
	}
	return nil
}
