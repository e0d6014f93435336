package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeRoutinePositions = "2026-05-18_normalize_routine_positions"

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
		{name: migrationNormalizeRoutinePositions, apply: normalizeRoutinePositions},
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

// normalizeRoutinePositions renumbers each routine's exercises to a
// dense zero-based order. Databases written before routine updates
// became transactional could carry gaps.
func normalizeRoutinePositions(db *gorm.DB) error {
	return db.Exec(`
		UPDATE routine_exercises SET position = (
			SELECT COUNT(*) FROM routine_exercises AS other
			WHERE other.routine_id = routine_exercises.routine_id
			  AND (other.position < routine_exercises.position
			       OR (other.position = routine_exercises.position AND other.id < routine_exercises.id))
		)`).Error
}
