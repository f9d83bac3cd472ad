package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRecomputeProfileLevels = "2026-10-01_recompute_profile_levels"

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

func registeredMigrations() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationRecomputeProfileLevels, apply: recomputeProfileLevels},
	}
}

// applyMigrations runs each registered data migration once, recording it in db_migrations.
func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range registeredMigrations() {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// recomputeProfileLevels realigns stored levels with the xp step function.
func recomputeProfileLevels(db *gorm.DB) error {
	return db.Model(&engagement.Profile{}).
		Where("1 = 1").
		Update("level", gorm.Expr("xp / ? + 1", engagement.XPPerLevel)).Error
}
