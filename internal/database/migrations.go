package database

import (
	"context"
	"errors"
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationReconcileForumAggregates = "2026-10-01_reconcile_forum_aggregates"
	migrationRefoldForumSearch        = "2026-10-16_refold_forum_search"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(context.Context, *gorm.DB, *zap.Logger) error
}

func applyMigrations(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationReconcileForumAggregates, apply: reconcileForumAggregates},
		{name: migrationRefoldForumSearch, apply: refoldForumSearch},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.WithContext(ctx).Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(ctx, db, logger); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.WithContext(ctx).Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// reconcileForumAggregates recounts every denormalized forum field once, repairing drift left by
// data written before recomputes ran inside transactions.
func reconcileForumAggregates(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	aggregator, err := forum.NewAggregator(forum.AggregatorConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	_, err = aggregator.ReconcileAll(ctx)
	return err
}

// refoldForumSearch fills the folded search columns for rows written before they existed.
func refoldForumSearch(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	refolded, err := forum.RefoldSearchColumns(ctx, db)
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Info("forum search columns refolded", zap.Int("rows", refolded))
	}
	return nil
}
