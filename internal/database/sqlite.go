package database

import (
	"context"
	"fmt"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/fypdeveloperss/eduExtract-sub000/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// The pool is limited to one connection so recompute transactions serialize.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(schemaModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := applyMigrations(ctx, db, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

func schemaModels() []any {
	models := forum.Models()
	return append(models, &users.Identity{}, &migrationRecord{})
}
