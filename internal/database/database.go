// Package database opens the relational store and migrates the catalog schema.
package database

import (
	"fmt"
	"strings"

	"chillistore/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open connects to databaseURL. URLs starting with sqlite:// or file: use SQLite,
// everything else is handed to the Postgres driver.
func Open(databaseURL string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, sqlitePrefix):
		dialector = sqlite.Open(SQLiteDSN(strings.TrimPrefix(databaseURL, sqlitePrefix)))
	case strings.HasPrefix(databaseURL, "file:"):
		dialector = sqlite.Open(SQLiteDSN(databaseURL))
	default:
		dialector = postgres.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if log != nil {
		log.Info("database connected", zap.String("dialect", db.Dialector.Name()))
	}
	return db, nil
}

// SQLiteDSN turns on foreign key enforcement for every connection opened from dsn.
// SQLite leaves it off unless asked.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}

// Migrate creates or updates the tables backing the catalog and users.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Category{},
		&models.Brand{},
		&models.ChilliType{},
		&models.Product{},
		&models.User{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
