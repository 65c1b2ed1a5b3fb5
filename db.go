package main

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"catalogscan/pkg/config"
	"catalogscan/pkg/logger"
	"catalogscan/process/progress"
)

func openDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is not set; the postgres store requires a DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// autoMigrate is on unless DB_AUTO_MIGRATE is false/0/no.
func autoMigrate() bool {
	switch strings.ToLower(os.Getenv("DB_AUTO_MIGRATE")) {
	case "false", "0", "no":
		return false
	}
	return true
}

// openCheckpoints returns the checkpoint store selected by CATALOG_STORE.
func openCheckpoints(cfg *config.Config) (progress.Checkpoints, error) {
	if cfg.Store != "postgres" {
		return progress.FileCheckpoints{Dir: cfg.OutputDir}, nil
	}
	db, err := openDB(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if autoMigrate() {
		if err := progress.Migrate(db); err != nil {
			// permission errors on a shared database are not fatal
			log := logger.WithComponent("db")
			log.Warn().Err(err).Msg("migration warning")
		}
	}
	return progress.GormCheckpoints{DB: db}, nil
}
