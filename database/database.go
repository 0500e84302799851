package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"membergate/internal/domain/billing"
	"membergate/internal/observability/logger"
)

// Open connects to Postgres and migrates the ledger tables.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&billing.Payment{},
		&billing.ProcessedEvent{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// NewLedger returns the Postgres ledger when dsn is set and an in-memory one
// otherwise. The in-memory ledger forgets everything on restart.
func NewLedger(dsn string) (billing.Ledger, error) {
	log := logger.Named("database")
	if dsn == "" {
		log.Warn("DB_URL not set, using in-memory payment ledger")
		return billing.NewMemoryLedger(), nil
	}
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	log.Info("connected and migrated", zap.String("driver", db.Dialector.Name()))
	return billing.NewGormLedger(db), nil
}
