package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crane-fleet-backend/config"
	"crane-fleet-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "postgres" {
		log.Println("PostgreSQL detected, applying constraint DDL...")
		if err := applyPostgresDDL(db); err != nil {
			log.Printf("Warning: failed to apply some PostgreSQL DDL: %v. Continuing without them.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates the fleet and fuel tables.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Crane{},
		&model.RunningHours{},
		&model.DailyTask{},
		&model.MaintenanceRecord{},
		&model.Truck{},
		&model.OilDrumRecord{},
		&model.TruckFuelRecord{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func applyPostgresDDL(db *gorm.DB) error {
	ddls := []string{
		"ALTER TABLE daily_tasks DROP CONSTRAINT IF EXISTS daily_tasks_work_time_nonneg;",
		"ALTER TABLE daily_tasks ADD CONSTRAINT daily_tasks_work_time_nonneg CHECK (work_time >= 0);",

		"ALTER TABLE maintenance_records DROP CONSTRAINT IF EXISTS maintenance_records_hours_nonneg;",
		"ALTER TABLE maintenance_records ADD CONSTRAINT maintenance_records_hours_nonneg CHECK (maintenance_hours >= 0);",

		"ALTER TABLE oil_drum_records DROP CONSTRAINT IF EXISTS oil_drum_records_qty_nonneg;",
		"ALTER TABLE oil_drum_records ADD CONSTRAINT oil_drum_records_qty_nonneg CHECK (quantity >= 0);",
		"ALTER TABLE oil_drum_records DROP CONSTRAINT IF EXISTS oil_drum_records_io_type;",
		"ALTER TABLE oil_drum_records ADD CONSTRAINT oil_drum_records_io_type CHECK (io_type IN ('IN', 'OUT'));",

		"ALTER TABLE truck_fuel_records DROP CONSTRAINT IF EXISTS truck_fuel_records_qty_nonneg;",
		"ALTER TABLE truck_fuel_records ADD CONSTRAINT truck_fuel_records_qty_nonneg CHECK (quantity >= 0 AND unit_price >= 0);",

		"ALTER TABLE cranes DROP CONSTRAINT IF EXISTS cranes_initial_hours_nonneg;",
		"ALTER TABLE cranes ADD CONSTRAINT cranes_initial_hours_nonneg CHECK (initial_hours >= 0);",

		// Partial index for the running-hours aggregate over live task logs.
		"CREATE INDEX IF NOT EXISTS idx_daily_tasks_live_crane ON daily_tasks (crane_id) WHERE deleted_at IS NULL;",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
