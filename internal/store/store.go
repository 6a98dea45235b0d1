// Package store is the persistence layer. A single Store handle wraps the
// pooled gorm connection and is injected into every service at construction
// time; there is no package-level database singleton.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/promptroute/promptroute/internal/config"
)

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and runs migrations.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// NewWithDB wraps an existing gorm handle. Used by tests.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&User{},
		&Organization{},
		&OrganizationMember{},
		&Credential{},
		&ServiceAPIKey{},
		&PromptTemplate{},
		&UsageLog{},
		&OptimizerRecommendation{},
		&Project{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}
