package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/config"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger, cfg config.PostgresConfig) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	serviceLog.Info("connecting to postgres", "host", cfg.Host, "db", cfg.DBName)
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("migrating contract tables")
	if err := s.db.AutoMigrate(
		&types.Contract{},
		&types.SigningSession{},
		&types.SignatureRecord{},
		&types.Artifact{},
		&types.AuditEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Postgres-only backstops that AutoMigrate cannot express: one pending
	// session per (contract, signer), one signature per (contract, role).
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_session_pending_pair
		ON signing_session (contract_id, signer_id)
		WHERE state = 'pending'
	`).Error; err != nil {
		return fmt.Errorf("create pending session index: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
