/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.ActionJournal.
var _ store.ActionJournal = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite action journal", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	if cfg.Path == memoryPath {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Action journal initialized successfully")
	return service, nil
}

const memoryPath = ":memory:"

func dsn(path string) string {
	if path == memoryPath {
		return path
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000"
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Every claim-path submission, keyed by its correlation id
	CREATE TABLE IF NOT EXISTS claim_actions (
		id TEXT PRIMARY KEY,
		correlation_id TEXT NOT NULL UNIQUE,
		vault TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'succeeded', 'failed')),
		tx_hash TEXT NOT NULL DEFAULT '',
		receipt_id INTEGER,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_claim_actions_vault ON claim_actions(vault);
	CREATE INDEX IF NOT EXISTS idx_claim_actions_status ON claim_actions(status);
	CREATE INDEX IF NOT EXISTS idx_claim_actions_created_at ON claim_actions(created_at);

	-- Locally remembered receipts; exercised never goes back to 0.
	-- Receipt ids restart per chain and contract deployment, so every row
	-- belongs to the scope it was read from.
	CREATE TABLE IF NOT EXISTS ledger_receipts (
		scope TEXT NOT NULL,
		receipt_id INTEGER NOT NULL,
		policy_id INTEGER NOT NULL DEFAULT 0,
		vault TEXT NOT NULL DEFAULT '',
		insurer TEXT NOT NULL DEFAULT '',
		claim_amount TEXT NOT NULL DEFAULT '0',
		timestamp INTEGER NOT NULL DEFAULT 0,
		exercised BOOLEAN NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (scope, receipt_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_receipts_vault ON ledger_receipts(vault);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
