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
	"errors"
	"fmt"

	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

func (s *Service) RecordAction(ctx context.Context, params store.RecordActionParams) (*models.ActionRecord, error) {
	if params.CorrelationId == "" {
		return nil, fmt.Errorf("correlation id cannot be empty")
	}
	amount := ""
	if params.Amount != nil {
		amount = params.Amount.String()
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertAction,
		id, params.CorrelationId, params.Vault.Hex(), int64(params.TargetId), string(params.Action), amount, params.Sender.Hex())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateAction, params.CorrelationId)
		}
		zap.L().Error("Failed to insert action", zap.String("correlation_id", params.CorrelationId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert action: %w", err)
	}

	zap.L().Debug("Action journaled",
		zap.String("correlation_id", params.CorrelationId),
		zap.String("vault", params.Vault.Hex()),
		zap.String("action", string(params.Action)),
		zap.Uint64("target_id", params.TargetId))

	return s.GetAction(ctx, params.CorrelationId)
}

func (s *Service) CompleteAction(ctx context.Context, params store.CompleteActionParams) error {
	if params.Status != models.ActionSucceeded && params.Status != models.ActionFailed {
		return fmt.Errorf("%w: terminal status required, got %q", models.ErrInputValidation, params.Status)
	}

	var receiptId sql.NullInt64
	if params.ReceiptId != nil {
		receiptId = sql.NullInt64{Int64: int64(*params.ReceiptId), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, queryCompleteAction,
		string(params.Status), params.TxHash, receiptId, params.Reason, params.CorrelationId)
	if err != nil {
		zap.L().Error("Failed to complete action", zap.String("correlation_id", params.CorrelationId), zap.Error(err))
		return fmt.Errorf("unable to complete action: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetAction(ctx, params.CorrelationId); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", store.ErrFinalizedAction, params.CorrelationId)
	}

	zap.L().Debug("Action completed",
		zap.String("correlation_id", params.CorrelationId),
		zap.String("status", string(params.Status)),
		zap.String("tx_hash", params.TxHash))
	return nil
}

func (s *Service) GetAction(ctx context.Context, correlationId string) (*models.ActionRecord, error) {
	row := s.db.QueryRowContext(ctx, queryGetAction, correlationId)
	record, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrActionNotFound, correlationId)
		}
		return nil, fmt.Errorf("unable to query action: %w", err)
	}
	return record, nil
}

func (s *Service) GetActionHistory(ctx context.Context, filter store.HistoryFilter) ([]models.ActionRecord, error) {
	vault := ""
	if filter.Vault != nil {
		vault = filter.Vault.Hex()
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, queryGetActionHistory,
		vault, vault, string(filter.Action), string(filter.Action), limit, filter.Offset)
	if err != nil {
		zap.L().Error("Failed to query action history", zap.Error(err))
		return nil, fmt.Errorf("unable to query action history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var records []models.ActionRecord
	for rows.Next() {
		record, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan action row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action rows: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(row scanner) (*models.ActionRecord, error) {
	var (
		record    models.ActionRecord
		targetId  int64
		action    string
		status    string
		receiptId sql.NullInt64
	)
	err := row.Scan(&record.Id, &record.CorrelationId, &record.Vault, &targetId, &action, &record.Amount,
		&record.Sender, &status, &record.TxHash, &receiptId, &record.Reason, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.TargetId = uint64(targetId)
	record.Action = models.ActionType(action)
	record.Status = models.ActionStatus(status)
	if receiptId.Valid {
		id := uint64(receiptId.Int64)
		record.ReceiptId = &id
	}
	return &record, nil
}
