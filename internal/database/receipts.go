package database

import (
	"context"
	"database/sql"
	"fmt"

	"insurance-vault-go/internal/models"

	"go.uber.org/zap"
)

// UpsertReceipt caches a receipt read from the ledger identified by scope. The
// cached exercised flag is the maximum of the stored and incoming values.
func (s *Service) UpsertReceipt(ctx context.Context, scope string, receipt models.ClaimReceipt) error {
	amount := "0"
	if receipt.ClaimAmount != nil {
		amount = receipt.ClaimAmount.String()
	}

	_, err := s.db.ExecContext(ctx, queryUpsertReceipt, scope,
		int64(receipt.ReceiptId), int64(receipt.PolicyId), receipt.Vault.Hex(), receipt.Insurer.Hex(),
		amount, int64(receipt.Timestamp), receipt.Exercised)
	if err != nil {
		zap.L().Error("Failed to upsert receipt", zap.Uint64("receipt_id", receipt.ReceiptId), zap.Error(err))
		return fmt.Errorf("unable to upsert receipt: %w", err)
	}
	return nil
}

func (s *Service) MarkReceiptExercised(ctx context.Context, scope string, receiptId uint64) error {
	if _, err := s.db.ExecContext(ctx, queryMarkReceiptExercised, scope, int64(receiptId)); err != nil {
		zap.L().Error("Failed to mark receipt exercised", zap.Uint64("receipt_id", receiptId), zap.Error(err))
		return fmt.Errorf("unable to mark receipt exercised: %w", err)
	}
	zap.L().Debug("Receipt marked exercised", zap.String("scope", scope), zap.Uint64("receipt_id", receiptId))
	return nil
}

func (s *Service) GetCachedReceipts(ctx context.Context, scope string) ([]models.CachedReceipt, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCachedReceipts, scope)
	if err != nil {
		return nil, fmt.Errorf("unable to query receipts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var receipts []models.CachedReceipt
	for rows.Next() {
		var r models.CachedReceipt
		var receiptId, policyId, timestamp int64
		if err := rows.Scan(&receiptId, &policyId, &r.Vault, &r.Insurer, &r.ClaimAmount, &timestamp, &r.Exercised, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan receipt row: %w", err)
		}
		r.ReceiptId = uint64(receiptId)
		r.PolicyId = uint64(policyId)
		r.Timestamp = uint64(timestamp)
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *Service) ExercisedReceiptIds(ctx context.Context, scope string) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, queryGetExercisedReceiptIds, scope)
	if err != nil {
		return nil, fmt.Errorf("unable to query exercised receipts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("unable to scan receipt id: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt ids: %w", err)
	}
	return ids, nil
}
