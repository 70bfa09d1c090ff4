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

const (
	// Action queries
	queryInsertAction = `
		INSERT INTO claim_actions (id, correlation_id, vault, target_id, action, amount, sender, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')`

	queryCompleteAction = `
		UPDATE claim_actions
		SET status = ?, tx_hash = ?, receipt_id = ?, reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE correlation_id = ? AND status = 'pending'`

	queryGetAction = `
		SELECT id, correlation_id, vault, target_id, action, amount, sender, status,
		       tx_hash, receipt_id, reason, created_at, updated_at
		FROM claim_actions
		WHERE correlation_id = ?`

	queryGetActionHistory = `
		SELECT id, correlation_id, vault, target_id, action, amount, sender, status,
		       tx_hash, receipt_id, reason, created_at, updated_at
		FROM claim_actions
		WHERE (? = '' OR LOWER(vault) = LOWER(?))
		  AND (? = '' OR action = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	// Receipt queries
	queryUpsertReceipt = `
		INSERT INTO ledger_receipts (scope, receipt_id, policy_id, vault, insurer, claim_amount, timestamp, exercised)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, receipt_id) DO UPDATE SET
			policy_id = excluded.policy_id,
			vault = excluded.vault,
			insurer = excluded.insurer,
			claim_amount = excluded.claim_amount,
			timestamp = excluded.timestamp,
			exercised = MAX(ledger_receipts.exercised, excluded.exercised),
			updated_at = CURRENT_TIMESTAMP`

	queryMarkReceiptExercised = `
		INSERT INTO ledger_receipts (scope, receipt_id, exercised)
		VALUES (?, ?, 1)
		ON CONFLICT(scope, receipt_id) DO UPDATE SET
			exercised = 1,
			updated_at = CURRENT_TIMESTAMP`

	queryGetCachedReceipts = `
		SELECT receipt_id, policy_id, vault, insurer, claim_amount, timestamp, exercised, updated_at
		FROM ledger_receipts
		WHERE scope = ?
		ORDER BY receipt_id`

	queryGetExercisedReceiptIds = `
		SELECT receipt_id
		FROM ledger_receipts
		WHERE scope = ? AND exercised = 1
		ORDER BY receipt_id`
)
