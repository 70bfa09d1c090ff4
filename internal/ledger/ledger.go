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

package ledger

import (
	"context"
	"fmt"
	"math/big"

	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound    = fmt.Errorf("%w: no such record on the ledger", models.ErrNotFound)
	ErrReadOnly    = fmt.Errorf("%w: ledger has no signing key configured", models.ErrInputValidation)
	ErrNotDeployed = fmt.Errorf("%w: contract address not configured", models.ErrInputValidation)
)

// Reader is the side-effect-free half of the protocol contract surface.
type Reader interface {
	// --- Vaults ---
	GetVaults(ctx context.Context) ([]common.Address, error)
	GetVaultInfo(ctx context.Context, vault common.Address) (*models.VaultInfo, error)
	TotalPendingClaims(ctx context.Context, vault common.Address) (*big.Int, error)
	GetPolicyIds(ctx context.Context, vault common.Address) ([]uint64, error)
	GetVaultPolicy(ctx context.Context, vault common.Address, policyId uint64) (*models.VaultPolicyRaw, error)
	BalanceOf(ctx context.Context, vault, user common.Address) (*big.Int, error)
	MaxWithdraw(ctx context.Context, vault, user common.Address) (*big.Int, error)

	// --- Registry ---
	GetPolicy(ctx context.Context, policyId uint64) (*models.Policy, error)
	GetPolicyCount(ctx context.Context) (uint64, error)
	CurrentTime(ctx context.Context) (uint64, error)
	TimeOffset(ctx context.Context) (uint64, error)

	// --- Receipts ---
	GetReceipt(ctx context.Context, receiptId uint64) (*models.ClaimReceipt, error)
	NextReceiptId(ctx context.Context) (uint64, error)
	// ReceiptScope names the receipt id space (chain and receipt contract).
	// Ids from different scopes are unrelated.
	ReceiptScope() string

	// --- Oracle and asset ---
	OracleStatus(ctx context.Context) (*models.OracleStatus, error)
	AssetBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// Writer submits state-changing transactions. Every call blocks until the
// transaction is confirmed or ctx is done.
type Writer interface {
	// Sender is the address transactions are sent from
	Sender() common.Address

	// --- Vault ---
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (*models.TxResult, error)
	Deposit(ctx context.Context, vault common.Address, assets *big.Int, receiver common.Address) (*models.TxResult, error)
	Withdraw(ctx context.Context, vault common.Address, assets *big.Int, receiver, owner common.Address) (*models.TxResult, error)

	// --- Claims ---
	CheckClaim(ctx context.Context, vault common.Address, policyId uint64) (*models.TxResult, error)
	ReportEvent(ctx context.Context, vault common.Address, policyId uint64) (*models.TxResult, error)
	SubmitClaim(ctx context.Context, vault common.Address, policyId uint64, amount *big.Int) (*models.TxResult, error)
	ExerciseClaim(ctx context.Context, vault common.Address, receiptId uint64) (*models.TxResult, error)

	// --- Demo controls ---
	AdvanceTime(ctx context.Context, seconds uint64) (*models.TxResult, error)
	SetBtcPrice(ctx context.Context, price *big.Int) (*models.TxResult, error)
	SetFlightStatus(ctx context.Context, delayed bool) (*models.TxResult, error)
	Mint(ctx context.Context, to common.Address, amount *big.Int) (*models.TxResult, error)
}

// Ledger is the full read/write surface of the remote protocol.
type Ledger interface {
	Reader
	Writer

	// --- Lifecycle ---
	Close()
}
