package store

import (
	"context"
	"fmt"
	"math/big"

	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors shared across all journal implementations.
var (
	ErrDuplicateAction = fmt.Errorf("%w: duplicate action", models.ErrStateConflict)
	ErrActionNotFound  = fmt.Errorf("%w: no action for correlation id", models.ErrNotFound)
	ErrFinalizedAction = fmt.Errorf("%w: action already finalized", models.ErrStateConflict)
)

// RecordActionParams contains the parameters for journaling a submission
// before it is sent.
type RecordActionParams struct {
	CorrelationId string
	Vault         common.Address
	TargetId      uint64 // policy id for triggers, receipt id for exercises
	Action        models.ActionType
	Amount        *big.Int // nil unless the action carries an amount
	Sender        common.Address
}

// CompleteActionParams moves a pending action to its terminal status.
type CompleteActionParams struct {
	CorrelationId string
	Status        models.ActionStatus
	TxHash        string
	ReceiptId     *uint64
	Reason        string
}

// HistoryFilter narrows GetActionHistory. Zero values match everything.
type HistoryFilter struct {
	Vault  *common.Address
	Action models.ActionType
	Limit  int
	Offset int
}

// ActionJournal defines the contract that every journal backend must satisfy.
type ActionJournal interface {
	// --- Actions ---
	RecordAction(ctx context.Context, params RecordActionParams) (*models.ActionRecord, error)
	CompleteAction(ctx context.Context, params CompleteActionParams) error
	GetAction(ctx context.Context, correlationId string) (*models.ActionRecord, error)
	GetActionHistory(ctx context.Context, filter HistoryFilter) ([]models.ActionRecord, error)

	// --- Receipts ---
	// Receipt ids are only unique within a scope (see ledger.Reader.ReceiptScope)
	UpsertReceipt(ctx context.Context, scope string, receipt models.ClaimReceipt) error
	MarkReceiptExercised(ctx context.Context, scope string, receiptId uint64) error
	GetCachedReceipts(ctx context.Context, scope string) ([]models.CachedReceipt, error)
	ExercisedReceiptIds(ctx context.Context, scope string) ([]uint64, error)

	// --- Lifecycle ---
	Close()
}
