package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionRecord is one journaled claim-path submission
type ActionRecord struct {
	Id            string       `db:"id"`
	CorrelationId string       `db:"correlation_id"`
	Vault         string       `db:"vault"`
	TargetId      uint64       `db:"target_id"`
	Action        ActionType   `db:"action"`
	Amount        string       `db:"amount"`
	Sender        string       `db:"sender"`
	Status        ActionStatus `db:"status"`
	TxHash        string       `db:"tx_hash"`
	ReceiptId     *uint64      `db:"receipt_id"`
	Reason        string       `db:"reason"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

// CachedReceipt is the locally remembered state of a claim receipt
type CachedReceipt struct {
	ReceiptId   uint64    `db:"receipt_id"`
	PolicyId    uint64    `db:"policy_id"`
	Vault       string    `db:"vault"`
	Insurer     string    `db:"insurer"`
	ClaimAmount string    `db:"claim_amount"`
	Timestamp   uint64    `db:"timestamp"`
	Exercised   bool      `db:"exercised"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ToReceipt converts the cached row back into a receipt
func (c CachedReceipt) ToReceipt() ClaimReceipt {
	amount, ok := new(big.Int).SetString(c.ClaimAmount, 10)
	if !ok {
		amount = new(big.Int)
	}
	return ClaimReceipt{
		ReceiptId:   c.ReceiptId,
		PolicyId:    c.PolicyId,
		ClaimAmount: amount,
		Vault:       common.HexToAddress(c.Vault),
		Insurer:     common.HexToAddress(c.Insurer),
		Timestamp:   c.Timestamp,
		Exercised:   c.Exercised,
	}
}
