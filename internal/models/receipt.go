package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimReceipt is the record created by a successful claim trigger.
// Exercised only ever moves from false to true.
type ClaimReceipt struct {
	ReceiptId   uint64
	PolicyId    uint64
	ClaimAmount *big.Int
	Vault       common.Address
	Insurer     common.Address
	Timestamp   uint64
	Exercised   bool
}

// OracleStatus is the mock oracle state used by ORACLE_DEPENDENT and ON_CHAIN policies
type OracleStatus struct {
	BtcPrice        *big.Int
	BtcUpdatedAt    uint64
	FlightDelayed   bool
	FlightUpdatedAt uint64
}

// EventName identifies a protocol notification
type EventName string

const (
	EventClaimTriggered EventName = "ClaimTriggered"
	EventClaimExercised EventName = "ClaimExercised"
)

// ClaimEvent is a decoded ClaimTriggered or ClaimExercised notification
type ClaimEvent struct {
	Name      EventName
	PolicyId  uint64 // zero for ClaimExercised
	ReceiptId uint64
	Amount    *big.Int
	Insurer   common.Address
}

// TxResult is the confirmed outcome of a write
type TxResult struct {
	TxHash    string
	ReceiptId *uint64 // set for claim triggers
	Shares    *big.Int
	Events    []ClaimEvent
}
