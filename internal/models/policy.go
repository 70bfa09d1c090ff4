package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// VerificationType determines how claims on a policy are triggered
type VerificationType uint8

const (
	VerificationOnChain VerificationType = iota
	VerificationOracleDependent
	VerificationOffChain
)

func (v VerificationType) String() string {
	switch v {
	case VerificationOnChain:
		return "ON_CHAIN"
	case VerificationOracleDependent:
		return "ORACLE_DEPENDENT"
	case VerificationOffChain:
		return "OFF_CHAIN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(v))
	}
}

// Valid reports whether v is one of the known verification types
func (v VerificationType) Valid() bool {
	return v <= VerificationOffChain
}

// PolicyStatus is the protocol-defined lifecycle status of a policy
type PolicyStatus uint8

const (
	PolicyPending PolicyStatus = iota
	PolicyActive
	PolicyClaimed
	PolicyExpired
	PolicyCancelled
)

func (s PolicyStatus) String() string {
	switch s {
	case PolicyPending:
		return "PENDING"
	case PolicyActive:
		return "ACTIVE"
	case PolicyClaimed:
		return "CLAIMED"
	case PolicyExpired:
		return "EXPIRED"
	case PolicyCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// Policy is the registry-level (protocol-wide) policy record
type Policy struct {
	Id               uint64
	Name             string
	VerificationType VerificationType
	CoverageAmount   *big.Int
	PremiumAmount    *big.Int
	Duration         *big.Int
	StartTime        *big.Int
	Insurer          common.Address
	TriggerThreshold *big.Int
	Status           PolicyStatus
}

// VaultPolicyRaw is a vault's allocation of a registry policy
type VaultPolicyRaw struct {
	PolicyId         uint64
	AllocationWeight *big.Int
	Premium          *big.Int
	EarnedPremium    *big.Int
	Coverage         *big.Int
	Duration         *big.Int
	StartTime        *big.Int
	TimeRemaining    *big.Int // as reported remotely; the view recomputes it
	Claimed          bool
	Expired          bool // as reported remotely; the view recomputes it
}

// PolicyView is the derived state of a vault policy at the current virtual time
type PolicyView struct {
	PolicyId              uint64
	Vault                 common.Address
	Global                *Policy
	AllocationWeight      *big.Int
	Premium               *big.Int
	EarnedPremium         *big.Int
	Coverage              *big.Int
	StartTime             uint64
	ExpiryTime            uint64
	TimeRemaining         uint64
	Expired               bool
	Claimed               bool
	AllocationPercent     decimal.Decimal
	EarnedPremiumFraction decimal.Decimal
}
