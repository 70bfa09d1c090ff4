package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ReadKind names the read that failed during aggregation
type ReadKind string

const (
	ReadVaultInfo     ReadKind = "vault_info"
	ReadPendingClaims ReadKind = "pending_claims"
	ReadPolicyIds     ReadKind = "policy_ids"
	ReadUserPosition  ReadKind = "user_position"
	ReadVaultPolicy   ReadKind = "vault_policy"
	ReadPolicy        ReadKind = "policy"
	ReadReceipt       ReadKind = "receipt"
	ReadReceiptCount  ReadKind = "receipt_count"
)

// ReadFailure records one item excluded from a snapshot
type ReadFailure struct {
	Kind     ReadKind
	Vault    common.Address
	PolicyId *uint64
	Err      string
}

// VaultSnapshot is one vault with its derived policy views
type VaultSnapshot struct {
	View     VaultView
	Display  VaultDisplay
	Policies []PolicyView
}

// Snapshot is a consistent read-only picture of the protocol for one poll
type Snapshot struct {
	Seq         uint64
	Key         string
	Scope       string // receipt id space the receipts belong to
	CurrentTime uint64
	Vaults      []VaultSnapshot
	Receipts    []ClaimReceipt
	Failures    []ReadFailure
	FetchedAt   time.Time
}

// Vault looks up a vault in the snapshot by address
func (s *Snapshot) Vault(addr common.Address) (*VaultSnapshot, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Vaults {
		if s.Vaults[i].View.Address == addr {
			return &s.Vaults[i], true
		}
	}
	return nil, false
}

// Policy finds the registry record for policyId in any vault of the snapshot
func (s *Snapshot) Policy(policyId uint64) (*Policy, bool) {
	if s == nil {
		return nil, false
	}
	for _, v := range s.Vaults {
		for _, p := range v.Policies {
			if p.PolicyId == policyId && p.Global != nil {
				return p.Global, true
			}
		}
	}
	return nil, false
}

// Partial reports whether any item was excluded from the snapshot
func (s *Snapshot) Partial() bool {
	return s != nil && len(s.Failures) > 0
}
