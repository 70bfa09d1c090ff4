package models

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionType is a client-initiated write
type ActionType string

const (
	ActionCheckClaim    ActionType = "check_claim"
	ActionReportEvent   ActionType = "report_event"
	ActionSubmitClaim   ActionType = "submit_claim"
	ActionExerciseClaim ActionType = "exercise_claim"
	ActionDeposit       ActionType = "deposit"
	ActionWithdraw      ActionType = "withdraw"
)

// IsTrigger reports whether a is one of the three claim trigger paths
func (a ActionType) IsTrigger() bool {
	return a == ActionCheckClaim || a == ActionReportEvent || a == ActionSubmitClaim
}

// ActionStatus is the observable state of an action
type ActionStatus string

const (
	ActionIdle      ActionStatus = "idle"
	ActionPending   ActionStatus = "pending"
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
)

// ActionKey identifies an action slot. Id is a policy id for triggers and a
// receipt id for exercises.
type ActionKey struct {
	Vault  common.Address
	Id     uint64
	Action ActionType
}

func (k ActionKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Vault.Hex(), k.Action, k.Id)
}

// ActionState is the latest known state of an action slot
type ActionState struct {
	Key           ActionKey
	Status        ActionStatus
	CorrelationId string
	TxHash        string
	ReceiptId     *uint64
	Reason        string
	UpdatedAt     time.Time
}
