package claims

import (
	"fmt"

	"insurance-vault-go/internal/models"
)

var (
	ErrActionPending           = fmt.Errorf("%w: action already pending", models.ErrStateConflict)
	ErrTriggerAlreadyPending   = fmt.Errorf("%w: trigger already pending for this vault and policy", ErrActionPending)
	ErrAlreadyExercised        = fmt.Errorf("%w: receipt already exercised", models.ErrStateConflict)
	ErrOracleConditionNotSet   = fmt.Errorf("%w: oracle condition not set", models.ErrStateConflict)
	ErrReceiptNotFound         = fmt.Errorf("%w: receipt not found", models.ErrNotFound)
	ErrInvalidClaimAmount      = fmt.Errorf("%w: claim amount must be positive and at most the coverage amount", models.ErrInputValidation)
	ErrUnsupportedBatch        = fmt.Errorf("%w: batch trigger is only supported for ON_CHAIN policies", models.ErrInputValidation)
	ErrUnknownVerificationType = fmt.Errorf("%w: unknown verification type", models.ErrInputValidation)
	ErrInvalidAmount           = fmt.Errorf("%w: amount must be positive", models.ErrInputValidation)
	ErrExceedsMaxWithdraw      = fmt.Errorf("%w: amount exceeds max withdraw", models.ErrInputValidation)
	ErrInsufficientBalance     = fmt.Errorf("%w: insufficient asset balance", models.ErrInputValidation)
)
