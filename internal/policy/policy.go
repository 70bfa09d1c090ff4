package policy

import (
	"fmt"
	"math/big"

	"insurance-vault-go/internal/models"

	"github.com/shopspring/decimal"
)

const fractionPrecision int32 = 6

var ErrMalformedPolicyData = fmt.Errorf("%w: malformed policy data", models.ErrInputValidation)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Derive computes the view of a vault policy at currentTime (virtual clock seconds).
// totalWeight is the sum of allocation weights of all policies in the same vault.
func Derive(raw models.VaultPolicyRaw, currentTime uint64, totalWeight *big.Int) (models.PolicyView, error) {
	if raw.Duration == nil || raw.Duration.Sign() <= 0 {
		return models.PolicyView{}, fmt.Errorf("%w: policy %d duration must be positive, got %v", ErrMalformedPolicyData, raw.PolicyId, raw.Duration)
	}
	if raw.StartTime == nil || raw.StartTime.Sign() < 0 {
		return models.PolicyView{}, fmt.Errorf("%w: policy %d start time is implausible (%v)", ErrMalformedPolicyData, raw.PolicyId, raw.StartTime)
	}
	expiry := new(big.Int).Add(raw.StartTime, raw.Duration)
	if !expiry.IsUint64() {
		return models.PolicyView{}, fmt.Errorf("%w: policy %d expiry overflows (%s)", ErrMalformedPolicyData, raw.PolicyId, expiry)
	}
	for name, v := range map[string]*big.Int{
		"allocation weight": raw.AllocationWeight,
		"premium":           raw.Premium,
		"earned premium":    raw.EarnedPremium,
		"coverage":          raw.Coverage,
	} {
		if v != nil && v.Sign() < 0 {
			return models.PolicyView{}, fmt.Errorf("%w: policy %d %s is negative", ErrMalformedPolicyData, raw.PolicyId, name)
		}
	}

	expiryTime := expiry.Uint64()
	return models.PolicyView{
		PolicyId:              raw.PolicyId,
		AllocationWeight:      raw.AllocationWeight,
		Premium:               raw.Premium,
		EarnedPremium:         raw.EarnedPremium,
		Coverage:              raw.Coverage,
		StartTime:             raw.StartTime.Uint64(),
		ExpiryTime:            expiryTime,
		TimeRemaining:         TimeRemaining(expiryTime, currentTime),
		Expired:               currentTime >= expiryTime,
		Claimed:               raw.Claimed,
		AllocationPercent:     AllocationPercent(raw.AllocationWeight, totalWeight),
		EarnedPremiumFraction: EarnedPremiumFraction(raw.EarnedPremium, raw.Premium),
	}, nil
}

// TimeRemaining is max(0, expiry - now)
func TimeRemaining(expiryTime, currentTime uint64) uint64 {
	if currentTime >= expiryTime {
		return 0
	}
	return expiryTime - currentTime
}

// AllocationPercent is weight / total * 100, or 0 when total is 0
func AllocationPercent(weight, total *big.Int) decimal.Decimal {
	if weight == nil || total == nil || total.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(weight, 0).Mul(hundred).DivRound(decimal.NewFromBigInt(total, 0), 2)
}

// EarnedPremiumFraction is earned / premium clamped to [0, 1], or 0 when premium is 0
func EarnedPremiumFraction(earned, premium *big.Int) decimal.Decimal {
	if earned == nil || premium == nil || premium.Sign() == 0 {
		return decimal.Zero
	}
	f := decimal.NewFromBigInt(earned, 0).DivRound(decimal.NewFromBigInt(premium, 0), fractionPrecision)
	if f.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if f.GreaterThan(one) {
		return one
	}
	return f
}

// TotalWeight sums allocation weights of a vault's policy rows
func TotalWeight(rows []models.VaultPolicyRaw) *big.Int {
	total := new(big.Int)
	for _, r := range rows {
		if r.AllocationWeight != nil {
			total.Add(total, r.AllocationWeight)
		}
	}
	return total
}

// Started reports whether the policy term has begun
func Started(view models.PolicyView, currentTime uint64) bool {
	return currentTime >= view.StartTime
}

// Claimable reports whether a claim can be attempted at currentTime: the term has
// started, has not expired, and the policy has not been claimed in this vault.
// The remote authority is still the final arbiter.
func Claimable(view models.PolicyView, currentTime uint64) bool {
	return Started(view, currentTime) && !view.Expired && !view.Claimed
}

// FormatRemaining renders a duration in seconds for display
func FormatRemaining(seconds uint64) string {
	if seconds == 0 {
		return "Expired"
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
