package policy

import (
	"math/big"
	"testing"

	"insurance-vault-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thirtyDays = 2_592_000

func row(start, duration int64) models.VaultPolicyRaw {
	return models.VaultPolicyRaw{
		PolicyId:         0,
		AllocationWeight: big.NewInt(40),
		Premium:          big.NewInt(1_000_000_000),
		EarnedPremium:    big.NewInt(250_000_000),
		Coverage:         big.NewInt(50_000_000_000),
		Duration:         big.NewInt(duration),
		StartTime:        big.NewInt(start),
	}
}

func TestDerive_BeforeExpiry(t *testing.T) {
	for _, now := range []uint64{0, 1, 1000, thirtyDays - 1} {
		view, err := Derive(row(0, thirtyDays), now, big.NewInt(100))
		require.NoError(t, err)
		assert.False(t, view.Expired, now)
		assert.Equal(t, thirtyDays-now, view.TimeRemaining, now)
	}
}

func TestDerive_AtAndAfterExpiry(t *testing.T) {
	for _, now := range []uint64{thirtyDays, thirtyDays + 1, 10 * thirtyDays} {
		view, err := Derive(row(0, thirtyDays), now, big.NewInt(100))
		require.NoError(t, err)
		assert.True(t, view.Expired, now)
		assert.Zero(t, view.TimeRemaining, now)
	}
}

func TestDerive_ScenarioB(t *testing.T) {
	view, err := Derive(row(0, thirtyDays), 2_592_001, big.NewInt(40))
	require.NoError(t, err)
	assert.True(t, view.Expired)
	assert.Zero(t, view.TimeRemaining)
	assert.Equal(t, "Expired", FormatRemaining(view.TimeRemaining))
}

func TestDerive_DerivedFractions(t *testing.T) {
	view, err := Derive(row(100, thirtyDays), 200, big.NewInt(160))
	require.NoError(t, err)
	assert.Equal(t, "25", view.AllocationPercent.String())
	assert.Equal(t, "0.25", view.EarnedPremiumFraction.String())
	assert.Equal(t, uint64(100+thirtyDays), view.ExpiryTime)
}

func TestDerive_Malformed(t *testing.T) {
	_, err := Derive(row(0, 0), 0, big.NewInt(1))
	assert.ErrorIs(t, err, ErrMalformedPolicyData)

	_, err = Derive(row(0, -5), 0, big.NewInt(1))
	assert.ErrorIs(t, err, ErrMalformedPolicyData)

	_, err = Derive(row(-1, thirtyDays), 0, big.NewInt(1))
	assert.ErrorIs(t, err, ErrMalformedPolicyData)
	assert.ErrorIs(t, err, models.ErrInputValidation)

	r := row(0, thirtyDays)
	r.Duration = nil
	_, err = Derive(r, 0, big.NewInt(1))
	assert.ErrorIs(t, err, ErrMalformedPolicyData)
}

func TestAllocationPercent_ZeroTotal(t *testing.T) {
	assert.True(t, AllocationPercent(big.NewInt(5), big.NewInt(0)).IsZero())
	assert.True(t, AllocationPercent(big.NewInt(5), nil).IsZero())
}

func TestEarnedPremiumFraction_Clamped(t *testing.T) {
	assert.True(t, EarnedPremiumFraction(big.NewInt(10), big.NewInt(0)).IsZero())
	assert.True(t, EarnedPremiumFraction(big.NewInt(300), big.NewInt(100)).Equal(decimal.NewFromInt(1)))
	assert.True(t, EarnedPremiumFraction(big.NewInt(0), big.NewInt(100)).IsZero())
}

func TestTotalWeight(t *testing.T) {
	rows := []models.VaultPolicyRaw{
		{AllocationWeight: big.NewInt(40)},
		{AllocationWeight: big.NewInt(35)},
		{AllocationWeight: nil},
		{AllocationWeight: big.NewInt(25)},
	}
	assert.Equal(t, "100", TotalWeight(rows).String())
}

func TestClaimable(t *testing.T) {
	view, err := Derive(row(100, thirtyDays), 50, big.NewInt(40))
	require.NoError(t, err)
	assert.False(t, Claimable(view, 50), "not started")

	view, err = Derive(row(100, thirtyDays), 150, big.NewInt(40))
	require.NoError(t, err)
	assert.True(t, Claimable(view, 150))

	view.Claimed = true
	assert.False(t, Claimable(view, 150), "claimed")
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "30d 0h", FormatRemaining(thirtyDays))
	assert.Equal(t, "3h 20m", FormatRemaining(3*3600+20*60))
	assert.Equal(t, "5m", FormatRemaining(300))
}
