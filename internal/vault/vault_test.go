package vault

import (
	"math/big"
	"testing"

	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bi(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func rawVault() models.VaultRaw {
	return models.VaultRaw{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		VaultInfo: models.VaultInfo{
			Name:            "Balanced Core",
			TotalAssets:     bi("1000000000"),
			TotalShares:     bi("1000000000000000000000"),
			BufferBps:       big.NewInt(2000),
			FeeBps:          big.NewInt(50),
			AvailableBuffer: bi("200000000"),
			DeployedCapital: bi("800000000"),
			PolicyCount:     big.NewInt(3),
		},
		PendingClaims: big.NewInt(0),
	}
}

func TestDerive(t *testing.T) {
	view, err := Derive(rawVault(), bi("100000000000000000000"))
	require.NoError(t, err)

	assert.True(t, view.SharePrice.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "20.00%", view.BufferRatioDisplay)
	assert.Equal(t, "0.50%", view.FeeDisplay)
	assert.True(t, view.HasPosition)
	assert.Equal(t, "100", view.UserValue.String())
	assert.Equal(t, uint64(3), view.PolicyCount)
	assert.Equal(t, "80", view.Breakdown.DeployedPct.String())
	assert.Equal(t, "20", view.Breakdown.BufferPct.String())
	assert.True(t, view.Breakdown.PendingPct.IsZero())
}

func TestDerive_NoUser(t *testing.T) {
	view, err := Derive(rawVault(), nil)
	require.NoError(t, err)
	assert.False(t, view.HasPosition)
	assert.True(t, view.UserValue.IsZero())

	view, err = Derive(rawVault(), big.NewInt(0))
	require.NoError(t, err)
	assert.False(t, view.HasPosition)
	assert.True(t, view.UserValue.IsZero())
}

func TestDerive_EmptyVault(t *testing.T) {
	raw := rawVault()
	raw.TotalAssets = big.NewInt(0)
	raw.TotalShares = big.NewInt(0)
	raw.AvailableBuffer = big.NewInt(0)
	raw.DeployedCapital = big.NewInt(0)

	view, err := Derive(raw, nil)
	require.NoError(t, err)
	assert.True(t, view.SharePrice.Equal(decimal.NewFromInt(1)))
	assert.True(t, view.Breakdown.DeployedPct.IsZero())
	assert.True(t, view.Breakdown.BufferPct.IsZero())
	assert.True(t, view.Breakdown.PendingPct.IsZero())
}

func TestDerive_Malformed(t *testing.T) {
	cases := map[string]func(r *models.VaultRaw){
		"negative assets":  func(r *models.VaultRaw) { r.TotalAssets = big.NewInt(-1) },
		"negative buffer":  func(r *models.VaultRaw) { r.AvailableBuffer = big.NewInt(-5) },
		"negative pending": func(r *models.VaultRaw) { r.PendingClaims = big.NewInt(-5) },
		"missing shares":   func(r *models.VaultRaw) { r.TotalShares = nil },
		"bps over 100%":    func(r *models.VaultRaw) { r.BufferBps = big.NewInt(10001) },
	}
	for name, mutate := range cases {
		raw := rawVault()
		mutate(&raw)
		_, err := Derive(raw, nil)
		assert.ErrorIs(t, err, ErrMalformedVaultData, name)
		assert.ErrorIs(t, err, models.ErrInputValidation, name)
	}

	_, err := Derive(rawVault(), big.NewInt(-1))
	assert.ErrorIs(t, err, ErrMalformedVaultData)
}

func TestComputeBreakdown_SumsToHundred(t *testing.T) {
	cases := [][3]int64{
		{1, 1, 1},
		{800, 150, 50},
		{7, 0, 0},
		{333333, 333333, 333334},
		{1, 2, 3},
	}
	tolerance := decimal.RequireFromString("0.001")
	for _, c := range cases {
		b := ComputeBreakdown(big.NewInt(c[0]), big.NewInt(c[1]), big.NewInt(c[2]))
		sum := b.DeployedPct.Add(b.BufferPct).Add(b.PendingPct)
		assert.True(t, sum.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(tolerance), "%v sums to %s", c, sum)
	}
}

func TestComputeBreakdown_AllZero(t *testing.T) {
	b := ComputeBreakdown(big.NewInt(0), big.NewInt(0), big.NewInt(0))
	assert.True(t, b.DeployedPct.IsZero())
	assert.True(t, b.BufferPct.IsZero())
	assert.True(t, b.PendingPct.IsZero())

	b = ComputeBreakdown(nil, nil, nil)
	assert.True(t, b.DeployedPct.IsZero())
}

func TestDerive_DoesNotAssumeAccountingIdentity(t *testing.T) {
	raw := rawVault()
	raw.PendingClaims = bi("50000000")
	// totalAssets != buffer + deployed + pending is accepted as-is
	view, err := Derive(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "50000000", view.PendingClaims.String())
	assert.False(t, view.Breakdown.PendingPct.IsZero())
}
