package memledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var user = common.HexToAddress("0x00000000000000000000000000000000000000e1")

const base = 1_700_000_000

func lowerBtc(t *testing.T, l *Ledger) {
	t.Helper()
	_, err := l.SetBtcPrice(context.Background(), new(big.Int).Mul(big.NewInt(70_000), big.NewInt(btcPriceUnit)))
	require.NoError(t, err)
}

func TestDemo_Reads(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)

	vaults, err := l.GetVaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{BalancedCore, DefiAlpha}, vaults)

	info, err := l.GetVaultInfo(ctx, BalancedCore)
	require.NoError(t, err)
	assert.Equal(t, "Balanced Core", info.Name)
	assert.Equal(t, usd(500_000).String(), info.TotalAssets.String())
	assert.Equal(t, usd(100_000).String(), info.AvailableBuffer.String())
	assert.Equal(t, "3", info.PolicyCount.String())

	row, err := l.GetVaultPolicy(ctx, BalancedCore, 0)
	require.NoError(t, err)
	assert.False(t, row.Expired)
	assert.Equal(t, uint64(demoDuration), row.TimeRemaining.Uint64())

	_, err = l.GetVaultPolicy(ctx, DefiAlpha, 2)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	count, err := l.GetPolicyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestCheckClaim_AutoSettles(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)

	_, err := l.CheckClaim(ctx, BalancedCore, 0)
	assert.Error(t, err, "condition not met at 95k")

	lowerBtc(t, l)
	res, err := l.CheckClaim(ctx, BalancedCore, 0)
	require.NoError(t, err)
	require.NotNil(t, res.ReceiptId)
	require.Len(t, res.Events, 2)
	assert.Equal(t, models.EventClaimTriggered, res.Events[0].Name)
	assert.Equal(t, models.EventClaimExercised, res.Events[1].Name)

	r, err := l.GetReceipt(ctx, *res.ReceiptId)
	require.NoError(t, err)
	assert.True(t, r.Exercised)

	pending, err := l.TotalPendingClaims(ctx, BalancedCore)
	require.NoError(t, err)
	assert.Zero(t, pending.Sign())

	_, err = l.CheckClaim(ctx, BalancedCore, 0)
	assert.Error(t, err, "policy already claimed")
}

func TestCheckClaim_InsufficientBufferStaysPending(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)
	lowerBtc(t, l)

	res, err := l.CheckClaim(ctx, DefiAlpha, 0)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	pending, err := l.TotalPendingClaims(ctx, DefiAlpha)
	require.NoError(t, err)
	assert.Equal(t, usd(50_000).String(), pending.String())

	_, err = l.ExerciseClaim(ctx, DefiAlpha, *res.ReceiptId)
	assert.Error(t, err, "buffer too small")

	_, err = l.Mint(ctx, user, usd(200_000))
	require.NoError(t, err)
	_, err = l.Approve(ctx, DefiAlpha, usd(200_000))
	require.NoError(t, err)
	_, err = l.Deposit(ctx, DefiAlpha, usd(200_000), user)
	require.NoError(t, err)

	res2, err := l.ExerciseClaim(ctx, DefiAlpha, *res.ReceiptId)
	require.NoError(t, err)
	assert.Equal(t, models.EventClaimExercised, res2.Events[0].Name)

	_, err = l.ExerciseClaim(ctx, DefiAlpha, *res.ReceiptId)
	assert.Error(t, err)
}

func TestSubmitClaim_InsurerOnly(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)

	_, err := l.SubmitClaim(ctx, BalancedCore, 2, usd(10_000))
	assert.Error(t, err, "sender is not the insurer")

	l.SetSender(DemoInsurer)
	_, err = l.SubmitClaim(ctx, BalancedCore, 2, usd(40_001))
	assert.Error(t, err, "over coverage")

	res, err := l.SubmitClaim(ctx, BalancedCore, 2, usd(10_000))
	require.NoError(t, err)
	r, err := l.GetReceipt(ctx, *res.ReceiptId)
	require.NoError(t, err)
	assert.Equal(t, usd(10_000).String(), r.ClaimAmount.String())
}

func TestReportEvent_RequiresDelay(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)

	_, err := l.ReportEvent(ctx, BalancedCore, 1)
	assert.Error(t, err)

	_, err = l.SetFlightStatus(ctx, true)
	require.NoError(t, err)
	_, err = l.ReportEvent(ctx, BalancedCore, 1)
	assert.NoError(t, err)
}

func TestAdvanceTime_ExpiresPolicies(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)

	_, err := l.AdvanceTime(ctx, demoDuration+1)
	require.NoError(t, err)

	now, err := l.CurrentTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(base+demoDuration+1), now)

	row, err := l.GetVaultPolicy(ctx, BalancedCore, 0)
	require.NoError(t, err)
	assert.True(t, row.Expired)
	assert.Equal(t, row.Premium.String(), row.EarnedPremium.String())

	lowerBtc(t, l)
	_, err = l.CheckClaim(ctx, BalancedCore, 0)
	assert.Error(t, err, "expired")
}

func TestWithdraw_BoundedByMaxWithdraw(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)

	_, err := l.Approve(ctx, BalancedCore, usd(1_000))
	require.NoError(t, err)
	res, err := l.Deposit(ctx, BalancedCore, usd(1_000), user)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(usd(1_000), shareOffset).String(), res.Shares.String())

	maxAssets, err := l.MaxWithdraw(ctx, BalancedCore, user)
	require.NoError(t, err)
	assert.Equal(t, usd(1_000).String(), maxAssets.String())

	_, err = l.Withdraw(ctx, BalancedCore, usd(1_001), user, user)
	assert.Error(t, err)
	_, err = l.Withdraw(ctx, BalancedCore, usd(1_000), user, user)
	require.NoError(t, err)

	shares, err := l.BalanceOf(ctx, BalancedCore, user)
	require.NoError(t, err)
	assert.Zero(t, shares.Sign())
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	l := NewDemo(user, base)
	boom := errors.New("rpc down")

	l.FailOn("GetVaultInfo", DefiAlpha, boom)
	_, err := l.GetVaultInfo(ctx, DefiAlpha)
	assert.ErrorIs(t, err, boom)
	_, err = l.GetVaultInfo(ctx, BalancedCore)
	assert.NoError(t, err)

	l.FailOn("GetVaultInfo", DefiAlpha, nil)
	_, err = l.GetVaultInfo(ctx, DefiAlpha)
	assert.NoError(t, err)
}

func TestWriteHook_Rejects(t *testing.T) {
	l := NewDemo(user, base)
	l.SetWriteHook(func(ctx context.Context, method string) error {
		return errors.New("nonce too low")
	})
	_, err := l.AdvanceTime(context.Background(), 10)
	assert.Error(t, err)

	now, err := l.CurrentTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(base), now)
}
