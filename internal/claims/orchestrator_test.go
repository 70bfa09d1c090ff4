package claims

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"insurance-vault-go/internal/aggregate"
	"insurance-vault-go/internal/database"
	"insurance-vault-go/internal/memledger"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = 1_700_000_000

var (
	user = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	v1   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	v2   = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	v3   = common.HexToAddress("0x00000000000000000000000000000000000000f3")
)

func usdc(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

func btc(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(100_000_000))
}

func policyOf(t *testing.T, l *memledger.Ledger, id uint64) *models.Policy {
	t.Helper()
	p, err := l.GetPolicy(context.Background(), id)
	require.NoError(t, err)
	return p
}

// countWrites installs a write hook counting every submitted write
func countWrites(l *memledger.Ledger) *atomic.Int32 {
	var n atomic.Int32
	l.SetWriteHook(func(ctx context.Context, method string) error {
		n.Add(1)
		return nil
	})
	return &n
}

func setupJournal(t *testing.T) *database.Service {
	t.Helper()
	journal, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(journal.Close)
	return journal
}

func TestTrigger_OffChainAmountBounds(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(memledger.DemoInsurer, base)
	writes := countWrites(l)
	o := NewOrchestrator(l, nil)
	fire := policyOf(t, l, 2)
	require.Equal(t, "40000000000", fire.CoverageAmount.String())

	for _, amount := range []*big.Int{usdc(45_000), big.NewInt(0), big.NewInt(-1), nil} {
		_, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: fire, Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidClaimAmount)
		assert.ErrorIs(t, err, models.ErrInputValidation)
	}
	assert.Equal(t, int32(0), writes.Load(), "rejected amounts must not reach the ledger")

	result, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: fire, Amount: big.NewInt(35_000_000_000)})
	require.NoError(t, err)
	require.NotNil(t, result.ReceiptId)
	assert.Equal(t, int32(1), writes.Load())
	assert.True(t, o.Exercised(*result.ReceiptId), "the buffer covers 35k so the claim settles at once")

	key := models.ActionKey{Vault: memledger.BalancedCore, Id: 2, Action: models.ActionSubmitClaim}
	assert.Equal(t, models.ActionSucceeded, o.Tracker().State(key).Status)
}

func TestTrigger_DuplicatePending(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	_, err := l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var writes atomic.Int32
	l.SetWriteHook(func(ctx context.Context, method string) error {
		writes.Add(1)
		entered <- struct{}{}
		<-release
		return nil
	})

	o := NewOrchestrator(l, nil)
	p := policyOf(t, l, 0)

	done := make(chan error, 1)
	go func() {
		_, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: p})
		done <- err
	}()
	<-entered

	_, err = o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: p})
	assert.ErrorIs(t, err, ErrTriggerAlreadyPending)
	assert.ErrorIs(t, err, models.ErrStateConflict)
	assert.Equal(t, int32(1), writes.Load())

	close(release)
	require.NoError(t, <-done)
}

func TestTrigger_ResetCancelsPending(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	_, err := l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)

	entered := make(chan struct{})
	l.SetWriteHook(func(ctx context.Context, method string) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})

	o := NewOrchestrator(l, nil)
	p := policyOf(t, l, 0)
	key := models.ActionKey{Vault: memledger.BalancedCore, Id: 0, Action: models.ActionCheckClaim}

	done := make(chan error, 1)
	go func() {
		_, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: p})
		done <- err
	}()
	<-entered

	assert.True(t, o.Tracker().Reset(key))
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
	var remote *models.RemoteError
	assert.False(t, errors.As(err, &remote))
	assert.Equal(t, models.ActionIdle, o.Tracker().State(key).Status)
}

func TestTrigger_OracleConditionNotSet(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	writes := countWrites(l)
	o := NewOrchestrator(l, nil)
	flight := policyOf(t, l, 1)

	_, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: flight})
	assert.ErrorIs(t, err, ErrOracleConditionNotSet)
	assert.Equal(t, int32(0), writes.Load())

	_, err = l.SetFlightStatus(ctx, true)
	require.NoError(t, err)
	result, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: flight})
	require.NoError(t, err)
	require.NotNil(t, result.ReceiptId)
}

func TestTrigger_RemoteRejection(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	o := NewOrchestrator(l, nil)

	// BTC is above the threshold, the contract reverts
	_, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: policyOf(t, l, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRemoteRejection)

	var remote *models.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "execution reverted: ClaimConditionNotMet", remote.FirstLine())

	key := models.ActionKey{Vault: memledger.BalancedCore, Id: 0, Action: models.ActionCheckClaim}
	state := o.Tracker().State(key)
	assert.Equal(t, models.ActionFailed, state.Status)
	assert.Equal(t, "execution reverted: ClaimConditionNotMet", state.Reason)

	// failed permits a fresh attempt
	_, err = l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)
	_, err = o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: policyOf(t, l, 0)})
	assert.NoError(t, err)
}

func TestTriggerAll_IndependentVaults(t *testing.T) {
	ctx := context.Background()
	l := memledger.New(user, base)
	p := l.RegisterPolicy(models.Policy{
		Name:             "BTC Price Protection",
		VerificationType: models.VerificationOnChain,
		CoverageAmount:   usdc(50_000),
		PremiumAmount:    usdc(2_500),
		Duration:         big.NewInt(30 * 24 * 3600),
		StartTime:        big.NewInt(base),
		Insurer:          memledger.DemoInsurer,
		TriggerThreshold: btc(80_000),
		Status:           models.PolicyActive,
	})
	for _, v := range []common.Address{v1, v2, v3} {
		l.AddVault(v, "Vault", memledger.DemoManager, 2000, 50)
		require.NoError(t, l.AllocatePolicy(v, p, big.NewInt(100), usdc(1_000), usdc(50_000)))
	}
	_, err := l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)
	l.FailOn("CheckClaim", v2, errors.New("execution reverted: Paused\n  at vault.checkClaim"))

	var invalidations atomic.Int32
	o := NewOrchestrator(l, nil, WithConcurrency(2), WithInvalidate(func() { invalidations.Add(1) }))

	batch, err := o.TriggerAll(ctx, []common.Address{v1, v2, v3}, policyOf(t, l, p))
	require.NoError(t, err)
	require.Len(t, batch.Succeeded, 2)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, v1, batch.Succeeded[0].Vault)
	assert.Equal(t, v3, batch.Succeeded[1].Vault)
	assert.Equal(t, v2, batch.Failed[0].Vault)

	var remote *models.RemoteError
	require.True(t, errors.As(batch.Failed[0].Err, &remote))
	assert.Equal(t, "execution reverted: Paused", remote.FirstLine())
	assert.Equal(t, int32(2), invalidations.Load())
}

func TestTriggerAll_OnChainOnly(t *testing.T) {
	l := memledger.NewDemo(user, base)
	o := NewOrchestrator(l, nil)

	_, err := o.TriggerAll(context.Background(), []common.Address{memledger.BalancedCore}, policyOf(t, l, 2))
	assert.ErrorIs(t, err, ErrUnsupportedBatch)
}

func TestExercise_Rules(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	journal := setupJournal(t)
	o := NewOrchestrator(l, journal)

	_, err := o.Exercise(ctx, memledger.DefiAlpha, 99)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// DeFi Alpha holds 37.5k of buffer against a 50k claim: the receipt stays pending
	_, err = l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)
	result, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.DefiAlpha, Policy: policyOf(t, l, 0)})
	require.NoError(t, err)
	require.NotNil(t, result.ReceiptId)
	id := *result.ReceiptId
	assert.False(t, o.Exercised(id))

	_, err = o.Exercise(ctx, memledger.BalancedCore, id)
	assert.ErrorIs(t, err, ErrReceiptNotFound, "receipt belongs to another vault")

	_, err = o.Exercise(ctx, memledger.DefiAlpha, id)
	var remote *models.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "execution reverted: InsufficientBuffer", remote.FirstLine())

	_, err = o.Deposit(ctx, memledger.DefiAlpha, usdc(100_000))
	require.NoError(t, err)

	_, err = o.Exercise(ctx, memledger.DefiAlpha, id)
	require.NoError(t, err)
	assert.True(t, o.Exercised(id))

	_, err = o.Exercise(ctx, memledger.DefiAlpha, id)
	assert.ErrorIs(t, err, ErrAlreadyExercised)

	ids, err := journal.ExercisedReceiptIds(ctx, l.ReceiptScope())
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	// a fresh orchestrator remembers through the journal without reading the ledger
	l.FailOn("GetReceipt", common.Address{}, errors.New("unreachable"))
	fresh := NewOrchestrator(l, journal)
	require.NoError(t, fresh.LoadExercised(ctx))
	_, err = fresh.Exercise(ctx, memledger.DefiAlpha, id)
	assert.ErrorIs(t, err, ErrAlreadyExercised)
}

func TestExercise_JournalOfOtherLedgerIgnored(t *testing.T) {
	ctx := context.Background()
	journal := setupJournal(t)

	// receipt #0 of an earlier ledger was exercised and journaled
	earlier := memledger.NewDemo(user, base)
	require.NoError(t, journal.MarkReceiptExercised(ctx, earlier.ReceiptScope(), 0))

	l := memledger.NewDemo(user, base)
	o := NewOrchestrator(l, journal)
	require.NoError(t, o.LoadExercised(ctx))
	assert.False(t, o.Exercised(0))

	_, err := l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)
	result, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.DefiAlpha, Policy: policyOf(t, l, 0)})
	require.NoError(t, err)
	require.Equal(t, uint64(0), *result.ReceiptId)

	_, err = o.Deposit(ctx, memledger.DefiAlpha, usdc(100_000))
	require.NoError(t, err)
	_, err = o.Exercise(ctx, memledger.DefiAlpha, 0)
	require.NoError(t, err)
	assert.True(t, o.Exercised(0))
}

func TestExerciseCovered(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	collector := aggregate.NewCollector(l)
	collect := func() *models.Snapshot {
		snap, err := collector.Collect(ctx, aggregate.Request{Vaults: []common.Address{memledger.DefiAlpha}})
		require.NoError(t, err)
		return snap
	}

	var invalidations atomic.Int32
	o := NewOrchestrator(l, nil)
	o.SetInvalidate(func() { invalidations.Add(1) })

	_, err := l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)
	_, err = o.Trigger(ctx, TriggerRequest{Vault: memledger.DefiAlpha, Policy: policyOf(t, l, 0)})
	require.NoError(t, err)
	require.Equal(t, int32(1), invalidations.Load())

	assert.Empty(t, o.ExerciseCovered(ctx, collect()), "buffer does not cover the claim yet")

	_, err = o.Deposit(ctx, memledger.DefiAlpha, usdc(100_000))
	require.NoError(t, err)
	snap := collect()

	other := *snap
	other.Scope = memledger.NewDemo(user, base).ReceiptScope()
	assert.Empty(t, o.ExerciseCovered(ctx, &other), "receipts of another ledger are left alone")

	assert.Equal(t, []uint64{0}, o.ExerciseCovered(ctx, snap))
	assert.True(t, o.Exercised(0))
	assert.Equal(t, int32(3), invalidations.Load())

	assert.Empty(t, o.ExerciseCovered(ctx, snap), "settled receipts are skipped")
}

func TestExercise_RemoteAlreadyExercised(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	_, err := l.SetBtcPrice(ctx, btc(70_000))
	require.NoError(t, err)

	// settled outside this orchestrator
	result, err := l.CheckClaim(ctx, memledger.BalancedCore, 0)
	require.NoError(t, err)

	o := NewOrchestrator(l, nil)
	_, err = o.Exercise(ctx, memledger.BalancedCore, *result.ReceiptId)
	assert.ErrorIs(t, err, ErrAlreadyExercised)
	assert.True(t, o.Exercised(*result.ReceiptId))
}

func TestRun_Journaled(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(memledger.DemoInsurer, base)
	journal := setupJournal(t)
	o := NewOrchestrator(l, journal)

	_, err := o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: policyOf(t, l, 2), Amount: usdc(10_000)})
	require.NoError(t, err)
	_, err = o.Trigger(ctx, TriggerRequest{Vault: memledger.BalancedCore, Policy: policyOf(t, l, 2), Amount: usdc(10_000)})
	require.Error(t, err)

	history, err := journal.GetActionHistory(ctx, store.HistoryFilter{Action: models.ActionSubmitClaim})
	require.NoError(t, err)
	require.Len(t, history, 2)

	failed, succeeded := history[0], history[1]
	assert.Equal(t, models.ActionFailed, failed.Status)
	assert.Equal(t, "execution reverted: PolicyAlreadyClaimed", failed.Reason)
	assert.Equal(t, models.ActionSucceeded, succeeded.Status)
	assert.Equal(t, "10000000000", succeeded.Amount)
	require.NotNil(t, succeeded.ReceiptId)
	assert.Equal(t, uint64(0), *succeeded.ReceiptId)
	assert.NotEmpty(t, succeeded.TxHash)
}

func TestDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	o := NewOrchestrator(l, nil)

	_, err := o.Deposit(ctx, memledger.BalancedCore, usdc(200_000))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	result, err := o.Deposit(ctx, memledger.BalancedCore, usdc(10_000))
	require.NoError(t, err)
	require.NotNil(t, result.Shares)
	assert.Equal(t, "10000000000000000000000", result.Shares.String())

	maxAssets, err := l.MaxWithdraw(ctx, memledger.BalancedCore, user)
	require.NoError(t, err)

	_, err = o.Withdraw(ctx, memledger.BalancedCore, new(big.Int).Add(maxAssets, big.NewInt(1)))
	assert.ErrorIs(t, err, ErrExceedsMaxWithdraw)

	_, err = o.Withdraw(ctx, memledger.BalancedCore, usdc(4_000))
	require.NoError(t, err)
	balance, err := l.AssetBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, usdc(94_000).String(), balance.String())

	_, err = o.Withdraw(ctx, memledger.BalancedCore, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
