package poller

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"insurance-vault-go/internal/aggregate"
	"insurance-vault-go/internal/database"
	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/memledger"
	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = 1_700_000_000

var user = common.HexToAddress("0x00000000000000000000000000000000000000e1")

// gatedReader blocks the first CurrentTime call until release is closed
type gatedReader struct {
	ledger.Reader
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (r *gatedReader) CurrentTime(ctx context.Context) (uint64, error) {
	if r.calls.Add(1) == 1 {
		close(r.entered)
		<-r.release
	}
	return r.Reader.CurrentTime(ctx)
}

func newPoller(l ledger.Reader, cfg PollerConfig) *Poller {
	cfg.Collector = aggregate.NewCollector(l)
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	return NewPoller(cfg)
}

func TestRefresh_CommitsAndDiscovers(t *testing.T) {
	l := memledger.NewDemo(user, base)
	var commits atomic.Int32
	p := newPoller(l, PollerConfig{User: user, OnCommit: func(*models.Snapshot) { commits.Add(1) }})

	assert.Nil(t, p.Snapshot())
	snap, committed, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Len(t, snap.Vaults, 2, "empty vault set discovers through the factory")
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Same(t, snap, p.Snapshot())
	assert.Equal(t, int32(1), commits.Load())
}

func TestRefresh_StaleResponseDiscarded(t *testing.T) {
	l := memledger.NewDemo(user, base)
	gated := &gatedReader{Reader: l, entered: make(chan struct{}), release: make(chan struct{})}
	p := newPoller(gated, PollerConfig{Vaults: []common.Address{memledger.BalancedCore}})

	type outcome struct {
		committed bool
		err       error
	}
	slow := make(chan outcome, 1)
	go func() {
		_, committed, err := p.Refresh(context.Background())
		slow <- outcome{committed, err}
	}()
	<-gated.entered

	fast, committed, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, committed)

	close(gated.release)
	out := <-slow
	require.NoError(t, out.err)
	assert.False(t, out.committed, "an older poll must not replace a newer one")
	assert.Same(t, fast, p.Snapshot())
}

func TestRefresh_ChangedRequestDiscarded(t *testing.T) {
	l := memledger.NewDemo(user, base)
	gated := &gatedReader{Reader: l, entered: make(chan struct{}), release: make(chan struct{})}
	p := newPoller(gated, PollerConfig{Vaults: []common.Address{memledger.BalancedCore}})

	done := make(chan bool, 1)
	go func() {
		_, committed, _ := p.Refresh(context.Background())
		done <- committed
	}()
	<-gated.entered

	p.SetVaults([]common.Address{memledger.DefiAlpha})
	close(gated.release)
	assert.False(t, <-done)
	assert.Nil(t, p.Snapshot())

	snap, committed, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, committed)
	require.Len(t, snap.Vaults, 1)
	assert.Equal(t, memledger.DefiAlpha, snap.Vaults[0].View.Address)
}

func TestCommit_ExercisedIsMonotonic(t *testing.T) {
	l := memledger.NewDemo(user, base)
	var external []uint64
	p := newPoller(l, PollerConfig{
		Vaults:    []common.Address{memledger.BalancedCore},
		Exercised: func() []uint64 { return external },
	})
	key := p.request().Key()
	ctx := context.Background()

	first := &models.Snapshot{Seq: 1, Key: key, Receipts: []models.ClaimReceipt{
		{ReceiptId: 0, Exercised: true},
		{ReceiptId: 1},
	}}
	require.True(t, p.commit(ctx, first))

	// a lagging read reports receipt 0 pending again
	second := &models.Snapshot{Seq: 2, Key: key, Receipts: []models.ClaimReceipt{
		{ReceiptId: 0},
		{ReceiptId: 1},
	}}
	require.True(t, p.commit(ctx, second))
	assert.True(t, second.Receipts[0].Exercised)
	assert.False(t, second.Receipts[1].Exercised)

	external = []uint64{1}
	third := &models.Snapshot{Seq: 3, Key: key, Receipts: []models.ClaimReceipt{{ReceiptId: 1}}}
	require.True(t, p.commit(ctx, third))
	assert.True(t, third.Receipts[0].Exercised)

	assert.False(t, p.commit(ctx, &models.Snapshot{Seq: 2, Key: key}))
	assert.False(t, p.commit(ctx, &models.Snapshot{Seq: 4, Key: "other"}))
}

func TestStart_PollsAndInvalidates(t *testing.T) {
	ctx := context.Background()
	l := memledger.NewDemo(user, base)
	p := newPoller(l, PollerConfig{Vaults: []common.Address{memledger.BalancedCore}})

	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	require.Eventually(t, func() bool { return p.Snapshot() != nil }, 5*time.Second, 10*time.Millisecond)
	first := p.Snapshot().Seq

	_, err := l.AdvanceTime(ctx, 3600)
	require.NoError(t, err)
	p.Invalidate()

	require.Eventually(t, func() bool {
		s := p.Snapshot()
		return s.Seq > first && s.CurrentTime == base+3600
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, big.NewInt(0).Cmp(p.Snapshot().Vaults[0].View.PendingClaims))
}

func TestSetUser_ChangesPosition(t *testing.T) {
	l := memledger.NewDemo(user, base)
	p := newPoller(l, PollerConfig{Vaults: []common.Address{memledger.BalancedCore}, User: user})
	ctx := context.Background()

	first, committed, err := p.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, committed)
	assert.False(t, first.Vaults[0].View.HasPosition)

	p.SetUser(memledger.DemoManager)
	second, committed, err := p.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, committed)
	assert.NotEqual(t, first.Key, second.Key)
	assert.True(t, second.Vaults[0].View.HasPosition, "the manager holds the seed shares")
}

func TestCommit_IgnoresJournalOfOtherScope(t *testing.T) {
	ctx := context.Background()
	journal, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	defer journal.Close()
	require.NoError(t, journal.MarkReceiptExercised(ctx, "sim:earlier-run", 0))

	l := memledger.NewDemo(user, base)
	_, err = l.SetBtcPrice(ctx, new(big.Int).Mul(big.NewInt(70_000), big.NewInt(100_000_000)))
	require.NoError(t, err)
	_, err = l.CheckClaim(ctx, memledger.DefiAlpha, 0)
	require.NoError(t, err)

	p := newPoller(l, PollerConfig{Vaults: []common.Address{memledger.DefiAlpha}, Journal: journal})
	snap, committed, err := p.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, committed)
	require.Len(t, snap.Receipts, 1)
	assert.Equal(t, l.ReceiptScope(), snap.Scope)
	assert.False(t, snap.Receipts[0].Exercised, "DeFi Alpha buffer cannot cover 50k")

	require.NoError(t, journal.MarkReceiptExercised(ctx, l.ReceiptScope(), 0))
	snap, _, err = p.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Receipts[0].Exercised)
}
