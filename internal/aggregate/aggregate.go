// Package aggregate assembles a consistent snapshot of the protocol from many
// independent ledger reads. A failed read excludes only the item it concerns.
package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/policy"
	"insurance-vault-go/internal/store"
	"insurance-vault-go/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 8
	// defaultMaxReceipts bounds how many receipts one snapshot reads
	defaultMaxReceipts = 4096
)

// Request selects what a snapshot covers. A zero User skips position reads.
type Request struct {
	Vaults []common.Address
	User   common.Address
}

// Key identifies the request independently of vault order
func (r Request) Key() string {
	addrs := make([]string, len(r.Vaults))
	for i, v := range r.Vaults {
		addrs[i] = strings.ToLower(v.Hex())
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ",") + "|" + strings.ToLower(r.User.Hex())
}

type Option func(*Collector)

// WithConcurrency bounds the number of reads in flight
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxReceipts bounds the receipts read per snapshot. When the ledger
// reports more, only the newest n are read.
func WithMaxReceipts(n uint64) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxReceipts = n
		}
	}
}

// WithDisplay sets the lookup used to attach presentation metadata to vaults
func WithDisplay(lookup func(common.Address) models.VaultDisplay) Option {
	return func(c *Collector) { c.display = lookup }
}

// WithReceiptCache writes every receipt read through to the journal
func WithReceiptCache(journal store.ActionJournal) Option {
	return func(c *Collector) { c.cache = journal }
}

type Collector struct {
	reader      ledger.Reader
	concurrency int
	maxReceipts uint64
	display     func(common.Address) models.VaultDisplay
	cache       store.ActionJournal
	now         func() time.Time
}

func NewCollector(reader ledger.Reader, opts ...Option) *Collector {
	c := &Collector{
		reader:      reader,
		concurrency: defaultConcurrency,
		maxReceipts: defaultMaxReceipts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover lists the vaults registered with the factory
func (c *Collector) Discover(ctx context.Context) ([]common.Address, error) {
	vaults, err := c.reader.GetVaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to discover vaults: %w", err)
	}
	return vaults, nil
}

// vaultReads holds the first-phase reads of one vault
type vaultReads struct {
	raw         models.VaultRaw
	ok          bool
	policyIds   []uint64
	userShares  *big.Int
	maxWithdraw *big.Int
	rows        []*models.VaultPolicyRaw
}

// collection accumulates the results of one Collect call
type collection struct {
	mu       sync.Mutex
	failures []models.ReadFailure
}

func (c *collection) fail(kind models.ReadKind, vault common.Address, policyId *uint64, err error) {
	fields := []zap.Field{zap.String("kind", string(kind)), zap.Error(err)}
	if vault != (common.Address{}) {
		fields = append(fields, zap.String("vault", vault.Hex()))
	}
	if policyId != nil {
		fields = append(fields, zap.Uint64("id", *policyId))
	}
	zap.L().Warn("Read failed, item excluded from snapshot", fields...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, models.ReadFailure{
		Kind:     kind,
		Vault:    vault,
		PolicyId: policyId,
		Err:      err.Error(),
	})
}

// Collect reads everything req covers. Only a failure to read the virtual
// clock or a cancelled ctx fails the whole call; any other failed read is
// recorded in Snapshot.Failures and the item is left out.
func (c *Collector) Collect(ctx context.Context, req Request) (*models.Snapshot, error) {
	currentTime, err := c.reader.CurrentTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to read current time: %w", err)
	}

	col := &collection{}
	reads := make([]vaultReads, len(req.Vaults))
	var receiptCount uint64
	receiptCountOk := false

	// Phase one: per-vault state and the receipt count
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, addr := range req.Vaults {
		g.Go(func() error {
			reads[i] = c.readVault(gctx, col, addr, req.User)
			return gctx.Err()
		})
	}
	g.Go(func() error {
		n, err := c.reader.NextReceiptId(gctx)
		if err != nil {
			col.fail(models.ReadReceiptCount, common.Address{}, nil, err)
			return gctx.Err()
		}
		receiptCount, receiptCountOk = n, true
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Phase two: policy rows, registry policies once per id, and receipts
	seen := make(map[uint64]bool)
	var policyIds []uint64
	for _, r := range reads {
		for _, id := range r.policyIds {
			if !seen[id] {
				seen[id] = true
				policyIds = append(policyIds, id)
			}
		}
	}
	fetched := make([]*models.Policy, len(policyIds))

	var receipts []*models.ClaimReceipt
	var firstReceipt uint64
	if receiptCountOk {
		if receiptCount > c.maxReceipts {
			firstReceipt = receiptCount - c.maxReceipts
			col.fail(models.ReadReceiptCount, common.Address{}, nil,
				fmt.Errorf("%w: %d receipts exceed the limit of %d, receipts below #%d omitted",
					models.ErrPartialRead, receiptCount, c.maxReceipts, firstReceipt))
		}
		receipts = make([]*models.ClaimReceipt, receiptCount-firstReceipt)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range reads {
		r := &reads[i]
		if !r.ok {
			continue
		}
		r.rows = make([]*models.VaultPolicyRaw, len(r.policyIds))
		for j, id := range r.policyIds {
			g.Go(func() error {
				row, err := c.reader.GetVaultPolicy(gctx, r.raw.Address, id)
				if err != nil {
					col.fail(models.ReadVaultPolicy, r.raw.Address, &id, err)
					return gctx.Err()
				}
				r.rows[j] = row
				return nil
			})
		}
	}
	for i, id := range policyIds {
		g.Go(func() error {
			p, err := c.reader.GetPolicy(gctx, id)
			if err != nil {
				col.fail(models.ReadPolicy, common.Address{}, &id, err)
				return gctx.Err()
			}
			fetched[i] = p
			return nil
		})
	}
	for i := range receipts {
		id := firstReceipt + uint64(i)
		g.Go(func() error {
			receipt, err := c.reader.GetReceipt(gctx, id)
			if err != nil {
				col.fail(models.ReadReceipt, common.Address{}, &id, err)
				return gctx.Err()
			}
			receipts[i] = receipt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	globals := make(map[uint64]*models.Policy, len(policyIds))
	for i, id := range policyIds {
		if fetched[i] != nil {
			globals[id] = fetched[i]
		}
	}

	snapshot := &models.Snapshot{
		Scope:       c.reader.ReceiptScope(),
		CurrentTime: currentTime,
		FetchedAt:   c.now(),
	}
	for _, r := range reads {
		if !r.ok {
			continue
		}
		vs, ok := c.buildVault(col, r, globals, currentTime)
		if ok {
			snapshot.Vaults = append(snapshot.Vaults, vs)
		}
	}
	for _, receipt := range receipts {
		if receipt == nil {
			continue
		}
		snapshot.Receipts = append(snapshot.Receipts, *receipt)
		if c.cache != nil {
			if err := c.cache.UpsertReceipt(ctx, c.reader.ReceiptScope(), *receipt); err != nil {
				zap.L().Warn("Unable to cache receipt", zap.Uint64("receipt_id", receipt.ReceiptId), zap.Error(err))
			}
		}
	}
	snapshot.Failures = col.failures

	zap.L().Debug("Snapshot collected",
		zap.Uint64("current_time", currentTime),
		zap.Int("vaults", len(snapshot.Vaults)),
		zap.Int("receipts", len(snapshot.Receipts)),
		zap.Int("failures", len(snapshot.Failures)))
	return snapshot, nil
}

// readVault performs the vault-level reads. The vault is kept only when its
// info and pending claims were both read.
func (c *Collector) readVault(ctx context.Context, col *collection, addr, user common.Address) vaultReads {
	out := vaultReads{raw: models.VaultRaw{Address: addr}}

	info, err := c.reader.GetVaultInfo(ctx, addr)
	if err != nil {
		col.fail(models.ReadVaultInfo, addr, nil, err)
		return out
	}
	pending, err := c.reader.TotalPendingClaims(ctx, addr)
	if err != nil {
		col.fail(models.ReadPendingClaims, addr, nil, err)
		return out
	}
	out.raw.VaultInfo = *info
	out.raw.PendingClaims = pending
	out.ok = true

	ids, err := c.reader.GetPolicyIds(ctx, addr)
	if err != nil {
		col.fail(models.ReadPolicyIds, addr, nil, err)
	} else {
		out.policyIds = ids
	}

	if user != (common.Address{}) {
		shares, err := c.reader.BalanceOf(ctx, addr, user)
		if err != nil {
			col.fail(models.ReadUserPosition, addr, nil, err)
			return out
		}
		maxAssets, err := c.reader.MaxWithdraw(ctx, addr, user)
		if err != nil {
			col.fail(models.ReadUserPosition, addr, nil, err)
			return out
		}
		out.userShares = shares
		out.maxWithdraw = maxAssets
	}
	return out
}

func (c *Collector) buildVault(col *collection, r vaultReads, globals map[uint64]*models.Policy, currentTime uint64) (models.VaultSnapshot, bool) {
	addr := r.raw.Address
	view, err := vault.Derive(r.raw, r.userShares)
	if err != nil {
		col.fail(models.ReadVaultInfo, addr, nil, err)
		return models.VaultSnapshot{}, false
	}
	view.MaxWithdraw = r.maxWithdraw

	vs := models.VaultSnapshot{View: view}
	if c.display != nil {
		vs.Display = c.display(addr)
	}

	rows := make([]models.VaultPolicyRaw, 0, len(r.rows))
	for _, row := range r.rows {
		if row != nil {
			rows = append(rows, *row)
		}
	}
	total := policy.TotalWeight(rows)
	for _, row := range rows {
		id := row.PolicyId
		global := globals[id]
		if global == nil {
			// registry read failed; already recorded
			continue
		}
		pv, err := policy.Derive(row, currentTime, total)
		if err != nil {
			col.fail(models.ReadVaultPolicy, addr, &id, err)
			continue
		}
		pv.Vault = addr
		pv.Global = global
		vs.Policies = append(vs.Policies, pv)
	}
	return vs, true
}
