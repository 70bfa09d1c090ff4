/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memledger is an in-process simulation of the vault protocol. It backs
// the SIMULATE mode of the tools and the package tests.
package memledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check: *Ledger must satisfy ledger.Ledger.
var _ ledger.Ledger = (*Ledger)(nil)

var (
	errUnauthorized      = errors.New("execution reverted: Unauthorized")
	errWrongVerification = errors.New("execution reverted: WrongVerificationType")
	errAlreadyClaimed    = errors.New("execution reverted: PolicyAlreadyClaimed")
	errNotActive         = errors.New("execution reverted: PolicyNotActive")
	errConditionNotMet   = errors.New("execution reverted: ClaimConditionNotMet")
	errInvalidAmount     = errors.New("execution reverted: InvalidClaimAmount")
	errAlreadyExercised  = errors.New("execution reverted: ReceiptAlreadyExercised")
	errInsufficientFunds = errors.New("execution reverted: InsufficientBuffer")
	errAllowance         = errors.New("execution reverted: ERC20InsufficientAllowance")
	errBalance           = errors.New("execution reverted: ERC20InsufficientBalance")
	errMaxWithdraw       = errors.New("execution reverted: ERC4626ExceededMaxWithdraw")
)

// shareOffset converts 6-decimal assets to 18-decimal shares at parity
var shareOffset = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

type vaultPolicy struct {
	weight   *big.Int
	premium  *big.Int
	coverage *big.Int
	claimed  bool
}

type vaultState struct {
	name            string
	manager         common.Address
	bufferBps       int64
	feeBps          int64
	totalAssets     *big.Int
	totalShares     *big.Int
	availableBuffer *big.Int
	deployedCapital *big.Int
	pendingClaims   *big.Int
	shares          map[common.Address]*big.Int
	policies        map[uint64]*vaultPolicy
	policyOrder     []uint64
}

// Ledger is a thread-safe simulated protocol
type Ledger struct {
	mu sync.Mutex

	sender   common.Address
	reporter common.Address
	scope    string

	baseTime uint64
	offset   uint64

	vaults     map[common.Address]*vaultState
	vaultOrder []common.Address
	policies   []*models.Policy
	receipts   []*models.ClaimReceipt
	oracle     models.OracleStatus

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int

	nonce     uint64
	failures  map[string]error
	writeHook func(ctx context.Context, method string) error
}

// New creates an empty simulated ledger whose writes are sent from sender
func New(sender common.Address, baseTime uint64) *Ledger {
	return &Ledger{
		sender:     sender,
		reporter:   sender,
		scope:      "sim:" + uuid.NewString(),
		baseTime:   baseTime,
		vaults:     make(map[common.Address]*vaultState),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		failures:   make(map[string]error),
		oracle:     models.OracleStatus{BtcPrice: big.NewInt(0)},
	}
}

// --- Setup ---

// AddVault creates an empty vault
func (l *Ledger) AddVault(addr common.Address, name string, manager common.Address, bufferBps, feeBps int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.vaults[addr] = &vaultState{
		name:            name,
		manager:         manager,
		bufferBps:       bufferBps,
		feeBps:          feeBps,
		totalAssets:     new(big.Int),
		totalShares:     new(big.Int),
		availableBuffer: new(big.Int),
		deployedCapital: new(big.Int),
		pendingClaims:   new(big.Int),
		shares:          make(map[common.Address]*big.Int),
		policies:        make(map[uint64]*vaultPolicy),
	}
	l.vaultOrder = append(l.vaultOrder, addr)
}

// RegisterPolicy adds p to the registry and returns its id
func (l *Ledger) RegisterPolicy(p models.Policy) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	p.Id = uint64(len(l.policies))
	l.policies = append(l.policies, &p)
	return p.Id
}

// AllocatePolicy adds a registry policy to a vault
func (l *Ledger) AllocatePolicy(vault common.Address, policyId uint64, weight, premium, coverage *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.vaults[vault]
	if !ok || policyId >= uint64(len(l.policies)) {
		return ledger.ErrNotFound
	}
	v.policies[policyId] = &vaultPolicy{weight: weight, premium: premium, coverage: coverage}
	v.policyOrder = append(v.policyOrder, policyId)
	return nil
}

// SetSender changes the address writes are sent from
func (l *Ledger) SetSender(addr common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sender = addr
}

// SetReporter sets the oracle reporter role
func (l *Ledger) SetReporter(addr common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reporter = addr
}

// FailOn makes every call of method on target fail with err until cleared with a nil err.
// target is a vault address for vault methods and the zero address otherwise.
func (l *Ledger) FailOn(method string, target common.Address, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := failureKey(method, target)
	if err == nil {
		delete(l.failures, key)
		return
	}
	l.failures[key] = err
}

// SetWriteHook installs a function called before every write is applied.
// A non-nil error from the hook rejects the write.
func (l *Ledger) SetWriteHook(hook func(ctx context.Context, method string) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeHook = hook
}

func (l *Ledger) Close() {}

func failureKey(method string, target common.Address) string {
	return method + "@" + target.Hex()
}

// injected must be called with l.mu held
func (l *Ledger) injected(method string, target common.Address) error {
	if err, ok := l.failures[failureKey(method, target)]; ok {
		return err
	}
	return nil
}

func (l *Ledger) now() uint64 {
	return l.baseTime + l.offset
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func (l *Ledger) vault(addr common.Address) (*vaultState, error) {
	v, ok := l.vaults[addr]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", addr.Hex(), ledger.ErrNotFound)
	}
	return v, nil
}

// earned is the premium accrued linearly over the policy term
func (l *Ledger) earned(p *models.Policy, vp *vaultPolicy) *big.Int {
	now := l.now()
	start := p.StartTime.Uint64()
	if now <= start || p.Duration.Sign() == 0 {
		return new(big.Int)
	}
	elapsed := new(big.Int).SetUint64(now - start)
	if elapsed.Cmp(p.Duration) > 0 {
		elapsed.Set(p.Duration)
	}
	out := new(big.Int).Mul(vp.premium, elapsed)
	return out.Div(out, p.Duration)
}

// userAssets converts shares to assets, rounding down
func userAssets(v *vaultState, shares *big.Int) *big.Int {
	if v.totalShares.Sign() == 0 || shares == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(shares, v.totalAssets)
	return out.Div(out, v.totalShares)
}

// --- Reads ---

func (l *Ledger) GetVaults(ctx context.Context) ([]common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("GetVaults", common.Address{}); err != nil {
		return nil, err
	}
	return append([]common.Address(nil), l.vaultOrder...), nil
}

func (l *Ledger) GetVaultInfo(ctx context.Context, addr common.Address) (*models.VaultInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("GetVaultInfo", addr); err != nil {
		return nil, err
	}
	v, err := l.vault(addr)
	if err != nil {
		return nil, err
	}

	price := new(big.Int).Set(big.NewInt(1_000_000))
	if v.totalShares.Sign() > 0 {
		price = userAssets(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	}
	return &models.VaultInfo{
		Name:            v.name,
		Manager:         v.manager,
		TotalAssets:     clone(v.totalAssets),
		TotalShares:     clone(v.totalShares),
		SharePrice:      price,
		BufferBps:       big.NewInt(v.bufferBps),
		FeeBps:          big.NewInt(v.feeBps),
		AvailableBuffer: clone(v.availableBuffer),
		DeployedCapital: clone(v.deployedCapital),
		PolicyCount:     big.NewInt(int64(len(v.policyOrder))),
	}, nil
}

func (l *Ledger) TotalPendingClaims(ctx context.Context, addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("TotalPendingClaims", addr); err != nil {
		return nil, err
	}
	v, err := l.vault(addr)
	if err != nil {
		return nil, err
	}
	return clone(v.pendingClaims), nil
}

func (l *Ledger) GetPolicyIds(ctx context.Context, addr common.Address) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("GetPolicyIds", addr); err != nil {
		return nil, err
	}
	v, err := l.vault(addr)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), v.policyOrder...), nil
}

func (l *Ledger) GetVaultPolicy(ctx context.Context, addr common.Address, policyId uint64) (*models.VaultPolicyRaw, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("GetVaultPolicy", addr); err != nil {
		return nil, err
	}
	v, err := l.vault(addr)
	if err != nil {
		return nil, err
	}
	vp, ok := v.policies[policyId]
	if !ok {
		return nil, fmt.Errorf("policy %d in vault %s: %w", policyId, addr.Hex(), ledger.ErrNotFound)
	}
	p := l.policies[policyId]
	expiry := p.StartTime.Uint64() + p.Duration.Uint64()
	remaining := uint64(0)
	if l.now() < expiry {
		remaining = expiry - l.now()
	}
	return &models.VaultPolicyRaw{
		PolicyId:         policyId,
		AllocationWeight: clone(vp.weight),
		Premium:          clone(vp.premium),
		EarnedPremium:    l.earned(p, vp),
		Coverage:         clone(vp.coverage),
		Duration:         clone(p.Duration),
		StartTime:        clone(p.StartTime),
		TimeRemaining:    new(big.Int).SetUint64(remaining),
		Claimed:          vp.claimed,
		Expired:          l.now() >= expiry,
	}, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, addr, user common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("BalanceOf", addr); err != nil {
		return nil, err
	}
	v, err := l.vault(addr)
	if err != nil {
		return nil, err
	}
	return clone(v.shares[user]), nil
}

func (l *Ledger) MaxWithdraw(ctx context.Context, addr, user common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("MaxWithdraw", addr); err != nil {
		return nil, err
	}
	v, err := l.vault(addr)
	if err != nil {
		return nil, err
	}
	return maxWithdraw(v, user), nil
}

func maxWithdraw(v *vaultState, user common.Address) *big.Int {
	assets := userAssets(v, v.shares[user])
	if assets.Cmp(v.availableBuffer) > 0 {
		return clone(v.availableBuffer)
	}
	return assets
}

func (l *Ledger) GetPolicy(ctx context.Context, policyId uint64) (*models.Policy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("GetPolicy", common.Address{}); err != nil {
		return nil, err
	}
	if policyId >= uint64(len(l.policies)) {
		return nil, fmt.Errorf("policy %d: %w", policyId, ledger.ErrNotFound)
	}
	p := *l.policies[policyId]
	return &p, nil
}

func (l *Ledger) GetPolicyCount(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.policies)), nil
}

func (l *Ledger) CurrentTime(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("CurrentTime", common.Address{}); err != nil {
		return 0, err
	}
	return l.now(), nil
}

func (l *Ledger) TimeOffset(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset, nil
}

func (l *Ledger) GetReceipt(ctx context.Context, receiptId uint64) (*models.ClaimReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("GetReceipt", common.Address{}); err != nil {
		return nil, err
	}
	if receiptId >= uint64(len(l.receipts)) {
		return nil, fmt.Errorf("receipt %d: %w", receiptId, ledger.ErrNotFound)
	}
	r := *l.receipts[receiptId]
	r.ClaimAmount = clone(r.ClaimAmount)
	return &r, nil
}

func (l *Ledger) NextReceiptId(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected("NextReceiptId", common.Address{}); err != nil {
		return 0, err
	}
	return uint64(len(l.receipts)), nil
}

// ReceiptScope is unique per simulated ledger; receipt ids restart with every instance
func (l *Ledger) ReceiptScope() string {
	return l.scope
}

func (l *Ledger) OracleStatus(ctx context.Context) (*models.OracleStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := l.oracle
	status.BtcPrice = clone(l.oracle.BtcPrice)
	return &status, nil
}

func (l *Ledger) AssetBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return clone(l.balances[owner]), nil
}

func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return clone(l.allowances[owner][spender]), nil
}

// --- Writes ---

func (l *Ledger) Sender() common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sender
}

// write runs the hook outside the lock, then applies fn under the lock
func (l *Ledger) write(ctx context.Context, method string, target common.Address, fn func() (*models.TxResult, error)) (*models.TxResult, error) {
	l.mu.Lock()
	hook := l.writeHook
	l.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, method); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.injected(method, target); err != nil {
		return nil, err
	}
	result, err := fn()
	if err != nil {
		zap.L().Debug("Simulated transaction reverted", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	l.nonce++
	result.TxHash = common.BigToHash(new(big.Int).SetUint64(l.nonce)).Hex()
	return result, nil
}

func (l *Ledger) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*models.TxResult, error) {
	return l.write(ctx, "Approve", common.Address{}, func() (*models.TxResult, error) {
		if l.allowances[l.sender] == nil {
			l.allowances[l.sender] = make(map[common.Address]*big.Int)
		}
		l.allowances[l.sender][spender] = clone(amount)
		return &models.TxResult{}, nil
	})
}

func (l *Ledger) Mint(ctx context.Context, to common.Address, amount *big.Int) (*models.TxResult, error) {
	return l.write(ctx, "Mint", common.Address{}, func() (*models.TxResult, error) {
		l.balances[to] = new(big.Int).Add(clone(l.balances[to]), amount)
		return &models.TxResult{}, nil
	})
}

func (l *Ledger) Deposit(ctx context.Context, addr common.Address, assets *big.Int, receiver common.Address) (*models.TxResult, error) {
	return l.write(ctx, "Deposit", addr, func() (*models.TxResult, error) {
		v, err := l.vault(addr)
		if err != nil {
			return nil, err
		}
		if clone(l.allowances[l.sender][addr]).Cmp(assets) < 0 {
			return nil, errAllowance
		}
		if clone(l.balances[l.sender]).Cmp(assets) < 0 {
			return nil, errBalance
		}

		shares := new(big.Int).Mul(assets, shareOffset)
		if v.totalShares.Sign() > 0 && v.totalAssets.Sign() > 0 {
			shares = new(big.Int).Mul(assets, v.totalShares)
			shares.Div(shares, v.totalAssets)
		}

		l.balances[l.sender] = new(big.Int).Sub(l.balances[l.sender], assets)
		l.allowances[l.sender][addr] = new(big.Int).Sub(l.allowances[l.sender][addr], assets)

		toBuffer := new(big.Int).Mul(assets, big.NewInt(v.bufferBps))
		toBuffer.Div(toBuffer, big.NewInt(models.MaxBps))
		v.availableBuffer.Add(v.availableBuffer, toBuffer)
		v.deployedCapital.Add(v.deployedCapital, new(big.Int).Sub(assets, toBuffer))
		v.totalAssets.Add(v.totalAssets, assets)
		v.totalShares.Add(v.totalShares, shares)
		v.shares[receiver] = new(big.Int).Add(clone(v.shares[receiver]), shares)

		return &models.TxResult{Shares: shares}, nil
	})
}

func (l *Ledger) Withdraw(ctx context.Context, addr common.Address, assets *big.Int, receiver, owner common.Address) (*models.TxResult, error) {
	return l.write(ctx, "Withdraw", addr, func() (*models.TxResult, error) {
		v, err := l.vault(addr)
		if err != nil {
			return nil, err
		}
		if owner != l.sender {
			return nil, errUnauthorized
		}
		if assets.Cmp(maxWithdraw(v, owner)) > 0 {
			return nil, errMaxWithdraw
		}

		// shares burned round up
		shares := new(big.Int).Mul(assets, v.totalShares)
		shares.Add(shares, new(big.Int).Sub(v.totalAssets, big.NewInt(1)))
		shares.Div(shares, v.totalAssets)
		if shares.Cmp(v.shares[owner]) > 0 {
			shares = clone(v.shares[owner])
		}

		v.shares[owner] = new(big.Int).Sub(v.shares[owner], shares)
		v.totalShares.Sub(v.totalShares, shares)
		v.totalAssets.Sub(v.totalAssets, assets)
		v.availableBuffer.Sub(v.availableBuffer, assets)
		l.balances[receiver] = new(big.Int).Add(clone(l.balances[receiver]), assets)

		return &models.TxResult{Shares: shares}, nil
	})
}

func (l *Ledger) CheckClaim(ctx context.Context, addr common.Address, policyId uint64) (*models.TxResult, error) {
	return l.write(ctx, "CheckClaim", addr, func() (*models.TxResult, error) {
		p, vp, v, err := l.claimable(addr, policyId, models.VerificationOnChain)
		if err != nil {
			return nil, err
		}
		if p.TriggerThreshold == nil || l.oracle.BtcPrice.Cmp(p.TriggerThreshold) >= 0 {
			return nil, errConditionNotMet
		}
		return l.trigger(addr, v, p, vp, vp.coverage), nil
	})
}

func (l *Ledger) ReportEvent(ctx context.Context, addr common.Address, policyId uint64) (*models.TxResult, error) {
	return l.write(ctx, "ReportEvent", addr, func() (*models.TxResult, error) {
		if l.sender != l.reporter {
			return nil, errUnauthorized
		}
		p, vp, v, err := l.claimable(addr, policyId, models.VerificationOracleDependent)
		if err != nil {
			return nil, err
		}
		if !l.oracle.FlightDelayed {
			return nil, errConditionNotMet
		}
		return l.trigger(addr, v, p, vp, vp.coverage), nil
	})
}

func (l *Ledger) SubmitClaim(ctx context.Context, addr common.Address, policyId uint64, amount *big.Int) (*models.TxResult, error) {
	return l.write(ctx, "SubmitClaim", addr, func() (*models.TxResult, error) {
		p, vp, v, err := l.claimable(addr, policyId, models.VerificationOffChain)
		if err != nil {
			return nil, err
		}
		if l.sender != p.Insurer {
			return nil, errUnauthorized
		}
		if amount == nil || amount.Sign() <= 0 || amount.Cmp(vp.coverage) > 0 {
			return nil, errInvalidAmount
		}
		return l.trigger(addr, v, p, vp, amount), nil
	})
}

func (l *Ledger) claimable(addr common.Address, policyId uint64, want models.VerificationType) (*models.Policy, *vaultPolicy, *vaultState, error) {
	v, err := l.vault(addr)
	if err != nil {
		return nil, nil, nil, err
	}
	vp, ok := v.policies[policyId]
	if !ok {
		return nil, nil, nil, fmt.Errorf("policy %d in vault %s: %w", policyId, addr.Hex(), ledger.ErrNotFound)
	}
	p := l.policies[policyId]
	if p.VerificationType != want {
		return nil, nil, nil, errWrongVerification
	}
	if vp.claimed {
		return nil, nil, nil, errAlreadyClaimed
	}
	start := p.StartTime.Uint64()
	if l.now() < start || l.now() >= start+p.Duration.Uint64() {
		return nil, nil, nil, errNotActive
	}
	return p, vp, v, nil
}

// trigger creates the receipt and settles it immediately when the buffer allows
func (l *Ledger) trigger(addr common.Address, v *vaultState, p *models.Policy, vp *vaultPolicy, amount *big.Int) *models.TxResult {
	vp.claimed = true
	receipt := &models.ClaimReceipt{
		ReceiptId:   uint64(len(l.receipts)),
		PolicyId:    p.Id,
		ClaimAmount: clone(amount),
		Vault:       addr,
		Insurer:     p.Insurer,
		Timestamp:   l.now(),
	}
	l.receipts = append(l.receipts, receipt)
	id := receipt.ReceiptId

	result := &models.TxResult{
		ReceiptId: &id,
		Events: []models.ClaimEvent{{
			Name:      models.EventClaimTriggered,
			PolicyId:  p.Id,
			ReceiptId: id,
			Amount:    clone(amount),
			Insurer:   p.Insurer,
		}},
	}

	v.pendingClaims.Add(v.pendingClaims, amount)
	if v.availableBuffer.Cmp(amount) >= 0 {
		result.Events = append(result.Events, l.settle(v, receipt))
	}
	return result
}

func (l *Ledger) settle(v *vaultState, r *models.ClaimReceipt) models.ClaimEvent {
	v.availableBuffer.Sub(v.availableBuffer, r.ClaimAmount)
	v.totalAssets.Sub(v.totalAssets, r.ClaimAmount)
	v.pendingClaims.Sub(v.pendingClaims, r.ClaimAmount)
	l.balances[r.Insurer] = new(big.Int).Add(clone(l.balances[r.Insurer]), r.ClaimAmount)
	r.Exercised = true
	return models.ClaimEvent{
		Name:      models.EventClaimExercised,
		ReceiptId: r.ReceiptId,
		Amount:    clone(r.ClaimAmount),
		Insurer:   r.Insurer,
	}
}

func (l *Ledger) ExerciseClaim(ctx context.Context, addr common.Address, receiptId uint64) (*models.TxResult, error) {
	return l.write(ctx, "ExerciseClaim", addr, func() (*models.TxResult, error) {
		v, err := l.vault(addr)
		if err != nil {
			return nil, err
		}
		if receiptId >= uint64(len(l.receipts)) || l.receipts[receiptId].Vault != addr {
			return nil, fmt.Errorf("receipt %d: %w", receiptId, ledger.ErrNotFound)
		}
		r := l.receipts[receiptId]
		if r.Exercised {
			return nil, errAlreadyExercised
		}
		if v.availableBuffer.Cmp(r.ClaimAmount) < 0 {
			return nil, errInsufficientFunds
		}
		ev := l.settle(v, r)
		return &models.TxResult{Events: []models.ClaimEvent{ev}}, nil
	})
}

func (l *Ledger) AdvanceTime(ctx context.Context, seconds uint64) (*models.TxResult, error) {
	return l.write(ctx, "AdvanceTime", common.Address{}, func() (*models.TxResult, error) {
		l.offset += seconds
		return &models.TxResult{}, nil
	})
}

func (l *Ledger) SetBtcPrice(ctx context.Context, price *big.Int) (*models.TxResult, error) {
	return l.write(ctx, "SetBtcPrice", common.Address{}, func() (*models.TxResult, error) {
		l.oracle.BtcPrice = clone(price)
		l.oracle.BtcUpdatedAt = l.now()
		return &models.TxResult{}, nil
	})
}

func (l *Ledger) SetFlightStatus(ctx context.Context, delayed bool) (*models.TxResult, error) {
	return l.write(ctx, "SetFlightStatus", common.Address{}, func() (*models.TxResult, error) {
		l.oracle.FlightDelayed = delayed
		l.oracle.FlightUpdatedAt = l.now()
		return &models.TxResult{}, nil
	})
}
