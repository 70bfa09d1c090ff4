// Package claims drives the client side of the claim lifecycle: triggering a
// policy claim by its verification type, exercising receipts, and the deposit
// and withdraw flows, each tracked per action slot and journaled.
package claims

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// TriggerRequest asks for a claim on Policy in Vault. Amount is only used by
// OFF_CHAIN policies.
type TriggerRequest struct {
	Vault  common.Address
	Policy *models.Policy
	Amount *big.Int
}

// VaultOutcome is the result of one vault in a batch trigger
type VaultOutcome struct {
	Vault  common.Address
	Result *models.TxResult
	Err    error
}

// BatchResult splits a batch trigger into its independent outcomes, each list
// in the order the vaults were requested.
type BatchResult struct {
	Succeeded []VaultOutcome
	Failed    []VaultOutcome
}

type Option func(*Orchestrator)

// WithInvalidate registers a hook called after every confirmed write
func WithInvalidate(fn func()) Option {
	return func(o *Orchestrator) { o.invalidate = fn }
}

// WithConcurrency bounds the number of vaults a batch trigger submits to at once
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

type Orchestrator struct {
	ledger      ledger.Ledger
	journal     store.ActionJournal
	tracker     *Tracker
	invalidate  func()
	concurrency int

	mu        sync.RWMutex
	exercised map[uint64]struct{}
}

// NewOrchestrator creates an orchestrator over l. journal may be nil, in which
// case actions are only tracked in memory.
func NewOrchestrator(l ledger.Ledger, journal store.ActionJournal, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:      l,
		journal:     journal,
		tracker:     NewTracker(),
		concurrency: defaultConcurrency,
		exercised:   make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetInvalidate replaces the confirmed-write hook. Call it before the first write.
func (o *Orchestrator) SetInvalidate(fn func()) {
	o.invalidate = fn
}

func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// LoadExercised seeds the exercised set from the journal entries of the
// ledger's receipt scope
func (o *Orchestrator) LoadExercised(ctx context.Context) error {
	if o.journal == nil {
		return nil
	}
	ids, err := o.journal.ExercisedReceiptIds(ctx, o.ledger.ReceiptScope())
	if err != nil {
		return fmt.Errorf("unable to load exercised receipts: %w", err)
	}
	o.mu.Lock()
	for _, id := range ids {
		o.exercised[id] = struct{}{}
	}
	o.mu.Unlock()
	return nil
}

// Exercised reports whether receiptId is known to be exercised
func (o *Orchestrator) Exercised(receiptId uint64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.exercised[receiptId]
	return ok
}

func (o *Orchestrator) ExercisedIds() []uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]uint64, 0, len(o.exercised))
	for id := range o.exercised {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) rememberExercised(ctx context.Context, receiptId uint64) {
	o.mu.Lock()
	o.exercised[receiptId] = struct{}{}
	o.mu.Unlock()

	if o.journal == nil {
		return
	}
	if err := o.journal.MarkReceiptExercised(ctx, o.ledger.ReceiptScope(), receiptId); err != nil {
		zap.L().Warn("Unable to journal exercised receipt",
			zap.Uint64("receipt_id", receiptId),
			zap.Error(err))
	}
}

// Trigger submits the claim trigger matching the policy's verification type
func (o *Orchestrator) Trigger(ctx context.Context, req TriggerRequest) (*models.TxResult, error) {
	if req.Policy == nil {
		return nil, fmt.Errorf("%w: policy is required", models.ErrInputValidation)
	}
	p := req.Policy

	switch p.VerificationType {
	case models.VerificationOnChain:
		key := models.ActionKey{Vault: req.Vault, Id: p.Id, Action: models.ActionCheckClaim}
		return o.run(ctx, key, nil, func(ctx context.Context) (*models.TxResult, error) {
			return o.ledger.CheckClaim(ctx, req.Vault, p.Id)
		})

	case models.VerificationOracleDependent:
		key := models.ActionKey{Vault: req.Vault, Id: p.Id, Action: models.ActionReportEvent}
		if o.tracker.IsPending(key) {
			return nil, ErrTriggerAlreadyPending
		}
		status, err := o.ledger.OracleStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to read oracle status: %w", err)
		}
		if !status.FlightDelayed {
			return nil, ErrOracleConditionNotSet
		}
		return o.run(ctx, key, nil, func(ctx context.Context) (*models.TxResult, error) {
			return o.ledger.ReportEvent(ctx, req.Vault, p.Id)
		})

	case models.VerificationOffChain:
		if req.Amount == nil || req.Amount.Sign() <= 0 || p.CoverageAmount == nil || req.Amount.Cmp(p.CoverageAmount) > 0 {
			return nil, ErrInvalidClaimAmount
		}
		key := models.ActionKey{Vault: req.Vault, Id: p.Id, Action: models.ActionSubmitClaim}
		amount := new(big.Int).Set(req.Amount)
		return o.run(ctx, key, amount, func(ctx context.Context) (*models.TxResult, error) {
			return o.ledger.SubmitClaim(ctx, req.Vault, p.Id, amount)
		})

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVerificationType, p.VerificationType)
	}
}

// TriggerAll triggers an ON_CHAIN policy in every vault. Each vault is an
// independent unit: a failure in one does not stop or undo the others.
func (o *Orchestrator) TriggerAll(ctx context.Context, vaults []common.Address, p *models.Policy) (*BatchResult, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: policy is required", models.ErrInputValidation)
	}
	if p.VerificationType != models.VerificationOnChain {
		return nil, ErrUnsupportedBatch
	}

	outcomes := make([]VaultOutcome, len(vaults))
	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, vault := range vaults {
		g.Go(func() error {
			result, err := o.Trigger(ctx, TriggerRequest{Vault: vault, Policy: p})
			outcomes[i] = VaultOutcome{Vault: vault, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			batch.Failed = append(batch.Failed, outcome)
			continue
		}
		batch.Succeeded = append(batch.Succeeded, outcome)
	}

	zap.L().Info("Batch trigger finished",
		zap.Uint64("policy_id", p.Id),
		zap.Int("succeeded", len(batch.Succeeded)),
		zap.Int("failed", len(batch.Failed)))
	return batch, nil
}

// Exercise settles a pending receipt of vault
func (o *Orchestrator) Exercise(ctx context.Context, vault common.Address, receiptId uint64) (*models.TxResult, error) {
	if o.Exercised(receiptId) {
		return nil, ErrAlreadyExercised
	}

	receipt, err := o.ledger.GetReceipt(ctx, receiptId)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("receipt %d: %w", receiptId, ErrReceiptNotFound)
		}
		return nil, fmt.Errorf("unable to read receipt %d: %w", receiptId, err)
	}
	if receipt.Vault != vault {
		return nil, fmt.Errorf("receipt %d belongs to %s: %w", receiptId, receipt.Vault.Hex(), ErrReceiptNotFound)
	}
	if receipt.Exercised {
		o.rememberExercised(ctx, receiptId)
		return nil, ErrAlreadyExercised
	}

	key := models.ActionKey{Vault: vault, Id: receiptId, Action: models.ActionExerciseClaim}
	return o.run(ctx, key, nil, func(ctx context.Context) (*models.TxResult, error) {
		return o.ledger.ExerciseClaim(ctx, vault, receiptId)
	})
}

// ExerciseCovered exercises the pending receipts of snap whose vault buffer
// covers the claim, lowest id first, and returns the ids it settled. A failed
// exercise is logged and skipped.
func (o *Orchestrator) ExerciseCovered(ctx context.Context, snap *models.Snapshot) []uint64 {
	if snap == nil || snap.Scope != o.ledger.ReceiptScope() {
		return nil
	}

	buffers := make(map[common.Address]*big.Int)
	var settled []uint64
	for _, r := range snap.Receipts {
		if ctx.Err() != nil {
			break
		}
		if r.Exercised || r.ClaimAmount == nil || o.Exercised(r.ReceiptId) {
			continue
		}
		buffer, ok := buffers[r.Vault]
		if !ok {
			vs, found := snap.Vault(r.Vault)
			if !found || vs.View.AvailableBuffer == nil {
				continue
			}
			buffer = new(big.Int).Set(vs.View.AvailableBuffer)
			buffers[r.Vault] = buffer
		}
		if buffer.Cmp(r.ClaimAmount) < 0 {
			continue
		}

		if _, err := o.Exercise(ctx, r.Vault, r.ReceiptId); err != nil {
			zap.L().Warn("Unable to exercise covered receipt",
				zap.Uint64("receipt_id", r.ReceiptId),
				zap.String("vault", r.Vault.Hex()),
				zap.Error(err))
			continue
		}
		buffer.Sub(buffer, r.ClaimAmount)
		settled = append(settled, r.ReceiptId)
	}
	return settled
}

// Deposit approves the vault when the allowance is short, then deposits
// assets for the sender.
func (o *Orchestrator) Deposit(ctx context.Context, vault common.Address, assets *big.Int) (*models.TxResult, error) {
	if assets == nil || assets.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	sender := o.ledger.Sender()

	balance, err := o.ledger.AssetBalance(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("unable to read asset balance: %w", err)
	}
	if balance.Cmp(assets) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, assets)
	}

	key := models.ActionKey{Vault: vault, Action: models.ActionDeposit}
	return o.run(ctx, key, assets, func(ctx context.Context) (*models.TxResult, error) {
		allowance, err := o.ledger.Allowance(ctx, sender, vault)
		if err != nil {
			return nil, fmt.Errorf("unable to read allowance: %w", err)
		}
		if allowance.Cmp(assets) < 0 {
			zap.L().Info("Approving vault",
				zap.String("vault", vault.Hex()),
				zap.String("amount", assets.String()))
			if _, err := o.ledger.Approve(ctx, vault, assets); err != nil {
				return nil, fmt.Errorf("approve: %w", err)
			}
		}
		return o.ledger.Deposit(ctx, vault, assets, sender)
	})
}

// Withdraw redeems assets from vault to the sender, bounded by maxWithdraw
func (o *Orchestrator) Withdraw(ctx context.Context, vault common.Address, assets *big.Int) (*models.TxResult, error) {
	if assets == nil || assets.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	sender := o.ledger.Sender()

	maxAssets, err := o.ledger.MaxWithdraw(ctx, vault, sender)
	if err != nil {
		return nil, fmt.Errorf("unable to read max withdraw: %w", err)
	}
	if assets.Cmp(maxAssets) > 0 {
		return nil, fmt.Errorf("%w: requested %s, max %s", ErrExceedsMaxWithdraw, assets, maxAssets)
	}

	key := models.ActionKey{Vault: vault, Action: models.ActionWithdraw}
	return o.run(ctx, key, assets, func(ctx context.Context) (*models.TxResult, error) {
		return o.ledger.Withdraw(ctx, vault, assets, sender, sender)
	})
}

// run is the lifecycle shared by every write: mark the slot pending, journal
// the attempt, submit, then record the outcome in both places.
func (o *Orchestrator) run(ctx context.Context, key models.ActionKey, amount *big.Int, submit func(ctx context.Context) (*models.TxResult, error)) (*models.TxResult, error) {
	actionCtx, correlationId, err := o.tracker.Begin(ctx, key)
	if err != nil {
		if key.Action.IsTrigger() {
			return nil, ErrTriggerAlreadyPending
		}
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	log := zap.L().With(
		zap.String("correlation_id", correlationId),
		zap.String("vault", key.Vault.Hex()),
		zap.String("action", string(key.Action)),
		zap.Uint64("id", key.Id))

	if o.journal != nil {
		_, err := o.journal.RecordAction(ctx, store.RecordActionParams{
			CorrelationId: correlationId,
			Vault:         key.Vault,
			TargetId:      key.Id,
			Action:        key.Action,
			Amount:        amount,
			Sender:        o.ledger.Sender(),
		})
		if err != nil {
			log.Warn("Unable to journal action", zap.Error(err))
		}
	}

	log.Info("Submitting action")
	result, err := submit(actionCtx)
	if err != nil {
		if !errors.Is(err, models.ErrInputValidation) && !errors.Is(err, context.Canceled) {
			err = models.NewRemoteError(string(key.Action), err)
		}
		reason := err.Error()
		var remote *models.RemoteError
		if errors.As(err, &remote) {
			reason = remote.FirstLine()
		}

		log.Error("Action failed", zap.Error(err))
		o.tracker.Fail(key, correlationId, reason)
		o.complete(ctx, log, store.CompleteActionParams{
			CorrelationId: correlationId,
			Status:        models.ActionFailed,
			Reason:        reason,
		})
		return nil, err
	}

	o.tracker.Succeed(key, correlationId, result)
	o.complete(ctx, log, store.CompleteActionParams{
		CorrelationId: correlationId,
		Status:        models.ActionSucceeded,
		TxHash:        result.TxHash,
		ReceiptId:     result.ReceiptId,
	})
	for _, ev := range result.Events {
		if ev.Name == models.EventClaimExercised {
			o.rememberExercised(ctx, ev.ReceiptId)
		}
	}

	fields := []zap.Field{zap.String("tx_hash", result.TxHash)}
	if result.ReceiptId != nil {
		fields = append(fields, zap.Uint64("receipt_id", *result.ReceiptId))
	}
	log.Info("Action confirmed", fields...)

	if o.invalidate != nil {
		o.invalidate()
	}
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, log *zap.Logger, params store.CompleteActionParams) {
	if o.journal == nil {
		return
	}
	// the caller's context may already be cancelled; the terminal status must still land
	if err := o.journal.CompleteAction(context.WithoutCancel(ctx), params); err != nil {
		log.Warn("Unable to journal action completion", zap.Error(err))
	}
}
