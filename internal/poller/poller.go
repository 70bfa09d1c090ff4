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

package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"insurance-vault-go/internal/aggregate"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// PollerConfig contains configuration for Poller
type PollerConfig struct {
	Collector *aggregate.Collector
	Vaults    []common.Address // empty means discover through the factory on every poll
	User      common.Address
	Interval  time.Duration

	// Exercised returns receipt ids known to be exercised outside the ledger
	// reads, typically from the claim orchestrator
	Exercised func() []uint64
	Journal   store.ActionJournal
	OnCommit  func(*models.Snapshot)
}

// Poller keeps the latest committed snapshot. Polls run on an interval and on
// demand; a result is committed only if no newer poll has been committed and
// the request it was collected for is still the current one.
type Poller struct {
	collector *aggregate.Collector
	interval  time.Duration
	exercised func() []uint64
	journal   store.ActionJournal
	onCommit  func(*models.Snapshot)

	reqMu sync.RWMutex
	req   aggregate.Request

	seq      atomic.Uint64
	snapshot atomic.Pointer[models.Snapshot]

	commitMu     sync.Mutex
	committedSeq uint64
	settledScope string
	settled      map[uint64]struct{}

	scheduler gocron.Scheduler
	job       gocron.Job

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewPoller creates a poller; call Start to begin interval polling
func NewPoller(cfg PollerConfig) *Poller {
	return &Poller{
		collector: cfg.Collector,
		interval:  cfg.Interval,
		exercised: cfg.Exercised,
		journal:   cfg.Journal,
		onCommit:  cfg.OnCommit,
		req:       aggregate.Request{Vaults: append([]common.Address(nil), cfg.Vaults...), User: cfg.User},
		settled:   make(map[uint64]struct{}),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Snapshot returns the latest committed snapshot, nil before the first commit
func (p *Poller) Snapshot() *models.Snapshot {
	return p.snapshot.Load()
}

func (p *Poller) request() aggregate.Request {
	p.reqMu.RLock()
	defer p.reqMu.RUnlock()
	return aggregate.Request{Vaults: append([]common.Address(nil), p.req.Vaults...), User: p.req.User}
}

// SetVaults changes the vault set. Polls in flight for the old set are discarded.
func (p *Poller) SetVaults(vaults []common.Address) {
	p.reqMu.Lock()
	p.req.Vaults = append([]common.Address(nil), vaults...)
	p.reqMu.Unlock()
	p.Invalidate()
}

// SetUser changes the connected user. Polls in flight for the old user are discarded.
func (p *Poller) SetUser(user common.Address) {
	p.reqMu.Lock()
	p.req.User = user
	p.reqMu.Unlock()
	p.Invalidate()
}

// Refresh polls now and reports whether the result was committed
func (p *Poller) Refresh(ctx context.Context) (*models.Snapshot, bool, error) {
	seq := p.seq.Add(1)
	req := p.request()
	key := req.Key()

	if len(req.Vaults) == 0 {
		vaults, err := p.collector.Discover(ctx)
		if err != nil {
			return nil, false, err
		}
		req.Vaults = vaults
	}

	snap, err := p.collector.Collect(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("poll %d: %w", seq, err)
	}
	snap.Seq = seq
	snap.Key = key

	if !p.commit(ctx, snap) {
		zap.L().Debug("Discarding stale snapshot", zap.Uint64("seq", seq))
		return snap, false, nil
	}
	return snap, true, nil
}

// commit stores snap if it is the newest result for the current request
func (p *Poller) commit(ctx context.Context, snap *models.Snapshot) bool {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	if snap.Seq <= p.committedSeq || snap.Key != p.request().Key() {
		return false
	}

	p.mergeExercised(ctx, snap)
	p.committedSeq = snap.Seq
	p.snapshot.Store(snap)

	if snap.Partial() {
		zap.L().Warn("Committed partial snapshot",
			zap.Uint64("seq", snap.Seq),
			zap.Int("failures", len(snap.Failures)))
	}
	if p.onCommit != nil {
		p.onCommit(snap)
	}
	return true
}

// mergeExercised makes the exercised flag monotonic: once any source reports a
// receipt exercised, no later snapshot shows it pending. Must hold commitMu.
func (p *Poller) mergeExercised(ctx context.Context, snap *models.Snapshot) {
	if snap.Scope != p.settledScope {
		p.settled = make(map[uint64]struct{})
		p.settledScope = snap.Scope
	}
	if p.exercised != nil {
		for _, id := range p.exercised() {
			p.settled[id] = struct{}{}
		}
	}
	if p.journal != nil {
		ids, err := p.journal.ExercisedReceiptIds(ctx, snap.Scope)
		if err != nil {
			zap.L().Warn("Unable to read exercised receipts from journal", zap.Error(err))
		}
		for _, id := range ids {
			p.settled[id] = struct{}{}
		}
	}

	for i := range snap.Receipts {
		r := &snap.Receipts[i]
		if r.Exercised {
			p.settled[r.ReceiptId] = struct{}{}
			continue
		}
		if _, ok := p.settled[r.ReceiptId]; ok {
			r.Exercised = true
		}
	}
}

// Invalidate requests an immediate poll. Before Start it is a no-op.
func (p *Poller) Invalidate() {
	if p.job == nil {
		return
	}
	if err := p.job.RunNow(); err != nil {
		zap.L().Warn("Unable to schedule refresh", zap.Error(err))
	}
}

func (p *Poller) poll(ctx context.Context) {
	if _, _, err := p.Refresh(ctx); err != nil {
		zap.L().Error("Poll failed", zap.Error(err))
	}
}

// Start begins interval polling, with a first poll right away
func (p *Poller) Start(ctx context.Context) error {
	zap.L().Info("Starting snapshot poller", zap.Duration("interval", p.interval))

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("unable to create scheduler: %w", err)
	}
	job, err := scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(p.poll, ctx),
		gocron.WithSingletonMode(gocron.LimitModeWait),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("unable to schedule poll job: %w", err)
	}
	p.scheduler = scheduler
	p.job = job
	scheduler.Start()

	go p.wait(ctx)

	zap.L().Info("Snapshot poller started")
	return nil
}

func (p *Poller) wait(ctx context.Context) {
	defer close(p.doneChan)

	select {
	case <-p.stopChan:
	case <-ctx.Done():
	}
	if err := p.scheduler.Shutdown(); err != nil {
		zap.L().Warn("Scheduler shutdown failed", zap.Error(err))
	}
}

// Stop gracefully stops the poller
func (p *Poller) Stop() {
	zap.L().Info("Stopping snapshot poller")
	close(p.stopChan)
	<-p.doneChan
	zap.L().Info("Snapshot poller stopped")
}
