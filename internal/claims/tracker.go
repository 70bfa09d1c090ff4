package claims

import (
	"context"
	"sort"
	"sync"
	"time"

	"insurance-vault-go/internal/models"

	"github.com/google/uuid"
)

// triggerSlot is shared by the three trigger paths so that one (vault, policy)
// has at most one trigger in flight whatever its verification type.
const triggerSlot models.ActionType = "trigger"

type entry struct {
	state  models.ActionState
	cancel context.CancelFunc
}

// Tracker holds the observable state of every action slot. The zero value is
// not usable; call NewTracker.
type Tracker struct {
	mu      sync.Mutex
	entries map[models.ActionKey]*entry
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[models.ActionKey]*entry),
		now:     time.Now,
	}
}

func slotOf(key models.ActionKey) models.ActionKey {
	if key.Action.IsTrigger() {
		key.Action = triggerSlot
	}
	return key
}

// Begin marks key pending and returns a context cancelled by Reset along with
// the correlation id of the new attempt. It fails with ErrActionPending when
// the slot already has an attempt in flight.
func (t *Tracker) Begin(ctx context.Context, key models.ActionKey) (context.Context, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := slotOf(key)
	if e, ok := t.entries[slot]; ok && e.state.Status == models.ActionPending {
		return nil, "", ErrActionPending
	}

	actionCtx, cancel := context.WithCancel(ctx)
	correlationId := uuid.New().String()
	t.entries[slot] = &entry{
		state: models.ActionState{
			Key:           key,
			Status:        models.ActionPending,
			CorrelationId: correlationId,
			UpdatedAt:     t.now(),
		},
		cancel: cancel,
	}
	return actionCtx, correlationId, nil
}

// Succeed records a confirmed result. Completions of superseded attempts are ignored.
func (t *Tracker) Succeed(key models.ActionKey, correlationId string, result *models.TxResult) {
	t.finish(key, correlationId, func(s *models.ActionState) {
		s.Status = models.ActionSucceeded
		if result != nil {
			s.TxHash = result.TxHash
			s.ReceiptId = result.ReceiptId
		}
	})
}

// Fail records a failure reason. Completions of superseded attempts are ignored.
func (t *Tracker) Fail(key models.ActionKey, correlationId string, reason string) {
	t.finish(key, correlationId, func(s *models.ActionState) {
		s.Status = models.ActionFailed
		s.Reason = reason
	})
}

func (t *Tracker) finish(key models.ActionKey, correlationId string, apply func(s *models.ActionState)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[slotOf(key)]
	if !ok || e.state.CorrelationId != correlationId || e.state.Status != models.ActionPending {
		return
	}
	apply(&e.state)
	e.state.UpdatedAt = t.now()
	e.cancel()
}

// Reset cancels a pending attempt and returns the slot to idle. It reports
// whether an attempt was cancelled.
func (t *Tracker) Reset(key models.ActionKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := slotOf(key)
	e, ok := t.entries[slot]
	if !ok {
		return false
	}
	wasPending := e.state.Status == models.ActionPending
	e.cancel()
	delete(t.entries, slot)
	return wasPending
}

// State returns the latest state of key, idle when nothing is recorded
func (t *Tracker) State(key models.ActionKey) models.ActionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[slotOf(key)]; ok {
		return e.state
	}
	return models.ActionState{Key: key, Status: models.ActionIdle}
}

// IsPending reports whether key's slot has an attempt in flight
func (t *Tracker) IsPending(key models.ActionKey) bool {
	return t.State(key).Status == models.ActionPending
}

// Snapshot returns every recorded state ordered by last update
func (t *Tracker) Snapshot() []models.ActionState {
	t.mu.Lock()
	out := make([]models.ActionState, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.state)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}
