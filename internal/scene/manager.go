package scene

import (
	"log/slog"
	"sync"

	"github.com/va-core/va/internal/events"
	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/vaerrors"
)

// Manager owns every scene-state record and publishes one as the
// current head (spec §4.4).
type Manager struct {
	mu        sync.Mutex
	head      *State
	nextID    int
	activeTxn *Transaction

	bus    *events.Manager
	logger *slog.Logger

	onCommit func() // optional: wakes the core thread after a publish (spec §4.4 step 3)
}

// SetOnCommit registers a callback invoked after each successful
// commit, once the new head is visible and the sync-mod lock has been
// released — the core thread's wake signal (spec §4.4 step 3: "...
// release the mutex, then trigger the core thread and broadcast queued
// events").
func (m *Manager) SetOnCommit(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCommit = fn
}

// NewManager constructs a manager with an empty initial head state
// (id 0). bus may be nil, in which case Emit'd events are discarded —
// useful for tests that don't need the event path.
func NewManager(bus *events.Manager) *Manager {
	m := &Manager{
		head:   newEmptyState(0).AddRef(),
		nextID: 1,
		bus:    bus,
		logger: logging.ForComponent("scene"),
	}
	return m
}

// Head returns the current head state with a reference bump (spec
// §4.9 step 1: "fetch the current head scene state with a reference
// bump"). Callers must call Release when done with it.
func (m *Manager) Head() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head.AddRef()
}

// LockUpdate acquires the sync-mod lock (blocking until any other
// in-flight transaction commits), derives a new draft state from the
// current head, and returns a Transaction. Spec §4.4 step 1.
func (m *Manager) LockUpdate() *Transaction {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	draft := deriveState(m.head, id)
	t := &Transaction{mgr: m, draft: draft, depth: 1}
	m.activeTxn = t
	return t
}

// commit is called by Transaction.Commit at depth 0, still holding m.mu
// (acquired by the matching LockUpdate). It fixes the draft immutable,
// publishes it as head, releases the lock, then triggers notification
// and broadcasts queued events — matching spec §4.4 step 3's ordering.
func (m *Manager) commit(t *Transaction) {
	prevHead := m.head
	if !t.rollback {
		m.head = t.draft.AddRef()
		prevHead.Release()
	}
	m.activeTxn = nil
	onCommit := m.onCommit
	m.mu.Unlock()

	if m.bus != nil && !t.rollback {
		m.bus.EnqueueBatch(t.pending)
	}
	if onCommit != nil && !t.rollback {
		onCommit()
	}
}

// WithUpdate runs fn inside a single-shot transaction: used when a
// caller invokes a setter without having called LockUpdate first
// (spec §4.4 step 4 — "the setter locks internally for the duration of
// that single call").
func (m *Manager) WithUpdate(fn func(t *Transaction) error) error {
	t := m.LockUpdate()
	err := fn(t)
	if err != nil {
		t.Abort()
	}
	t.Commit()
	return err
}

// ErrNoMatchingLockUpdate returns the modal error spec §4.4 describes
// for calling UnlockUpdate without a matching LockUpdate — in the Go
// API this situation can't arise structurally (there is no bare
// UnlockUpdate; only Transaction.Commit, on a Transaction that only
// LockUpdate hands out), so this exists only to preserve the error vocabulary for
// callers translating from the original RPC surface.
func ErrNoMatchingLockUpdate() error {
	return vaerrors.Newf("UnlockUpdate called without a matching LockUpdate").
		Component("scene").Kind(vaerrors.KindModalError).Build()
}
