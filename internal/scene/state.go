// Package scene implements the Scene Manager and its synchronized
// update protocol (spec §4.4): immutable, copy-on-write scene states
// published as a single "head", mutated only inside an explicit
// transaction. Spec §9's re-architecture guidance calls for exactly
// this shape — "an explicit SceneTransaction handle that owns the lock
// for its scope and is the only object capable of mutating state" —
// in place of a reentrant-per-thread mutex, which Go has no native way
// to express safely.
package scene

import (
	"sync/atomic"
	"time"

	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/spatial"
)

// NoDirectivity marks an unbound directivity reference (spec §3: "weak,
// resolved via Directivity Manager").
const NoDirectivity = -1

// SoundSourceState is one sound source's immutable snapshot.
type SoundSourceState struct {
	ID            int
	Name          string
	Enabled       bool
	Muted         bool
	Power         float64
	DirectivityID int
	SignalSource  string // weak reference; "" binds the silence buffer
	AuralMode     config.AuralizationMode
	Pose          spatial.Pose
}

// SoundReceiverState is one receiver's immutable snapshot.
type SoundReceiverState struct {
	ID             int
	Name           string
	Enabled        bool
	Muted          bool
	DirectivityID  int
	AuralMode      config.AuralizationMode
	Pose           spatial.Pose
	RealWorldPose  spatial.Pose
	HeadAboveTorso spatial.Quat
}

// PortalState is a minimal placeholder for the third scene-object
// family spec §3 names; VA's reference renderer doesn't act on portal
// occlusion, so only identity/enable fields are modeled.
type PortalState struct {
	ID      int
	Name    string
	Enabled bool
}

// State is one immutable, reference-counted scene snapshot. Once
// published as head it is never mutated again; derivations produce a
// new State with a new ID (spec §3 invariant).
type State struct {
	id        int
	timestamp time.Time
	refs      atomic.Int32

	sources   map[int]*SoundSourceState
	receivers map[int]*SoundReceiverState
	portals   map[int]*PortalState
}

func newEmptyState(id int) *State {
	return &State{
		id:        id,
		timestamp: time.Now(),
		sources:   make(map[int]*SoundSourceState),
		receivers: make(map[int]*SoundReceiverState),
		portals:   make(map[int]*PortalState),
	}
}

// ID returns the state's monotonic publication id.
func (s *State) ID() int { return s.id }

// Timestamp returns when this state was derived.
func (s *State) Timestamp() time.Time { return s.timestamp }

// AddRef bumps the reference count and returns s, for the "fetch head
// with a reference bump" pattern (spec §4.9 step 1).
func (s *State) AddRef() *State {
	s.refs.Add(1)
	return s
}

// Release drops a reference.
func (s *State) Release() { s.refs.Add(-1) }

// RefCount reports the current reference count.
func (s *State) RefCount() int32 { return s.refs.Load() }

// SoundSource looks up a source by id.
func (s *State) SoundSource(id int) (*SoundSourceState, bool) {
	v, ok := s.sources[id]
	return v, ok
}

// SoundReceiver looks up a receiver by id.
func (s *State) SoundReceiver(id int) (*SoundReceiverState, bool) {
	v, ok := s.receivers[id]
	return v, ok
}

// Portal looks up a portal by id.
func (s *State) Portal(id int) (*PortalState, bool) {
	v, ok := s.portals[id]
	return v, ok
}

// ForEachSoundSource iterates all sources in the state.
func (s *State) ForEachSoundSource(fn func(*SoundSourceState)) {
	for _, v := range s.sources {
		fn(v)
	}
}

// ForEachSoundReceiver iterates all receivers in the state.
func (s *State) ForEachSoundReceiver(fn func(*SoundReceiverState)) {
	for _, v := range s.receivers {
		fn(v)
	}
}

// deriveState performs the copy-on-write base step: a new state whose
// maps are shallow-cloned from prev (so adds/removes in the draft
// don't affect prev), but whose *entries* still point at prev's
// objects until a transaction explicitly touches one (see
// Transaction.touch* in transaction.go) — only the touched object's
// record is duplicated, matching spec §3's "only that object's state
// record is duplicated; others are shared."
func deriveState(prev *State, newID int) *State {
	s := newEmptyState(newID)
	for k, v := range prev.sources {
		s.sources[k] = v
	}
	for k, v := range prev.receivers {
		s.receivers[k] = v
	}
	for k, v := range prev.portals {
		s.portals[k] = v
	}
	return s
}
