package scene

import (
	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/events"
	"github.com/va-core/va/internal/spatial"
	"github.com/va-core/va/internal/vaerrors"
)

// Transaction is the only object capable of mutating scene state. It
// owns the manager's update lock for its whole scope. Calling Begin
// again on the SAME Transaction nests (matching spec §4.4's reentrant
// LockUpdate/UnlockUpdate with a spin counter); the underlying state is
// only published once the outermost Commit runs.
type Transaction struct {
	mgr      *Manager
	draft    *State
	depth    int
	pending  []events.Event
	rollback bool
}

// Begin increments the nesting depth, returning the same transaction.
// Mirrors spec §4.4's reentrant LockUpdate for a caller that already
// holds an open transaction and wants to call into a helper that also
// brackets its own work with LockUpdate/UnlockUpdate.
func (t *Transaction) Begin() *Transaction {
	t.depth++
	return t
}

// Emit queues a domain event to be broadcast once the state becomes
// visible (spec §5: "events enqueued inside a sync-mod window are
// broadcast after the state becomes visible").
func (t *Transaction) Emit(e events.Event) {
	t.pending = append(t.pending, e)
}

// Abort marks the transaction to be discarded instead of published on
// the final Commit, for callers that detect a fatal error mid-transaction.
func (t *Transaction) Abort() { t.rollback = true }

// Commit decrements the nesting depth. At depth 0 it freezes the draft,
// publishes it as the new head, releases the manager's lock, and
// broadcasts any queued events — exactly once, regardless of how many
// nested Begin calls occurred (spec §8's quantified invariant).
func (t *Transaction) Commit() {
	t.depth--
	if t.depth > 0 {
		return
	}
	t.mgr.commit(t)
}

func (t *Transaction) touchSource(id int) (*SoundSourceState, error) {
	cur, ok := t.draft.sources[id]
	if !ok {
		return nil, vaerrors.Newf("sound source %d not found", id).
			Component("scene").Kind(vaerrors.KindInvalidID).Build()
	}
	clone := *cur
	t.draft.sources[id] = &clone
	return &clone, nil
}

func (t *Transaction) touchReceiver(id int) (*SoundReceiverState, error) {
	cur, ok := t.draft.receivers[id]
	if !ok {
		return nil, vaerrors.Newf("sound receiver %d not found", id).
			Component("scene").Kind(vaerrors.KindInvalidID).Build()
	}
	clone := *cur
	t.draft.receivers[id] = &clone
	return &clone, nil
}

// CreateSoundSource adds a new source to the draft, refusing if the
// active count already equals cap (spec §8 boundary behavior).
func (t *Transaction) CreateSoundSource(id int, cap int) (*SoundSourceState, error) {
	if cap > 0 && len(t.draft.sources) >= cap {
		return nil, vaerrors.Newf("sound source cap %d reached", cap).
			Component("scene").Kind(vaerrors.KindInvalidParameter).Build()
	}
	s := &SoundSourceState{
		ID:            id,
		Enabled:       true,
		Power:         1.0,
		DirectivityID: NoDirectivity,
		AuralMode:     config.ModeAll,
	}
	t.draft.sources[id] = s
	return s, nil
}

// DeleteSoundSource removes a source from the draft.
func (t *Transaction) DeleteSoundSource(id int) {
	delete(t.draft.sources, id)
}

// CreateSoundReceiver adds a new receiver to the draft.
func (t *Transaction) CreateSoundReceiver(id int) *SoundReceiverState {
	r := &SoundReceiverState{
		ID:            id,
		Enabled:       true,
		DirectivityID: NoDirectivity,
		AuralMode:     config.ModeAll,
		Pose:          spatial.Pose{Orientation: spatial.IdentityQuat},
	}
	t.draft.receivers[id] = r
	return r
}

// DeleteSoundReceiver removes a receiver from the draft.
func (t *Transaction) DeleteSoundReceiver(id int) {
	delete(t.draft.receivers, id)
}

// SetSoundSourcePose updates a source's position/orientation, deriving
// (copy-on-write) only that source's record.
func (t *Transaction) SetSoundSourcePose(id int, p spatial.Pose) error {
	s, err := t.touchSource(id)
	if err != nil {
		return err
	}
	s.Pose = p
	t.Emit(events.Event{Type: events.TypePoseChanged, ObjectIDInt: id, Position: p.Position, Orientation: p.Orientation})
	return nil
}

// SetSoundSourceMuted updates a source's mute flag.
func (t *Transaction) SetSoundSourceMuted(id int, muted bool) error {
	s, err := t.touchSource(id)
	if err != nil {
		return err
	}
	s.Muted = muted
	t.Emit(events.Event{Type: events.TypeMuteChanged, ObjectIDInt: id, Muted: muted})
	return nil
}

// SetSoundSourceSignalSource rebinds a source's signal-source id.
func (t *Transaction) SetSoundSourceSignalSource(id int, signalSourceID string) error {
	s, err := t.touchSource(id)
	if err != nil {
		return err
	}
	s.SignalSource = signalSourceID
	t.Emit(events.Event{Type: events.TypeParameterChanged, ObjectIDInt: id, ParamID: "SignalSource", ParamStr: signalSourceID})
	return nil
}

// SetSoundSourceDirectivity rebinds a source's directivity id.
func (t *Transaction) SetSoundSourceDirectivity(id, directivityID int) error {
	s, err := t.touchSource(id)
	if err != nil {
		return err
	}
	s.DirectivityID = directivityID
	t.Emit(events.Event{Type: events.TypeParameterChanged, ObjectIDInt: id, ParamID: "Directivity", Index: directivityID})
	return nil
}

// SetSoundSourcePower updates a source's sound power.
func (t *Transaction) SetSoundSourcePower(id int, power float64) error {
	s, err := t.touchSource(id)
	if err != nil {
		return err
	}
	s.Power = power
	t.Emit(events.Event{Type: events.TypeParameterChanged, ObjectIDInt: id, ParamID: "Power", Volume: power})
	return nil
}

// SetSoundSourceAuralizationMode updates a source's auralization mode.
func (t *Transaction) SetSoundSourceAuralizationMode(id int, mode config.AuralizationMode) error {
	s, err := t.touchSource(id)
	if err != nil {
		return err
	}
	s.AuralMode = mode
	t.Emit(events.Event{Type: events.TypeParameterChanged, ObjectIDInt: id, ParamID: "AuralizationMode", AuralMode: mode})
	return nil
}

// SetSoundReceiverPose updates a receiver's position/orientation.
func (t *Transaction) SetSoundReceiverPose(id int, p spatial.Pose) error {
	r, err := t.touchReceiver(id)
	if err != nil {
		return err
	}
	r.Pose = p
	t.Emit(events.Event{Type: events.TypePoseChanged, ObjectIDInt: id, Position: p.Position, Orientation: p.Orientation})
	return nil
}

// SetSoundReceiverRealWorldPose updates a receiver's tracked real-world pose.
func (t *Transaction) SetSoundReceiverRealWorldPose(id int, p spatial.Pose) error {
	r, err := t.touchReceiver(id)
	if err != nil {
		return err
	}
	r.RealWorldPose = p
	return nil
}

// SetSoundReceiverHeadAboveTorso updates a receiver's head-above-torso orientation.
func (t *Transaction) SetSoundReceiverHeadAboveTorso(id int, q spatial.Quat) error {
	r, err := t.touchReceiver(id)
	if err != nil {
		return err
	}
	r.HeadAboveTorso = q
	return nil
}

// SetSoundReceiverDirectivity rebinds a receiver's directivity id.
// Passing NoDirectivity unbinds it.
func (t *Transaction) SetSoundReceiverDirectivity(id, directivityID int) error {
	r, err := t.touchReceiver(id)
	if err != nil {
		return err
	}
	r.DirectivityID = directivityID
	t.Emit(events.Event{Type: events.TypeParameterChanged, ObjectIDInt: id, ParamID: "Directivity", Index: directivityID})
	return nil
}

// SetSoundReceiverMuted updates a receiver's mute flag.
func (t *Transaction) SetSoundReceiverMuted(id int, muted bool) error {
	r, err := t.touchReceiver(id)
	if err != nil {
		return err
	}
	r.Muted = muted
	t.Emit(events.Event{Type: events.TypeMuteChanged, ObjectIDInt: id, Muted: muted})
	return nil
}
