package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/va-core/va/internal/spatial"
)

func TestTransactionPublishesExactlyOneStateRegardlessOfNesting(t *testing.T) {
	m := NewManager(nil)
	before := m.Head()
	beforeID := before.ID()
	before.Release()

	txn := m.LockUpdate()
	_, _ = txn.CreateSoundSource(1, 0)
	nested := txn.Begin()
	_, _ = nested.CreateSoundSource(2, 0)
	nested.Commit() // depth 2 -> 1, no publish yet

	mid := m.Head()
	assert.Equal(t, beforeID, mid.ID(), "must not publish until outermost commit")
	mid.Release()

	txn.Commit() // depth 1 -> 0, publishes

	after := m.Head()
	assert.NotEqual(t, beforeID, after.ID())
	_, ok1 := after.SoundSource(1)
	_, ok2 := after.SoundSource(2)
	assert.True(t, ok1)
	assert.True(t, ok2)
	after.Release()
}

func TestCopyOnWriteOnlyDuplicatesTouchedObject(t *testing.T) {
	m := NewManager(nil)

	txn := m.LockUpdate()
	_, _ = txn.CreateSoundSource(1, 0)
	_, _ = txn.CreateSoundSource(2, 0)
	txn.Commit()

	head1 := m.Head()
	src1Before, _ := head1.SoundSource(1)
	src2Before, _ := head1.SoundSource(2)
	head1.Release()

	txn2 := m.LockUpdate()
	require.NoError(t, txn2.SetSoundSourcePose(1, spatial.Pose{Position: spatial.Vec3{X: 1}}))
	txn2.Commit()

	head2 := m.Head()
	src1After, _ := head2.SoundSource(1)
	src2After, _ := head2.SoundSource(2)
	head2.Release()

	assert.NotSame(t, src1Before, src1After, "touched object must be duplicated")
	assert.Same(t, src2Before, src2After, "untouched object must be shared, not duplicated")
}

func TestSyncUpdateAtomicityAllOrNothing(t *testing.T) {
	m := NewManager(nil)

	txn := m.LockUpdate()
	for i := 0; i < 10; i++ {
		_, _ = txn.CreateSoundSource(i, 0)
	}
	txn.Commit()

	head := m.Head()
	for i := 0; i < 10; i++ {
		txn2 := m.LockUpdate()
		require.NoError(t, txn2.SetSoundSourcePose(i, spatial.Pose{Position: spatial.Vec3{X: float64(i)}}))
		txn2.Commit()
	}

	// The original head reference must still see the pre-update
	// positions — it was never mutated in place (spec §3 invariant:
	// head is read-only once published).
	for i := 0; i < 10; i++ {
		src, ok := head.SoundSource(i)
		require.True(t, ok)
		assert.Equal(t, 0.0, src.Pose.Position.X)
	}
	head.Release()

	newHead := m.Head()
	for i := 0; i < 10; i++ {
		src, ok := newHead.SoundSource(i)
		require.True(t, ok)
		assert.Equal(t, float64(i), src.Pose.Position.X)
	}
	newHead.Release()
}

func TestCreateSoundSourceRefusesAtCap(t *testing.T) {
	m := NewManager(nil)
	txn := m.LockUpdate()
	_, err1 := txn.CreateSoundSource(1, 1)
	_, err2 := txn.CreateSoundSource(2, 1)
	txn.Commit()

	assert.NoError(t, err1)
	assert.Error(t, err2)

	head := m.Head()
	_, ok := head.SoundSource(2)
	assert.False(t, ok, "scene must be unchanged on INVALID_PARAMETER")
	head.Release()
}

func TestWithUpdateLocksForSingleCall(t *testing.T) {
	m := NewManager(nil)
	txn := m.LockUpdate()
	_, _ = txn.CreateSoundSource(1, 0)
	txn.Commit()

	err := m.WithUpdate(func(t *Transaction) error {
		return t.SetSoundSourceMuted(1, true)
	})
	require.NoError(t, err)

	head := m.Head()
	src, _ := head.SoundSource(1)
	assert.True(t, src.Muted)
	head.Release()
}

func TestAbortDoesNotPublish(t *testing.T) {
	m := NewManager(nil)
	before := m.Head()
	beforeID := before.ID()
	before.Release()

	err := m.WithUpdate(func(t *Transaction) error {
		return t.SetSoundSourceMuted(999, true) // unknown id -> error -> abort
	})
	assert.Error(t, err)

	after := m.Head()
	assert.Equal(t, beforeID, after.ID())
	after.Release()
}
