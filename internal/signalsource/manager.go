package signalsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/pool"
	"github.com/va-core/va/internal/vaerrors"
)

type registration struct {
	src Source
}

type deleteRequest struct {
	id   string
	done chan struct{}
}

// Manager hosts every live signal source and serves per-block fetches
// from the audio thread. Creation and deletion happen on the control
// thread via queues the audio thread drains at the top of
// FetchInputData, so the audio thread itself never takes a lock.
type Manager struct {
	blockSize   int
	numChannels int // mono sources; 1 unless a variant overrides

	mnemonicSeq struct {
		mu  sync.Mutex
		seq map[string]int
	}

	newSources     chan registration
	deleteRequests chan deleteRequest

	// working is owned exclusively by the audio thread: only
	// FetchInputData reads or writes it.
	working map[string]Source

	refs struct {
		mu     sync.Mutex
		counts map[string]*pool.RefCounted
	}

	silence audio.Block
	stream  *audio.StreamState
	logger  *slog.Logger
}

// NewManager constructs a manager for mono sources of the given block size.
func NewManager(blockSize int, stream *audio.StreamState) *Manager {
	m := &Manager{
		blockSize:      blockSize,
		numChannels:    1,
		newSources:     make(chan registration, 64),
		deleteRequests: make(chan deleteRequest, 16),
		working:        make(map[string]Source),
		silence:        audio.NewBlock(1, blockSize),
		stream:         stream,
		logger:         logging.ForComponent("signalsource"),
	}
	m.mnemonicSeq.seq = make(map[string]int)
	m.refs.counts = make(map[string]*pool.RefCounted)
	return m
}

// allocateID assigns the next "<mnemonic><n>" id for a class (control thread).
func (m *Manager) allocateID(mnemonic string) string {
	m.mnemonicSeq.mu.Lock()
	defer m.mnemonicSeq.mu.Unlock()
	n := m.mnemonicSeq.seq[mnemonic]
	m.mnemonicSeq.seq[mnemonic] = n + 1
	return fmt.Sprintf("%s%d", mnemonic, n)
}

// AllocateID reserves the next "<mnemonic><n>" id for a new source of
// that class, for callers (e.g. the core facade) that construct the
// concrete Source themselves before registering it.
func (m *Manager) AllocateID(mnemonic string) string { return m.allocateID(mnemonic) }

// register enqueues a newly constructed source for pickup by the audio
// thread's next FetchInputData call (control thread).
func (m *Manager) register(src Source) {
	m.refs.mu.Lock()
	m.refs.counts[src.ID()] = &pool.RefCounted{}
	m.refs.mu.Unlock()
	m.newSources <- registration{src: src}
}

// Register submits a fully constructed source (ideally created with an
// id from AllocateID) for pickup by the audio thread's next
// FetchInputData call.
func (m *Manager) Register(src Source) { m.register(src) }

// BindRef increments the reference count for id, refusing deletion
// while any sound source still names it (spec §3 invariants).
func (m *Manager) BindRef(id string) {
	m.refs.mu.Lock()
	rc, ok := m.refs.counts[id]
	m.refs.mu.Unlock()
	if ok {
		rc.Add(1)
	}
}

// UnbindRef decrements the reference count for id.
func (m *Manager) UnbindRef(id string) {
	m.refs.mu.Lock()
	rc, ok := m.refs.counts[id]
	m.refs.mu.Unlock()
	if ok {
		rc.Add(-1)
	}
}

func (m *Manager) refCount(id string) int32 {
	m.refs.mu.Lock()
	rc, ok := m.refs.counts[id]
	m.refs.mu.Unlock()
	if !ok {
		return 0
	}
	return rc.Load()
}

// Delete removes a signal source (control thread). It refuses sources
// with non-zero references, and otherwise blocks until the audio
// thread has completed at least one block in which id was absent from
// its working set (spec §4.2, §8 testable property).
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.refCount(id) > 0 {
		return vaerrors.Newf("signal source %q has active references", id).
			Component("signalsource").Kind(vaerrors.KindResourceInUse).Build()
	}

	done := make(chan struct{})
	m.deleteRequests <- deleteRequest{id: id, done: done}

	select {
	case <-done:
		m.refs.mu.Lock()
		delete(m.refs.counts, id)
		m.refs.mu.Unlock()
		return nil
	case <-ctx.Done():
		return vaerrors.New(ctx.Err()).Component("signalsource").
			Kind(vaerrors.KindModalError).Build()
	}
}

// FetchInputData is the per-block protocol entry point, called only
// from the audio thread (spec §4.2):
//  1. drain pending deletions, removing them from the working set
//     before any source is fetched this block;
//  2. drain newly registered sources into the working set;
//  3. fetch a block from every active source (device-input ones read
//     from deviceInput);
//  4. advance the monotonic stream counter and signal waiters.
func (m *Manager) FetchInputData(deviceInput audio.Block) {
	var completedDeletes []deleteRequest

drainDeletes:
	for {
		select {
		case req := <-m.deleteRequests:
			if src, ok := m.working[req.id]; ok {
				_ = src.Close()
				delete(m.working, req.id)
			}
			completedDeletes = append(completedDeletes, req)
		default:
			break drainDeletes
		}
	}

drainNew:
	for {
		select {
		case reg := <-m.newSources:
			m.working[reg.src.ID()] = reg.src
		default:
			break drainNew
		}
	}

	for _, src := range m.working {
		_ = src.FetchBlock(deviceInput)
	}

	m.stream.Advance()

	for _, req := range completedDeletes {
		close(req.done)
	}
}

// GetSourceBlock returns the most recently fetched block for id, or
// the silence buffer if id is empty or unknown (spec §4.2, "requesting
// a signal source by empty id binds the silence buffer"). Safe to call
// only from the audio thread, after FetchInputData this cycle.
func (m *Manager) GetSourceBlock(id string) audio.Block {
	if id == "" {
		return m.silence
	}
	src, ok := m.working[id]
	if !ok {
		return m.silence
	}
	return sourceLastBlock(src)
}

// blockCache is implemented by every variant below so GetSourceBlock
// can re-read the most recently produced block without re-fetching.
type blockCache interface {
	lastBlock() audio.Block
}

func sourceLastBlock(src Source) audio.Block {
	if bc, ok := src.(blockCache); ok {
		return bc.lastBlock()
	}
	return audio.Block{}
}

// SyncSignalSources is the control-thread helper: it records the
// current stream counter and waits until it advances, guaranteeing the
// audio thread has observed any pending mutations. Short-circuits if
// the driver is not streaming.
func (m *Manager) SyncSignalSources(timeout time.Duration) bool {
	prior := m.stream.Counter()
	return m.stream.WaitPast(prior, timeout)
}

// BlockSize reports the block size sources must produce.
func (m *Manager) BlockSize() int { return m.blockSize }
