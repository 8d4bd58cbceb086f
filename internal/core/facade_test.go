package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/directivity"
	"github.com/va-core/va/internal/driver"
	"github.com/va-core/va/internal/events"
	"github.com/va-core/va/internal/patchbay"
	"github.com/va-core/va/internal/reproduction"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/signalsource"
)

const testBlockSize = 64

// countingRenderer records every UpdateScene/UpdateGlobalAuralizationMode/
// Reset call it receives, for asserting the core thread's dispatch.
type countingRenderer struct {
	scenes int
	modes  []config.AuralizationMode
	resets int
}

func (r *countingRenderer) UpdateScene(*scene.State) { r.scenes++ }
func (r *countingRenderer) UpdateGlobalAuralizationMode(m config.AuralizationMode) {
	r.modes = append(r.modes, m)
}
func (r *countingRenderer) Reset()                { r.resets++ }
func (r *countingRenderer) Process(audio.Block)   {}
func (r *countingRenderer) NumChannels() int      { return 2 }

type countingReproduction struct {
	scenes int
	input  reproduction.DataSource
	params any
}

func (r *countingReproduction) UpdateScene(*scene.State)               { r.scenes++ }
func (r *countingReproduction) Process(out audio.Block)                { out.Zero() }
func (r *countingReproduction) NumChannels() int                       { return 2 }
func (r *countingReproduction) SetInputDatasource(src reproduction.DataSource) { r.input = src }
func (r *countingReproduction) GetOutputDatasource() reproduction.DataSource   { return r }
func (r *countingReproduction) GetTargetOutputs() []string              { return []string{"L", "R"} }
func (r *countingReproduction) SetParameters(p any) error               { r.params = p; return nil }
func (r *countingReproduction) GetParameters() any                      { return r.params }

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	bus := events.NewManager(events.Config{OuterBufferSize: 16, Workers: 1})
	scn := scene.NewManager(bus)
	dirs := directivity.NewManager(time.Minute)
	srcs := signalsource.NewManager(testBlockSize, nil)
	pb := patchbay.NewPatchbay([]patchbay.OutputSpec{{Name: "L"}, {Name: "R"}})
	drv := driver.NewVirtualBackend(driver.StreamProperties{SampleRate: 48000, BlockSize: testBlockSize, NumChannels: 2}, 0)

	f := New(Config{TriggerUpdateInterval: 10 * time.Millisecond}, scn, bus, dirs, srcs, pb, drv, nil)
	t.Cleanup(func() {
		_ = f.Finalize()
	})
	return f
}

func TestFacadeStartTransitionsToRunning(t *testing.T) {
	f := newTestFacade(t)
	require.Equal(t, StateCreated, f.State())
	require.NoError(t, f.Start(context.Background()))
	assert.Equal(t, StateRunning, f.State())
}

func TestFacadeStartTwiceFails(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Start(context.Background()))
	assert.Error(t, f.Start(context.Background()))
}

func TestFacadeFinalizeIsIdempotent(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, f.Finalize())
	assert.Equal(t, StateStopped, f.State())
	assert.NoError(t, f.Finalize())
}

func TestFacadeCoreThreadPropagatesSceneOnCommit(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)
	require.NoError(t, f.Start(context.Background()))

	txn := f.Scene.LockUpdate()
	txn.Commit()

	require.Eventually(t, func() bool { return r.scenes >= 1 }, time.Second, 5*time.Millisecond)
}

func TestFacadeCoreThreadPropagatesGlobalModeEveryIteration(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)
	require.NoError(t, f.Start(context.Background()))

	f.SetGlobalAuralizationMode(config.ModeDirectSound)

	require.Eventually(t, func() bool {
		for _, m := range r.modes {
			if m == config.ModeDirectSound {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestFacadeResetCallsRendererReset(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)
	require.NoError(t, f.Start(context.Background()))

	require.NoError(t, f.Reset())
	assert.Equal(t, 1, r.resets)
}

func TestFacadeResetRejectedInFailState(t *testing.T) {
	f := newTestFacade(t)
	f.state.Store(int32(StateFail))
	assert.Error(t, f.Reset())
}

func TestFacadeRendererAndReproductionLookup(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	rep := &countingReproduction{}
	f.AddRenderer("binaural", r)
	f.AddReproduction("mixdown", rep)

	got, ok := f.Renderer("binaural")
	assert.True(t, ok)
	assert.Same(t, r, got)

	_, ok = f.Renderer("missing")
	assert.False(t, ok)

	gotRep, ok := f.Reproduction("mixdown")
	assert.True(t, ok)
	assert.Same(t, rep, gotRep)
}
