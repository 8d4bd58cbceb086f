package reproduction

import (
	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/scene"
)

// Talkthrough is the identity N×N reproduction variant (spec §4.6):
// whatever the renderer produces passes through unchanged.
type Talkthrough struct {
	base
	numChannels int
}

// NewTalkthrough constructs a passthrough reproduction for the given
// channel count, feeding targetOutputs.
func NewTalkthrough(numChannels int, targetOutputs []string) *Talkthrough {
	return &Talkthrough{base: newBase(targetOutputs), numChannels: numChannels}
}

func (t *Talkthrough) GetOutputDatasource() DataSource { return t }
func (t *Talkthrough) NumChannels() int                { return t.numChannels }
func (t *Talkthrough) UpdateScene(*scene.State)        {}
func (t *Talkthrough) GetParameters() any              { return struct{}{} }

func (t *Talkthrough) SetParameters(any) error {
	return t.guardParameterChange()
}

func (t *Talkthrough) Process(out audio.Block) {
	t.pullInput(out)
}
