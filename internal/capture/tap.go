package capture

import (
	"log/slog"

	"github.com/va-core/va/internal/audio"
)

// DataSource is the minimal pull contract shared by renderers,
// reproductions, and the patchbay — kept local so this package never
// has to import any of them.
type DataSource interface {
	Process(out audio.Block)
	NumChannels() int
}

// Tap wraps a DataSource, recording every block it produces to a
// Recorder while passing it through unchanged — a capture never
// changes the one-pull-per-block contract spec §5 requires, since the
// wrapped source is pulled exactly as many times as it would be
// without the tap.
type Tap struct {
	inner    DataSource
	recorder *Recorder
	logger   *slog.Logger
}

// NewTap attaches recorder to inner; recording failures are logged and
// otherwise swallowed so a disk/encoder problem never interrupts the
// audio thread.
func NewTap(inner DataSource, recorder *Recorder, logger *slog.Logger) *Tap {
	return &Tap{inner: inner, recorder: recorder, logger: logger}
}

func (t *Tap) NumChannels() int { return t.inner.NumChannels() }

func (t *Tap) Process(out audio.Block) {
	t.inner.Process(out)
	if err := t.recorder.WriteBlock(out); err != nil && t.logger != nil {
		t.logger.Warn("capture: failed to write block", "error", err)
	}
}
