// Package signalsource implements the Signal Source Manager (spec
// §4.2): the union of mono audio producer variants, each assigned a
// stable "<mnemonic><n>" id, served to the audio thread exactly once
// per block.
package signalsource

import (
	"github.com/va-core/va/internal/audio"
)

// Source is the fixed interface every signal-source variant exposes.
// FetchBlock is invoked exactly once per audio block by the manager's
// FetchInputData and must never block or allocate.
type Source interface {
	// ID is the stable "<mnemonic><n>" identity assigned at creation.
	ID() string

	// Mnemonic reports the two-to-four letter class tag used to build ID.
	Mnemonic() string

	// FetchBlock fills and returns the mono sample block for this cycle.
	// The returned block is owned by the source and is only valid until
	// the next FetchBlock call.
	FetchBlock(deviceInput audio.Block) audio.Block

	// Close releases any resources (open files, background goroutines).
	Close() error
}

// DeviceInputConsumer is implemented by sources that read from the
// fanned-in device-input block rather than generating or decoding
// their own samples (spec §4.2 step 1).
type DeviceInputConsumer interface {
	// InputChannel reports which physical input channel this source reads.
	InputChannel() int
}
