// Package renderer implements the Audio Renderer component (spec
// §4.5): a polymorphic consumer of the head scene state and freshly
// produced signal-source blocks, emitting N-channel audio. The
// Binaural Clustering Renderer is the reference/centerpiece variant.
package renderer

import (
	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/scene"
)

// Renderer is the fixed interface every renderer variant exposes
// (spec §4.5).
type Renderer interface {
	// UpdateScene is called from the core thread at most once per
	// scene-state publication.
	UpdateScene(head *scene.State)

	// UpdateGlobalAuralizationMode propagates the unversioned global
	// auralization mask, called every core-thread iteration.
	UpdateGlobalAuralizationMode(mask config.AuralizationMode)

	// Reset purges all per-scene state (spec §5 cancellation).
	Reset()

	// Process renders one audio block into out, which must already be
	// sized for this renderer's channel count and block length.
	Process(out audio.Block)

	// NumChannels reports the fixed channel count this renderer produces.
	NumChannels() int
}
