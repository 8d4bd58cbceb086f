// Package events implements the low-priority domain event distribution
// subsystem (spec §4.10): publishers enqueue without blocking, a
// single worker drains and fans out to registered handlers outside any
// audio-critical section.
package events

import (
	"time"

	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/spatial"
)

// Type enumerates the domain event categories from spec §6.
type Type string

const (
	TypeObjectCreated     Type = "object_created"
	TypeObjectDeleted     Type = "object_deleted"
	TypePoseChanged       Type = "pose_changed"
	TypeMuteChanged       Type = "mute_changed"
	TypeProgress          Type = "progress"
	TypeMeasurement       Type = "measurement"
	TypeShutdownRequested Type = "shutdown_requested"
	TypeCoreInitialized   Type = "core_initialized"
	TypeCoreReset         Type = "core_reset"
	TypeParameterChanged  Type = "parameter_changed"
)

// Event is the single payload shape carried on the bus, wide enough to
// cover every field spec §6 lists rather than one struct per type —
// consumers read only the fields relevant to Type.
type Event struct {
	ID     uint64 // monotonically increasing, assigned by the bus worker
	Sender string
	Type   Type

	ObjectIDInt int
	ObjectIDStr string
	ParamID     string
	ParamStr    string
	Index       int
	AuralMode   config.AuralizationMode
	Volume      float64
	State       string
	Muted       bool
	Name        string
	FilePath    string

	Position       spatial.Vec3
	View           spatial.Vec3
	Up             spatial.Vec3
	HeadAboveTorso spatial.Quat
	Orientation    spatial.Quat

	InputPeaks, InputRMS   []float64
	OutputPeaks, OutputRMS []float64
	CPULoad, DSPLoad       float64
	CoreClock              time.Duration

	ProgressCurrent, ProgressTotal int
	ProgressAction, ProgressSub   string

	Timestamp time.Time
}

// Handler processes one event. Handlers run on the event worker
// goroutine, outside any audio-critical section, and must never call
// back into the scene/core API from inside the callback (spec §5).
type Handler interface {
	Name() string
	Handle(Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(Event) error
}

func (h HandlerFunc) Name() string         { return h.HandlerName }
func (h HandlerFunc) Handle(e Event) error { return h.Fn(e) }
