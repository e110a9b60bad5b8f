// Package effect defines the intents scripts and behaviors produce
// during a tick. The mission core drains the queue once per tick and
// applies each effect; global effects bubble up to the host.
package effect

import (
	"github.com/voidworks/darkvr/internal/engine/motiondb"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/pkg/math"
)

// Kind discriminates the effect union.
type Kind int

const (
	KindCreateEntity Kind = iota
	KindCreateEntityByTemplateName
	KindSlayEntity
	KindDestroyEntity
	KindReplaceEntity
	KindChangeModel
	KindSetPosition
	KindSetRotation
	KindSetPositionRotation
	KindQueueAnimationBySchema
	KindSetJointTransform
	KindPlaySound
	KindPlaySpeech
	KindPlayEnvironmentalSound
	KindGrabEntity
	KindDropEntity
	KindSendMessage
	KindTriggerEntityByName
	KindDebugMarker

	// Global effects bubble out of the tick.
	KindSaveGame
	KindTransitionLevel
)

// Effect is one queued intent. Only the fields relevant to Kind are
// set.
type Effect struct {
	Kind   Kind
	Entity entity.ID

	// Spawn / replace.
	Template     entity.TemplateID
	TemplateName string
	Velocity     math.Vec3

	// Transform.
	Position math.Vec3
	Rotation math.Quat

	// Model swap.
	ModelName string

	// Animation.
	Query motiondb.Query
	Joint uint16
	Local math.Mat4

	// Audio. Concept and Tags drive speech resolution.
	SoundName string
	Concept   string
	Tags      []string

	// Grab.
	Holder entity.ID

	// Messages and triggers.
	Message    string
	TargetName string

	// Debug visualization.
	DebugText  string
	DebugColor [3]float32

	// Level transition.
	Mission string
}

// Queue collects effects during a tick. Producers append; the mission
// core drains once at the end of the tick.
type Queue struct {
	pending []Effect
}

// Push appends one effect.
func (q *Queue) Push(e Effect) {
	q.pending = append(q.pending, e)
}

// Drain returns the pending effects and clears the queue. Effects
// pushed while processing land in the next drain.
func (q *Queue) Drain() []Effect {
	out := q.pending
	q.pending = nil
	return out
}

// Len reports the number of pending effects.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Global reports whether the effect must bubble up to the host instead
// of being handled inside the tick.
func (e Effect) Global() bool {
	return e.Kind == KindSaveGame || e.Kind == KindTransitionLevel
}
