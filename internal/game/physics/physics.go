// Package physics defines the narrow interface the simulation consumes
// from the physics collaborator, plus a simple kinematic stand-in used
// until a full rigid-body backend is attached.
package physics

import (
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/pkg/math"
)

// BodyKind selects how the body participates in the step.
type BodyKind int

const (
	// Dynamic bodies integrate velocity and collide.
	Dynamic BodyKind = iota
	// Kinematic bodies are moved by the simulation and push others.
	Kinematic
	// Sensor bodies report intersections instead of colliding.
	Sensor
	// Static bodies never move.
	Static
)

// EventKind tags a collision event.
type EventKind int

const (
	// Collided is a solid contact between two bodies.
	Collided EventKind = iota
	// SensorBeginIntersect fires when a body enters a sensor.
	SensorBeginIntersect
	// SensorEndIntersect fires when a body leaves a sensor.
	SensorEndIntersect
)

// CollisionEvent is one contact observed during a step. A is the
// sensor for sensor events.
type CollisionEvent struct {
	Kind EventKind
	A    entity.ID
	B    entity.ID
}

// RayHit is the nearest body struck by a ray cast.
type RayHit struct {
	Entity   entity.ID
	Point    math.Vec3
	Distance float32
}

// World is the boundary the simulation talks through. Ray casts are
// read-only and may be issued from any behavior within a tick.
type World interface {
	Step(dt float32) []CollisionEvent
	RayCast(from, dir math.Vec3, maxDist float32, ignore entity.ID) (RayHit, bool)

	AddBody(id entity.ID, kind BodyKind, position math.Vec3, rotation math.Quat, radius float32)
	RemoveBody(id entity.ID)
	HasBody(id entity.ID) bool

	SetTransform(id entity.ID, position math.Vec3, rotation math.Quat)
	Transform(id entity.ID) (math.Vec3, math.Quat, bool)
	SetLinearVelocity(id entity.ID, v math.Vec3)
	LinearVelocity(id entity.ID) (math.Vec3, bool)
}
