package physics

import (
	"sort"

	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/pkg/math"
)

type body struct {
	kind     BodyKind
	position math.Vec3
	rotation math.Quat
	velocity math.Vec3
	radius   float32
}

// SimWorld is a sphere-based kinematic world: dynamic bodies integrate
// velocity, overlaps report contacts, and sensors track begin/end
// intersections across steps. It implements World.
type SimWorld struct {
	bodies   map[entity.ID]*body
	overlaps map[[2]entity.ID]bool
}

// NewSimWorld returns an empty world.
func NewSimWorld() *SimWorld {
	return &SimWorld{
		bodies:   make(map[entity.ID]*body),
		overlaps: make(map[[2]entity.ID]bool),
	}
}

// AddBody registers a body. Re-adding replaces the previous body.
func (w *SimWorld) AddBody(id entity.ID, kind BodyKind, position math.Vec3, rotation math.Quat, radius float32) {
	if radius <= 0 {
		radius = 0.5
	}
	w.bodies[id] = &body{kind: kind, position: position, rotation: rotation, radius: radius}
}

// RemoveBody drops a body and any overlap bookkeeping touching it.
func (w *SimWorld) RemoveBody(id entity.ID) {
	delete(w.bodies, id)
	for key := range w.overlaps {
		if key[0] == id || key[1] == id {
			delete(w.overlaps, key)
		}
	}
}

// HasBody reports whether the entity has a registered body.
func (w *SimWorld) HasBody(id entity.ID) bool {
	_, ok := w.bodies[id]
	return ok
}

// SetTransform teleports a body.
func (w *SimWorld) SetTransform(id entity.ID, position math.Vec3, rotation math.Quat) {
	if b, ok := w.bodies[id]; ok {
		b.position = position
		b.rotation = rotation
	}
}

// Transform reads a body's transform.
func (w *SimWorld) Transform(id entity.ID) (math.Vec3, math.Quat, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return math.Vec3{}, math.Quat{}, false
	}
	return b.position, b.rotation, true
}

// SetLinearVelocity sets a body's velocity. Static and sensor bodies
// ignore it.
func (w *SimWorld) SetLinearVelocity(id entity.ID, v math.Vec3) {
	if b, ok := w.bodies[id]; ok && b.kind != Static && b.kind != Sensor {
		b.velocity = v
	}
}

// LinearVelocity reads a body's velocity.
func (w *SimWorld) LinearVelocity(id entity.ID) (math.Vec3, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return math.Vec3{}, false
	}
	return b.velocity, true
}

// Step integrates dynamic and kinematic bodies and returns the
// contacts and sensor transitions observed.
func (w *SimWorld) Step(dt float32) []CollisionEvent {
	for _, b := range w.bodies {
		if b.kind == Dynamic || b.kind == Kinematic {
			b.position = b.position.Add(b.velocity.Scale(dt))
		}
	}

	ids := make([]entity.ID, 0, len(w.bodies))
	for id := range w.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var events []CollisionEvent
	seen := make(map[[2]entity.ID]bool)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := w.bodies[ids[i]], w.bodies[ids[j]]
			if a.kind == Static && b.kind == Static {
				continue
			}
			dist := a.position.Distance(b.position)
			if dist >= a.radius+b.radius {
				continue
			}

			if a.kind == Sensor || b.kind == Sensor {
				sensorID, otherID := ids[i], ids[j]
				if b.kind == Sensor {
					sensorID, otherID = ids[j], ids[i]
				}
				key := [2]entity.ID{sensorID, otherID}
				seen[key] = true
				if !w.overlaps[key] {
					w.overlaps[key] = true
					events = append(events, CollisionEvent{Kind: SensorBeginIntersect, A: sensorID, B: otherID})
				}
				continue
			}

			events = append(events, CollisionEvent{Kind: Collided, A: ids[i], B: ids[j]})
		}
	}

	for key := range w.overlaps {
		if !seen[key] {
			delete(w.overlaps, key)
			events = append(events, CollisionEvent{Kind: SensorEndIntersect, A: key[0], B: key[1]})
		}
	}
	return events
}

// RayCast returns the nearest body the ray strikes within maxDist,
// skipping the ignored entity. Bodies are treated as spheres.
func (w *SimWorld) RayCast(from, dir math.Vec3, maxDist float32, ignore entity.ID) (RayHit, bool) {
	dir = dir.Normalize()
	var best RayHit
	found := false
	for id, b := range w.bodies {
		if id == ignore {
			continue
		}
		// Ray vs sphere: project the center onto the ray.
		oc := b.position.Sub(from)
		t := oc.Dot(dir)
		if t < 0 || t > maxDist {
			continue
		}
		perp := oc.Sub(dir.Scale(t)).Length()
		if perp > b.radius {
			continue
		}
		if !found || t < best.Distance {
			best = RayHit{Entity: id, Point: from.Add(dir.Scale(t)), Distance: t}
			found = true
		}
	}
	return best, found
}
