package mission

import (
	"github.com/voidworks/darkvr/pkg/math"
)

// Particle is one point of a particle system, in system-local space.
type Particle struct {
	Position math.Vec3
	Velocity math.Vec3
	Life     float32
}

// ParticleSystem integrates its particles in the frame of its owning
// entity's transform.
type ParticleSystem struct {
	Transform math.Mat4
	Particles []Particle
}

// Update advances every particle by dt, moving along the system
// transform's orientation, and culls dead ones.
func (ps *ParticleSystem) Update(dt float32) {
	alive := ps.Particles[:0]
	for _, p := range ps.Particles {
		p.Life -= dt
		if p.Life <= 0 {
			continue
		}
		worldVel := ps.Transform.TransformDirection(p.Velocity)
		p.Position = p.Position.Add(worldVel.Scale(dt))
		alive = append(alive, p)
	}
	ps.Particles = alive
}
