package ai

import (
	stdmath "math"

	"github.com/voidworks/darkvr/internal/engine/motiondb"
	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/game/physics"
	"github.com/voidworks/darkvr/internal/game/world"
	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// Context is the read view behaviors steer against. The store and
// physics world are only mutated through effects.
type Context struct {
	Store   *entity.Store
	Physics physics.World
	Nav     *world.PathDatabase
	Player  entity.ID
	Time    float32
}

// Steering is a desired yaw in degrees plus a movement intent.
type Steering struct {
	Heading float32
	Moving  bool
}

// NextKind is the behavior's opinion when its animation completes.
type NextKind int

const (
	// Stay keeps the current behavior and re-queues its animation.
	Stay NextKind = iota
	// NoOpinion defers to the alertness mapping.
	NoOpinion
	// Switch replaces the behavior with Next.Behavior.
	Switch
)

// Next carries the behavior's transition opinion.
type Next struct {
	Kind     NextKind
	Behavior Behavior
}

// Behavior is one AI micro-program. Steer returns false when the
// behavior has no steering intent this tick.
type Behavior interface {
	Name() string
	Animation() []motiondb.QueryItem
	IsLocomotion() bool
	TurnSpeed() float32
	Steer(ctx *Context, self entity.ID, currentHeading float32) (Steering, []effect.Effect, bool)
	NextBehavior(ctx *Context, self entity.ID) Next
	HandleMessage(ctx *Context, self entity.ID, msg string)
}

// meleeRange is how close a melee attacker must stay, in world units.
const meleeRange float32 = 2.5

// headingDeg returns the yaw in degrees that faces from -> to.
func headingDeg(from, to math.Vec3) float32 {
	d := to.Sub(from)
	return math.Rad2Deg(float32(stdmath.Atan2(float64(d.X), float64(d.Z))))
}

func entityPosition(ctx *Context, id entity.ID) (math.Vec3, bool) {
	p, ok := ctx.Store.Positions[id]
	if !ok {
		return math.Vec3{}, false
	}
	return p.Position, true
}

// Idle stands in place.
type Idle struct{}

func (Idle) Name() string { return "idle" }

func (Idle) Animation() []motiondb.QueryItem {
	return []motiondb.QueryItem{{Tag: "idle"}}
}

func (Idle) IsLocomotion() bool { return false }

func (Idle) TurnSpeed() float32 { return 45 }

func (Idle) Steer(*Context, entity.ID, float32) (Steering, []effect.Effect, bool) {
	return Steering{}, nil, false
}

func (Idle) NextBehavior(*Context, entity.ID) Next { return Next{Kind: Stay} }

func (Idle) HandleMessage(*Context, entity.ID, string) {}

// Wander strolls between navigation cells.
type Wander struct {
	goal    math.Vec3
	hasGoal bool
}

func (*Wander) Name() string { return "wander" }

func (*Wander) Animation() []motiondb.QueryItem {
	return []motiondb.QueryItem{{Tag: "locomote"}, {Tag: "normal", Optional: true}}
}

func (*Wander) IsLocomotion() bool { return true }

func (*Wander) TurnSpeed() float32 { return 90 }

func (w *Wander) Steer(ctx *Context, self entity.ID, currentHeading float32) (Steering, []effect.Effect, bool) {
	pos, ok := entityPosition(ctx, self)
	if !ok {
		return Steering{}, nil, false
	}

	if !w.hasGoal || pos.Distance(w.goal) < 1 {
		if !w.pickGoal(ctx, pos) {
			return Steering{}, nil, false
		}
	}

	wp, ok := ctx.Nav.NextWaypoint(pos, w.goal, formats.MoveWalk)
	if !ok {
		w.hasGoal = false
		return Steering{}, nil, false
	}
	return Steering{Heading: headingDeg(pos, wp), Moving: true}, nil, true
}

func (w *Wander) pickGoal(ctx *Context, pos math.Vec3) bool {
	n := ctx.Nav.CellCount()
	if n == 0 {
		return false
	}
	// Deterministic stroll: rotate through cells keyed by the current
	// position so repeated calls spread across the mesh.
	start := ctx.Nav.CellAt(pos)
	if start < 0 {
		return false
	}
	for i := 1; i <= n; i++ {
		cell := (start + i) % n
		if center, ok := ctx.Nav.CellCenter(cell); ok && center.Distance(pos) > 1 {
			w.goal = center
			w.hasGoal = true
			return true
		}
	}
	return false
}

func (*Wander) NextBehavior(*Context, entity.ID) Next { return Next{Kind: Stay} }

func (*Wander) HandleMessage(*Context, entity.ID, string) {}

// Chase pursues the player along the navigation mesh.
type Chase struct{}

func (*Chase) Name() string { return "chase" }

func (*Chase) Animation() []motiondb.QueryItem {
	return []motiondb.QueryItem{{Tag: "locomote"}, {Tag: "urgent", Optional: true}}
}

func (*Chase) IsLocomotion() bool { return true }

func (*Chase) TurnSpeed() float32 { return 180 }

func (*Chase) Steer(ctx *Context, self entity.ID, currentHeading float32) (Steering, []effect.Effect, bool) {
	pos, ok := entityPosition(ctx, self)
	if !ok {
		return Steering{}, nil, false
	}
	target, ok := entityPosition(ctx, ctx.Player)
	if !ok {
		return Steering{}, nil, false
	}

	wp, ok := ctx.Nav.NextWaypoint(pos, target, formats.MoveWalk)
	if !ok {
		// No nav coverage: head straight at the player.
		wp = target
	}
	return Steering{Heading: headingDeg(pos, wp), Moving: true}, nil, true
}

func (*Chase) NextBehavior(*Context, entity.ID) Next { return Next{Kind: NoOpinion} }

func (*Chase) HandleMessage(*Context, entity.ID, string) {}

// MeleeAttack closes to melee range and swings.
type MeleeAttack struct{}

func (*MeleeAttack) Name() string { return "melee" }

func (*MeleeAttack) Animation() []motiondb.QueryItem {
	return []motiondb.QueryItem{{Tag: "attack"}, {Tag: "direct", Optional: true}}
}

func (*MeleeAttack) IsLocomotion() bool { return false }

func (*MeleeAttack) TurnSpeed() float32 { return 240 }

func (*MeleeAttack) Steer(ctx *Context, self entity.ID, currentHeading float32) (Steering, []effect.Effect, bool) {
	pos, ok := entityPosition(ctx, self)
	if !ok {
		return Steering{}, nil, false
	}
	target, ok := entityPosition(ctx, ctx.Player)
	if !ok {
		return Steering{}, nil, false
	}
	return Steering{Heading: headingDeg(pos, target), Moving: pos.Distance(target) > meleeRange}, nil, true
}

func (*MeleeAttack) NextBehavior(ctx *Context, self entity.ID) Next {
	pos, okA := entityPosition(ctx, self)
	target, okB := entityPosition(ctx, ctx.Player)
	if okA && okB && pos.Distance(target) > meleeRange*2 {
		return Next{Kind: Switch, Behavior: &Chase{}}
	}
	return Next{Kind: Stay}
}

func (*MeleeAttack) HandleMessage(*Context, entity.ID, string) {}

// RangedAttack faces the player and fires; projectile spawning rides
// on the clip's fire motion flag, handled by the mission core.
type RangedAttack struct{}

func (*RangedAttack) Name() string { return "ranged" }

func (*RangedAttack) Animation() []motiondb.QueryItem {
	return []motiondb.QueryItem{{Tag: "attack"}, {Tag: "ranged", Optional: true}}
}

func (*RangedAttack) IsLocomotion() bool { return false }

func (*RangedAttack) TurnSpeed() float32 { return 120 }

func (*RangedAttack) Steer(ctx *Context, self entity.ID, currentHeading float32) (Steering, []effect.Effect, bool) {
	pos, ok := entityPosition(ctx, self)
	if !ok {
		return Steering{}, nil, false
	}
	target, ok := entityPosition(ctx, ctx.Player)
	if !ok {
		return Steering{}, nil, false
	}
	return Steering{Heading: headingDeg(pos, target)}, nil, true
}

func (*RangedAttack) NextBehavior(*Context, entity.ID) Next { return Next{Kind: Stay} }

func (*RangedAttack) HandleMessage(*Context, entity.ID, string) {}

// SequenceStep is one step of a scripted sequence: an animation query
// and effects fired when the step starts.
type SequenceStep struct {
	Items   []motiondb.QueryItem
	Effects []effect.Effect
}

// ScriptedSequence plays fixed steps, advancing on each animation
// completion, then hands control back to the alertness mapping.
type ScriptedSequence struct {
	Steps []SequenceStep
	step  int
}

func (*ScriptedSequence) Name() string { return "scripted" }

func (s *ScriptedSequence) Animation() []motiondb.QueryItem {
	if s.step >= len(s.Steps) {
		return []motiondb.QueryItem{{Tag: "idle"}}
	}
	return s.Steps[s.step].Items
}

func (*ScriptedSequence) IsLocomotion() bool { return false }

func (*ScriptedSequence) TurnSpeed() float32 { return 0 }

func (s *ScriptedSequence) Steer(ctx *Context, self entity.ID, currentHeading float32) (Steering, []effect.Effect, bool) {
	if s.step >= len(s.Steps) {
		return Steering{}, nil, false
	}
	step := s.Steps[s.step]
	if len(step.Effects) == 0 {
		return Steering{}, nil, false
	}
	// Step effects fire once, on the tick the step starts.
	effects := step.Effects
	s.Steps[s.step].Effects = nil
	return Steering{Heading: currentHeading}, effects, true
}

func (s *ScriptedSequence) NextBehavior(*Context, entity.ID) Next {
	s.step++
	if s.step >= len(s.Steps) {
		return Next{Kind: NoOpinion}
	}
	return Next{Kind: Stay}
}

func (*ScriptedSequence) HandleMessage(*Context, entity.ID, string) {}

// Dead is terminal; the corpse holds its final pose.
type Dead struct{}

func (Dead) Name() string { return "dead" }

func (Dead) Animation() []motiondb.QueryItem {
	return []motiondb.QueryItem{{Tag: "die"}}
}

func (Dead) IsLocomotion() bool { return false }

func (Dead) TurnSpeed() float32 { return 0 }

func (Dead) Steer(*Context, entity.ID, float32) (Steering, []effect.Effect, bool) {
	return Steering{}, nil, false
}

func (Dead) NextBehavior(*Context, entity.ID) Next { return Next{Kind: Stay} }

func (Dead) HandleMessage(*Context, entity.ID, string) {}
