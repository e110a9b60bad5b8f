package ai

import (
	"testing"

	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/game/physics"
	"github.com/voidworks/darkvr/pkg/math"
)

// testScene wires a store and physics world with a monster at the
// origin facing +Z and the player ahead of it.
func testScene(t *testing.T) (*Context, entity.ID) {
	t.Helper()
	store := entity.NewStore()
	phys := physics.NewSimWorld()

	self := store.Spawn()
	store.Positions[self] = &entity.Position{Rotation: math.QuatIdentity()}
	store.Creatures[self] = entity.CreatureHumanoid
	store.Alertness[self] = &entity.AIAlertness{}
	store.AwareDelays[self] = entity.AIAwareDelay{Milliseconds: 2000}
	store.AlertCaps[self] = entity.AIAlertCap{MaxLevel: entity.AlertHigh}

	player := store.Spawn()
	store.Positions[player] = &entity.Position{Position: math.Vec3{Z: 5}, Rotation: math.QuatIdentity()}
	phys.AddBody(player, physics.Kinematic, math.Vec3{Z: 5}, math.QuatIdentity(), 0.5)

	return &Context{Store: store, Physics: phys, Player: player}, self
}

func hasEffect(effects []effect.Effect, kind effect.Kind) bool {
	for _, e := range effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestMonsterEscalatesThroughBehaviors(t *testing.T) {
	ctx, self := testScene(t)
	m := NewMonster(0)

	wantNames := []string{"wander", "chase", "melee"}
	for i, name := range wantNames {
		effects := m.Tick(ctx, self, 1.0)
		if m.Behavior().Name() != name {
			t.Fatalf("tick %d: behavior = %q, want %q", i+1, m.Behavior().Name(), name)
		}
		if !hasEffect(effects, effect.KindQueueAnimationBySchema) {
			t.Fatalf("tick %d: no animation query on behavior switch", i+1)
		}
	}

	if ctx.Store.Alertness[self].Current != entity.AlertHigh {
		t.Fatalf("alertness component = %v, want high", ctx.Store.Alertness[self].Current)
	}
}

func TestMonsterRangedWeaponLinkSelectsRangedAttack(t *testing.T) {
	ctx, self := testScene(t)
	ctx.Store.AddLink(entity.Link{Kind: entity.LinkAIRangedWeapon, From: self, To: ctx.Player})
	m := NewMonster(0)

	for i := 0; i < 3; i++ {
		m.Tick(ctx, self, 1.0)
	}
	if m.Behavior().Name() != "ranged" {
		t.Fatalf("behavior = %q, want ranged", m.Behavior().Name())
	}
}

func TestMonsterVisibilityBlockedByWall(t *testing.T) {
	ctx, self := testScene(t)
	// A wall between monster and player.
	wall := ctx.Store.Spawn()
	ctx.Physics.AddBody(wall, physics.Static, math.Vec3{Z: 2.5}, math.QuatIdentity(), 1)
	m := NewMonster(0)

	for i := 0; i < 4; i++ {
		m.Tick(ctx, self, 1.0)
	}
	if m.Alertness().Current != entity.AlertLowest {
		t.Fatalf("alertness = %v behind a wall, want lowest", m.Alertness().Current)
	}
}

func TestMonsterVisibilityRespectsFOV(t *testing.T) {
	ctx, self := testScene(t)
	// Player directly behind the monster.
	ctx.Store.Positions[ctx.Player].Position = math.Vec3{Z: -5}
	ctx.Physics.SetTransform(ctx.Player, math.Vec3{Z: -5}, math.QuatIdentity())
	m := NewMonster(0)

	for i := 0; i < 4; i++ {
		m.Tick(ctx, self, 1.0)
	}
	if m.Alertness().Current != entity.AlertLowest {
		t.Fatalf("alertness = %v for a player behind, want lowest", m.Alertness().Current)
	}
}

func TestMonsterTurnSpeedClamp(t *testing.T) {
	ctx, self := testScene(t)
	// Escalate to melee so the behavior faces the player.
	m := NewMonster(0)
	for i := 0; i < 3; i++ {
		m.Tick(ctx, self, 1.0)
	}

	// Move the player 90 degrees around; one short tick cannot snap.
	ctx.Store.Positions[ctx.Player].Position = math.Vec3{X: 5}
	ctx.Physics.SetTransform(ctx.Player, math.Vec3{X: 5}, math.QuatIdentity())

	before := m.Heading()
	m.Tick(ctx, self, 0.05)
	turned := wrapDegrees(m.Heading() - before)
	max := m.Behavior().TurnSpeed()*0.05 + 1e-4
	if turned < 0 || turned > max {
		t.Fatalf("turned %v degrees in one tick, max %v", turned, max)
	}
}

func TestMonsterWatchObjTriggersScriptedSequence(t *testing.T) {
	ctx, self := testScene(t)
	watch := ctx.Store.Spawn()
	ctx.Store.Positions[watch] = &entity.Position{Position: math.Vec3{Z: 4}, Rotation: math.QuatIdentity()}
	ctx.Store.AddLink(entity.Link{Kind: entity.LinkAIWatchObj, From: self, To: watch, Radius: 3})

	m := NewMonster(0)
	m.Tick(ctx, self, 0.1)
	if m.Behavior().Name() != "scripted" {
		t.Fatalf("behavior = %q, want scripted", m.Behavior().Name())
	}

	// Completing the sequence hands control back to alertness mapping,
	// and the watch object never re-triggers.
	m.OnAnimationCompleted(ctx, self)
	m.Tick(ctx, self, 0.1)
	if m.Behavior().Name() == "scripted" {
		t.Fatal("watch object re-triggered")
	}
}

func TestMonsterSlay(t *testing.T) {
	ctx, self := testScene(t)
	m := NewMonster(0)

	effects := m.Slay(ctx, self)
	if m.Behavior().Name() != "dead" {
		t.Fatalf("behavior = %q, want dead", m.Behavior().Name())
	}
	if !hasEffect(effects, effect.KindQueueAnimationBySchema) {
		t.Fatal("no death animation queued")
	}

	// Dead is terminal: further ticks keep it.
	m.Tick(ctx, self, 1.0)
	m.OnAnimationCompleted(ctx, self)
	if m.Behavior().Name() != "dead" {
		t.Fatalf("behavior = %q after death, want dead", m.Behavior().Name())
	}
}

func TestWrapDegrees(t *testing.T) {
	cases := []struct{ in, want float32 }{
		{0, 0},
		{190, -170},
		{-190, 170},
		{360, 0},
	}
	for _, c := range cases {
		if got := wrapDegrees(c.in); got != c.want {
			t.Fatalf("wrapDegrees(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
