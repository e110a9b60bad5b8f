package mission

import (
	"testing"
	"time"

	"github.com/voidworks/darkvr/internal/assets"
	"github.com/voidworks/darkvr/internal/engine/anim"
	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/game/physics"
	"github.com/voidworks/darkvr/pkg/math"
)

func testCore() (*Core, *entity.Store, *physics.SimWorld, *assets.Cache) {
	store := entity.NewStore()
	world := physics.NewSimWorld()
	cache := assets.NewCache("")
	core := New(store, world, nil, nil, cache, nil)
	return core, store, world, cache
}

func slidingClip(name string, vel math.Vec3) *anim.Clip {
	return &anim.Clip{
		Name:            name,
		NumFrames:       10,
		TimePerFrame:    100 * time.Millisecond,
		SlidingVelocity: vel,
	}
}

func absDiff(a, b float32) float32 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

func TestSlidingVelocityAxisSwap(t *testing.T) {
	core, store, world, _ := testCore()

	id := store.Spawn()
	store.Positions[id] = &entity.Position{Rotation: math.QuatIdentity()}
	world.AddBody(id, physics.Kinematic, math.Vec3{}, math.QuatIdentity(), 0.5)
	world.SetLinearVelocity(id, math.Vec3{Y: -9.8})

	clip := slidingClip("walk", math.Vec3{X: 2, Z: 3})
	core.animPlayers[id] = anim.NewPlayer().QueueLooping(clip)

	core.Tick(0.05, Input{})

	got, _ := world.LinearVelocity(id)
	want := math.Vec3{X: 3, Y: -9.8, Z: -2}
	if absDiff(got.X, want.X) > 1e-5 || absDiff(got.Y, want.Y) > 1e-5 || absDiff(got.Z, want.Z) > 1e-5 {
		t.Fatalf("velocity = %+v, want %+v", got, want)
	}
}

func TestSlidingVelocityRotatedByEntity(t *testing.T) {
	core, store, world, _ := testCore()

	// Facing 90 degrees about Y rotates +Z onto +X.
	rot := math.QuatFromAxisAngle(math.Vec3{Y: 1}, math.Deg2Rad(90))
	id := store.Spawn()
	store.Positions[id] = &entity.Position{Rotation: rot}
	world.AddBody(id, physics.Kinematic, math.Vec3{}, rot, 0.5)

	clip := slidingClip("walk", math.Vec3{Z: 1})
	core.animPlayers[id] = anim.NewPlayer().QueueLooping(clip)

	core.Tick(0.05, Input{})

	// Rotated velocity is +X, so mapped onto (v.z, y, -v.x) = (0, 0, -1).
	got, _ := world.LinearVelocity(id)
	if absDiff(got.X, 0) > 1e-5 || absDiff(got.Z, -1) > 1e-5 {
		t.Fatalf("velocity = %+v, want (0, 0, -1)", got)
	}
}

func TestTeleportCountdownExpires(t *testing.T) {
	core, store, _, _ := testCore()

	id := store.Spawn()
	store.Teleported[id] = &entity.Teleported{CountdownTimer: 2}

	core.Tick(0.016, Input{})
	if tp, ok := store.Teleported[id]; !ok || tp.CountdownTimer != 1 {
		t.Fatalf("after one tick: %+v", store.Teleported[id])
	}
	core.Tick(0.016, Input{})
	if _, ok := store.Teleported[id]; ok {
		t.Fatal("teleport marker should expire at zero")
	}
}

func TestTeleportedEntitySkipsPhysicsSync(t *testing.T) {
	core, store, world, _ := testCore()

	id := store.Spawn()
	store.Positions[id] = &entity.Position{Position: math.Vec3{X: 7}, Rotation: math.QuatIdentity()}
	// Teleport destination differs from where the body still sits.
	world.AddBody(id, physics.Dynamic, math.Vec3{X: 1}, math.QuatIdentity(), 0.3)
	store.Teleported[id] = &entity.Teleported{CountdownTimer: 2}

	core.Tick(0.016, Input{})

	if got := store.Positions[id].Position.X; absDiff(got, 7) > 1e-5 {
		t.Fatalf("teleported entity synced from physics: x=%v, want 7", got)
	}

	// Countdown expired: the body transform is authoritative again.
	core.Tick(0.016, Input{})
	if got := store.Positions[id].Position.X; absDiff(got, 7) < 1 {
		t.Fatalf("expired marker should resume physics sync, x=%v", got)
	}
}

func TestPlayerInputYawAndMove(t *testing.T) {
	core, store, world, _ := testCore()
	id := core.SpawnPlayer(math.Vec3{})

	// Full stick for one second: 90 degrees of yaw.
	core.Tick(1.0, Input{YawAxis: 1})

	pos := store.Positions[id]
	fwd := pos.Rotation.RotateVec3(math.Vec3{Z: 1})
	if absDiff(fwd.X, 1) > 1e-3 || absDiff(fwd.Z, 0) > 1e-3 {
		t.Fatalf("forward after yaw = %+v, want +X", fwd)
	}

	core.Tick(0.016, Input{Move: math.Vec2{Y: 1}})
	vel, _ := world.LinearVelocity(id)
	if vel.Length() == 0 {
		t.Fatal("move input produced no velocity")
	}
}

func TestFastProjectileSkipsPhysics(t *testing.T) {
	core, _, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "bolt", ID: 7, Radius: 0.1})

	core.queue.Push(effect.Effect{
		Kind:         effect.KindCreateEntityByTemplateName,
		TemplateName: "bolt",
		Velocity:     math.Vec3{Z: 100},
	})
	core.Tick(0.016, Input{})

	if len(core.fastProjectiles) != 1 {
		t.Fatalf("fast projectiles = %d, want 1", len(core.fastProjectiles))
	}
	for id := range core.fastProjectiles {
		if world.HasBody(id) {
			t.Fatal("fast projectile must not get a physics body")
		}
	}
}

func TestSlowProjectileGetsScaledBody(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "dart", ID: 8, Radius: 0.1})

	core.queue.Push(effect.Effect{
		Kind:         effect.KindCreateEntityByTemplateName,
		TemplateName: "dart",
		Velocity:     math.Vec3{Z: 40},
	})
	core.Tick(0.016, Input{})

	id, ok := store.FindByName("dart")
	if !ok {
		t.Fatal("dart not spawned")
	}
	if !world.HasBody(id) {
		t.Fatal("slow projectile needs a physics body")
	}
	vel, _ := world.LinearVelocity(id)
	want := float32(40) * spawnVelocityScale
	if absDiff(vel.Z, want) > 1e-4 {
		t.Fatalf("velocity.Z = %v, want %v", vel.Z, want)
	}
}

func TestFastProjectileFliesAndHits(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "bolt", ID: 7})

	wall := store.Spawn()
	store.Names[wall] = "wall"
	world.AddBody(wall, physics.Static, math.Vec3{Z: 5}, math.QuatIdentity(), 1)

	core.queue.Push(effect.Effect{
		Kind:         effect.KindCreateEntityByTemplateName,
		TemplateName: "bolt",
		Velocity:     math.Vec3{Z: 100},
	})
	core.Tick(0.016, Input{})

	id, ok := store.FindByName("bolt")
	if !ok {
		t.Fatal("bolt not spawned")
	}

	// 100 u/s covers the 5 units to the wall within a tenth of a
	// second; the ray cast removes the projectile on impact.
	for i := 0; i < 10; i++ {
		core.Tick(0.016, Input{})
	}
	if store.Alive(id) {
		t.Fatal("projectile should be destroyed on impact")
	}
}

func TestTriggerByNameSendsTurnOn(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{
		Name:     "guard",
		ID:       1,
		Creature: entity.CreatureHumanoid,
	})

	lever := store.Spawn()
	store.Names[lever] = "lever_a"

	guard := core.SpawnFromTemplate(mustTemplate(t, cache, "guard"), math.Vec3{}, math.QuatIdentity())
	world.AddBody(guard, physics.Kinematic, math.Vec3{}, math.QuatIdentity(), 0.5)
	store.AddLink(entity.Link{Kind: entity.LinkSwitch, From: lever, To: guard})

	core.TriggerEntityByName("lever_a")
	core.Tick(0.016, Input{})

	// Delivery is observable as the monster's message hook running;
	// the pending trigger list must be consumed either way.
	if len(core.pendingTriggers) != 0 {
		t.Fatal("trigger not consumed")
	}
}

func TestDestroyEntityIdempotent(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{
		Name:     "guard",
		ID:       1,
		Creature: entity.CreatureHumanoid,
	})
	id := core.SpawnFromTemplate(mustTemplate(t, cache, "guard"), math.Vec3{}, math.QuatIdentity())
	world.AddBody(id, physics.Kinematic, math.Vec3{}, math.QuatIdentity(), 0.5)
	core.AttachHitBoxes(id, []uint16{0, 1}, 0.2)

	core.DestroyEntity(id)
	core.DestroyEntity(id)

	if store.Alive(id) {
		t.Fatal("entity still alive")
	}
	if world.HasBody(id) {
		t.Fatal("body still registered")
	}
	if _, ok := core.monsters[id]; ok {
		t.Fatal("script state still registered")
	}
	if _, ok := core.hitboxes[id]; ok {
		t.Fatal("hit boxes still registered")
	}
}

func TestGrabAndDrop(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "sword", ID: 3, Radius: 0.3})

	holder := store.Spawn()
	store.Positions[holder] = &entity.Position{Position: math.Vec3{X: 4}, Rotation: math.QuatIdentity()}

	item := core.SpawnFromTemplate(mustTemplate(t, cache, "sword"), math.Vec3{}, math.QuatIdentity())
	world.AddBody(item, physics.Dynamic, math.Vec3{}, math.QuatIdentity(), 0.3)

	core.queue.Push(effect.Effect{Kind: effect.KindGrabEntity, Holder: holder, Entity: item})
	core.Tick(0.016, Input{})

	if world.HasBody(item) {
		t.Fatal("held item must leave the physics world")
	}
	if !store.HasRefs[item] {
		t.Fatal("held item must be ref-marked")
	}

	core.queue.Push(effect.Effect{Kind: effect.KindDropEntity, Holder: holder, Entity: item})
	core.Tick(0.016, Input{})

	if !world.HasBody(item) {
		t.Fatal("dropped item must rejoin the physics world")
	}
	pos, _, _ := world.Transform(item)
	if absDiff(pos.X, 4) > 1e-5 {
		t.Fatalf("dropped at %+v, want holder position x=4", pos)
	}
}

func TestGrabDetachesPreviousContainer(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "sword", ID: 3, Radius: 0.3})

	shelf := store.Spawn()
	store.Positions[shelf] = &entity.Position{Rotation: math.QuatIdentity()}

	item := core.SpawnFromTemplate(mustTemplate(t, cache, "sword"), math.Vec3{}, math.QuatIdentity())
	world.AddBody(item, physics.Dynamic, math.Vec3{}, math.QuatIdentity(), 0.3)
	store.AddLink(entity.Link{Kind: entity.LinkContains, From: shelf, To: item})

	holder := store.Spawn()
	store.Positions[holder] = &entity.Position{Rotation: math.QuatIdentity()}

	core.queue.Push(effect.Effect{Kind: effect.KindGrabEntity, Holder: holder, Entity: item})
	core.Tick(0.016, Input{})

	if links := store.LinksFrom(shelf, entity.LinkContains); len(links) != 0 {
		t.Fatalf("shelf still contains the item after grab: %+v", links)
	}
	links := store.LinksFrom(holder, entity.LinkContains)
	if len(links) != 1 || links[0].To != item {
		t.Fatalf("holder links = %+v, want single link to item %d", links, item)
	}
}

func TestHeldItemsSurviveLevelTransition(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "sword", ID: 3, Radius: 0.3})
	cache.RegisterTemplate(&assets.Template{Name: "key", ID: 4, Radius: 0.1})

	player := core.SpawnPlayer(math.Vec3{})

	sword := core.SpawnFromTemplate(mustTemplate(t, cache, "sword"), math.Vec3{}, math.QuatIdentity())
	world.AddBody(sword, physics.Dynamic, math.Vec3{}, math.QuatIdentity(), 0.3)
	core.queue.Push(effect.Effect{Kind: effect.KindGrabEntity, Holder: core.RightHand(), Entity: sword})
	core.Tick(0.016, Input{})

	key := core.SpawnFromTemplate(mustTemplate(t, cache, "key"), math.Vec3{}, math.QuatIdentity())
	store.AddLink(entity.Link{Kind: entity.LinkContains, From: player, To: key})

	carried := core.HeldForTransfer()
	if len(carried) != 2 {
		t.Fatalf("carried = %+v, want sword + key", carried)
	}

	// A transition tears the old core down and injects the carries
	// into the next mission's fresh core.
	next := New(entity.NewStore(), physics.NewSimWorld(), nil, nil, cache, nil)
	next.SpawnPlayer(math.Vec3{X: 12})
	next.InjectHeld(carried)

	links := next.store.LinksFrom(next.RightHand(), entity.LinkContains)
	if len(links) != 1 {
		t.Fatalf("right hand links = %+v, want the carried sword", links)
	}
	newSword := links[0].To
	if next.store.Names[newSword] != "sword" {
		t.Fatalf("right hand holds %q, want sword", next.store.Names[newSword])
	}
	if next.phys.HasBody(newSword) {
		t.Fatal("held item must stay out of the physics world after injection")
	}
	if !next.store.HasRefs[newSword] {
		t.Fatal("injected hand item must be ref-marked")
	}

	inv := next.store.LinksFrom(next.Player(), entity.LinkContains)
	if len(inv) != 1 || next.store.Names[inv[0].To] != "key" {
		t.Fatalf("player inventory links = %+v, want the key", inv)
	}
}

func TestDropKeepsOtherContainedItems(t *testing.T) {
	core, store, world, cache := testCore()
	cache.RegisterTemplate(&assets.Template{Name: "sword", ID: 3, Radius: 0.3})
	cache.RegisterTemplate(&assets.Template{Name: "key", ID: 4, Radius: 0.1})

	holder := store.Spawn()
	store.Positions[holder] = &entity.Position{Rotation: math.QuatIdentity()}

	// The holder already carries a key in its inventory.
	key := core.SpawnFromTemplate(mustTemplate(t, cache, "key"), math.Vec3{}, math.QuatIdentity())
	store.AddLink(entity.Link{Kind: entity.LinkContains, From: holder, To: key})

	item := core.SpawnFromTemplate(mustTemplate(t, cache, "sword"), math.Vec3{}, math.QuatIdentity())
	world.AddBody(item, physics.Dynamic, math.Vec3{}, math.QuatIdentity(), 0.3)

	core.queue.Push(effect.Effect{Kind: effect.KindGrabEntity, Holder: holder, Entity: item})
	core.Tick(0.016, Input{})
	core.queue.Push(effect.Effect{Kind: effect.KindDropEntity, Holder: holder, Entity: item})
	core.Tick(0.016, Input{})

	links := store.LinksFrom(holder, entity.LinkContains)
	if len(links) != 1 || links[0].To != key {
		t.Fatalf("holder links after drop = %+v, want the key link intact", links)
	}
}

func TestGlobalEffectsBubble(t *testing.T) {
	core, _, _, _ := testCore()

	core.queue.Push(effect.Effect{Kind: effect.KindTransitionLevel, Mission: "miss2"})
	globals := core.Tick(0.016, Input{})

	if len(globals) != 1 || globals[0].Kind != effect.KindTransitionLevel || globals[0].Mission != "miss2" {
		t.Fatalf("globals = %+v", globals)
	}
}

func TestParticleSystemFollowsEntity(t *testing.T) {
	core, store, world, _ := testCore()

	id := store.Spawn()
	store.Positions[id] = &entity.Position{Rotation: math.QuatIdentity()}
	store.Scales[id] = math.Vec3{X: 1, Y: 1, Z: 1}
	world.AddBody(id, physics.Kinematic, math.Vec3{X: 2}, math.QuatIdentity(), 0.5)

	ps := &ParticleSystem{Particles: []Particle{{Velocity: math.Vec3{Y: 1}, Life: 10}}}
	core.AttachParticles(id, ps)

	core.Tick(0.5, Input{})

	if absDiff(ps.Transform.Translation().X, 2) > 1e-5 {
		t.Fatalf("particle transform did not follow entity: %+v", ps.Transform.Translation())
	}
	if absDiff(ps.Particles[0].Position.Y, 0.5) > 1e-5 {
		t.Fatalf("particle position = %+v", ps.Particles[0].Position)
	}
}

func mustTemplate(t *testing.T, cache *assets.Cache, name string) *assets.Template {
	t.Helper()
	tpl, ok := cache.Template(name)
	if !ok {
		t.Fatalf("template %q not registered", name)
	}
	return tpl
}
