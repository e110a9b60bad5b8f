// Package mission drives the simulation: per-tick reconciliation of
// the entity store, the physics world, the animation players, and the
// AI layer, plus effect-queue processing.
package mission

import (
	"sort"

	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/assets"
	"github.com/voidworks/darkvr/internal/engine/anim"
	"github.com/voidworks/darkvr/internal/engine/motiondb"
	"github.com/voidworks/darkvr/internal/engine/skeleton"
	"github.com/voidworks/darkvr/internal/game/ai"
	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/game/physics"
	"github.com/voidworks/darkvr/internal/game/world"
	"github.com/voidworks/darkvr/internal/logger"
	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
	"github.com/voidworks/darkvr/pkg/units"
)

const (
	// playerRotSpeed is the yaw rate per unit of thumbstick
	// deflection, in degrees per second.
	playerRotSpeed = 90

	// fastProjectileThreshold: templates spawned faster than this (in
	// world units per second) skip physics registration and fly on a
	// per-tick ray cast instead.
	fastProjectileThreshold = 80

	// spawnVelocityScale converts a template's engine-unit initial
	// velocity into the world frame.
	spawnVelocityScale = 1 / units.ScaleFactor * 1.5
)

// Audio is the playback collaborator.
type Audio interface {
	PlaySample(name string, distance float32) error
	PlaySpeech(voiceIndex int, concept string, tags []string, distance float32) error
}

// Input is one tick of player input.
type Input struct {
	YawAxis float32
	Move    math.Vec2
}

// Core owns the per-entity runtime state the component store does not:
// animation players, models, particle systems, AI drivers, hit-boxes.
type Core struct {
	store   *entity.Store
	phys    physics.World
	nav     *world.PathDatabase
	motions *motiondb.Database
	cache   *assets.Cache
	audio   Audio
	queue   *effect.Queue

	player    entity.ID
	leftHand  entity.ID
	rightHand entity.ID
	debugDraw bool

	monsters        map[entity.ID]*ai.Monster
	cameras         map[entity.ID]*ai.Camera
	animPlayers     map[entity.ID]anim.Player
	models          map[entity.ID]*skeleton.Skeleton
	particles       map[entity.ID]*ParticleSystem
	hitboxes        map[entity.ID]map[uint16]entity.ID
	fastProjectiles map[entity.ID]math.Vec3
	held            map[entity.ID]entity.ID

	pendingTriggers []string
	scriptsRan      bool
	time            float32
}

// New builds an empty mission around its collaborators. nav, motions,
// and audio may be nil; the corresponding features degrade to no-ops.
func New(store *entity.Store, phys physics.World, nav *world.PathDatabase, motions *motiondb.Database, cache *assets.Cache, audio Audio) *Core {
	return &Core{
		store:           store,
		phys:            phys,
		nav:             nav,
		motions:         motions,
		cache:           cache,
		audio:           audio,
		queue:           &effect.Queue{},
		monsters:        make(map[entity.ID]*ai.Monster),
		cameras:         make(map[entity.ID]*ai.Camera),
		animPlayers:     make(map[entity.ID]anim.Player),
		models:          make(map[entity.ID]*skeleton.Skeleton),
		particles:       make(map[entity.ID]*ParticleSystem),
		hitboxes:        make(map[entity.ID]map[uint16]entity.ID),
		fastProjectiles: make(map[entity.ID]math.Vec3),
		held:            make(map[entity.ID]entity.ID),
	}
}

// SetDebugDraw toggles debug marker logging.
func (c *Core) SetDebugDraw(on bool) { c.debugDraw = on }

// Store exposes the component store for level setup and observers.
func (c *Core) Store() *entity.Store { return c.store }

// Queue exposes the effect queue to scripts and host code.
func (c *Core) Queue() *effect.Queue { return c.queue }

// Player returns the player entity.
func (c *Core) Player() entity.ID { return c.player }

// Time returns the accumulated simulation time in seconds.
func (c *Core) Time() float32 { return c.time }

// HeldItemNames lists the names of all currently held items.
func (c *Core) HeldItemNames() []string {
	var names []string
	for _, item := range c.held {
		if name, ok := c.store.Names[item]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Carry slots an item can ride in across a level transition.
const (
	SlotLeftHand  = "left_hand"
	SlotRightHand = "right_hand"
	SlotInventory = "inventory"
)

// HeldCarry describes one item the player keeps through a level
// transition or save: which slot it rides in and enough identity to
// respawn it from its template.
type HeldCarry struct {
	Slot     string
	Name     string
	Template entity.TemplateID
}

// HeldForTransfer snapshots everything the player carries: the item in
// each hand plus inventory items linked from the player.
func (c *Core) HeldForTransfer() []HeldCarry {
	var out []HeldCarry
	appendSlot := func(slot string, item entity.ID) {
		if !c.store.Alive(item) {
			return
		}
		out = append(out, HeldCarry{
			Slot:     slot,
			Name:     c.store.Names[item],
			Template: c.store.Templates[item],
		})
	}

	if item, ok := c.held[c.leftHand]; ok {
		appendSlot(SlotLeftHand, item)
	}
	if item, ok := c.held[c.rightHand]; ok {
		appendSlot(SlotRightHand, item)
	}
	for _, l := range c.store.LinksFrom(c.player, entity.LinkContains) {
		appendSlot(SlotInventory, l.To)
	}
	return out
}

// InjectHeld respawns carried items into a fresh mission: hand items
// are re-grabbed by the matching hand anchor, inventory items reattach
// to the player. Items whose template is gone are dropped with a
// warning.
func (c *Core) InjectHeld(items []HeldCarry) {
	pos := math.Vec3{}
	rot := math.QuatIdentity()
	if row, ok := c.store.Positions[c.player]; ok {
		pos = row.Position
		rot = row.Rotation
	}

	for _, carry := range items {
		tpl, ok := c.cache.TemplateByID(carry.Template)
		if !ok {
			tpl, ok = c.cache.Template(carry.Name)
		}
		if !ok {
			logger.Warn("carried item lost in transition",
				zap.String("item", carry.Name),
				zap.Int32("template", int32(carry.Template)))
			continue
		}
		id := c.SpawnFromTemplate(tpl, pos, rot)

		switch carry.Slot {
		case SlotLeftHand:
			c.grabEntity(c.leftHand, id)
		case SlotRightHand:
			c.grabEntity(c.rightHand, id)
		default:
			c.store.AddLink(entity.Link{Kind: entity.LinkContains, From: c.player, To: id})
			c.store.HasRefs[id] = true
		}
	}
}

// AnimationPlayer returns an entity's animation player snapshot.
func (c *Core) AnimationPlayer(id entity.ID) (anim.Player, bool) {
	p, ok := c.animPlayers[id]
	return p, ok
}

// SpawnPlayer creates the player entity with a kinematic body, plus the
// two hand anchors items attach to when grabbed.
func (c *Core) SpawnPlayer(pos math.Vec3) entity.ID {
	id := c.store.Spawn()
	c.store.Names[id] = "player"
	c.store.Positions[id] = &entity.Position{Position: pos, Rotation: math.QuatIdentity()}
	c.phys.AddBody(id, physics.Kinematic, pos, math.QuatIdentity(), 0.5)
	c.player = id

	c.leftHand = c.spawnHand("player_lhand", pos)
	c.rightHand = c.spawnHand("player_rhand", pos)
	return id
}

func (c *Core) spawnHand(name string, pos math.Vec3) entity.ID {
	id := c.store.Spawn()
	c.store.Names[id] = name
	c.store.Positions[id] = &entity.Position{Position: pos, Rotation: math.QuatIdentity()}
	return id
}

// LeftHand returns the player's left hand anchor entity.
func (c *Core) LeftHand() entity.ID { return c.leftHand }

// RightHand returns the player's right hand anchor entity.
func (c *Core) RightHand() entity.ID { return c.rightHand }

// SpawnFromTemplate instantiates a template at a pose and wires the
// runtime state its creature class needs.
func (c *Core) SpawnFromTemplate(tpl *assets.Template, pos math.Vec3, rot math.Quat) entity.ID {
	id := c.store.Spawn()
	c.store.Names[id] = tpl.Name
	c.store.Positions[id] = &entity.Position{Position: pos, Rotation: rot}
	c.store.Templates[id] = tpl.ID
	c.store.Creatures[id] = tpl.Creature
	c.store.Scales[id] = math.Vec3{X: 1, Y: 1, Z: 1}
	if tpl.ModelName != "" {
		c.store.ModelNames[id] = tpl.ModelName
		if skel, err := c.cache.Skeleton(tpl.ModelName); err == nil {
			c.models[id] = skel
			c.animPlayers[id] = anim.NewPlayer()
		}
	}
	if tpl.HitPoints > 0 {
		c.store.HitPoints[id] = &entity.HitPoints{Current: tpl.HitPoints, Max: tpl.HitPoints}
	}
	if len(tpl.Scripts) > 0 {
		c.store.Scripts[id] = tpl.Scripts
	}
	if len(tpl.MotionActorTags) > 0 {
		c.store.MotionActorTags[id] = tpl.MotionActorTags
	}
	c.store.VoiceIndexes[id] = tpl.VoiceIndex

	switch tpl.Creature {
	case entity.CreatureHumanoid, entity.CreatureSpider, entity.CreatureOverlord:
		c.store.Alertness[id] = &entity.AIAlertness{}
		c.monsters[id] = ai.NewMonster(0)
	case entity.CreatureCamera, entity.CreatureTurret:
		c.store.Alertness[id] = &entity.AIAlertness{}
		c.cameras[id] = ai.NewCamera(tpl.ModelName, 0)
	}
	return id
}

// AttachHitBoxes registers per-joint sensor bodies for a creature.
// They follow the joints during phase 6 of the tick.
func (c *Core) AttachHitBoxes(id entity.ID, joints []uint16, radius float32) {
	boxes := c.hitboxes[id]
	if boxes == nil {
		boxes = make(map[uint16]entity.ID)
		c.hitboxes[id] = boxes
	}
	for _, j := range joints {
		box := c.store.Spawn()
		c.phys.AddBody(box, physics.Sensor, math.Vec3{}, math.QuatIdentity(), radius)
		boxes[j] = box
	}
}

// AttachParticles registers a particle system for an entity.
func (c *Core) AttachParticles(id entity.ID, ps *ParticleSystem) {
	c.particles[id] = ps
}

// TriggerEntityByName queues a named trigger; it is resolved through
// switch links after scripts have run at least once.
func (c *Core) TriggerEntityByName(name string) {
	c.pendingTriggers = append(c.pendingTriggers, name)
}

// Tick advances the simulation by dt seconds. It returns the global
// effects (level transition, save) that must be handled by the host.
func (c *Core) Tick(dt float32, input Input) []effect.Effect {
	c.time += dt
	ctx := &ai.Context{
		Store:   c.store,
		Physics: c.phys,
		Nav:     c.nav,
		Player:  c.player,
		Time:    c.time,
	}

	// 1. Input integration.
	c.applyInput(dt, input)

	// 2. Physics step.
	collisions := c.phys.Step(dt)

	// 3. Collision dispatch.
	c.dispatchCollisions(ctx, collisions)

	// 4. Teleport timers.
	for id, tp := range c.store.Teleported {
		tp.CountdownTimer--
		if tp.CountdownTimer <= 0 {
			delete(c.store.Teleported, id)
		}
	}

	// 5. Animation update.
	c.updateAnimations(ctx, dt)

	// 6. Hit-box bookkeeping.
	c.updateHitBoxes()

	// 7. Physics -> component sync.
	c.syncPhysics()

	// 8. Scripts and behaviors.
	for _, id := range sortedKeysMonster(c.monsters) {
		for _, e := range c.monsters[id].Tick(ctx, id, dt) {
			c.queue.Push(e)
		}
	}
	for _, id := range sortedKeysCamera(c.cameras) {
		for _, e := range c.cameras[id].Tick(ctx, id, dt) {
			c.queue.Push(e)
		}
	}
	c.stepFastProjectiles(dt)
	c.scriptsRan = true

	// 9. Pending triggers.
	if c.scriptsRan && len(c.pendingTriggers) > 0 {
		for _, name := range c.pendingTriggers {
			c.resolveTrigger(name)
		}
		c.pendingTriggers = nil
	}

	// 10. Particle systems.
	for id, ps := range c.particles {
		if t, ok := c.store.Transforms[id]; ok {
			ps.Transform = t
		}
		ps.Update(dt)
	}

	// 11. Effect drain.
	return c.drainEffects(ctx)
}

func (c *Core) applyInput(dt float32, input Input) {
	if c.player == entity.None {
		return
	}
	pos, ok := c.store.Positions[c.player]
	if !ok {
		return
	}

	yaw := math.QuatFromAxisAngle(math.Vec3{Y: 1}, math.Deg2Rad(input.YawAxis*dt*playerRotSpeed))
	pos.Rotation = pos.Rotation.Mul(yaw).Normalize()
	c.phys.SetTransform(c.player, pos.Position, pos.Rotation)

	// Movement composed in the player-head frame, scaled into engine
	// units.
	move := pos.Rotation.RotateVec3(math.Vec3{X: input.Move.X, Z: input.Move.Y})
	vel := move.Scale(1 / units.ScaleFactor)
	cur, _ := c.phys.LinearVelocity(c.player)
	vel.Y = cur.Y
	c.phys.SetLinearVelocity(c.player, vel)
}

func (c *Core) dispatchCollisions(ctx *ai.Context, events []physics.CollisionEvent) {
	for _, ev := range events {
		var msg string
		switch ev.Kind {
		case physics.SensorBeginIntersect:
			msg = "SensorBeginIntersect"
		case physics.SensorEndIntersect:
			msg = "SensorEndIntersect"
		default:
			msg = "Collided"
		}
		c.deliverMessage(ctx, ev.A, msg)
		c.deliverMessage(ctx, ev.B, msg)
	}
}

func (c *Core) deliverMessage(ctx *ai.Context, id entity.ID, msg string) {
	if m, ok := c.monsters[id]; ok {
		m.OnMessage(ctx, id, msg)
	}
	// Messages to entities without script state drop silently.
}

func (c *Core) updateAnimations(ctx *ai.Context, dt float32) {
	for _, id := range sortedKeysPlayer(c.animPlayers) {
		p := c.animPlayers[id]
		p, flags, events, slidingVel := p.Update(dt)
		c.animPlayers[id] = p

		if model, ok := c.models[id]; ok {
			transforms := p.GetTransforms(model)
			row := c.store.JointTransforms[id]
			if row == nil {
				row = new([skeleton.MaxJoints]math.Mat4)
				c.store.JointTransforms[id] = row
			}
			*row = transforms
		}

		if _, playing := p.CurrentClip(); playing && c.phys.HasBody(id) {
			c.applySlidingVelocity(id, slidingVel)
		}

		if flags != 0 {
			c.dispatchMotionFlags(ctx, id, flags)
		}
		for _, ev := range events {
			if ev.Kind != anim.EventCompleted {
				continue
			}
			if m, ok := c.monsters[id]; ok {
				for _, e := range m.OnAnimationCompleted(ctx, id) {
					c.queue.Push(e)
				}
			}
		}
	}
}

// applySlidingVelocity rotates the clip's sliding velocity into the
// entity frame and maps it onto the physics axes. The (v.z, y, -v.x)
// swap reconciles the animation data's coordinate system with the
// world frame and must not be reordered.
func (c *Core) applySlidingVelocity(id entity.ID, v math.Vec3) {
	pos, ok := c.store.Positions[id]
	if !ok {
		return
	}
	rotated := pos.Rotation.RotateVec3(v)
	cur, _ := c.phys.LinearVelocity(id)
	c.phys.SetLinearVelocity(id, math.Vec3{
		X: rotated.Z,
		Y: cur.Y,
		Z: -rotated.X,
	})
}

func (c *Core) dispatchMotionFlags(ctx *ai.Context, id entity.ID, flags formats.MotionFlags) {
	if flags&formats.MotionFlagFire != 0 {
		c.fireProjectile(id)
	}
	if flags&(formats.MotionFlagFootstepLeft|formats.MotionFlagFootstepRight) != 0 {
		c.queue.Push(effect.Effect{
			Kind:      effect.KindPlaySound,
			Entity:    id,
			SoundName: "footstep",
		})
	}
	c.deliverMessage(ctx, id, "AnimationFlagTriggered")
}

// fireProjectile spawns the entity's AI projectile toward its facing.
func (c *Core) fireProjectile(id entity.ID) {
	links := c.store.LinksFrom(id, entity.LinkAIProjectile)
	if len(links) == 0 {
		return
	}
	pos, ok := c.store.Positions[id]
	if !ok {
		return
	}
	tplID, ok := c.store.Templates[links[0].To]
	if !ok {
		return
	}
	tpl, ok := c.cache.TemplateByID(tplID)
	if !ok {
		return
	}
	c.queue.Push(effect.Effect{
		Kind:         effect.KindCreateEntityByTemplateName,
		TemplateName: tpl.Name,
		Position:     pos.Position,
		Rotation:     pos.Rotation,
		Velocity:     pos.Rotation.RotateVec3(tpl.InitialVelocity),
	})
}

func (c *Core) updateHitBoxes() {
	for id, boxes := range c.hitboxes {
		joints := c.store.JointTransforms[id]
		base, ok := c.store.Transforms[id]
		if joints == nil || !ok {
			continue
		}
		for joint, box := range boxes {
			if int(joint) >= len(joints) {
				continue
			}
			jointWorld := base.Mul(joints[joint])
			c.phys.SetTransform(box, jointWorld.Translation(), math.QuatFromMat3x3(jointWorld.Mat3x3()))
		}
	}
}

// syncPhysics writes authoritative physics transforms back into the
// component store. Scale is always absolute-valued in the runtime
// transform.
func (c *Core) syncPhysics() {
	for _, id := range sortedKeysPosition(c.store.Positions) {
		if !c.phys.HasBody(id) {
			continue
		}
		// Freshly teleported entities hold their store transform until
		// the countdown runs out.
		if _, tp := c.store.Teleported[id]; tp {
			continue
		}
		pos, rot, ok := c.phys.Transform(id)
		if !ok {
			continue
		}
		row := c.store.Positions[id]
		row.Position = pos
		row.Rotation = rot

		scale := math.Vec3{X: 1, Y: 1, Z: 1}
		if s, ok := c.store.Scales[id]; ok {
			scale = s.Abs()
		}
		c.store.Transforms[id] = math.TranslateVec3(pos).
			Mul(rot.ToMat4()).
			Mul(math.Scale(scale.X, scale.Y, scale.Z))
	}
}

// stepFastProjectiles advances raycast-driven projectiles: they never
// touch the physics broadphase, only a per-tick ray.
func (c *Core) stepFastProjectiles(dt float32) {
	for _, id := range sortedKeysVec(c.fastProjectiles) {
		vel := c.fastProjectiles[id]
		row, ok := c.store.Positions[id]
		if !ok {
			delete(c.fastProjectiles, id)
			continue
		}
		stepLen := vel.Length() * dt
		if stepLen <= 0 {
			continue
		}
		if hit, blocked := c.phys.RayCast(row.Position, vel, stepLen, id); blocked {
			c.queue.Push(effect.Effect{Kind: effect.KindSendMessage, Entity: hit.Entity, Message: "Collided"})
			c.queue.Push(effect.Effect{Kind: effect.KindDestroyEntity, Entity: id})
			continue
		}
		row.Position = row.Position.Add(vel.Scale(dt))
	}
}

func (c *Core) resolveTrigger(name string) {
	id, ok := c.store.FindByName(name)
	if !ok {
		logger.Warn("trigger target missing", zap.String("name", name))
		return
	}
	for _, link := range c.store.LinksFrom(id, entity.LinkSwitch) {
		c.queue.Push(effect.Effect{
			Kind:    effect.KindSendMessage,
			Entity:  link.To,
			Message: "TurnOn",
		})
	}
}

// DestroyEntity tears an entity down. Safe to call twice; the steps
// run in a fixed order so partially-built entities unwind cleanly.
func (c *Core) DestroyEntity(id entity.ID) {
	// 1. Hit-box bodies.
	for _, box := range c.hitboxes[id] {
		c.phys.RemoveBody(box)
		c.store.Remove(box)
	}
	delete(c.hitboxes, id)
	// 2. Script state.
	delete(c.monsters, id)
	delete(c.cameras, id)
	// 3. Bitmap-animation handle.
	delete(c.particles, id)
	// 4. Model handle.
	delete(c.models, id)
	delete(c.animPlayers, id)
	// 5. Physics body.
	c.phys.RemoveBody(id)
	delete(c.fastProjectiles, id)
	delete(c.held, id)
	// 6. Component row.
	c.store.Remove(id)
}

func sortedKeysMonster(m map[entity.ID]*ai.Monster) []entity.ID {
	out := make([]entity.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysCamera(m map[entity.ID]*ai.Camera) []entity.ID {
	out := make([]entity.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysPlayer(m map[entity.ID]anim.Player) []entity.ID {
	out := make([]entity.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysPosition(m map[entity.ID]*entity.Position) []entity.ID {
	out := make([]entity.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysVec(m map[entity.ID]math.Vec3) []entity.ID {
	out := make([]entity.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
