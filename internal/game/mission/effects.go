package mission

import (
	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/assets"
	"github.com/voidworks/darkvr/internal/engine/anim"
	"github.com/voidworks/darkvr/internal/game/ai"
	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/game/physics"
	"github.com/voidworks/darkvr/internal/logger"
	"github.com/voidworks/darkvr/pkg/math"
)

// maxEffectPasses bounds cascading effects within one tick. Scripts
// that ping-pong forever are cut off rather than hanging the frame.
const maxEffectPasses = 8

// drainEffects applies queued effects until the queue settles, and
// returns the global ones for the host.
func (c *Core) drainEffects(ctx *ai.Context) []effect.Effect {
	var globals []effect.Effect
	for pass := 0; pass < maxEffectPasses && c.queue.Len() > 0; pass++ {
		for _, e := range c.queue.Drain() {
			if e.Global() {
				globals = append(globals, e)
				continue
			}
			c.applyEffect(ctx, e)
		}
	}
	if c.queue.Len() > 0 {
		logger.Warn("effect queue did not settle", zap.Int("pending", c.queue.Len()))
	}
	return globals
}

func (c *Core) applyEffect(ctx *ai.Context, e effect.Effect) {
	switch e.Kind {
	case effect.KindCreateEntity:
		tpl, ok := c.cache.TemplateByID(e.Template)
		if !ok {
			logger.Warn("create: unknown template", zap.Int32("template", int32(e.Template)))
			return
		}
		c.createFromTemplate(tpl, e)

	case effect.KindCreateEntityByTemplateName:
		tpl, ok := c.cache.Template(e.TemplateName)
		if !ok {
			logger.Warn("create: unknown template", zap.String("template", e.TemplateName))
			return
		}
		c.createFromTemplate(tpl, e)

	case effect.KindSlayEntity:
		c.slayEntity(ctx, e.Entity)

	case effect.KindDestroyEntity:
		c.DestroyEntity(e.Entity)

	case effect.KindReplaceEntity:
		c.replaceEntity(e)

	case effect.KindChangeModel:
		c.changeModel(e.Entity, e.ModelName)

	case effect.KindSetPosition:
		c.setPose(e.Entity, &e.Position, nil)

	case effect.KindSetRotation:
		c.setPose(e.Entity, nil, &e.Rotation)

	case effect.KindSetPositionRotation:
		c.setPose(e.Entity, &e.Position, &e.Rotation)

	case effect.KindQueueAnimationBySchema:
		c.queueAnimationBySchema(ctx, e)

	case effect.KindSetJointTransform:
		if p, ok := c.animPlayers[e.Entity]; ok {
			c.animPlayers[e.Entity] = p.SetAdditionalJointTransform(e.Joint, e.Local)
		}

	case effect.KindPlaySound:
		if c.audio != nil {
			if err := c.audio.PlaySample(e.SoundName, c.distanceToPlayer(e.Entity)); err != nil {
				logger.Warn("sound failed", zap.String("name", e.SoundName), zap.Error(err))
			}
		}

	case effect.KindPlayEnvironmentalSound:
		if c.audio != nil {
			if err := c.audio.PlaySample(e.SoundName, 0); err != nil {
				logger.Warn("ambient failed", zap.String("name", e.SoundName), zap.Error(err))
			}
		}

	case effect.KindPlaySpeech:
		if c.audio != nil {
			voice := c.store.VoiceIndexes[e.Entity]
			if err := c.audio.PlaySpeech(voice, e.Concept, e.Tags, c.distanceToPlayer(e.Entity)); err != nil {
				logger.Warn("speech failed", zap.String("concept", e.Concept), zap.Error(err))
			}
		}

	case effect.KindGrabEntity:
		c.grabEntity(e.Holder, e.Entity)

	case effect.KindDropEntity:
		c.dropEntity(e.Holder, e.Entity)

	case effect.KindSendMessage:
		c.deliverMessage(ctx, e.Entity, e.Message)

	case effect.KindTriggerEntityByName:
		c.TriggerEntityByName(e.TargetName)

	case effect.KindDebugMarker:
		if c.debugDraw {
			logger.Debug("marker",
				zap.String("text", e.DebugText),
				zap.Uint32("entity", uint32(e.Entity)),
				zap.Float32s("color", e.DebugColor[:]))
		}
	}
}

// createFromTemplate spawns a template at the effect's pose. Fast
// projectiles bypass the physics broadphase entirely.
func (c *Core) createFromTemplate(tpl *assets.Template, e effect.Effect) entity.ID {
	rot := e.Rotation
	if rot == (math.Quat{}) {
		rot = math.QuatIdentity()
	}
	id := c.SpawnFromTemplate(tpl, e.Position, rot)

	vel := e.Velocity
	if vel == (math.Vec3{}) {
		vel = rot.RotateVec3(tpl.InitialVelocity)
	}

	if vel.Length() > fastProjectileThreshold {
		c.fastProjectiles[id] = vel
		return id
	}
	if tpl.Radius > 0 {
		c.phys.AddBody(id, physics.Dynamic, e.Position, rot, tpl.Radius)
		if vel != (math.Vec3{}) {
			c.phys.SetLinearVelocity(id, vel.Scale(spawnVelocityScale))
		}
	}
	return id
}

// slayEntity plays out a death: the monster's terminal behavior, the
// flinderize debris and corpse linked on the archetype, then teardown.
func (c *Core) slayEntity(ctx *ai.Context, id entity.ID) {
	if m, ok := c.monsters[id]; ok {
		for _, e := range m.Slay(ctx, id) {
			c.queue.Push(e)
		}
	}
	pos, ok := c.store.Positions[id]
	if !ok {
		c.DestroyEntity(id)
		return
	}
	for _, kind := range []entity.LinkKind{entity.LinkFlinderize, entity.LinkCorpse} {
		for _, link := range c.store.LinksFrom(id, kind) {
			tplID, ok := c.store.Templates[link.To]
			if !ok {
				continue
			}
			tpl, ok := c.cache.TemplateByID(tplID)
			if !ok {
				continue
			}
			c.queue.Push(effect.Effect{
				Kind:         effect.KindCreateEntityByTemplateName,
				TemplateName: tpl.Name,
				Position:     pos.Position,
				Rotation:     pos.Rotation,
			})
		}
	}
	c.DestroyEntity(id)
}

// replaceEntity swaps an entity for a fresh template instance at the
// same pose, carrying any held-item relationship across.
func (c *Core) replaceEntity(e effect.Effect) {
	tpl, ok := c.cache.Template(e.TemplateName)
	if !ok {
		logger.Warn("replace: unknown template", zap.String("template", e.TemplateName))
		return
	}
	pos, ok := c.store.Positions[e.Entity]
	if !ok {
		return
	}
	id := c.createFromTemplate(tpl, effect.Effect{
		Position: pos.Position,
		Rotation: pos.Rotation,
	})
	for holder, item := range c.held {
		if item == e.Entity {
			c.held[holder] = id
		}
	}
	c.DestroyEntity(e.Entity)
}

// changeModel swaps the render model. A missing skeleton is logged but
// does not abort: the name still changes so a later asset load can pick
// it up.
func (c *Core) changeModel(id entity.ID, model string) {
	c.store.ModelNames[id] = model
	skel, err := c.cache.Skeleton(model)
	if err != nil {
		logger.Warn("model swap without skeleton", zap.String("model", model), zap.Error(err))
		delete(c.models, id)
		return
	}
	c.models[id] = skel
	if _, ok := c.animPlayers[id]; !ok {
		c.animPlayers[id] = anim.NewPlayer()
	}
}

func (c *Core) setPose(id entity.ID, pos *math.Vec3, rot *math.Quat) {
	row, ok := c.store.Positions[id]
	if !ok {
		return
	}
	if pos != nil {
		row.Position = *pos
	}
	if rot != nil {
		row.Rotation = *rot
	}
	if c.phys.HasBody(id) {
		c.phys.SetTransform(id, row.Position, row.Rotation)
	}
}

// queueAnimationBySchema resolves a motion query and queues the clip.
// A resolve or load miss is survivable: the monster is told its
// animation finished so behavior selection keeps moving.
func (c *Core) queueAnimationBySchema(ctx *ai.Context, e effect.Effect) {
	if c.motions == nil {
		c.synthCompletion(ctx, e.Entity)
		return
	}
	clipName, err := c.motions.Resolve(e.Query)
	if err != nil {
		logger.Warn("no motion for query", zap.String("actor", e.Query.ActorType), zap.Error(err))
		c.synthCompletion(ctx, e.Entity)
		return
	}
	clip, err := c.cache.Clip(clipName)
	if err != nil {
		logger.Warn("motion clip missing", zap.String("clip", clipName), zap.Error(err))
		c.synthCompletion(ctx, e.Entity)
		return
	}
	p, ok := c.animPlayers[e.Entity]
	if !ok {
		c.synthCompletion(ctx, e.Entity)
		return
	}
	c.animPlayers[e.Entity] = p.QueueAnimation(clip)
}

func (c *Core) synthCompletion(ctx *ai.Context, id entity.ID) {
	if m, ok := c.monsters[id]; ok {
		for _, e := range m.OnAnimationCompleted(ctx, id) {
			c.queue.Push(e)
		}
	}
}

// grabEntity attaches an item to a holder: the item leaves the physics
// world and follows the holder until dropped.
func (c *Core) grabEntity(holder, item entity.ID) {
	if !c.store.Alive(item) {
		return
	}
	// Whoever contained the item before loses it: a container shelf,
	// a monster, a previous holder.
	c.store.RemoveLinksTo(item, entity.LinkContains)
	for h, held := range c.held {
		if held == item {
			delete(c.held, h)
		}
	}
	c.held[holder] = item
	c.store.AddLink(entity.Link{Kind: entity.LinkContains, From: holder, To: item})
	c.store.HasRefs[item] = true
	c.phys.RemoveBody(item)
}

func (c *Core) dropEntity(holder, item entity.ID) {
	if c.held[holder] != item {
		return
	}
	delete(c.held, holder)
	c.store.RemoveLink(holder, item, entity.LinkContains)
	delete(c.store.HasRefs, item)

	pos, ok := c.store.Positions[holder]
	if !ok {
		return
	}
	if row, ok := c.store.Positions[item]; ok {
		row.Position = pos.Position
		row.Rotation = pos.Rotation
	}
	radius := float32(0.2)
	if tplID, ok := c.store.Templates[item]; ok {
		if tpl, ok := c.cache.TemplateByID(tplID); ok && tpl.Radius > 0 {
			radius = tpl.Radius
		}
	}
	c.phys.AddBody(item, physics.Dynamic, pos.Position, pos.Rotation, radius)
}

func (c *Core) distanceToPlayer(id entity.ID) float32 {
	p, ok := c.store.Positions[c.player]
	if !ok {
		return 0
	}
	e, ok := c.store.Positions[id]
	if !ok {
		return 0
	}
	return e.Position.Sub(p.Position).Length()
}
