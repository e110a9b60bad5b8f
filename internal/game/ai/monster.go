package ai

import (
	stdmath "math"

	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/engine/motiondb"
	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/logger"
	"github.com/voidworks/darkvr/pkg/math"
)

const (
	// monsterFOV is the horizontal field of view for visibility, in
	// degrees.
	monsterFOV = 170

	// tickleRange is how far the forward-and-down sensor probe
	// reaches, in world units.
	tickleRange = 8
)

// Monster drives one AI entity: visibility, alertness, behavior
// switching, steering, and the tickle sensor probe.
type Monster struct {
	behavior       Behavior
	alert          State
	heading        float32
	watchTriggered map[entity.ID]bool
	tickleHit      entity.ID
}

// NewMonster starts an entity at the lowest alertness, idling.
func NewMonster(initialHeading float32) *Monster {
	return &Monster{
		behavior:       Idle{},
		heading:        initialHeading,
		watchTriggered: make(map[entity.ID]bool),
	}
}

// Behavior returns the active behavior.
func (m *Monster) Behavior() Behavior { return m.behavior }

// Heading returns the current yaw in degrees.
func (m *Monster) Heading() float32 { return m.heading }

// Alertness returns the alertness state.
func (m *Monster) Alertness() State { return m.alert }

// Slay switches the monster to its terminal behavior.
func (m *Monster) Slay(ctx *Context, self entity.ID) []effect.Effect {
	m.behavior = Dead{}
	return []effect.Effect{m.animationEffect(ctx, self)}
}

// Tick runs the per-frame AI loop and returns the effects to queue.
func (m *Monster) Tick(ctx *Context, self entity.ID, dt float32) []effect.Effect {
	if _, dead := m.behavior.(Dead); dead {
		return nil
	}

	var effects []effect.Effect

	visible := m.playerVisible(ctx, self)

	cap := alertCapFor(ctx.Store, self)
	timings := TimingsFromAwareDelay(awareDelayFor(ctx.Store, self))
	if tr, changed := ProcessAlertnessUpdate(&m.alert, visible, dt, timings, cap); changed {
		logger.Debug("alertness changed",
			zap.Uint32("entity", uint32(self)),
			zap.String("from", tr.Old.String()),
			zap.String("to", tr.New.String()))
		// A running scripted sequence keeps control until it ends.
		if _, scripted := m.behavior.(*ScriptedSequence); !scripted {
			m.behavior = m.behaviorForLevel(ctx, self, tr.New)
			effects = append(effects, m.animationEffect(ctx, self))
		}
	}
	if row, ok := ctx.Store.Alertness[self]; ok {
		row.Current = m.alert.Current
		row.Peak = m.alert.Peak
	}

	if e, triggered := m.checkWatchObjects(ctx, self); triggered {
		effects = append(effects, e...)
	}

	if steer, sideEffects, ok := m.behavior.Steer(ctx, self, m.heading); ok {
		effects = append(effects, sideEffects...)
		m.turnToward(steer.Heading, dt)
		effects = append(effects, effect.Effect{
			Kind:     effect.KindSetRotation,
			Entity:   self,
			Rotation: math.QuatFromAxisAngle(math.Vec3{Y: 1}, math.Deg2Rad(m.heading)),
		})
	}

	effects = append(effects, m.tickleProbe(ctx, self)...)

	effects = append(effects, effect.Effect{
		Kind:       effect.KindDebugMarker,
		Entity:     self,
		DebugText:  "alertness " + m.alert.Current.String(),
		DebugColor: alertColor(m.alert.Current),
	})

	return effects
}

// OnAnimationCompleted reacts to the active clip finishing: the
// behavior is consulted, possibly replaced, and its animation query is
// re-emitted.
func (m *Monster) OnAnimationCompleted(ctx *Context, self entity.ID) []effect.Effect {
	if _, dead := m.behavior.(Dead); dead {
		return nil
	}
	next := m.behavior.NextBehavior(ctx, self)
	switch next.Kind {
	case Switch:
		m.behavior = next.Behavior
	case NoOpinion:
		m.behavior = m.behaviorForLevel(ctx, self, m.alert.Current)
	}
	return []effect.Effect{m.animationEffect(ctx, self)}
}

// OnMessage forwards a script message to the behavior.
func (m *Monster) OnMessage(ctx *Context, self entity.ID, msg string) {
	m.behavior.HandleMessage(ctx, self, msg)
}

func (m *Monster) playerVisible(ctx *Context, self entity.ID) bool {
	selfPos, ok := entityPosition(ctx, self)
	if !ok {
		return false
	}
	playerPos, ok := entityPosition(ctx, ctx.Player)
	if !ok {
		return false
	}

	to := playerPos.Sub(selfPos)
	dist := to.Length()
	if dist <= 0 {
		return true
	}
	dir := to.Scale(1 / dist)

	forward := headingVector(m.heading)
	cosHalf := float32(stdmath.Cos(float64(math.Deg2Rad(monsterFOV / 2))))
	flat := math.Vec3{X: dir.X, Z: dir.Z}.Normalize()
	if forward.Dot(flat) < cosHalf {
		return false
	}

	hit, blocked := ctx.Physics.RayCast(selfPos, dir, dist, self)
	if !blocked {
		return true
	}
	return hit.Entity == ctx.Player
}

func (m *Monster) behaviorForLevel(ctx *Context, self entity.ID, level entity.AlertLevel) Behavior {
	switch level {
	case entity.AlertLowest:
		return Idle{}
	case entity.AlertLow:
		return &Wander{}
	case entity.AlertModerate:
		return &Chase{}
	default:
		if len(ctx.Store.LinksFrom(self, entity.LinkAIRangedWeapon)) > 0 {
			return &RangedAttack{}
		}
		return &MeleeAttack{}
	}
}

// checkWatchObjects switches to a scripted sequence the first time the
// player comes within a watch link's radius.
func (m *Monster) checkWatchObjects(ctx *Context, self entity.ID) ([]effect.Effect, bool) {
	playerPos, ok := entityPosition(ctx, ctx.Player)
	if !ok {
		return nil, false
	}
	for _, link := range ctx.Store.LinksFrom(self, entity.LinkAIWatchObj) {
		if m.watchTriggered[link.To] {
			continue
		}
		watchPos, ok := entityPosition(ctx, link.To)
		if !ok {
			continue
		}
		if playerPos.Distance(watchPos) > link.Radius {
			continue
		}
		m.watchTriggered[link.To] = true
		m.behavior = &ScriptedSequence{
			Steps: []SequenceStep{{
				Items: []motiondb.QueryItem{{Tag: "interact"}},
				Effects: []effect.Effect{{
					Kind:    effect.KindSendMessage,
					Entity:  link.To,
					Message: "TurnOn",
				}},
			}},
		}
		return []effect.Effect{m.animationEffect(ctx, self)}, true
	}
	return nil, false
}

// tickleProbe casts forward and down from the entity and reports
// sensor transitions as script messages.
func (m *Monster) tickleProbe(ctx *Context, self entity.ID) []effect.Effect {
	pos, ok := entityPosition(ctx, self)
	if !ok {
		return nil
	}
	dir := headingVector(m.heading).Add(math.Vec3{Y: -1}).Normalize()

	var hitEntity entity.ID
	if hit, ok := ctx.Physics.RayCast(pos, dir, tickleRange, self); ok {
		hitEntity = hit.Entity
	}
	if hitEntity == m.tickleHit {
		return nil
	}

	var effects []effect.Effect
	if m.tickleHit != entity.None {
		effects = append(effects, effect.Effect{
			Kind:    effect.KindSendMessage,
			Entity:  m.tickleHit,
			Message: "SensorEndIntersect",
		})
	}
	if hitEntity != entity.None {
		effects = append(effects, effect.Effect{
			Kind:    effect.KindSendMessage,
			Entity:  hitEntity,
			Message: "SensorBeginIntersect",
		})
	}
	m.tickleHit = hitEntity
	return effects
}

func (m *Monster) turnToward(target float32, dt float32) {
	delta := wrapDegrees(target - m.heading)
	max := m.behavior.TurnSpeed() * dt
	if delta > max {
		delta = max
	} else if delta < -max {
		delta = -max
	}
	m.heading = wrapDegrees(m.heading + delta)
}

func (m *Monster) animationEffect(ctx *Context, self entity.ID) effect.Effect {
	items := append([]motiondb.QueryItem(nil), m.behavior.Animation()...)
	for _, tag := range ctx.Store.MotionActorTags[self] {
		items = append(items, motiondb.QueryItem{Tag: tag, Optional: true})
	}
	return effect.Effect{
		Kind:   effect.KindQueueAnimationBySchema,
		Entity: self,
		Query: motiondb.Query{
			ActorType: ctx.Store.Creatures[self].ActorType(),
			Items:     items,
			Selection: motiondb.SelectRandom,
		},
	}
}

func alertCapFor(store *entity.Store, id entity.ID) Cap {
	if c, ok := store.AlertCaps[id]; ok {
		return Cap{MaxLevel: c.MaxLevel, MinLevel: c.MinLevel, MinRelax: c.MinRelax}
	}
	return Cap{MaxLevel: entity.AlertHigh}
}

func awareDelayFor(store *entity.Store, id entity.ID) uint32 {
	if d, ok := store.AwareDelays[id]; ok {
		return d.Milliseconds
	}
	return 2000
}

func headingVector(deg float32) math.Vec3 {
	rad := float64(math.Deg2Rad(deg))
	return math.Vec3{
		X: float32(stdmath.Sin(rad)),
		Z: float32(stdmath.Cos(rad)),
	}
}

// wrapDegrees maps an angle into (-180, 180].
func wrapDegrees(deg float32) float32 {
	for deg > 180 {
		deg -= 360
	}
	for deg <= -180 {
		deg += 360
	}
	return deg
}

func alertColor(level entity.AlertLevel) [3]float32 {
	switch level {
	case entity.AlertLowest:
		return [3]float32{0, 1, 0}
	case entity.AlertLow:
		return [3]float32{0.5, 1, 0}
	case entity.AlertModerate:
		return [3]float32{1, 1, 0}
	}
	return [3]float32{1, 0, 0}
}
