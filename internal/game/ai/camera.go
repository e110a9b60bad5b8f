package ai

import (
	"strings"

	"github.com/voidworks/darkvr/internal/game/effect"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/pkg/math"
)

const (
	// CameraSpeechLoopDelay is the minimum time inside a level before
	// its sustain line may fire, in seconds.
	CameraSpeechLoopDelay = 5.0

	// CameraSpeechMinInterval is the minimum spacing between any two
	// camera speech lines, in seconds.
	CameraSpeechMinInterval = 3.0

	// cameraAimJoint is the camera head yaw joint.
	cameraAimJoint uint16 = 1

	// cameraSweepArc is the patrol sweep half-angle, in degrees.
	cameraSweepArc = 45
)

// Camera is the security-camera alertness variant: the shared
// alertness engine plus joint-1 aim, model color swaps, and speech
// pacing.
type Camera struct {
	alert     State
	scanSpeed float32 // raw scan speed; aim rate cap is scanSpeed * 1000 deg/s
	baseModel string

	jointYaw        float32
	sweepDir        float32
	timeInLevel     float32
	timeSinceSpeech float32
}

// NewCamera builds a camera AI. baseModel is the green-state model
// name; color variants are derived from it.
func NewCamera(baseModel string, scanSpeed float32) *Camera {
	if scanSpeed <= 0 {
		scanSpeed = 0.09
	}
	return &Camera{
		scanSpeed:       scanSpeed,
		baseModel:       baseModel,
		sweepDir:        1,
		timeSinceSpeech: CameraSpeechMinInterval,
	}
}

// Alertness returns the alertness state.
func (c *Camera) Alertness() State { return c.alert }

// Tick runs the camera loop: visibility, alertness, aim, and speech.
func (c *Camera) Tick(ctx *Context, self entity.ID, dt float32) []effect.Effect {
	var effects []effect.Effect

	c.timeInLevel += dt
	c.timeSinceSpeech += dt

	visible := c.playerVisible(ctx, self)

	cap := alertCapFor(ctx.Store, self)
	timings := TimingsFromAwareDelay(awareDelayFor(ctx.Store, self))
	if tr, changed := ProcessAlertnessUpdate(&c.alert, visible, dt, timings, cap); changed {
		c.timeInLevel = 0
		if row, ok := ctx.Store.Alertness[self]; ok {
			row.Current = c.alert.Current
			row.Peak = c.alert.Peak
		}
		effects = append(effects, effect.Effect{
			Kind:      effect.KindChangeModel,
			Entity:    self,
			ModelName: cameraModelName(c.baseModel, tr.New),
		})
		if concept := transitionConcept(tr); concept != "" {
			effects = append(effects, c.speak(ctx, self, concept))
		}
	}

	if concept := c.sustainConcept(); concept != "" {
		effects = append(effects, c.speak(ctx, self, concept))
	}

	effects = append(effects, c.aim(ctx, self, visible, dt))
	return effects
}

// aim drives the head joint: toward the player when visible, a slow
// sweep otherwise. The override replaces any clip motion on the joint.
func (c *Camera) aim(ctx *Context, self entity.ID, visible bool, dt float32) effect.Effect {
	maxStep := c.scanSpeed * 1000 * dt

	if visible {
		selfPos, okA := entityPosition(ctx, self)
		playerPos, okB := entityPosition(ctx, ctx.Player)
		if okA && okB {
			delta := wrapDegrees(headingDeg(selfPos, playerPos) - c.jointYaw)
			if delta > maxStep {
				delta = maxStep
			} else if delta < -maxStep {
				delta = -maxStep
			}
			c.jointYaw = wrapDegrees(c.jointYaw + delta)
		}
	} else {
		c.jointYaw += c.sweepDir * maxStep
		if c.jointYaw > cameraSweepArc {
			c.jointYaw = cameraSweepArc
			c.sweepDir = -1
		} else if c.jointYaw < -cameraSweepArc {
			c.jointYaw = -cameraSweepArc
			c.sweepDir = 1
		}
	}

	return effect.Effect{
		Kind:   effect.KindSetJointTransform,
		Entity: self,
		Joint:  cameraAimJoint,
		Local:  math.RotateY(math.Deg2Rad(c.jointYaw)),
	}
}

func (c *Camera) playerVisible(ctx *Context, self entity.ID) bool {
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
	hit, blocked := ctx.Physics.RayCast(selfPos, to.Scale(1/dist), dist, self)
	if !blocked {
		return true
	}
	return hit.Entity == ctx.Player
}

func (c *Camera) speak(ctx *Context, self entity.ID, concept string) effect.Effect {
	c.timeSinceSpeech = 0
	return effect.Effect{
		Kind:    effect.KindPlaySpeech,
		Entity:  self,
		Concept: concept,
		Tags:    []string{c.alert.Current.String()},
	}
}

// sustainConcept re-fires the "still watching you" line, paced by the
// loop delay and the global speech spacing.
func (c *Camera) sustainConcept() string {
	if c.timeInLevel < CameraSpeechLoopDelay || c.timeSinceSpeech < CameraSpeechMinInterval {
		return ""
	}
	switch c.alert.Current {
	case entity.AlertModerate:
		return "atleveltwo"
	case entity.AlertHigh:
		return "atlevelthree"
	}
	return ""
}

func transitionConcept(tr Transition) string {
	if tr.New > tr.Old {
		switch tr.New {
		case entity.AlertLow:
			return "tolevelone"
		case entity.AlertModerate:
			return "toleveltwo"
		case entity.AlertHigh:
			return "tolevelthree"
		}
		return ""
	}
	if tr.New == entity.AlertLowest {
		return "backtozero"
	}
	return "lostcontact"
}

// cameraModelName derives the color-variant model for an alertness
// level: green below moderate, yellow at moderate, red at high. The
// yellow/red names come from suffix rules on the green base name; a
// name without a recognized suffix gets "_yel"/"_red" appended.
func cameraModelName(base string, level entity.AlertLevel) string {
	switch {
	case level >= entity.AlertHigh:
		return swapColorSuffix(base, "red", "red", "_red")
	case level >= entity.AlertModerate:
		return swapColorSuffix(base, "yel", "yellow", "_yel")
	}
	return base
}

func swapColorSuffix(base, shortRepl, longRepl, fallback string) string {
	if strings.HasSuffix(base, "grn") {
		return strings.TrimSuffix(base, "grn") + shortRepl
	}
	if strings.HasSuffix(base, "green") {
		return strings.TrimSuffix(base, "green") + longRepl
	}
	return base + fallback
}
