package anim

import (
	"time"

	"github.com/voidworks/darkvr/internal/engine/skeleton"
	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// PlayMode selects how a queued clip ends.
type PlayMode int

const (
	// Loop wraps back to frame zero and keeps playing.
	Loop PlayMode = iota
	// PlayOnce removes the clip from the queue after its last frame.
	PlayOnce
)

// EventKind enumerates playback events raised by Update.
type EventKind int

const (
	// EventCompleted fires when a clip reaches its final frame.
	EventCompleted EventKind = iota
	// EventDirectionChanged fires alongside completion of a clip that
	// declares an end rotation.
	EventDirectionChanged
	// EventVelocityChanged fires when a clip leaves frame zero.
	EventVelocityChanged
)

// Event is one playback notification.
type Event struct {
	Kind     EventKind
	Clip     string
	Degrees  float32
	Velocity math.Vec3
}

// QueuedClip pairs a clip with its play mode.
type QueuedClip struct {
	Clip *Clip
	Mode PlayMode
}

type blendState struct {
	fromClip  *Clip
	fromFrame float32
	duration  float32
	elapsed   float32
}

// Player plays a queue of clips over a skeleton. Player values are
// cheap to copy; Update and the other mutators return a new Player
// rather than modifying the receiver, so a stored Player is only
// advanced when the caller writes the result back.
type Player struct {
	queue        []QueuedClip
	lastClip     *Clip
	currentFrame uint32
	residual     float32
	overrides    map[uint16]math.Mat4
	blend        *blendState
}

// NewPlayer returns an empty player.
func NewPlayer() Player {
	return Player{}
}

// CurrentClip returns the clip at the front of the queue, if any.
func (p Player) CurrentClip() (*Clip, bool) {
	if len(p.queue) == 0 {
		return nil, false
	}
	return p.queue[0].Clip, true
}

// CurrentFrame returns the frame of the playing clip.
func (p Player) CurrentFrame() uint32 {
	return p.currentFrame
}

// Idle reports whether nothing is queued.
func (p Player) Idle() bool {
	return len(p.queue) == 0
}

// QueueAnimation pushes a clip to the front of the queue to play once.
// If another clip was playing, a cross-fade from its current frame is
// started over the new clip's blend length.
func (p Player) QueueAnimation(clip *Clip) Player {
	if prev, ok := p.CurrentClip(); ok && clip.BlendLength > 0 {
		p.blend = &blendState{
			fromClip:  prev,
			fromFrame: float32(p.currentFrame),
			duration:  float32(clip.BlendLength) / float32(time.Second),
		}
	}
	queue := make([]QueuedClip, 0, len(p.queue)+1)
	queue = append(queue, QueuedClip{Clip: clip, Mode: PlayOnce})
	queue = append(queue, p.queue...)
	p.queue = queue
	p.currentFrame = 0
	p.residual = 0
	return p
}

// QueueLooping replaces the queue with a single looping clip.
func (p Player) QueueLooping(clip *Clip) Player {
	if prev, ok := p.CurrentClip(); ok && prev == clip {
		return p
	}
	if prev, ok := p.CurrentClip(); ok && clip.BlendLength > 0 {
		p.blend = &blendState{
			fromClip:  prev,
			fromFrame: float32(p.currentFrame),
			duration:  float32(clip.BlendLength) / float32(time.Second),
		}
	}
	p.queue = []QueuedClip{{Clip: clip, Mode: Loop}}
	p.currentFrame = 0
	p.residual = 0
	return p
}

// SetAdditionalJointTransform installs a local-transform override for
// one joint. Overrides replace the clip's contribution entirely until
// cleared.
func (p Player) SetAdditionalJointTransform(joint uint16, m math.Mat4) Player {
	overrides := make(map[uint16]math.Mat4, len(p.overrides)+1)
	for k, v := range p.overrides {
		overrides[k] = v
	}
	overrides[joint] = m
	p.overrides = overrides
	return p
}

// ClearJointTransform removes a joint override.
func (p Player) ClearJointTransform(joint uint16) Player {
	if _, ok := p.overrides[joint]; !ok {
		return p
	}
	overrides := make(map[uint16]math.Mat4, len(p.overrides))
	for k, v := range p.overrides {
		if k != joint {
			overrides[k] = v
		}
	}
	p.overrides = overrides
	return p
}

// Update advances playback by dt seconds. It returns the advanced
// player, the motion flags of every frame crossed this update, playback
// events, and the sliding velocity of the clip that is playing.
func (p Player) Update(dt float32) (Player, formats.MotionFlags, []Event, math.Vec3) {
	p = p.advanceBlend(dt)

	if len(p.queue) == 0 {
		return p, 0, nil, math.Vec3{}
	}

	front := p.queue[0]
	clip := front.Clip
	tpf := float32(clip.TimePerFrame) / float32(time.Second)
	if tpf <= 0 {
		tpf = 1.0 / formats.ClipFPS
	}

	remaining := p.residual + dt
	next := p.currentFrame
	for remaining >= tpf {
		next++
		remaining -= tpf
	}

	var events []Event
	flags := clip.FlagsCrossed(p.currentFrame, next)

	if next >= clip.NumFrames {
		events = append(events, Event{Kind: EventCompleted, Clip: clip.Name})
		if clip.EndRotationDeg != 0 {
			events = append(events, Event{
				Kind:    EventDirectionChanged,
				Clip:    clip.Name,
				Degrees: clip.EndRotationDeg,
			})
		}
		if front.Mode == Loop {
			if clip.NumFrames > 0 {
				next %= clip.NumFrames
			} else {
				next = 0
			}
			p.currentFrame = next
			p.residual = remaining
		} else {
			p.queue = p.queue[1:]
			p.lastClip = clip
			p.currentFrame = 0
			p.residual = 0
		}
	} else {
		if p.currentFrame == 0 && next > 0 {
			events = append(events, Event{
				Kind:     EventVelocityChanged,
				Clip:     clip.Name,
				Velocity: clip.SlidingVelocity,
			})
		}
		p.currentFrame = next
		p.residual = remaining
	}

	return p, flags, events, clip.SlidingVelocity
}

func (p Player) advanceBlend(dt float32) Player {
	if p.blend == nil {
		return p
	}
	b := *p.blend
	b.elapsed += dt
	if b.fromClip != nil && b.fromClip.NumFrames > 0 {
		tpf := float32(b.fromClip.TimePerFrame) / float32(time.Second)
		if tpf > 0 {
			b.fromFrame += dt / tpf
			for b.fromFrame >= float32(b.fromClip.NumFrames) {
				b.fromFrame -= float32(b.fromClip.NumFrames)
			}
		}
	}
	if b.duration <= 0 || b.elapsed >= b.duration {
		p.blend = nil
		return p
	}
	p.blend = &b
	return p
}

// GetTransforms evaluates the posed skeleton and exports it as a dense
// joint-indexed matrix array. A playing clip is sampled at the current
// frame; with an empty queue the last played clip stays frozen on its
// final frame. An active cross-fade blends the outgoing clip's pose in
// per joint.
func (p Player) GetTransforms(base *skeleton.Skeleton) [skeleton.MaxJoints]math.Mat4 {
	clip, frame, ok := p.poseClip()
	if !ok {
		return skeleton.Animate(base, nil, p.overrides).Transforms()
	}

	to := skeleton.Animate(base, &skeleton.AnimationInfo{Clip: clip, Frame: frame}, p.overrides).Transforms()
	if p.blend == nil || p.blend.fromClip == nil {
		return to
	}

	alpha := float32(1)
	if p.blend.duration > 0 {
		alpha = math.Clamp(p.blend.elapsed/p.blend.duration, 0, 1)
	}
	fromFrame := uint32(p.blend.fromFrame)
	if p.blend.fromClip.NumFrames > 0 {
		fromFrame %= p.blend.fromClip.NumFrames
	}
	from := skeleton.Animate(base, &skeleton.AnimationInfo{Clip: p.blend.fromClip, Frame: fromFrame}, p.overrides).Transforms()

	var out [skeleton.MaxJoints]math.Mat4
	for i := range out {
		out[i] = BlendAffine(from[i], to[i], alpha)
	}
	return out
}

// poseClip picks the clip and frame driving the pose: the playing clip
// at its current frame, or the last finished clip held on its final
// frame.
func (p Player) poseClip() (*Clip, uint32, bool) {
	if len(p.queue) > 0 {
		return p.queue[0].Clip, p.currentFrame, true
	}
	if p.lastClip != nil {
		frame := uint32(0)
		if p.lastClip.NumFrames > 0 {
			frame = p.lastClip.NumFrames - 1
		}
		return p.lastClip, frame, true
	}
	return nil, 0, false
}
