// Package anim provides immutable animation clips and the stateful
// per-entity playback player.
package anim

import (
	"time"

	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// DefaultBlendLength is the cross-fade duration used when a clip does
// not declare one.
const DefaultBlendLength = 250 * time.Millisecond

// FrameFlag marks a clip frame with motion flags.
type FrameFlag struct {
	Frame uint32
	Flags formats.MotionFlags
}

// Clip is immutable per-clip animation data. Per-joint frame vectors
// always hold at least NumFrames entries; indexing wraps modulo
// NumFrames. RootTransforms is either empty (identity every frame) or
// at least NumFrames long.
type Clip struct {
	Name            string
	NumFrames       uint32
	TimePerFrame    time.Duration
	Duration        time.Duration
	BlendLength     time.Duration
	EndRotationDeg  float32
	SlidingVelocity math.Vec3
	Translation     math.Vec3
	JointToFrame    map[uint16][]math.Mat4
	RootTransforms  []math.Mat4
	MotionFlags     []FrameFlag
}

// ClipFromMC converts a parsed MC motion file into a clip.
func ClipFromMC(mc *formats.MC) *Clip {
	tpf := time.Duration(float64(time.Second) / float64(mc.FPS))

	c := &Clip{
		Name:            mc.Name,
		NumFrames:       mc.NumFrames,
		TimePerFrame:    tpf,
		Duration:        tpf * time.Duration(mc.NumFrames),
		BlendLength:     time.Duration(mc.BlendLengthMs) * time.Millisecond,
		EndRotationDeg:  mc.EndRotationDeg,
		SlidingVelocity: mc.SlidingVelocity,
		Translation:     mc.Translation,
		JointToFrame:    make(map[uint16][]math.Mat4, len(mc.Tracks)),
		RootTransforms:  mc.RootTransforms,
	}
	if c.BlendLength == 0 {
		c.BlendLength = DefaultBlendLength
	}
	for _, track := range mc.Tracks {
		c.JointToFrame[track.JointID] = track.Frames
	}
	for _, f := range mc.Flags {
		c.MotionFlags = append(c.MotionFlags, FrameFlag{Frame: f.Frame, Flags: f.Flags})
	}
	return c
}

// ClipFromGLB converts a resampled GLB animation into a clip. Converted
// GLB clips run at the fixed 30 fps resample rate.
func ClipFromGLB(gc *formats.GLBClip) *Clip {
	tpf := time.Second / formats.ClipFPS
	return &Clip{
		Name:         gc.Name,
		NumFrames:    gc.NumFrames,
		TimePerFrame: tpf,
		Duration:     tpf * time.Duration(gc.NumFrames),
		BlendLength:  DefaultBlendLength,
		JointToFrame: gc.JointToFrame,
	}
}

// LocalTransform implements skeleton.ClipSource.
func (c *Clip) LocalTransform(joint uint16, frame uint32) (math.Mat4, bool) {
	frames, ok := c.JointToFrame[joint]
	if !ok || len(frames) == 0 {
		return math.Identity(), false
	}
	if c.NumFrames > 0 {
		frame %= c.NumFrames
	}
	if int(frame) >= len(frames) {
		return math.Identity(), false
	}
	return frames[frame], true
}

// RootTransform implements skeleton.ClipSource. Empty root transform
// tables read as identity every frame.
func (c *Clip) RootTransform(frame uint32) math.Mat4 {
	if len(c.RootTransforms) == 0 {
		return math.Identity()
	}
	if c.NumFrames > 0 {
		frame %= c.NumFrames
	}
	if int(frame) >= len(c.RootTransforms) {
		return math.Identity()
	}
	return c.RootTransforms[frame]
}

// FrameCount implements skeleton.ClipSource.
func (c *Clip) FrameCount() uint32 {
	return c.NumFrames
}

// FlagsCrossed returns the union of motion flags for every flagged
// frame in (from, to].
func (c *Clip) FlagsCrossed(from, to uint32) formats.MotionFlags {
	var out formats.MotionFlags
	for _, f := range c.MotionFlags {
		if f.Frame > from && f.Frame <= to {
			out |= f.Flags
		}
	}
	return out
}
