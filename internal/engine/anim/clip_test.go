package anim

import (
	"testing"
	"time"

	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

func TestClipFromMC(t *testing.T) {
	mc := &formats.MC{
		Name:      "crwalk",
		NumFrames: 4,
		FPS:       20,
		Tracks: []formats.MCJointTrack{
			{JointID: 3, Frames: []math.Mat4{math.Identity(), math.Identity(), math.Identity(), math.Identity()}},
		},
		Flags: []formats.MCFrameFlag{{Frame: 1, Flags: formats.MotionFlagFootstepLeft}},
	}

	clip := ClipFromMC(mc)
	if clip.TimePerFrame != 50*time.Millisecond {
		t.Fatalf("time per frame = %v, want 50ms", clip.TimePerFrame)
	}
	if clip.BlendLength != DefaultBlendLength {
		t.Fatalf("blend length = %v, want default", clip.BlendLength)
	}
	if _, ok := clip.LocalTransform(3, 0); !ok {
		t.Fatal("joint 3 track missing")
	}
	if _, ok := clip.LocalTransform(7, 0); ok {
		t.Fatal("unexpected track for joint 7")
	}
	if clip.FlagsCrossed(0, 1) != formats.MotionFlagFootstepLeft {
		t.Fatal("flag on frame 1 not crossed by (0, 1]")
	}
	if clip.FlagsCrossed(1, 3) != 0 {
		t.Fatal("flag on frame 1 crossed by (1, 3]")
	}
}

func TestClipFromGLBRunsAtResampleRate(t *testing.T) {
	gc := &formats.GLBClip{
		Name:      "Idle",
		NumFrames: 30,
		JointToFrame: map[uint16][]math.Mat4{
			0: make([]math.Mat4, 30),
		},
	}
	clip := ClipFromGLB(gc)
	if clip.Duration != time.Second {
		t.Fatalf("30-frame GLB clip duration = %v, want 1s", clip.Duration)
	}
	if clip.FrameCount() != 30 {
		t.Fatalf("frame count = %d", clip.FrameCount())
	}
}

func TestClipFrameIndexWraps(t *testing.T) {
	frames := []math.Mat4{math.TranslateVec3(math.Vec3{X: 1}), math.TranslateVec3(math.Vec3{X: 2})}
	clip := &Clip{NumFrames: 2, JointToFrame: map[uint16][]math.Mat4{0: frames}}

	m, ok := clip.LocalTransform(0, 5)
	if !ok {
		t.Fatal("track lookup failed")
	}
	if m.Translation().X != 2 {
		t.Fatalf("frame 5 of 2-frame clip x = %v, want frame 1 value", m.Translation().X)
	}
}
