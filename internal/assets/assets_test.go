package assets

import (
	"errors"
	"testing"

	"github.com/voidworks/darkvr/internal/engine/anim"
	"github.com/voidworks/darkvr/internal/engine/skeleton"
	"github.com/voidworks/darkvr/pkg/math"
)

func TestClipRegistrationAndLookup(t *testing.T) {
	c := NewCache("")
	c.RegisterClip(&anim.Clip{Name: "CrWalk", NumFrames: 4})

	clip, err := c.Clip("crwalk")
	if err != nil {
		t.Fatalf("Clip: %v", err)
	}
	if clip.NumFrames != 4 {
		t.Fatalf("frames = %d", clip.NumFrames)
	}

	if _, err := c.Clip("missing"); !errors.Is(err, ErrClipMissing) {
		t.Fatalf("err = %v, want ErrClipMissing", err)
	}
}

func TestSkeletonLookup(t *testing.T) {
	c := NewCache("")
	c.RegisterSkeleton("guard", skeleton.New([]skeleton.Bone{
		{JointID: 0, Parent: -1, LocalRest: math.Identity()},
	}))

	s, err := c.Skeleton("Guard")
	if err != nil {
		t.Fatalf("Skeleton: %v", err)
	}
	if s.BoneCount() != 1 {
		t.Fatalf("bones = %d", s.BoneCount())
	}

	if _, err := c.Skeleton("nope"); !errors.Is(err, ErrSkeletonMissing) {
		t.Fatalf("err = %v, want ErrSkeletonMissing", err)
	}
}

func TestTemplateLookup(t *testing.T) {
	c := NewCache("")
	c.RegisterTemplate(&Template{Name: "Crate", HitPoints: 10})

	tpl, ok := c.Template("crate")
	if !ok || tpl.HitPoints != 10 {
		t.Fatalf("template = %+v ok=%v", tpl, ok)
	}
	if _, ok := c.Template("barrel"); ok {
		t.Fatal("unknown template found")
	}
}
