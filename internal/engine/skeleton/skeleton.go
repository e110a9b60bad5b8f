// Package skeleton provides hierarchical joint trees and the
// forward-kinematics evaluator producing world-space joint matrices.
package skeleton

import (
	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/logger"
	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

// MaxJoints is the engine's bone budget. Joints with IDs at or above
// this are still evaluated internally but clipped from the exported
// matrix array.
const MaxJoints = 40

// Bone is a node in the skeletal hierarchy. Parent is a joint ID, or -1
// for a root bone.
type Bone struct {
	JointID   uint16
	Parent    int32
	LocalRest math.Mat4
}

// ClipSource is the slice of an animation clip the evaluator consumes.
type ClipSource interface {
	// LocalTransform returns the per-frame local matrix for a joint, or
	// false if the clip does not animate that joint.
	LocalTransform(joint uint16, frame uint32) (math.Mat4, bool)
	// RootTransform returns the whole-skeleton transform for a frame;
	// identity when the clip carries none.
	RootTransform(frame uint32) math.Mat4
	// FrameCount returns the number of frames in the clip.
	FrameCount() uint32
}

// AnimationInfo selects a clip frame for evaluation.
type AnimationInfo struct {
	Clip  ClipSource
	Frame uint32
}

// Skeleton owns a bone list and the evaluated world-space transform per
// joint. Skeletons are immutable once built; Animate returns a fresh
// evaluated instance sharing the bone list.
type Skeleton struct {
	bones  []Bone
	byID   map[uint16]int // first bone wins on duplicate joint IDs
	global map[uint16]math.Mat4
}

// New builds a skeleton from bones and evaluates its rest pose.
// A bone whose parent joint is missing is re-parented to the root with
// a warning; duplicated joint IDs keep the first occurrence.
func New(bones []Bone) *Skeleton {
	s := &Skeleton{
		bones: bones,
		byID:  make(map[uint16]int, len(bones)),
	}
	for i := range bones {
		if _, dup := s.byID[bones[i].JointID]; dup {
			continue
		}
		s.byID[bones[i].JointID] = i
	}
	for i := range s.bones {
		b := &s.bones[i]
		if b.Parent < 0 {
			continue
		}
		if _, ok := s.byID[uint16(b.Parent)]; !ok {
			logger.Warn("bone parent missing, re-parenting to root",
				zap.Uint16("joint", b.JointID),
				zap.Int32("parent", b.Parent))
			b.Parent = -1
		}
	}
	s.global = evaluate(s, nil, nil)
	return s
}

// FromCAL builds a skeleton from a parsed CAL file.
func FromCAL(cal *formats.CAL) *Skeleton {
	placements := cal.Placements()
	bones := make([]Bone, len(placements))
	for i, p := range placements {
		bones[i] = Bone{JointID: p.JointID, Parent: p.Parent, LocalRest: p.Local}
	}
	return New(bones)
}

// FromGLB builds a skeleton from a parsed GLB asset's first skin.
func FromGLB(glb *formats.GLB) *Skeleton {
	bones := make([]Bone, len(glb.Joints))
	for i, j := range glb.Joints {
		bones[i] = Bone{JointID: j.ID, Parent: j.Parent, LocalRest: j.Rest.Local}
	}
	return New(bones)
}

// Animate evaluates the base skeleton under an optional animation frame
// and per-joint overrides, returning a fresh skeleton. The base is
// read-only.
func Animate(base *Skeleton, info *AnimationInfo, overrides map[uint16]math.Mat4) *Skeleton {
	return &Skeleton{
		bones:  base.bones,
		byID:   base.byID,
		global: evaluate(base, info, overrides),
	}
}

// BoneCount returns the number of bones.
func (s *Skeleton) BoneCount() int {
	return len(s.bones)
}

// GlobalTransform returns the evaluated world-space matrix for a joint.
// Over-budget joints remain reachable here even though Transforms clips
// them.
func (s *Skeleton) GlobalTransform(joint uint16) (math.Mat4, bool) {
	m, ok := s.global[joint]
	return m, ok
}

// Transforms exports the fixed-size matrix array. Joints with IDs at or
// above MaxJoints are silently clipped; slots without a joint hold
// identity.
func (s *Skeleton) Transforms() [MaxJoints]math.Mat4 {
	var out [MaxJoints]math.Mat4
	for i := range out {
		out[i] = math.Identity()
	}
	for id, m := range s.global {
		if id < MaxJoints {
			out[id] = m
		}
	}
	return out
}

// evaluate computes world-space matrices for every joint via a memoized
// DFS: global[J] = parent_global * local_rest[J] * animation_local[J],
// with the clip's root transform multiplying from the outside at roots.
func evaluate(s *Skeleton, info *AnimationInfo, overrides map[uint16]math.Mat4) map[uint16]math.Mat4 {
	var frame uint32
	root := math.Identity()
	if info != nil && info.Clip != nil {
		if n := info.Clip.FrameCount(); n > 0 {
			frame = info.Frame % n
		}
		root = info.Clip.RootTransform(frame)
	}

	memo := make(map[uint16]math.Mat4, len(s.bones))
	inProgress := make(map[uint16]bool)

	var resolve func(idx int) math.Mat4
	resolve = func(idx int) math.Mat4 {
		b := &s.bones[idx]
		if m, ok := memo[b.JointID]; ok {
			return m
		}

		animLocal := math.Identity()
		if ov, ok := overrides[b.JointID]; ok {
			// Overrides fully replace the clip contribution.
			animLocal = ov
		} else if info != nil && info.Clip != nil {
			if m, ok := info.Clip.LocalTransform(b.JointID, frame); ok {
				animLocal = m
			}
		}

		parentGlobal := root
		if b.Parent >= 0 {
			pid := uint16(b.Parent)
			if inProgress[pid] {
				logger.Warn("bone cycle detected, treating joint as root",
					zap.Uint16("joint", b.JointID))
			} else if pidx, ok := s.byID[pid]; ok {
				inProgress[b.JointID] = true
				parentGlobal = resolve(pidx)
				delete(inProgress, b.JointID)
			}
		}

		m := parentGlobal.Mul(b.LocalRest).Mul(animLocal)
		memo[b.JointID] = m
		return m
	}

	for i := range s.bones {
		resolve(i)
	}
	return memo
}
