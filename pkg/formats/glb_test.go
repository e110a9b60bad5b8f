package formats

import (
	"bytes"
	"encoding/binary"
	stdmath "math"
	"strconv"
	"testing"

	"github.com/voidworks/darkvr/pkg/math"
)

func TestParseGLB_InvalidMagic(t *testing.T) {
	data := make([]byte, 16)
	copy(data, "NOPE")
	_, err := ParseGLB(data)
	if err != ErrInvalidGLBMagic {
		t.Errorf("expected ErrInvalidGLBMagic, got %v", err)
	}
}

func TestParseGLB_ExternalBufferRejected(t *testing.T) {
	doc := `{"buffers":[{"uri":"model.bin","byteLength":4}]}`
	_, err := ParseGLB(wrapGLB([]byte(doc), nil))
	if err != ErrGLBExternalBuffer {
		t.Errorf("expected ErrGLBExternalBuffer, got %v", err)
	}
}

func TestParseGLB_SkeletonAndClip(t *testing.T) {
	glb, err := ParseGLB(buildSyntheticGLB())
	if err != nil {
		t.Fatalf("failed to parse synthetic GLB: %v", err)
	}

	if len(glb.Joints) != 2 {
		t.Fatalf("expected 2 joints, got %d", len(glb.Joints))
	}

	// Joint IDs follow skin order; parents derive from node children.
	if glb.Joints[0].Parent != -1 {
		t.Errorf("joint 0: expected root, got parent %d", glb.Joints[0].Parent)
	}
	if glb.Joints[1].Parent != 0 {
		t.Errorf("joint 1: expected parent 0, got %d", glb.Joints[1].Parent)
	}

	// Disk order (x,y,z,w) maps straight into the quaternion fields.
	rot := glb.Joints[1].Rest.Rotation
	sin45 := float32(stdmath.Sin(stdmath.Pi / 4))
	if absf(rot.Y-sin45) > 1e-5 || absf(rot.W-sin45) > 1e-5 {
		t.Errorf("joint 1 rest rotation = %+v, want y=w=%v", rot, sin45)
	}
	norm := float32(stdmath.Sqrt(float64(rot.Dot(rot))))
	if absf(norm-1) > 1e-5 {
		t.Errorf("rest rotation norm = %v, want 1 within 1e-5", norm)
	}

	// Inverse bind matrices are read per skin-order joint.
	if glb.Joints[0].Rest.InverseBind != math.Identity() {
		t.Errorf("joint 0 IBM should be identity")
	}

	if len(glb.Clips) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(glb.Clips))
	}
	clip := glb.Clips[0]
	if clip.Name != "walk" {
		t.Errorf("expected clip name 'walk', got %q", clip.Name)
	}

	// 1 second of animation resampled at 30 fps.
	if clip.NumFrames != 30 {
		t.Errorf("expected 30 frames, got %d", clip.NumFrames)
	}

	frames, ok := clip.JointToFrame[1]
	if !ok {
		t.Fatal("expected animated track for joint 1")
	}
	if len(frames) != 30 {
		t.Fatalf("expected 30 frame matrices, got %d", len(frames))
	}

	// Frame 0 samples translation (0,0,0); the stored matrix is
	// rest_local_inverse * animated_TRS.
	rest := glb.Joints[1].Rest
	want := rest.LocalInverse.Mul(math.FromTRS(math.Vec3{}, rest.Rotation, rest.Scale))
	for i := 0; i < 16; i++ {
		if absf(frames[0][i]-want[i]) > 1e-4 {
			t.Fatalf("frame 0 element %d = %v, want %v", i, frames[0][i], want[i])
		}
	}
}

// buildSyntheticGLB crafts a two-joint skinned asset with one 1-second
// translation animation on the child joint.
//
// Node layout: node 0 is the scene root holding the skin; nodes 1 and 2
// are the joints, with node 1 parenting node 2.
func buildSyntheticGLB() []byte {
	var bin bytes.Buffer

	// Accessor 0: two MAT4 inverse bind matrices (identity).
	id := math.Identity()
	for j := 0; j < 2; j++ {
		for k := 0; k < 16; k++ {
			binary.Write(&bin, binary.LittleEndian, id[k])
		}
	}

	// Accessor 1: two SCALAR keyframe times (0, 1).
	binary.Write(&bin, binary.LittleEndian, float32(0))
	binary.Write(&bin, binary.LittleEndian, float32(1))

	// Accessor 2: two VEC3 translations (0,0,0) -> (3,0,0).
	binary.Write(&bin, binary.LittleEndian, [3]float32{0, 0, 0})
	binary.Write(&bin, binary.LittleEndian, [3]float32{3, 0, 0})

	doc := `{
	 "scenes":[{"nodes":[0]}],
	 "nodes":[
	  {"children":[1],"skin":0},
	  {"children":[2],"translation":[0,1,0]},
	  {"translation":[0,0.5,0],"rotation":[0,0.7071068,0,0.7071068]}
	 ],
	 "skins":[{"joints":[1,2],"inverseBindMatrices":0}],
	 "buffers":[{"byteLength":` + strconv.Itoa(bin.Len()) + `}],
	 "bufferViews":[
	  {"buffer":0,"byteOffset":0,"byteLength":128},
	  {"buffer":0,"byteOffset":128,"byteLength":8},
	  {"buffer":0,"byteOffset":136,"byteLength":24}
	 ],
	 "accessors":[
	  {"bufferView":0,"componentType":5126,"count":2,"type":"MAT4"},
	  {"bufferView":1,"componentType":5126,"count":2,"type":"SCALAR"},
	  {"bufferView":2,"componentType":5126,"count":2,"type":"VEC3"}
	 ],
	 "animations":[{
	  "name":"walk",
	  "channels":[{"sampler":0,"target":{"node":2,"path":"translation"}}],
	  "samplers":[{"input":1,"output":2,"interpolation":"LINEAR"}]
	 }]
	}`

	return wrapGLB([]byte(doc), bin.Bytes())
}

// wrapGLB wraps a JSON document and optional BIN payload in a GLB
// container.
func wrapGLB(jsonDoc, bin []byte) []byte {
	// Chunks are 4-byte aligned; JSON pads with spaces.
	for len(jsonDoc)%4 != 0 {
		jsonDoc = append(jsonDoc, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var buf bytes.Buffer
	total := 12 + 8 + len(jsonDoc)
	if len(bin) > 0 {
		total += 8 + len(bin)
	}

	buf.WriteString("glTF")
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	binary.Write(&buf, binary.LittleEndian, uint32(total))

	binary.Write(&buf, binary.LittleEndian, uint32(len(jsonDoc)))
	binary.Write(&buf, binary.LittleEndian, uint32(glbChunkJSON))
	buf.Write(jsonDoc)

	if len(bin) > 0 {
		binary.Write(&buf, binary.LittleEndian, uint32(len(bin)))
		binary.Write(&buf, binary.LittleEndian, uint32(glbChunkBIN))
		buf.Write(bin)
	}

	return buf.Bytes()
}
