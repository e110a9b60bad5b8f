// GLB (binary glTF) parser: skeleton, rest pose and animation clips.
package formats

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	stdmath "math"
	"os"

	"github.com/voidworks/darkvr/pkg/math"
)

// GLB format errors.
var (
	ErrInvalidGLBMagic   = errors.New("invalid GLB magic: expected 'glTF'")
	ErrTruncatedGLBData  = errors.New("truncated GLB data")
	ErrGLBNoJSONChunk    = errors.New("GLB missing JSON chunk")
	ErrGLBExternalBuffer = errors.New("GLB buffer references external URI; only Bin sources are honored")
)

const (
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbChunkBIN  = 0x004E4942 // "BIN\0"

	// ClipFPS is the fixed resample rate for converted GLB clips.
	ClipFPS = 30
)

// GLBJointRest is the captured rest transform of one joint.
type GLBJointRest struct {
	Translation  math.Vec3
	Rotation     math.Quat
	Scale        math.Vec3
	Local        math.Mat4
	LocalInverse math.Mat4
	InverseBind  math.Mat4
}

// GLBJoint is one joint of the extracted skeleton, in skin order.
// Parent is a dense joint ID, or -1 for a root.
type GLBJoint struct {
	ID     uint16
	Parent int32
	Rest   GLBJointRest
}

// GLBClip is an animation resampled to ClipFPS. JointToFrame holds, per
// dense joint ID, num-frames local matrices already composed as
// rest_local_inverse * animated_TRS.
type GLBClip struct {
	Name         string
	NumFrames    uint32
	JointToFrame map[uint16][]math.Mat4
}

// GLB is the parsed result of a binary glTF asset.
type GLB struct {
	Joints []GLBJoint
	Clips  []GLBClip
}

// glTF JSON document, trimmed to the fields the core consumes.
type gltfDoc struct {
	Scenes []struct {
		Nodes []int `json:"nodes"`
	} `json:"scenes"`
	Nodes []struct {
		Children    []int      `json:"children"`
		Skin        *int       `json:"skin"`
		Translation *[3]float32 `json:"translation"`
		Rotation    *[4]float32 `json:"rotation"`
		Scale       *[3]float32 `json:"scale"`
	} `json:"nodes"`
	Skins []struct {
		Joints              []int `json:"joints"`
		InverseBindMatrices *int  `json:"inverseBindMatrices"`
	} `json:"skins"`
	Accessors []struct {
		BufferView    *int   `json:"bufferView"`
		ByteOffset    int    `json:"byteOffset"`
		ComponentType int    `json:"componentType"`
		Count         int    `json:"count"`
		Type          string `json:"type"`
	} `json:"accessors"`
	BufferViews []struct {
		Buffer     int `json:"buffer"`
		ByteOffset int `json:"byteOffset"`
		ByteLength int `json:"byteLength"`
		ByteStride int `json:"byteStride"`
	} `json:"bufferViews"`
	Buffers []struct {
		URI        string `json:"uri"`
		ByteLength int    `json:"byteLength"`
	} `json:"buffers"`
	Animations []struct {
		Name     string `json:"name"`
		Channels []struct {
			Sampler int `json:"sampler"`
			Target  struct {
				Node *int   `json:"node"`
				Path string `json:"path"`
			} `json:"target"`
		} `json:"channels"`
		Samplers []struct {
			Input         int    `json:"input"`
			Output        int    `json:"output"`
			Interpolation string `json:"interpolation"`
		} `json:"samplers"`
	} `json:"animations"`
}

// ParseGLB parses a binary glTF asset.
func ParseGLB(data []byte) (*GLB, error) {
	jsonChunk, bin, err := splitGLBChunks(data)
	if err != nil {
		return nil, err
	}

	var doc gltfDoc
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, fmt.Errorf("parsing glTF JSON: %w", err)
	}

	for _, b := range doc.Buffers {
		if b.URI != "" {
			return nil, ErrGLBExternalBuffer
		}
	}

	out := &GLB{}

	skinIdx := findFirstSkin(&doc)
	if skinIdx < 0 {
		return out, nil
	}
	skin := &doc.Skins[skinIdx]

	// Dense joint IDs follow skin order.
	nodeToJoint := make(map[int]uint16, len(skin.Joints))
	for j, nodeIdx := range skin.Joints {
		nodeToJoint[nodeIdx] = uint16(j)
	}

	// Inverse bind matrices; out-of-bounds accessor indices yield zero
	// matrices.
	ibms := make([]math.Mat4, len(skin.Joints))
	if skin.InverseBindMatrices != nil {
		readMat4Accessor(&doc, bin, *skin.InverseBindMatrices, ibms)
	}

	out.Joints = make([]GLBJoint, len(skin.Joints))
	for j, nodeIdx := range skin.Joints {
		joint := &out.Joints[j]
		joint.ID = uint16(j)
		joint.Parent = -1
		joint.Rest = restFromNode(&doc, nodeIdx)
		joint.Rest.InverseBind = ibms[j]
	}

	// Parent relations come from node children, not the skin hierarchy.
	for nodeIdx := range doc.Nodes {
		pj, ok := nodeToJoint[nodeIdx]
		if !ok {
			continue
		}
		for _, child := range doc.Nodes[nodeIdx].Children {
			if cj, ok := nodeToJoint[child]; ok {
				out.Joints[cj].Parent = int32(pj)
			}
		}
	}

	for _, anim := range doc.Animations {
		clip, err := resampleAnimation(&doc, bin, anim.Name, anim.Channels, anim.Samplers, nodeToJoint, out.Joints)
		if err != nil {
			return nil, fmt.Errorf("resampling animation %q: %w", anim.Name, err)
		}
		out.Clips = append(out.Clips, clip)
	}

	return out, nil
}

// splitGLBChunks validates the container and returns the JSON and BIN
// chunk payloads.
func splitGLBChunks(data []byte) (jsonChunk, bin []byte, err error) {
	if len(data) < 12 {
		return nil, nil, ErrTruncatedGLBData
	}
	if string(data[0:4]) != "glTF" {
		return nil, nil, ErrInvalidGLBMagic
	}

	total := binary.LittleEndian.Uint32(data[8:12])
	if int(total) > len(data) {
		return nil, nil, ErrTruncatedGLBData
	}

	off := 12
	for off+8 <= len(data) {
		chunkLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
		chunkType := binary.LittleEndian.Uint32(data[off+4 : off+8])
		off += 8
		if off+chunkLen > len(data) {
			return nil, nil, ErrTruncatedGLBData
		}
		switch chunkType {
		case glbChunkJSON:
			jsonChunk = data[off : off+chunkLen]
		case glbChunkBIN:
			bin = data[off : off+chunkLen]
		}
		off += chunkLen
	}

	if jsonChunk == nil {
		return nil, nil, ErrGLBNoJSONChunk
	}
	return jsonChunk, bin, nil
}

// findFirstSkin walks every scene depth-first and returns the skin index
// of the first skinned node, or -1.
func findFirstSkin(doc *gltfDoc) int {
	visited := make(map[int]bool)
	var dfs func(node int) int
	dfs = func(node int) int {
		if node < 0 || node >= len(doc.Nodes) || visited[node] {
			return -1
		}
		visited[node] = true
		if doc.Nodes[node].Skin != nil {
			s := *doc.Nodes[node].Skin
			if s >= 0 && s < len(doc.Skins) {
				return s
			}
		}
		for _, child := range doc.Nodes[node].Children {
			if s := dfs(child); s >= 0 {
				return s
			}
		}
		return -1
	}
	for _, scene := range doc.Scenes {
		for _, root := range scene.Nodes {
			if s := dfs(root); s >= 0 {
				return s
			}
		}
	}
	return -1
}

func restFromNode(doc *gltfDoc, nodeIdx int) GLBJointRest {
	rest := GLBJointRest{
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
	if nodeIdx >= 0 && nodeIdx < len(doc.Nodes) {
		n := &doc.Nodes[nodeIdx]
		if n.Translation != nil {
			rest.Translation = math.Vec3{X: n.Translation[0], Y: n.Translation[1], Z: n.Translation[2]}
		}
		if n.Rotation != nil {
			// glTF stores [x, y, z, w] on disk.
			rest.Rotation = math.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}
		}
		if n.Scale != nil {
			rest.Scale = math.Vec3{X: n.Scale[0], Y: n.Scale[1], Z: n.Scale[2]}
		}
	}
	rest.Local = math.FromTRS(rest.Translation, rest.Rotation, rest.Scale)
	rest.LocalInverse = rest.Local.Inverse()
	return rest
}

// accessorElementSize returns the byte size of one element of the
// accessor's type (float components only; the core reads no other kind).
func accessorElementSize(accType string) int {
	switch accType {
	case "SCALAR":
		return 4
	case "VEC3":
		return 12
	case "VEC4":
		return 16
	case "MAT4":
		return 64
	default:
		return 0
	}
}

// accessorBytes resolves the accessor's backing slice and element
// stride: the view's stride when declared, else the accessor's element
// size.
func accessorBytes(doc *gltfDoc, bin []byte, accIdx int) (data []byte, stride, count, elemSize int) {
	if accIdx < 0 || accIdx >= len(doc.Accessors) {
		return nil, 0, 0, 0
	}
	acc := &doc.Accessors[accIdx]
	elemSize = accessorElementSize(acc.Type)
	if elemSize == 0 || acc.BufferView == nil {
		return nil, 0, 0, 0
	}
	viewIdx := *acc.BufferView
	if viewIdx < 0 || viewIdx >= len(doc.BufferViews) {
		return nil, 0, 0, 0
	}
	view := &doc.BufferViews[viewIdx]
	stride = view.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	start := view.ByteOffset + acc.ByteOffset
	if start < 0 || start > len(bin) {
		return nil, 0, 0, 0
	}
	return bin[start:], stride, acc.Count, elemSize
}

// readMat4Accessor fills dst with matrices from the accessor;
// out-of-bounds elements stay zero.
func readMat4Accessor(doc *gltfDoc, bin []byte, accIdx int, dst []math.Mat4) {
	data, stride, count, elemSize := accessorBytes(doc, bin, accIdx)
	if data == nil || elemSize != 64 {
		return
	}
	for i := 0; i < len(dst) && i < count; i++ {
		off := i * stride
		if off+64 > len(data) {
			continue
		}
		var m math.Mat4
		for k := 0; k < 16; k++ {
			m[k] = readF32(data[off+k*4:])
		}
		dst[i] = m
	}
}

func readFloatAccessor(doc *gltfDoc, bin []byte, accIdx, components int) [][]float32 {
	data, stride, count, elemSize := accessorBytes(doc, bin, accIdx)
	if data == nil || elemSize != components*4 {
		return nil
	}
	out := make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		off := i * stride
		if off+elemSize > len(data) {
			break
		}
		elem := make([]float32, components)
		for k := 0; k < components; k++ {
			elem[k] = readF32(data[off+k*4:])
		}
		out = append(out, elem)
	}
	return out
}

func readF32(b []byte) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(b))
}

// channelTrack is one sampled TRS channel of a joint.
type channelTrack struct {
	times  []float32
	values [][]float32
}

func (c *channelTrack) duration() float32 {
	if len(c.times) == 0 {
		return 0
	}
	return c.times[len(c.times)-1]
}

// bracket finds the surrounding keyframes and interpolation factor for
// time t.
func (c *channelTrack) bracket(t float32) (i0, i1 int, alpha float32) {
	n := len(c.times)
	if n == 0 {
		return 0, 0, 0
	}
	if t <= c.times[0] {
		return 0, 0, 0
	}
	if t >= c.times[n-1] {
		return n - 1, n - 1, 0
	}
	for i := 1; i < n; i++ {
		if c.times[i] >= t {
			span := c.times[i] - c.times[i-1]
			if span <= 0 {
				return i, i, 0
			}
			return i - 1, i, (t - c.times[i-1]) / span
		}
	}
	return n - 1, n - 1, 0
}

func (c *channelTrack) sampleVec3(t float32, fallback math.Vec3) math.Vec3 {
	if c == nil || len(c.values) == 0 {
		return fallback
	}
	i0, i1, alpha := c.bracket(t)
	a := math.Vec3{X: c.values[i0][0], Y: c.values[i0][1], Z: c.values[i0][2]}
	if i0 == i1 {
		return a
	}
	b := math.Vec3{X: c.values[i1][0], Y: c.values[i1][1], Z: c.values[i1][2]}
	return a.Lerp(b, alpha)
}

func (c *channelTrack) sampleQuat(t float32, fallback math.Quat) math.Quat {
	if c == nil || len(c.values) == 0 {
		return fallback
	}
	i0, i1, alpha := c.bracket(t)
	a := math.Quat{X: c.values[i0][0], Y: c.values[i0][1], Z: c.values[i0][2], W: c.values[i0][3]}
	if i0 == i1 {
		return a.Normalize()
	}
	b := math.Quat{X: c.values[i1][0], Y: c.values[i1][1], Z: c.values[i1][2], W: c.values[i1][3]}
	return a.Slerp(b, alpha).Normalize()
}

type jointChannels struct {
	translation *channelTrack
	rotation    *channelTrack
	scale       *channelTrack
}

// resampleAnimation converts one glTF animation into a fixed-rate clip:
// frame_count = ceil(duration * 30); each channel is sampled
// independently per frame; missing channels fall back to the joint's
// rest value.
func resampleAnimation(
	doc *gltfDoc,
	bin []byte,
	name string,
	channels []struct {
		Sampler int `json:"sampler"`
		Target  struct {
			Node *int   `json:"node"`
			Path string `json:"path"`
		} `json:"target"`
	},
	samplers []struct {
		Input         int    `json:"input"`
		Output        int    `json:"output"`
		Interpolation string `json:"interpolation"`
	},
	nodeToJoint map[int]uint16,
	joints []GLBJoint,
) (GLBClip, error) {
	perJoint := make(map[uint16]*jointChannels)
	var duration float32

	for _, ch := range channels {
		if ch.Target.Node == nil {
			continue
		}
		jointID, ok := nodeToJoint[*ch.Target.Node]
		if !ok {
			continue
		}
		if ch.Sampler < 0 || ch.Sampler >= len(samplers) {
			continue
		}
		s := samplers[ch.Sampler]

		timesRaw := readFloatAccessor(doc, bin, s.Input, 1)
		times := make([]float32, len(timesRaw))
		for i, v := range timesRaw {
			times[i] = v[0]
		}

		var components int
		switch ch.Target.Path {
		case "translation", "scale":
			components = 3
		case "rotation":
			components = 4
		default:
			continue
		}

		track := &channelTrack{
			times:  times,
			values: readFloatAccessor(doc, bin, s.Output, components),
		}
		if d := track.duration(); d > duration {
			duration = d
		}

		jc := perJoint[jointID]
		if jc == nil {
			jc = &jointChannels{}
			perJoint[jointID] = jc
		}
		switch ch.Target.Path {
		case "translation":
			jc.translation = track
		case "rotation":
			jc.rotation = track
		case "scale":
			jc.scale = track
		}
	}

	numFrames := uint32(stdmath.Ceil(float64(duration) * ClipFPS))
	if numFrames == 0 {
		numFrames = 1
	}

	clip := GLBClip{
		Name:         name,
		NumFrames:    numFrames,
		JointToFrame: make(map[uint16][]math.Mat4, len(perJoint)),
	}

	for jointID, jc := range perJoint {
		if int(jointID) >= len(joints) {
			continue
		}
		rest := &joints[jointID].Rest

		frames := make([]math.Mat4, numFrames)
		for f := uint32(0); f < numFrames; f++ {
			t := float32(f) / ClipFPS
			tr := jc.translation.sampleVec3(t, rest.Translation)
			rot := jc.rotation.sampleQuat(t, rest.Rotation)
			sc := jc.scale.sampleVec3(t, rest.Scale)
			// Final per-joint animated matrix composes against the rest
			// pose: rest_local_inverse * animated_TRS.
			frames[f] = rest.LocalInverse.Mul(math.FromTRS(tr, rot, sc))
		}
		clip.JointToFrame[jointID] = frames
	}

	return clip, nil
}

// ParseGLBFile parses a GLB file from disk.
func ParseGLBFile(path string) (*GLB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GLB file: %w", err)
	}
	return ParseGLB(data)
}
