// MC (motion clip) format parser.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/voidworks/darkvr/pkg/math"
)

// MC format errors.
var (
	ErrInvalidMCMagic       = errors.New("invalid MC magic: expected 'DKMC'")
	ErrUnsupportedMCVersion = errors.New("unsupported MC version")
	ErrTruncatedMCData      = errors.New("truncated MC data")
	ErrInvalidMCFrameCount  = errors.New("invalid MC frame count")
)

// MotionFlags is a bitset attached to a specific frame of a clip; each
// set bit triggers an engine event when the frame is crossed.
type MotionFlags uint32

const (
	MotionFlagFire          MotionFlags = 1 << 0
	MotionFlagFootstepLeft  MotionFlags = 1 << 1
	MotionFlagFootstepRight MotionFlags = 1 << 2
	MotionFlagEndAttack     MotionFlags = 1 << 3
	MotionFlagDie           MotionFlags = 1 << 4
	MotionFlagInteract      MotionFlags = 1 << 5
)

// MCFrameFlag marks a frame with motion flags.
type MCFrameFlag struct {
	Frame uint32
	Flags MotionFlags
}

// MCJointTrack holds one joint's per-frame local transforms.
type MCJointTrack struct {
	JointID uint16
	Frames  []math.Mat4
}

// MC is a parsed motion clip file. On disk every frame sample is a
// translation (3 x f32) followed by a quaternion (x, y, z, w); samples
// compose into local matrices at parse time.
type MC struct {
	Name            string
	Version         uint32
	NumFrames       uint32
	FPS             float32
	SlidingVelocity math.Vec3
	Translation     math.Vec3
	EndRotationDeg  float32
	BlendLengthMs   uint32
	Tracks          []MCJointTrack
	RootTransforms  []math.Mat4
	Flags           []MCFrameFlag
}

// ParseMC parses MC data from a byte slice.
func ParseMC(data []byte) (*MC, error) {
	if len(data) < 8 {
		return nil, ErrTruncatedMCData
	}

	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil {
		return nil, ErrTruncatedMCData
	}
	if string(magic) != "DKMC" {
		return nil, ErrInvalidMCMagic
	}

	mc := &MC{}
	if err := binary.Read(r, binary.LittleEndian, &mc.Version); err != nil {
		return nil, ErrTruncatedMCData
	}
	if mc.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMCVersion, mc.Version)
	}

	mc.Name = readString(r, 32)

	var numJoints, numFlags uint32
	var hasRoot uint8
	header := []any{
		&mc.NumFrames, &mc.FPS,
		&mc.SlidingVelocity.X, &mc.SlidingVelocity.Y, &mc.SlidingVelocity.Z,
		&mc.Translation.X, &mc.Translation.Y, &mc.Translation.Z,
		&mc.EndRotationDeg, &mc.BlendLengthMs,
		&numJoints, &numFlags, &hasRoot,
	}
	for _, field := range header {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, ErrTruncatedMCData
		}
	}

	if mc.NumFrames == 0 || mc.NumFrames > 100000 {
		return nil, ErrInvalidMCFrameCount
	}
	if numJoints > 256 || numFlags > 10000 {
		return nil, ErrInvalidMCFrameCount
	}
	if mc.FPS <= 0 {
		mc.FPS = 30
	}

	mc.Tracks = make([]MCJointTrack, numJoints)
	for i := uint32(0); i < numJoints; i++ {
		track := &mc.Tracks[i]
		var pad uint16
		if err := binary.Read(r, binary.LittleEndian, &track.JointID); err != nil {
			return nil, fmt.Errorf("parsing track %d: %w", i, ErrTruncatedMCData)
		}
		if err := binary.Read(r, binary.LittleEndian, &pad); err != nil {
			return nil, fmt.Errorf("parsing track %d: %w", i, ErrTruncatedMCData)
		}

		track.Frames = make([]math.Mat4, mc.NumFrames)
		for f := uint32(0); f < mc.NumFrames; f++ {
			m, err := readTRSample(r)
			if err != nil {
				return nil, fmt.Errorf("parsing track %d frame %d: %w", i, f, err)
			}
			track.Frames[f] = m
		}
	}

	if hasRoot != 0 {
		mc.RootTransforms = make([]math.Mat4, mc.NumFrames)
		for f := uint32(0); f < mc.NumFrames; f++ {
			m, err := readTRSample(r)
			if err != nil {
				return nil, fmt.Errorf("parsing root frame %d: %w", f, err)
			}
			mc.RootTransforms[f] = m
		}
	}

	mc.Flags = make([]MCFrameFlag, numFlags)
	for i := uint32(0); i < numFlags; i++ {
		fl := &mc.Flags[i]
		for _, field := range []any{&fl.Frame, &fl.Flags} {
			if err := binary.Read(r, binary.LittleEndian, field); err != nil {
				return nil, fmt.Errorf("parsing flag %d: %w", i, ErrTruncatedMCData)
			}
		}
	}

	return mc, nil
}

// readTRSample reads a translation + quaternion sample and composes the
// local matrix.
func readTRSample(r *bytes.Reader) (math.Mat4, error) {
	var t [3]float32
	var q [4]float32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return math.Identity(), ErrTruncatedMCData
	}
	if err := binary.Read(r, binary.LittleEndian, &q); err != nil {
		return math.Identity(), ErrTruncatedMCData
	}
	rot := math.Quat{X: q[0], Y: q[1], Z: q[2], W: q[3]}
	return math.TranslateVec3(math.Vec3{X: t[0], Y: t[1], Z: t[2]}).Mul(rot.ToMat4()), nil
}

// readString reads a fixed-length null-terminated string from a reader.
func readString(r *bytes.Reader, length int) string {
	buf := make([]byte, length)
	r.Read(buf)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// ParseMCFile parses an MC file from disk.
func ParseMCFile(path string) (*MC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MC file: %w", err)
	}
	return ParseMC(data)
}
