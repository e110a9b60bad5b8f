// CAL (creature skeleton) format parser.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/voidworks/darkvr/pkg/math"
	"github.com/voidworks/darkvr/pkg/units"
)

// CAL format errors.
var (
	ErrTruncatedCALData      = errors.New("truncated CAL data")
	ErrUnsupportedCALVersion = errors.New("unsupported CAL version")
	ErrInvalidCALCount       = errors.New("invalid CAL torso/limb count")
)

// calMaxSlots is the fixed per-record slot count for fixed points and
// limb segments.
const calMaxSlots = 16

// CALTorso is a body trunk in the upper skeleton hierarchy. Parent is an
// index into the torso array (-1 for the root torso), not a joint ID.
type CALTorso struct {
	Joint          int32
	Parent         int32
	NumFixedPoints int32
	JointID        [calMaxSlots]int32
	Points         [calMaxSlots][3]float32
}

// CALLimb is a chain of segments hanging off an attachment joint.
// Segment j's local translation is Directions[j] * Lengths[j].
type CALLimb struct {
	TorsoIndex      int32
	Bend            int32
	NumSegments     int32
	AttachmentJoint uint16
	Segments        [calMaxSlots]uint16
	Directions      [calMaxSlots][3]float32
	Lengths         [calMaxSlots]float32
}

// CAL is a parsed creature skeleton file.
type CAL struct {
	Version uint32
	Torsos  []CALTorso
	Limbs   []CALLimb
}

// CALJointPlacement is one joint of the flattened skeleton: a joint ID,
// the parent joint (-1 for a root) and the local rest transform.
type CALJointPlacement struct {
	JointID uint16
	Parent  int32
	Local   math.Mat4
}

// ParseCAL parses CAL data from a byte slice.
func ParseCAL(data []byte) (*CAL, error) {
	if len(data) < 12 {
		return nil, ErrTruncatedCALData
	}

	r := bytes.NewReader(data)

	cal := &CAL{}
	binary.Read(r, binary.LittleEndian, &cal.Version)
	if cal.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCALVersion, cal.Version)
	}

	var numTorsos, numLimbs int32
	binary.Read(r, binary.LittleEndian, &numTorsos)
	binary.Read(r, binary.LittleEndian, &numLimbs)

	if numTorsos < 1 || numTorsos > 64 || numLimbs < 0 || numLimbs > 64 {
		return nil, ErrInvalidCALCount
	}

	cal.Torsos = make([]CALTorso, numTorsos)
	for i := int32(0); i < numTorsos; i++ {
		if err := binary.Read(r, binary.LittleEndian, &cal.Torsos[i]); err != nil {
			return nil, fmt.Errorf("parsing torso %d: %w", i, ErrTruncatedCALData)
		}
	}

	cal.Limbs = make([]CALLimb, numLimbs)
	for i := int32(0); i < numLimbs; i++ {
		l := &cal.Limbs[i]
		for _, field := range []any{
			&l.TorsoIndex, &l.Bend, &l.NumSegments, &l.AttachmentJoint,
			&l.Segments, &l.Directions, &l.Lengths,
		} {
			if err := binary.Read(r, binary.LittleEndian, field); err != nil {
				return nil, fmt.Errorf("parsing limb %d: %w", i, ErrTruncatedCALData)
			}
		}
	}

	return cal, nil
}

// Placements flattens the torso/limb hierarchy into joint placements.
// Offsets are scaled into world meters. The first torso carries the
// engine's rotation_y(90 deg) root convention. Torso parents are torso
// indices and resolve to the parent torso's joint; an out-of-range
// parent index degrades to a root placement.
func (cal *CAL) Placements() []CALJointPlacement {
	var out []CALJointPlacement

	for ti := range cal.Torsos {
		t := &cal.Torsos[ti]

		local := math.Identity()
		if ti == 0 {
			local = math.RotateY(math.Deg2Rad(90))
		}

		parent := int32(-1)
		if t.Parent >= 0 {
			if int(t.Parent) < len(cal.Torsos) {
				pt := &cal.Torsos[t.Parent]
				parent = pt.Joint
				// A child torso sits at the parent's fixed point that
				// shares its joint ID.
				for i := int32(0); i < pt.NumFixedPoints && i < calMaxSlots; i++ {
					if pt.JointID[i] == t.Joint {
						local = math.TranslateVec3(units.ToWorld(vec3From(pt.Points[i])))
						break
					}
				}
			}
			// else: invalid torso parent index, keep as root; the
			// skeleton builder logs the re-parent.
		}

		out = append(out, CALJointPlacement{
			JointID: uint16(t.Joint),
			Parent:  parent,
			Local:   local,
		})

		for i := int32(0); i < t.NumFixedPoints && i < calMaxSlots; i++ {
			out = append(out, CALJointPlacement{
				JointID: uint16(t.JointID[i]),
				Parent:  t.Joint,
				Local:   math.TranslateVec3(units.ToWorld(vec3From(t.Points[i]))),
			})
		}
	}

	for li := range cal.Limbs {
		l := &cal.Limbs[li]
		prev := int32(l.AttachmentJoint)
		for s := int32(0); s < l.NumSegments && s < calMaxSlots; s++ {
			offset := vec3From(l.Directions[s]).Scale(l.Lengths[s])
			out = append(out, CALJointPlacement{
				JointID: l.Segments[s],
				Parent:  prev,
				Local:   math.TranslateVec3(units.ToWorld(offset)),
			})
			prev = int32(l.Segments[s])
		}
	}

	return out
}

func vec3From(v [3]float32) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// ParseCALFile parses a CAL file from disk.
func ParseCALFile(path string) (*CAL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CAL file: %w", err)
	}
	return ParseCAL(data)
}
