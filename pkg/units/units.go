// Package units reconciles the source engine's unit system (feet) with
// the target world's meters. All inbound positions, velocities and
// bounding boxes are divided by ScaleFactor on the way in.
package units

import "github.com/voidworks/darkvr/pkg/math"

// ScaleFactor is the number of engine units per world meter.
const ScaleFactor float32 = 3.2808399

// ToWorld converts an engine-space vector to world meters.
func ToWorld(v math.Vec3) math.Vec3 {
	return v.Scale(1 / ScaleFactor)
}

// ToEngine converts a world-space vector back to engine units.
func ToEngine(v math.Vec3) math.Vec3 {
	return v.Scale(ScaleFactor)
}
