package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	want := Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	if m != want {
		t.Errorf("Identity() = %v, want %v", m, want)
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(1, 2, 3)
	p := m.TransformVec3(Vec3{0, 0, 0})
	want := Vec3{1, 2, 3}
	if p != want {
		t.Errorf("Translate point = %v, want %v", p, want)
	}
}

func TestMulOrder(t *testing.T) {
	// T * R applied to origin should land at the translation.
	m := Translate(5, 0, 0).Mul(RotateY(float32(math.Pi / 2)))
	p := m.TransformVec3(Vec3{0, 0, 0})
	if absDiff(p.X, 5) > 1e-5 || absDiff(p.Y, 0) > 1e-5 || absDiff(p.Z, 0) > 1e-5 {
		t.Errorf("T*R origin = %v, want (5,0,0)", p)
	}

	// Rotation applies before translation.
	p2 := m.TransformVec3(Vec3{1, 0, 0})
	if absDiff(p2.Z, 1) > 1e-5 {
		t.Errorf("T*R (1,0,0) = %v, want z~1", p2)
	}
}

func TestTranslationTruncatesW(t *testing.T) {
	m := Translate(3, -2, 7)
	m[15] = 2 // non-unit w must not affect extraction
	got := m.Translation()
	want := Vec3{3, -2, 7}
	if got != want {
		t.Errorf("Translation() = %v, want %v", got, want)
	}
}

func TestInverse(t *testing.T) {
	m := Translate(1, 2, 3).Mul(RotateZ(0.7)).Mul(Scale(2, 2, 2))
	inv := m.Inverse()
	id := m.Mul(inv)
	want := Identity()
	for i := 0; i < 16; i++ {
		if absDiff(id[i], want[i]) > 1e-4 {
			t.Fatalf("m * m^-1 element %d = %v, want %v", i, id[i], want[i])
		}
	}
}

func TestFromTRS(t *testing.T) {
	tr := Vec3{1, 2, 3}
	r := QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/2))
	s := Vec3{2, 2, 2}

	m := FromTRS(tr, r, s)

	// Origin maps to translation.
	if got := m.TransformVec3(Vec3{}); got != tr {
		t.Errorf("FromTRS origin = %v, want %v", got, tr)
	}

	// Unit X scales then rotates: (1,0,0) -> (2,0,0) -> (0,0,2), then translates.
	got := m.TransformVec3(Vec3{1, 0, 0})
	want := Vec3{1, 2, 5}
	if absDiff(got.X, want.X) > 1e-4 || absDiff(got.Y, want.Y) > 1e-4 || absDiff(got.Z, want.Z) > 1e-4 {
		t.Errorf("FromTRS (1,0,0) = %v, want %v", got, want)
	}
}

func TestQuatFromMat3x3RoundTrip(t *testing.T) {
	angles := []float32{0.1, 0.9, 2.3, -1.2}
	for _, a := range angles {
		q := QuatFromAxisAngle(Vec3{0, 1, 0}, a).Normalize()
		back := QuatFromMat3x3(q.ToMat4().Mat3x3())

		// q and -q encode the same rotation.
		if back.Dot(q) < 0 {
			back = Quat{-back.X, -back.Y, -back.Z, -back.W}
		}
		if absDiff(back.X, q.X) > 1e-4 || absDiff(back.Y, q.Y) > 1e-4 ||
			absDiff(back.Z, q.Z) > 1e-4 || absDiff(back.W, q.W) > 1e-4 {
			t.Errorf("angle %v: round-trip = %+v, want %+v", a, back, q)
		}

		norm := float32(math.Sqrt(float64(back.Dot(back))))
		if absDiff(norm, 1) > 1e-5 {
			t.Errorf("angle %v: round-trip norm = %v, want 1", a, norm)
		}
	}
}

func absDiff(a, b float32) float32 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
