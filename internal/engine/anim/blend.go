package anim

import "github.com/voidworks/darkvr/pkg/math"

// BlendAffine interpolates between two affine joint transforms.
// Translation is interpolated linearly; rotation is extracted from the
// upper 3x3, slerped, and recomposed. Alpha outside (0, 1) returns the
// corresponding input unchanged, so a zero or full blend is exact.
func BlendAffine(from, to math.Mat4, alpha float32) math.Mat4 {
	if alpha <= 0 {
		return from
	}
	if alpha >= 1 {
		return to
	}

	qa := math.QuatFromMat3x3(from.Mat3x3())
	qb := math.QuatFromMat3x3(to.Mat3x3())
	rot := qa.Slerp(qb, alpha).Normalize()

	tr := from.Translation().Lerp(to.Translation(), alpha)
	return math.TranslateVec3(tr).Mul(rot.ToMat4())
}
