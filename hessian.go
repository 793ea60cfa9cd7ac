package akaze

import (
	"github.com/anthonynsimon/bild/parallel"
)

// computeHessianResponses computes the first order derivatives and the
// normalized Hessian determinant of every evolution level. Levels are
// independent, so the work fans out over the arena.
func (a *AKAZE) computeHessianResponses() {
	parallel.Line(len(a.evolution), func(start, end int) {
		for i := start; i < end; i++ {
			a.computeLevelResponse(&a.evolution[i])
		}
	})
}

// computeLevelResponse fills Lx, Ly and Ldet of one level and releases
// the smoothing buffer.
func (a *AKAZE) computeLevelResponse(level *evolutionLevel) {
	scale := level.sigmaSize

	level.Lx = scaledDerivative(level.Lsmooth, 1, 0, scale)
	lxx := scaledDerivative(level.Lx, 1, 0, scale)
	lxy := scaledDerivative(level.Lx, 0, 1, scale)

	level.Ly = scaledDerivative(level.Lsmooth, 0, 1, scale)
	lyy := scaledDerivative(level.Ly, 0, 1, scale)

	level.Lsmooth = nil

	s := float32(scale)
	sigmaQuad := s * s * s * s
	level.Ldet = computeDeterminant(lxx, lxy, lyy, sigmaQuad)
}

// computeDeterminant evaluates (Lxx*Lyy - Lxy^2) * sigmaQuad.
func computeDeterminant(lxx, lxy, lyy *Matrix, sigmaQuad float32) *Matrix {
	if flatKernelsEnabled() {
		if dst := flatDeterminant(lxx, lxy, lyy, sigmaQuad); dst != nil {
			return dst
		}
	}

	dst := NewMatrix(lxx.Rows, lxx.Cols)
	for i := range dst.Data {
		dst.Data[i] = (lxx.Data[i]*lyy.Data[i] - lxy.Data[i]*lxy.Data[i]) * sigmaQuad
	}
	return dst
}
