package akaze

import (
	"math"
)

// Minimum admissible level size. Octaves whose levels would drop below
// it are not planned, except the very first one.
const (
	minLevelWidth  = 80
	minLevelHeight = 40
)

// evolutionLevel is one slot of the nonlinear scale space arena.
type evolutionLevel struct {
	width    int
	height   int
	esigma   float32 // level scale in pixels of the original image
	etime    float32 // evolution time matching esigma
	octave   int
	sublevel int
	// octaveRatio is 2^octave, the sampling ratio back to the original
	// image coordinates.
	octaveRatio float32
	// sigmaSize is the rounded derivative sampling scale inside the
	// octave, esigma*derivativeFactor/octaveRatio.
	sigmaSize int

	Lt      *Matrix // diffused image
	Lsmooth *Matrix // Gaussian smoothed Lt, released after the derivatives
	Lx, Ly  *Matrix // first order derivatives at sigmaSize
	Ldet    *Matrix // normalized Hessian determinant response
}

// planEvolution lays out the evolution arena for an image of the given
// size. Octave zero is always kept, later octaves stop once the level
// size falls under the minimum.
func planEvolution(opts Options, width, height int) []evolutionLevel {
	evolution := make([]evolutionLevel, 0, opts.Octaves*opts.Sublevels)

	for i, power := 0, 1; i < opts.Octaves; i, power = i+1, power*2 {
		rfactor := 1.0 / float64(power)
		levelW := int(float64(width) * rfactor)
		levelH := int(float64(height) * rfactor)

		if (levelW < minLevelWidth || levelH < minLevelHeight) && i != 0 {
			break
		}
		for j := 0; j < opts.Sublevels; j++ {
			esigma := opts.SOffset * math.Pow(2.0, float64(j)/float64(opts.Sublevels)+float64(i))
			evolution = append(evolution, evolutionLevel{
				width:       levelW,
				height:      levelH,
				esigma:      float32(esigma),
				etime:       float32(0.5 * esigma * esigma),
				octave:      i,
				sublevel:    j,
				octaveRatio: float32(power),
				sigmaSize:   fRound(float32(esigma * opts.DerivativeFactor / float64(power))),
			})
		}
	}
	return evolution
}

// fedSchedules precomputes the FED step sizes for every consecutive
// level pair of the arena.
func fedSchedules(evolution []evolutionLevel) [][]float32 {
	if len(evolution) < 2 {
		return nil
	}
	tsteps := make([][]float32, 0, len(evolution)-1)
	for i := 1; i < len(evolution); i++ {
		ttime := float64(evolution[i].etime - evolution[i-1].etime)
		tsteps = append(tsteps, fedTauByProcessTime(ttime, 1, maxStepSize, true))
	}
	return tsteps
}

// createScaleSpace builds the nonlinear scale space from the base image
// and computes the detector responses of every level.
func (a *AKAZE) createScaleSpace(img *Matrix) {
	ev := a.evolution
	base := &ev[0]
	base.Lsmooth = gaussianBlur(img, gaussianKernelSize(a.opts.SOffset), a.opts.SOffset)
	base.Lt = base.Lsmooth.Clone()

	if len(ev) == 1 {
		a.computeHessianResponses()
		return
	}

	// Contrast factor from the gradient statistics of a lightly
	// smoothed copy of the input.
	smooth := gaussianBlur(img, 5, 1.0)
	lx := scharrDerivative(smooth, 1, 0)
	ly := scharrDerivative(smooth, 0, 1)
	kcontrast := computeContrastFactor(lx, ly, a.opts.KContrastPercentile, a.opts.KContrastBins)

	for i := 1; i < len(ev); i++ {
		level := &ev[i]
		prev := &ev[i-1]

		if level.octave > prev.octave {
			level.Lt = halfSample(prev.Lt, level.height, level.width)
			kcontrast *= 0.75
		} else {
			level.Lt = prev.Lt.Clone()
		}
		level.Lsmooth = gaussianBlur(level.Lt, 5, 1.0)
		lx = scharrDerivative(level.Lsmooth, 1, 0)
		ly = scharrDerivative(level.Lsmooth, 0, 1)
		lflow := computeDiffusivity(lx, ly, float32(kcontrast), a.opts.Diffusivity)

		lstep := NewMatrix(level.Lt.Rows, level.Lt.Cols)
		for _, tau := range a.tsteps[i-1] {
			// Half step size, the stencil sums each conductivity pair
			// instead of averaging it.
			nldStep(level.Lt, lflow, lstep, tau*0.5)
			level.Lt.addInPlace(lstep)
		}
	}
	a.computeHessianResponses()
}
