package akaze

import (
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// gauss25 is the 2D Gaussian lookup table (sigma 2.5) with (0,0) at the
// top left corner.
var gauss25 = [7][7]float32{
	{0.02546481, 0.02350698, 0.01849125, 0.01239505, 0.00708017, 0.00344629, 0.00142946},
	{0.02350698, 0.02169968, 0.01706957, 0.01144208, 0.00653582, 0.00318132, 0.00131956},
	{0.01849125, 0.01706957, 0.01342740, 0.00900066, 0.00514126, 0.00250252, 0.00103800},
	{0.01239505, 0.01144208, 0.00900066, 0.00603332, 0.00344629, 0.00167749, 0.00069579},
	{0.00708017, 0.00653582, 0.00514126, 0.00344629, 0.00196855, 0.00095820, 0.00039744},
	{0.00344629, 0.00318132, 0.00250252, 0.00167749, 0.00095820, 0.00046640, 0.00019346},
	{0.00142946, 0.00131956, 0.00103800, 0.00069579, 0.00039744, 0.00019346, 0.00008024},
}

// orientationSamples is the number of grid points with i*i+j*j < 36
// inside the [-6, 6] square.
const orientationSamples = 109

// orientationPattern holds the precomputed disc offsets and weights of
// the orientation sampling window.
type orientationPattern struct {
	weight [orientationSamples]float32
	xidx   [orientationSamples]int8
	yidx   [orientationSamples]int8
}

var orientPattern = buildOrientationPattern()

func buildOrientationPattern() orientationPattern {
	id := [13]int{6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6}
	var p orientationPattern
	k := 0
	for i := -6; i <= 6; i++ {
		for j := -6; j <= 6; j++ {
			if i*i+j*j < 36 {
				p.weight[k] = gauss25[id[i+6]][id[j+6]]
				p.yidx[k] = int8(i)
				p.xidx[k] = int8(j)
				k++
			}
		}
	}
	return p
}

// sampleDerivativeDisc collects the Gaussian weighted derivative
// responses on the disc of radius 6*scale around (x0, y0).
func sampleDerivativeDisc(lx, ly *Matrix, x0, y0, scale int, resX, resY *[orientationSamples]float32) {
	cols := lx.Cols
	for i := 0; i < orientationSamples; i++ {
		j := (y0+int(orientPattern.yidx[i])*scale)*cols + x0 + int(orientPattern.xidx[i])*scale
		resX[i] = orientPattern.weight[i] * lx.Data[j]
		resY[i] = orientPattern.weight[i] * ly.Data[j]
	}
}

// quantizedCountingSort sorts a by its quantized values. a[i] must lie
// in [0, max). After the call a[idx[cum[k]]] .. a[idx[cum[k+1]-1]] all
// carry the quantized label k; the sort is unstable.
func quantizedCountingSort(a []float32, quantum, max float32, idx, cum []uint8) {
	nkeys := int(max / quantum)
	for i := 0; i <= nkeys; i++ {
		cum[i] = 0
	}
	for i := range a {
		cum[int(a[i]/quantum)]++
	}
	for i := 1; i <= nkeys; i++ {
		cum[i] += cum[i-1]
	}
	for i := range a {
		key := int(a[i] / quantum)
		cum[key]--
		idx[cum[key]] = uint8(i)
	}
}

// computeMainOrientation finds the dominant orientation of the keypoint
// by sliding a pi/3 window over the angle sorted gradient responses,
// following the approach of Bay et al., Speeded Up Robust Features.
func (a *AKAZE) computeMainOrientation(kpt *Keypoint) {
	level := &a.evolution[kpt.LevelID]
	ratio := level.octaveRatio
	scale := fRound(0.5 * kpt.Size / ratio)
	x0 := fRound(kpt.X / ratio)
	y0 := fRound(kpt.Y / ratio)

	var resX, resY, ang [orientationSamples]float32
	sampleDerivativeDisc(level.Lx, level.Ly, x0, y0, scale, &resX, &resY)
	for i := 0; i < orientationSamples; i++ {
		ang[i] = angleRad(resY[i], resX[i])
	}

	// Angles are labeled by slices of roughly 0.15 radian.
	const slices = 42
	const win = 7
	angStep := float32(2.0 * math.Pi / slices)
	var slice [slices + 1]uint8
	var sorted [orientationSamples]uint8
	quantizedCountingSort(ang[:], angStep, float32(2.0*math.Pi), sorted[:], slice[:])

	var maxX, maxY float32
	for i := slice[0]; i < slice[win]; i++ {
		maxX += resX[sorted[i]]
		maxY += resY[sorted[i]]
	}
	maxNorm := maxX*maxX + maxY*maxY

	for sn := 1; sn <= slices-win; sn++ {
		if slice[sn] == slice[sn-1] && slice[sn+win] == slice[sn+win-1] {
			// The window contents did not change.
			continue
		}
		var sumX, sumY float32
		for i := slice[sn]; i < slice[sn+win]; i++ {
			sumX += resX[sorted[i]]
			sumY += resY[sorted[i]]
		}
		if norm := sumX*sumX + sumY*sumY; norm > maxNorm {
			maxNorm, maxX, maxY = norm, sumX, sumY
		}
	}

	// Windows wrapping around the angle origin.
	for sn := slices - win + 1; sn < slices; sn++ {
		remain := sn + win - slices
		if slice[sn] == slice[sn-1] && slice[remain] == slice[remain-1] {
			continue
		}
		var sumX, sumY float32
		for i := slice[sn]; i < slice[slices]; i++ {
			sumX += resX[sorted[i]]
			sumY += resY[sorted[i]]
		}
		for i := slice[0]; i < slice[remain]; i++ {
			sumX += resX[sorted[i]]
			sumY += resY[sorted[i]]
		}
		if norm := sumX*sumX + sumY*sumY; norm > maxNorm {
			maxNorm, maxX, maxY = norm, sumX, sumY
		}
	}

	kpt.Angle = angleDeg(maxY, maxX)
}

// computeOrientations assigns the dominant orientation to every
// keypoint in parallel.
func (a *AKAZE) computeOrientations(kpts []Keypoint) {
	parallel.Line(len(kpts), func(start, end int) {
		for i := start; i < end; i++ {
			a.computeMainOrientation(&kpts[i])
		}
	})
}
