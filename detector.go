package akaze

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Keypoint is a detected scale space feature. Coordinates are subpixel
// positions in the original image, Size is the feature diameter in
// pixels and Angle the dominant orientation in degrees within [0, 360),
// zero for the upright descriptor families.
type Keypoint struct {
	X        float32
	Y        float32
	Size     float32
	Angle    float32
	Response float32
	Octave   int
	// LevelID indexes the evolution level the keypoint was found on.
	LevelID int
}

// supportRadius returns the half width factor of the descriptor
// sampling window, used to keep keypoints whose window would leave the
// level out of the candidate set.
func supportRadius(d DescriptorType) float32 {
	if d.isBinary() {
		return float32(10.0 * math.Sqrt2)
	}
	return float32(12.0 * math.Sqrt2)
}

// findScaleSpaceExtrema scans every level response for thresholded
// strict 8-neighbor maxima and removes duplicates across neighboring
// scales, keeping the stronger response.
func (a *AKAZE) findScaleSpaceExtrema() []Keypoint {
	smax := supportRadius(a.opts.Descriptor)
	threshold := float32(a.opts.DThreshold)
	minThreshold := float32(a.opts.MinDThreshold)

	var candidates []Keypoint
	for i := range a.evolution {
		level := &a.evolution[i]
		ldet := level.Ldet
		ratio := level.octaveRatio
		size := level.esigma * float32(a.opts.DerivativeFactor)
		sigmaSize := fRound(size / ratio)
		window := smax * float32(sigmaSize)

		for y := 1; y < ldet.Rows-1; y++ {
			prev := ldet.Row(y - 1)
			curr := ldet.Row(y)
			next := ldet.Row(y + 1)

			for x := 1; x < ldet.Cols-1; x++ {
				value := curr[x]
				if value <= threshold || value < minThreshold {
					continue
				}
				if value <= curr[x-1] || value <= curr[x+1] ||
					value <= prev[x-1] || value <= prev[x] || value <= prev[x+1] ||
					value <= next[x-1] || value <= next[x] || value <= next[x+1] {
					continue
				}

				point := Keypoint{
					X:        float32(x),
					Y:        float32(y),
					Size:     size,
					Response: abs32(value),
					Octave:   level.octave,
					LevelID:  i,
				}

				// Compare against the candidates of the same and the
				// previous level, replacing the weaker one in place.
				isExtremum := true
				isRepeated := false
				idRepeated := 0
				for k := range candidates {
					other := &candidates[k]
					if other.LevelID != point.LevelID && other.LevelID != point.LevelID-1 {
						continue
					}
					distX := point.X*ratio - other.X
					distY := point.Y*ratio - other.Y
					if distX*distX+distY*distY <= point.Size*point.Size {
						if point.Response > other.Response {
							idRepeated = k
							isRepeated = true
						} else {
							isExtremum = false
						}
						break
					}
				}
				if !isExtremum {
					continue
				}

				// The descriptor sampling window must fit the level.
				leftX := fRound(point.X-window) - 1
				rightX := fRound(point.X+window) + 1
				upY := fRound(point.Y-window) - 1
				downY := fRound(point.Y+window) + 1
				if leftX < 0 || rightX >= ldet.Cols || upY < 0 || downY >= ldet.Rows {
					continue
				}

				point.X = point.X*ratio + 0.5*(ratio-1)
				point.Y = point.Y*ratio + 0.5*(ratio-1)
				if isRepeated {
					candidates[idRepeated] = point
				} else {
					candidates = append(candidates, point)
				}
			}
		}
	}

	// Forward pass against the next finer-to-coarser level. Only later
	// candidates can suppress earlier ones here, keeping the historical
	// walk order.
	kpts := make([]Keypoint, 0, len(candidates))
	for i := range candidates {
		point := candidates[i]
		suppressed := false
		for j := i + 1; j < len(candidates); j++ {
			other := &candidates[j]
			if other.LevelID != point.LevelID+1 {
				continue
			}
			distX := point.X - other.X
			distY := point.Y - other.Y
			if distX*distX+distY*distY <= point.Size*point.Size &&
				point.Response < other.Response {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kpts = append(kpts, point)
		}
	}
	return kpts
}

// subpixelRefinement fits a quadratic to the 3x3 response neighborhood
// of every keypoint and shifts it by the fitted offset. Keypoints whose
// fit diverges or is singular are dropped.
func (a *AKAZE) subpixelRefinement(kpts []Keypoint) []Keypoint {
	refined := kpts[:0]
	jacobian := mat.NewDense(2, 2, nil)
	rhs := mat.NewVecDense(2, nil)

	for _, kpt := range kpts {
		level := &a.evolution[kpt.LevelID]
		ratio := level.octaveRatio
		x := fRound(kpt.X / ratio)
		y := fRound(kpt.Y / ratio)

		ldet := level.Ldet
		up := ldet.Row(y - 1)
		mid := ldet.Row(y)
		down := ldet.Row(y + 1)

		dx := 0.5 * (mid[x+1] - mid[x-1])
		dy := 0.5 * (down[x] - up[x])
		dxx := mid[x+1] + mid[x-1] - 2.0*mid[x]
		dyy := down[x] + up[x] - 2.0*mid[x]
		dxy := 0.25*(down[x+1]+up[x-1]) - 0.25*(up[x+1]+down[x-1])

		jacobian.Set(0, 0, float64(dxx))
		jacobian.Set(0, 1, float64(dxy))
		jacobian.Set(1, 0, float64(dxy))
		jacobian.Set(1, 1, float64(dyy))
		rhs.SetVec(0, float64(-dx))
		rhs.SetVec(1, float64(-dy))

		var offset mat.VecDense
		if err := offset.SolveVec(jacobian, rhs); err != nil {
			// Singular neighborhood, the fit carries no information.
			continue
		}
		ox := offset.AtVec(0)
		oy := offset.AtVec(1)
		if math.Abs(ox) > 1.0 || math.Abs(oy) > 1.0 {
			continue
		}

		kpt.X = (float32(x) + float32(ox))*ratio + 0.5*(ratio-1)
		kpt.Y = (float32(y) + float32(oy))*ratio + 0.5*(ratio-1)
		kpt.Angle = 0
		kpt.Size *= 2
		refined = append(refined, kpt)
	}
	return refined
}
