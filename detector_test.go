package akaze

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// makeBlobImage renders a single Gaussian blob, the simplest image with
// one well defined scale space extremum.
func makeBlobImage(width, height int, cx, cy, sigma float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			v := uint8(math.Round(255.0 * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 0xff})
		}
	}
	return img
}

func TestDetector_ShouldFindTheBlobCenter(t *testing.T) {
	assert := assert.New(t)

	img := makeBlobImage(160, 120, 80.3, 60.2, 8)
	for _, octaves := range []int{1, 2, 4} {
		opts := DefaultOptions()
		opts.Octaves = octaves
		det, err := New(opts)
		assert.NoError(err)

		kpts, err := det.Detect(img)
		assert.NoError(err)
		assert.NotEmpty(kpts, "octaves %d", octaves)

		for _, kpt := range kpts {
			dx := float64(kpt.X) - 80.3
			dy := float64(kpt.Y) - 60.2
			assert.Less(math.Hypot(dx, dy), 8.0)
			assert.Greater(kpt.Size, float32(0))
			assert.GreaterOrEqual(kpt.LevelID, 0)
			assert.Less(kpt.LevelID, len(det.evolution))
			assert.Equal(det.evolution[kpt.LevelID].octave, kpt.Octave)
			assert.GreaterOrEqual(kpt.Angle, float32(0))
			assert.LessOrEqual(kpt.Angle, float32(360))
		}
	}
}

func TestDetector_ResponseShouldBeComparableAcrossScales(t *testing.T) {
	assert := assert.New(t)

	peak := func(sigma float64) float64 {
		img := makeBlobImage(320, 240, 160.3, 120.2, sigma)
		det, err := New(DefaultOptions())
		assert.NoError(err)

		kpts, err := det.Detect(img)
		assert.NoError(err)
		assert.NotEmpty(kpts)

		var best float32
		for _, kpt := range kpts {
			if kpt.Response > best {
				best = kpt.Response
			}
		}
		return float64(best)
	}

	// The sigma^4 normalization keeps the peak determinant response of
	// the same structure comparable one octave apart.
	small := peak(4)
	large := peak(8)
	assert.Greater(small, 0.0)
	assert.Greater(large, 0.0)

	ratio := small / large
	assert.Greater(ratio, 0.25)
	assert.Less(ratio, 4.0)
}

func dedupLevel(rows, cols int, esigma float32) evolutionLevel {
	return evolutionLevel{
		width:       cols,
		height:      rows,
		esigma:      esigma,
		octaveRatio: 1,
		Ldet:        NewMatrix(rows, cols),
	}
}

func TestDetector_NeighborScaleDuplicatesKeepTheStrongerResponse(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		first, second float32
		expectedX     float32
	}{
		// The stronger response replaces the weaker one no matter which
		// level produced it first.
		{0.5, 0.6, 102},
		{0.6, 0.5, 100},
	}
	for _, tc := range cases {
		l0 := dedupLevel(100, 200, 2)
		l1 := dedupLevel(100, 200, 2)
		l0.Ldet.Set(100, 50, tc.first)
		l1.Ldet.Set(102, 50, tc.second)

		a := &AKAZE{opts: DefaultOptions(), evolution: []evolutionLevel{l0, l1}}
		kpts := a.findScaleSpaceExtrema()
		assert.Equal(1, len(kpts))
		assert.InDelta(0.6, float64(kpts[0].Response), 1e-6)
		assert.InDelta(float64(tc.expectedX), float64(kpts[0].X), 1e-4)
		assert.InDelta(50.0, float64(kpts[0].Y), 1e-4)
	}
}

func TestDetector_WindowCheckShouldDropBorderExtrema(t *testing.T) {
	assert := assert.New(t)

	level := dedupLevel(100, 200, 2)
	// Strong response whose sampling window sticks out of the level.
	level.Ldet.Set(10, 50, 0.9)

	a := &AKAZE{opts: DefaultOptions(), evolution: []evolutionLevel{level}}
	assert.Empty(a.findScaleSpaceExtrema())
}

func refinementFixture(ldet *Matrix) *AKAZE {
	return &AKAZE{
		opts:      DefaultOptions(),
		evolution: []evolutionLevel{{octaveRatio: 1, Ldet: ldet}},
	}
}

func TestDetector_SubpixelRefinementShouldRecoverTheTruePeak(t *testing.T) {
	assert := assert.New(t)

	m := NewMatrix(80, 80)
	for y := 0; y < m.Rows; y++ {
		row := m.Row(y)
		for x := 0; x < m.Cols; x++ {
			dx := float64(x) - 30.3
			dy := float64(y) - 40.6
			row[x] = float32(1.0 - 0.01*(dx*dx+dy*dy))
		}
	}

	a := refinementFixture(m)
	refined := a.subpixelRefinement([]Keypoint{{X: 30, Y: 41, Size: 4, LevelID: 0}})
	assert.Equal(1, len(refined))
	assert.InDelta(30.3, float64(refined[0].X), 1e-2)
	assert.InDelta(40.6, float64(refined[0].Y), 1e-2)
	assert.InDelta(8.0, float64(refined[0].Size), 1e-5)
	assert.Zero(refined[0].Angle)
}

func TestDetector_SubpixelRefinementShouldDropDivergingFits(t *testing.T) {
	assert := assert.New(t)

	// A saddle two pixels off the keypoint pushes the fitted offset
	// outside the unit cell.
	m := NewMatrix(100, 100)
	for y := 0; y < m.Rows; y++ {
		row := m.Row(y)
		for x := 0; x < m.Cols; x++ {
			dx := float64(x) - 50
			dy := float64(y) - 50
			row[x] = float32(0.01 * (dx*dx - dy*dy))
		}
	}
	a := refinementFixture(m)
	assert.Empty(a.subpixelRefinement([]Keypoint{{X: 52, Y: 50, Size: 4, LevelID: 0}}))

	// A flat response has a singular fit.
	a = refinementFixture(NewMatrix(100, 100))
	assert.Empty(a.subpixelRefinement([]Keypoint{{X: 50, Y: 50, Size: 4, LevelID: 0}}))
}

func TestDetector_SupportRadius(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(10.0*math.Sqrt2, float64(supportRadius(DescriptorMLDB)), 1e-5)
	assert.InDelta(10.0*math.Sqrt2, float64(supportRadius(DescriptorMLDBUpright)), 1e-5)
	assert.InDelta(12.0*math.Sqrt2, float64(supportRadius(DescriptorKAZE)), 1e-5)
	assert.InDelta(12.0*math.Sqrt2, float64(supportRadius(DescriptorKAZEUpright)), 1e-5)
}
