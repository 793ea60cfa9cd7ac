package akaze

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func derivativePair(k float32, rows, cols int) (*Matrix, *Matrix) {
	lx := NewMatrix(rows, cols)
	ly := NewMatrix(rows, cols)
	for i := range lx.Data {
		lx.Data[i] = k
	}
	return lx, ly
}

func TestDiffusion_ConductivityValues(t *testing.T) {
	assert := assert.New(t)

	// With |dL| equal to the contrast factor every function hits its
	// characteristic value.
	k := float32(0.5)
	lx, ly := derivativePair(k, 4, 4)

	g1 := computeDiffusivity(lx, ly, k, DiffPMG1)
	assert.InDelta(math.Exp(-1), float64(g1.At(1, 1)), 1e-5)

	g2 := computeDiffusivity(lx, ly, k, DiffPMG2)
	assert.InDelta(0.5, float64(g2.At(1, 1)), 1e-5)

	w := computeDiffusivity(lx, ly, k, DiffWeickert)
	assert.InDelta(1.0-math.Exp(-3.315), float64(w.At(1, 1)), 1e-5)

	ch := computeDiffusivity(lx, ly, k, DiffCharbonnier)
	assert.InDelta(1.0/math.Sqrt(2), float64(ch.At(1, 1)), 1e-5)
}

func TestDiffusion_ContrastFactorFallsBackOnBlankImages(t *testing.T) {
	assert := assert.New(t)

	lx := NewMatrix(10, 10)
	ly := NewMatrix(10, 10)
	k := computeContrastFactor(lx, ly, 0.7, 300)
	assert.InDelta(defaultContrast, k, 1e-9)
}

func TestDiffusion_ContrastFactorTracksThePercentile(t *testing.T) {
	assert := assert.New(t)

	lx := NewMatrix(20, 20)
	ly := NewMatrix(20, 20)
	for y := 1; y < 19; y++ {
		row := lx.Row(y)
		for x := 1; x < 19; x++ {
			row[x] = float32(x) / 19.0
		}
	}

	k := computeContrastFactor(lx, ly, 0.7, 300)
	assert.Greater(k, 0.0)
	assert.Less(k, 1.0)

	// A higher percentile moves the estimate up.
	k2 := computeContrastFactor(lx, ly, 0.95, 300)
	assert.Greater(k2, k)
}

func TestDiffusion_ContrastFactorShouldIgnoreTheImageBorder(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(13))
	lx := NewMatrix(24, 30)
	ly := NewMatrix(24, 30)
	for i := range lx.Data {
		lx.Data[i] = rng.Float32()
		ly.Data[i] = rng.Float32()
	}
	want := computeContrastFactor(lx, ly, 0.7, 300)
	assert.Greater(want, 0.0)

	// Only the interior eroded by two pixels feeds the histogram, so
	// arbitrary values on the outer ring must not move the estimate.
	noisyX := lx.Clone()
	noisyY := ly.Clone()
	for y := 0; y < noisyX.Rows; y++ {
		for x := 0; x < noisyX.Cols; x++ {
			if y >= 2 && y < noisyX.Rows-2 && x >= 2 && x < noisyX.Cols-2 {
				continue
			}
			noisyX.Set(x, y, 9)
			noisyY.Set(x, y, 9)
		}
	}
	assert.InDelta(want, computeContrastFactor(noisyX, noisyY, 0.7, 300), 1e-12)
}

func TestDiffusion_ContrastFactorShouldReachTheTopBin(t *testing.T) {
	assert := assert.New(t)

	// A uniform gradient magnitude puts the whole histogram mass into
	// the last bin; the percentile must resolve to the magnitude itself
	// instead of the blank image fallback.
	lx := NewMatrix(20, 20)
	ly := NewMatrix(20, 20)
	for i := range lx.Data {
		lx.Data[i] = 0.5
	}

	k := computeContrastFactor(lx, ly, 0.7, 300)
	assert.InDelta(0.5, k, 1e-4)
}

func TestDiffusion_StepOnConstantImageIsZero(t *testing.T) {
	assert := assert.New(t)

	lt := NewMatrix(8, 12)
	for i := range lt.Data {
		lt.Data[i] = 0.3
	}
	lf := NewMatrix(8, 12)
	for i := range lf.Data {
		lf.Data[i] = 0.8
	}

	lstep := NewMatrix(8, 12)
	nldStep(lt, lf, lstep, 0.1)
	for _, v := range lstep.Data {
		assert.InDelta(0.0, float64(v), 1e-7)
	}
}

func TestDiffusion_CornersAreAlwaysZero(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(7))
	lt := NewMatrix(9, 11)
	lf := NewMatrix(9, 11)
	for i := range lt.Data {
		lt.Data[i] = rng.Float32()
		lf.Data[i] = rng.Float32()
	}

	lstep := NewMatrix(9, 11)
	nldStepRows(lt, lf, lstep, 0.2, 0, lt.Rows)

	assert.Zero(lstep.At(0, 0))
	assert.Zero(lstep.At(10, 0))
	assert.Zero(lstep.At(0, 8))
	assert.Zero(lstep.At(10, 8))
}

func TestDiffusion_RowRangesComposeToTheFullStencil(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(11))
	lt := NewMatrix(17, 23)
	lf := NewMatrix(17, 23)
	for i := range lt.Data {
		lt.Data[i] = rng.Float32()
		lf.Data[i] = 0.1 + rng.Float32()
	}

	whole := NewMatrix(17, 23)
	nldStepRows(lt, lf, whole, 0.15, 0, lt.Rows)

	// Chunked evaluation over arbitrary disjoint ranges must be
	// identical to the single pass.
	chunked := NewMatrix(17, 23)
	bounds := []int{0, 3, 4, 9, 16, 17}
	for i := 0; i+1 < len(bounds); i++ {
		nldStepRows(lt, lf, chunked, 0.15, bounds[i], bounds[i+1])
	}
	assert.Equal(whole.Data, chunked.Data)
}
