package akaze

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func randomMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.Float32()
	}
	return m
}

func TestKernels_FlatStepMatchesTheReferencePath(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(3))
	for _, dims := range [][2]int{{5, 7}, {16, 16}, {31, 9}} {
		lt := randomMatrix(rng, dims[0], dims[1])
		lf := randomMatrix(rng, dims[0], dims[1])

		want := NewMatrix(dims[0], dims[1])
		nldStepRows(lt, lf, want, 0.125, 0, lt.Rows)

		got := NewMatrix(dims[0], dims[1])
		assert.True(flatNLDStep(lt, lf, got, 0.125))
		assert.Equal(want.Data, got.Data)
	}
}

func TestKernels_FlatDiffusivityMatchesTheReferencePath(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(5))
	lx := randomMatrix(rng, 12, 18)
	ly := randomMatrix(rng, 12, 18)

	want := computeDiffusivity(lx, ly, 0.3, DiffPMG2)
	got := flatDiffusivityPMG2(lx, ly, 0.3)
	assert.NotNil(got)
	assert.Equal(want.Data, got.Data)
}

func TestKernels_FlatDeterminantMatchesTheReferencePath(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(9))
	lxx := randomMatrix(rng, 10, 14)
	lxy := randomMatrix(rng, 10, 14)
	lyy := randomMatrix(rng, 10, 14)

	want := computeDeterminant(lxx, lxy, lyy, 16.0)
	got := flatDeterminant(lxx, lxy, lyy, 16.0)
	assert.NotNil(got)
	assert.Equal(want.Data, got.Data)
}

func TestKernels_FlatPathRejectsDegenerateSlabs(t *testing.T) {
	assert := assert.New(t)

	lt := NewMatrix(4, 4)
	lf := NewMatrix(4, 4)
	lstep := NewMatrix(4, 4)

	truncated := &Matrix{Rows: 4, Cols: 4, Data: lt.Data[:8]}
	assert.False(flatNLDStep(truncated, lf, lstep, 0.1))
	assert.Nil(flatDiffusivityPMG2(truncated, lf, 0.5))
	assert.False(flatNLDStep(nil, lf, lstep, 0.1))
}
