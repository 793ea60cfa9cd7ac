package akaze

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFED_StepsShouldSumToCycleTime(t *testing.T) {
	assert := assert.New(t)

	for _, cycle := range []float64{0.5, 1.28, 5.0, 20.48} {
		taus := fedTauByCycleTime(cycle, maxStepSize, true)
		assert.NotEmpty(taus)

		var sum float64
		for _, tau := range taus {
			assert.Greater(tau, float32(0))
			sum += float64(tau)
		}
		assert.InDelta(cycle, sum, 1e-3*cycle)
	}
}

func TestFED_ProcessTimeShouldSplitIntoCycles(t *testing.T) {
	assert := assert.New(t)

	one := fedTauByProcessTime(4.0, 1, maxStepSize, true)
	half := fedTauByProcessTime(4.0, 2, maxStepSize, true)

	var sumOne, sumHalf float64
	for _, tau := range one {
		sumOne += float64(tau)
	}
	for _, tau := range half {
		sumHalf += float64(tau)
	}
	assert.InDelta(4.0, sumOne, 1e-3)
	assert.InDelta(2.0, sumHalf, 1e-3)
}

func TestFED_ReorderingShouldPermuteTheSteps(t *testing.T) {
	assert := assert.New(t)

	plain := fedTauByCycleTime(5.0, maxStepSize, false)
	reordered := fedTauByCycleTime(5.0, maxStepSize, true)
	assert.Equal(len(plain), len(reordered))

	sortedPlain := append([]float32(nil), plain...)
	sortedReordered := append([]float32(nil), reordered...)
	sort.Slice(sortedPlain, func(i, j int) bool { return sortedPlain[i] < sortedPlain[j] })
	sort.Slice(sortedReordered, func(i, j int) bool { return sortedReordered[i] < sortedReordered[j] })

	assert.Equal(sortedPlain, sortedReordered)
	assert.NotEqual(plain, reordered)
}

func TestFED_PrimeHelper(t *testing.T) {
	assert := assert.New(t)

	for _, p := range []int{2, 3, 5, 7, 11, 13, 97} {
		assert.True(fedIsPrime(p), "%d should be prime", p)
	}
	for _, n := range []int{0, 1, 4, 9, 15, 21, 49, 100} {
		assert.False(fedIsPrime(n), "%d should not be prime", n)
	}
}
