package akaze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func gradientFixture(lxVal, lyVal float32) *AKAZE {
	lx := NewMatrix(100, 100)
	ly := NewMatrix(100, 100)
	for i := range lx.Data {
		lx.Data[i] = lxVal
		ly.Data[i] = lyVal
	}
	return &AKAZE{
		opts:      DefaultOptions(),
		evolution: []evolutionLevel{{octaveRatio: 1, Lx: lx, Ly: ly}},
	}
}

func TestOrientation_ShouldFollowTheGradientDirection(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		lx, ly float32
		angle  float64
	}{
		{1, 0, 0},
		{0, 1, 90},
		{-1, 0, 180},
		{0, -1, 270},
	}
	for _, tc := range cases {
		a := gradientFixture(tc.lx, tc.ly)
		kpt := Keypoint{X: 50, Y: 50, Size: 4, LevelID: 0}
		a.computeMainOrientation(&kpt)
		assert.InDelta(tc.angle, float64(kpt.Angle), 1e-3)
	}
}

func TestOrientation_PatternShouldCoverTheDisc(t *testing.T) {
	assert := assert.New(t)

	p := buildOrientationPattern()
	for i := 0; i < orientationSamples; i++ {
		x := int(p.xidx[i])
		y := int(p.yidx[i])
		assert.Less(x*x+y*y, 36)
		assert.Greater(p.weight[i], float32(0))
	}
	// The center sample carries the largest weight.
	var best float32
	for i := 0; i < orientationSamples; i++ {
		if p.weight[i] > best {
			best = p.weight[i]
		}
	}
	assert.InDelta(float64(gauss25[0][0]), float64(best), 1e-8)
}

func TestOrientation_CountingSortShouldOrderByQuantizedKey(t *testing.T) {
	assert := assert.New(t)

	a := []float32{0.9, 0.1, 0.5, 0.35, 0.7, 0.12}
	idx := make([]uint8, len(a))
	cum := make([]uint8, 8)
	quantizedCountingSort(a, 0.15, 1.0, idx, cum)

	prev := -1
	seen := make(map[uint8]bool)
	for _, i := range idx {
		assert.False(seen[i])
		seen[i] = true

		key := int(a[i] / 0.15)
		assert.GreaterOrEqual(key, prev)
		prev = key
	}
	assert.Equal(len(a), len(seen))
}
