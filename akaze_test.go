package akaze

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAKAZE_DefaultOptions(t *testing.T) {
	assert := assert.New(t)

	opts := DefaultOptions()
	assert.Equal(4, opts.Octaves)
	assert.Equal(4, opts.Sublevels)
	assert.InDelta(1.6, opts.SOffset, 1e-9)
	assert.InDelta(0.001, opts.DThreshold, 1e-9)
	assert.Equal(DiffPMG2, opts.Diffusivity)
	assert.Equal(DescriptorMLDB, opts.Descriptor)
	assert.Equal(3, opts.DescriptorChannels)
	assert.Equal(10, opts.DescriptorPatternSize)
	assert.NoError(opts.validate())
}

func TestAKAZE_NewShouldValidateTheOptions(t *testing.T) {
	assert := assert.New(t)

	opts := DefaultOptions()
	opts.KContrastBins = 2
	_, err := New(opts)
	assert.Equal(ErrHistogramBins, err)

	opts = DefaultOptions()
	opts.Diffusivity = Diffusivity(9)
	_, err = New(opts)
	assert.Equal(ErrDiffusivity, err)

	opts = DefaultOptions()
	opts.Descriptor = DescriptorType(9)
	_, err = New(opts)
	assert.Equal(ErrDescriptor, err)

	opts = DefaultOptions()
	opts.DescriptorChannels = 4
	_, err = New(opts)
	assert.Equal(ErrDescriptorChannels, err)

	opts = DefaultOptions()
	opts.DescriptorSize = maxDescriptorBits(opts.DescriptorChannels) + 1
	_, err = New(opts)
	assert.Equal(ErrDescriptorSize, err)

	opts = DefaultOptions()
	opts.Octaves = 0
	_, err = New(opts)
	assert.Error(err)
}

func TestAKAZE_OptionsShouldRoundTrip(t *testing.T) {
	assert := assert.New(t)

	opts := DefaultOptions()
	opts.Descriptor = DescriptorKAZE
	det, err := New(opts)
	assert.NoError(err)
	assert.Equal(opts, det.Options())
}

func TestAKAZE_DetectShouldRejectEmptyImages(t *testing.T) {
	assert := assert.New(t)

	det, err := New(DefaultOptions())
	assert.NoError(err)

	_, err = det.Detect(nil)
	assert.Equal(ErrEmptyImage, err)

	_, err = det.Detect(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.Equal(ErrEmptyImage, err)
}

func TestAKAZE_FlatImagesYieldNoKeypoints(t *testing.T) {
	assert := assert.New(t)

	img := image.NewNRGBA(image.Rect(0, 0, 160, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff})
		}
	}

	det, err := New(DefaultOptions())
	assert.NoError(err)

	kpts, desc, err := det.DetectAndCompute(img)
	assert.NoError(err)
	assert.Empty(kpts)
	assert.Zero(desc.Count)
}

func TestAKAZE_EnumNames(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("pmg1", DiffPMG1.String())
	assert.Equal("pmg2", DiffPMG2.String())
	assert.Equal("weickert", DiffWeickert.String())
	assert.Equal("charbonnier", DiffCharbonnier.String())
	assert.Equal("unknown", Diffusivity(9).String())

	assert.Equal("kaze", DescriptorKAZE.String())
	assert.Equal("kaze-upright", DescriptorKAZEUpright.String())
	assert.Equal("mldb", DescriptorMLDB.String())
	assert.Equal("mldb-upright", DescriptorMLDBUpright.String())
	assert.Equal("unknown", DescriptorType(9).String())
}
