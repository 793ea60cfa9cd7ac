package akaze

import (
	"image"
)

// AKAZE detects and describes image features in a nonlinear diffusion
// scale space. A detector is not safe for concurrent use, every call
// rebuilds its evolution arena for the given image.
type AKAZE struct {
	opts      Options
	width     int
	height    int
	evolution []evolutionLevel
	tsteps    [][]float32
	// Subsample tables of the sized MLDB variants.
	descSamples [][3]int
	descBits    [][2]int
}

// New validates the options and prepares a detector. The MLDB subsample
// tables are generated here once, so repeated detections reuse them.
func New(opts Options) (*AKAZE, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	a := &AKAZE{opts: opts}

	if opts.Descriptor.isBinary() && opts.DescriptorSize > 0 {
		samples, comps, err := generateDescriptorSubsample(
			opts.DescriptorSize, opts.DescriptorPatternSize, opts.DescriptorChannels)
		if err != nil {
			return nil, err
		}
		a.descSamples = samples
		a.descBits = comps
	}
	return a, nil
}

// Options returns a copy of the detector settings.
func (a *AKAZE) Options() Options {
	return a.opts
}

// Detect builds the nonlinear scale space of the image and returns the
// refined keypoints. The dominant orientation is assigned for the
// rotation invariant descriptor families and left at zero for the
// upright ones.
func (a *AKAZE) Detect(img image.Image) ([]Keypoint, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	m := imageToMatrix(img)
	a.width, a.height = m.Cols, m.Rows
	a.evolution = planEvolution(a.opts, m.Cols, m.Rows)
	a.tsteps = fedSchedules(a.evolution)
	a.createScaleSpace(m)

	kpts := a.findScaleSpaceExtrema()
	kpts = a.subpixelRefinement(kpts)
	if a.opts.Descriptor.isRotationInvariant() {
		a.computeOrientations(kpts)
	}
	return kpts, nil
}

// DetectAndCompute runs the full pipeline and returns the keypoints
// together with their descriptors.
func (a *AKAZE) DetectAndCompute(img image.Image) ([]Keypoint, *Descriptors, error) {
	kpts, err := a.Detect(img)
	if err != nil {
		return nil, nil, err
	}
	desc, err := a.computeDescriptors(kpts)
	if err != nil {
		return nil, nil, err
	}
	return kpts, desc, nil
}
