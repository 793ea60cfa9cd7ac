package akaze

import (
	"github.com/pkg/errors"
)

// Diffusivity selects the conductivity function used to build the
// nonlinear scale space.
type Diffusivity int

const (
	// DiffPMG1 is the Perona-Malik g1 conductivity, exp(-|dL|^2/k^2).
	DiffPMG1 Diffusivity = iota
	// DiffPMG2 is the Perona-Malik g2 conductivity, 1/(1+|dL|^2/k^2).
	DiffPMG2
	// DiffWeickert is the Weickert conductivity.
	DiffWeickert
	// DiffCharbonnier is the Charbonnier conductivity.
	DiffCharbonnier
)

// String returns the diffusivity name as used on the command line.
func (d Diffusivity) String() string {
	switch d {
	case DiffPMG1:
		return "pmg1"
	case DiffPMG2:
		return "pmg2"
	case DiffWeickert:
		return "weickert"
	case DiffCharbonnier:
		return "charbonnier"
	}
	return "unknown"
}

// DescriptorType selects the descriptor family extracted for the
// detected keypoints.
type DescriptorType int

const (
	// DescriptorKAZEUpright is the 64 float MSURF descriptor without
	// dominant orientation (keypoint angle stays zero).
	DescriptorKAZEUpright DescriptorType = iota
	// DescriptorKAZE is the 64 float MSURF descriptor rotated to the
	// dominant orientation.
	DescriptorKAZE
	// DescriptorMLDBUpright is the binary MLDB descriptor without
	// dominant orientation.
	DescriptorMLDBUpright
	// DescriptorMLDB is the binary MLDB descriptor rotated to the
	// dominant orientation.
	DescriptorMLDB
)

// String returns the descriptor name as used on the command line.
func (d DescriptorType) String() string {
	switch d {
	case DescriptorKAZEUpright:
		return "kaze-upright"
	case DescriptorKAZE:
		return "kaze"
	case DescriptorMLDBUpright:
		return "mldb-upright"
	case DescriptorMLDB:
		return "mldb"
	}
	return "unknown"
}

// isBinary reports whether the descriptor family produces binary strings.
func (d DescriptorType) isBinary() bool {
	return d == DescriptorMLDB || d == DescriptorMLDBUpright
}

// isRotationInvariant reports whether a dominant orientation is assigned.
func (d DescriptorType) isRotationInvariant() bool {
	return d == DescriptorKAZE || d == DescriptorMLDB
}

// Errors returned by the options validation and the descriptor extraction.
var (
	ErrEmptyImage         = errors.New("akaze: the source image is empty")
	ErrHistogramBins      = errors.New("akaze: the number of contrast histogram bins must be greater than 2")
	ErrDiffusivity        = errors.New("akaze: unsupported diffusivity function")
	ErrDescriptor         = errors.New("akaze: unsupported descriptor type")
	ErrDescriptorSize     = errors.New("akaze: descriptor size exceeds the available comparison bits")
	ErrDescriptorChannels = errors.New("akaze: descriptor channels must be 1, 2 or 3")
	ErrLevelRange         = errors.New("akaze: keypoint level outside the evolution range")
)

// Options holds the detector and descriptor settings.
type Options struct {
	// Octaves is the maximum number of pyramid octaves. Octaves whose
	// level size would drop below 80x40 pixels are skipped, except the
	// first one.
	Octaves int
	// Sublevels is the number of sublevels per octave.
	Sublevels int
	// SOffset is the base smoothing scale of the first evolution level.
	SOffset float64
	// DerivativeFactor converts the level scale into the derivative
	// sampling scale and the keypoint size.
	DerivativeFactor float64
	// Diffusivity selects the conductivity function.
	Diffusivity Diffusivity
	// DThreshold is the fixed detector response threshold.
	DThreshold float64
	// MinDThreshold is the lowest admissible detector response.
	MinDThreshold float64
	// KContrastPercentile is the gradient histogram percentile used to
	// estimate the contrast factor.
	KContrastPercentile float64
	// KContrastBins is the number of gradient histogram bins.
	KContrastBins int
	// Descriptor selects the descriptor family.
	Descriptor DescriptorType
	// DescriptorSize is the requested number of MLDB bits. Zero selects
	// the full descriptor length.
	DescriptorSize int
	// DescriptorPatternSize is the MLDB sampling pattern radius at
	// unit scale.
	DescriptorPatternSize int
	// DescriptorChannels is the number of MLDB channels (1, 2 or 3).
	DescriptorChannels int
}

// DefaultOptions returns the canonical detector settings.
func DefaultOptions() Options {
	return Options{
		Octaves:               4,
		Sublevels:             4,
		SOffset:               1.6,
		DerivativeFactor:      1.5,
		Diffusivity:           DiffPMG2,
		DThreshold:            0.001,
		MinDThreshold:         0.00001,
		KContrastPercentile:   0.7,
		KContrastBins:         300,
		Descriptor:            DescriptorMLDB,
		DescriptorSize:        0,
		DescriptorPatternSize: 10,
		DescriptorChannels:    3,
	}
}

// validate checks the option set before any processing takes place.
func (o Options) validate() error {
	if o.Octaves < 1 {
		return errors.New("akaze: the number of octaves must be at least 1")
	}
	if o.Sublevels < 1 {
		return errors.New("akaze: the number of sublevels must be at least 1")
	}
	if o.SOffset <= 0 {
		return errors.New("akaze: the base smoothing scale must be positive")
	}
	if o.DerivativeFactor <= 0 {
		return errors.New("akaze: the derivative factor must be positive")
	}
	if o.KContrastBins <= 2 {
		return ErrHistogramBins
	}
	switch o.Diffusivity {
	case DiffPMG1, DiffPMG2, DiffWeickert, DiffCharbonnier:
	default:
		return ErrDiffusivity
	}
	switch o.Descriptor {
	case DescriptorKAZE, DescriptorKAZEUpright, DescriptorMLDB, DescriptorMLDBUpright:
	default:
		return ErrDescriptor
	}
	if o.Descriptor.isBinary() {
		if o.DescriptorChannels < 1 || o.DescriptorChannels > 3 {
			return ErrDescriptorChannels
		}
		if o.DescriptorPatternSize < 2 {
			return errors.New("akaze: the descriptor pattern size must be at least 2")
		}
		if o.DescriptorSize < 0 || o.DescriptorSize > maxDescriptorBits(o.DescriptorChannels) {
			return ErrDescriptorSize
		}
	}
	return nil
}

// maxDescriptorBits returns the number of comparison bits offered by the
// full 2x2, 3x3 and 4x4 MLDB grids for the given channel count.
func maxDescriptorBits(channels int) int {
	bits := 0
	for i := 0; i < 3; i++ {
		gsz := (i + 2) * (i + 2)
		bits += gsz * (gsz - 1) / 2
	}
	return bits * channels
}
