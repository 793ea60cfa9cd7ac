package akaze

import (
	"math"
	"math/rand"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/philippefoubert/akaze/utils"
)

// msurfDescriptorSize is the float length of the MSURF descriptor, 4x4
// subregions with 4 statistics each.
const msurfDescriptorSize = 64

// descriptorTableSeed fixes the quasi random subsample tables so stored
// descriptors stay comparable across runs and builds.
const descriptorTableSeed = 1024

// Descriptors holds one descriptor row per keypoint, either float
// vectors or packed binary strings depending on the family.
type Descriptors struct {
	Kind  DescriptorType
	Count int
	// FloatCols is the row length of the float family, zero otherwise.
	FloatCols int
	// ByteCols is the packed row length in bytes of the binary family,
	// zero otherwise.
	ByteCols int
	Floats   []float32
	Bytes    []byte
}

// FloatRow returns the i-th float descriptor, sharing storage.
func (d *Descriptors) FloatRow(i int) []float32 {
	return d.Floats[i*d.FloatCols : (i+1)*d.FloatCols]
}

// BinaryRow returns the i-th binary descriptor, sharing storage.
func (d *Descriptors) BinaryRow(i int) []byte {
	return d.Bytes[i*d.ByteCols : (i+1)*d.ByteCols]
}

// descriptorBits returns the number of bits per binary descriptor row.
func (a *AKAZE) descriptorBits() int {
	if a.opts.DescriptorSize == 0 {
		return maxDescriptorBits(a.opts.DescriptorChannels)
	}
	return a.opts.DescriptorSize
}

// computeDescriptors extracts the configured descriptor for every
// keypoint, fanning the keypoints out over the workers.
func (a *AKAZE) computeDescriptors(kpts []Keypoint) (*Descriptors, error) {
	for i := range kpts {
		if kpts[i].LevelID < 0 || kpts[i].LevelID >= len(a.evolution) {
			return nil, ErrLevelRange
		}
	}

	desc := &Descriptors{Kind: a.opts.Descriptor, Count: len(kpts)}
	var perKeypoint func(i int)

	switch a.opts.Descriptor {
	case DescriptorKAZEUpright:
		desc.FloatCols = msurfDescriptorSize
		desc.Floats = make([]float32, len(kpts)*desc.FloatCols)
		perKeypoint = func(i int) { a.msurfUpright64(kpts[i], desc.FloatRow(i)) }
	case DescriptorKAZE:
		desc.FloatCols = msurfDescriptorSize
		desc.Floats = make([]float32, len(kpts)*desc.FloatCols)
		perKeypoint = func(i int) { a.msurf64(kpts[i], desc.FloatRow(i)) }
	case DescriptorMLDBUpright:
		desc.ByteCols = (a.descriptorBits() + 7) / 8
		desc.Bytes = make([]byte, len(kpts)*desc.ByteCols)
		if a.opts.DescriptorSize == 0 {
			perKeypoint = func(i int) { a.mldbFullUpright(kpts[i], desc.BinaryRow(i)) }
		} else {
			perKeypoint = func(i int) { a.mldbSubset(kpts[i], desc.BinaryRow(i), true) }
		}
	case DescriptorMLDB:
		desc.ByteCols = (a.descriptorBits() + 7) / 8
		desc.Bytes = make([]byte, len(kpts)*desc.ByteCols)
		if a.opts.DescriptorSize == 0 {
			perKeypoint = func(i int) { a.mldbFull(kpts[i], desc.BinaryRow(i)) }
		} else {
			perKeypoint = func(i int) { a.mldbSubset(kpts[i], desc.BinaryRow(i), false) }
		}
	default:
		return nil, ErrDescriptor
	}

	parallel.Line(len(kpts), func(start, end int) {
		for i := start; i < end; i++ {
			perKeypoint(i)
		}
	})
	return desc, nil
}

// gaussianWeight is the unnormalized 2D Gaussian at offset (x, y).
func gaussianWeight(x, y, sigma float32) float32 {
	return exp32(-(x*x + y*y) / (2 * sigma * sigma))
}

// bilinear interpolates m between the two columns x1, x2 and the two
// rows y1, y2 with fractions fx, fy.
func bilinear(m *Matrix, x1, y1, x2, y2 int, fx, fy float32) float32 {
	res1 := m.At(x1, y1)
	res2 := m.At(x2, y1)
	res3 := m.At(x1, y2)
	res4 := m.At(x2, y2)
	return (1-fx)*(1-fy)*res1 + fx*(1-fy)*res2 + (1-fx)*fy*res3 + fx*fy*res4
}

func clampInt(v, lo, hi int) int {
	return utils.Max(lo, utils.Min(v, hi))
}

// setBit stores one comparison outcome at bit position pos.
func setBit(desc []byte, pos int, v bool) {
	if v {
		desc[pos/8] |= 1 << uint(pos%8)
	} else {
		desc[pos/8] &^= 1 << uint(pos%8)
	}
}

// msurfUpright64 computes the upright MSURF descriptor over a 24s x 24s
// grid of 4x4 overlapping subregions, following Agrawal et al., CenSurE,
// ECCV 2008.
func (a *AKAZE) msurfUpright64(kpt Keypoint, desc []float32) {
	const sampleStep = 5
	const patternSize = 12

	level := &a.evolution[kpt.LevelID]
	ratio := level.octaveRatio
	scale := fRound(0.5 * kpt.Size / ratio)
	lx, ly := level.Lx, level.Ly
	yf := kpt.Y / ratio
	xf := kpt.X / ratio

	var length float32
	dcount := 0
	cx := float32(-0.5)

	i := -8
	for i < patternSize {
		j := -8
		i -= 4
		cx += 1.0
		cy := float32(-0.5)

		for j < patternSize {
			var dx, dy, mdx, mdy float32
			cy += 1.0
			j -= 4

			ky := i + sampleStep
			kx := j + sampleStep
			ys := yf + float32(ky*scale)
			xs := xf + float32(kx*scale)

			for k := i; k < i+9; k++ {
				for l := j; l < j+9; l++ {
					sampleY := float32(k*scale) + yf
					sampleX := float32(l*scale) + xf

					gaussS1 := gaussianWeight(xs-sampleX, ys-sampleY, 2.5*float32(scale))

					y1 := int(sampleY - 0.5)
					x1 := int(sampleX - 0.5)
					y2 := int(sampleY + 0.5)
					x2 := int(sampleX + 0.5)

					fx := sampleX - float32(x1)
					fy := sampleY - float32(y1)

					rx := gaussS1 * bilinear(lx, x1, y1, x2, y2, fx, fy)
					ry := gaussS1 * bilinear(ly, x1, y1, x2, y2, fx, fy)

					dx += rx
					dy += ry
					mdx += abs32(rx)
					mdy += abs32(ry)
				}
			}

			gaussS2 := gaussianWeight(cx-2.0, cy-2.0, 1.5)
			desc[dcount] = dx * gaussS2
			desc[dcount+1] = dy * gaussS2
			desc[dcount+2] = mdx * gaussS2
			desc[dcount+3] = mdy * gaussS2
			dcount += 4

			length += (dx*dx + dy*dy + mdx*mdx + mdy*mdy) * gaussS2 * gaussS2
			j += 9
		}
		i += 9
	}

	norm := sqrt32(length)
	for k := range desc {
		desc[k] /= norm
	}
}

// msurf64 computes the MSURF descriptor on axes rotated to the dominant
// orientation of the keypoint. Sample coordinates near the level border
// are clamped.
func (a *AKAZE) msurf64(kpt Keypoint, desc []float32) {
	const sampleStep = 5
	const patternSize = 12

	level := &a.evolution[kpt.LevelID]
	ratio := level.octaveRatio
	scale := fRound(0.5 * kpt.Size / ratio)
	angle := float64(kpt.Angle) * math.Pi / 180.0
	co := float32(math.Cos(angle))
	si := float32(math.Sin(angle))
	lx, ly := level.Lx, level.Ly
	yf := kpt.Y / ratio
	xf := kpt.X / ratio

	var length float32
	dcount := 0
	cx := float32(-0.5)

	i := -8
	for i < patternSize {
		j := -8
		i -= 4
		cx += 1.0
		cy := float32(-0.5)

		for j < patternSize {
			var dx, dy, mdx, mdy float32
			cy += 1.0
			j -= 4

			ky := float32((i + sampleStep) * scale)
			kx := float32((j + sampleStep) * scale)
			xs := xf + (-kx*si + ky*co)
			ys := yf + (kx*co + ky*si)

			for k := i; k < i+9; k++ {
				for l := j; l < j+9; l++ {
					sampleY := yf + (float32(l*scale)*co + float32(k*scale)*si)
					sampleX := xf + (-float32(l*scale)*si + float32(k*scale)*co)

					gaussS1 := gaussianWeight(xs-sampleX, ys-sampleY, 2.5*float32(scale))

					y1 := clampInt(fRound(sampleY-0.5), 0, lx.Rows-1)
					x1 := clampInt(fRound(sampleX-0.5), 0, lx.Cols-1)
					y2 := clampInt(fRound(sampleY+0.5), 0, lx.Rows-1)
					x2 := clampInt(fRound(sampleX+0.5), 0, lx.Cols-1)

					fx := sampleX - float32(x1)
					fy := sampleY - float32(y1)

					rx := bilinear(lx, x1, y1, x2, y2, fx, fy)
					ry := bilinear(ly, x1, y1, x2, y2, fx, fy)

					// Derivatives on the rotated axes.
					rry := gaussS1 * (rx*co + ry*si)
					rrx := gaussS1 * (-rx*si + ry*co)

					dx += rrx
					dy += rry
					mdx += abs32(rrx)
					mdy += abs32(rry)
				}
			}

			gaussS2 := gaussianWeight(cx-2.0, cy-2.0, 1.5)
			desc[dcount] = dx * gaussS2
			desc[dcount+1] = dy * gaussS2
			desc[dcount+2] = mdx * gaussS2
			desc[dcount+3] = mdy * gaussS2
			dcount += 4

			length += (dx*dx + dy*dy + mdx*mdx + mdy*mdy) * gaussS2 * gaussS2
			j += 9
		}
		i += 9
	}

	norm := sqrt32(length)
	for k := range desc {
		desc[k] /= norm
	}
}

// mldbSampleSteps returns the cell widths of the 2x2, 3x3 and 4x4
// comparison grids.
func mldbSampleSteps(patternSize int) [3]int {
	return [3]int{
		patternSize,
		int(math.Ceil(2.0 * float64(patternSize) / 3.0)),
		patternSize / 2,
	}
}

// mldbFullUpright computes the full length upright MLDB descriptor. Per
// grid, cell pairs are compared in order with the channels interleaved
// per pair.
func (a *AKAZE) mldbFullUpright(kpt Keypoint, desc []byte) {
	channels := a.opts.DescriptorChannels
	patternSize := a.opts.DescriptorPatternSize

	level := &a.evolution[kpt.LevelID]
	ratio := level.octaveRatio
	scale := fRound(0.5 * kpt.Size / ratio)
	lt, lx, ly := level.Lt, level.Lx, level.Ly
	yf := kpt.Y / ratio
	xf := kpt.X / ratio

	steps := mldbSampleSteps(patternSize)
	values := make([]float32, 16*channels)
	dpos := 0

	for z := 0; z < 3; z++ {
		step := steps[z]
		valpos := 0

		for i := -patternSize; i < patternSize; i += step {
			for j := -patternSize; j < patternSize; j += step {
				var di, dx, dy float32
				nsamples := 0

				for k := i; k < i+step; k++ {
					for l := j; l < j+step; l++ {
						sampleY := yf + float32(l*scale)
						sampleX := xf + float32(k*scale)

						y1 := fRound(sampleY)
						x1 := fRound(sampleX)

						di += lt.At(x1, y1)
						if channels > 1 {
							rx := lx.At(x1, y1)
							ry := ly.At(x1, y1)
							if channels == 2 {
								dx += sqrt32(rx*rx + ry*ry)
							} else {
								dx += rx
								dy += ry
							}
						}
						nsamples++
					}
				}

				n := float32(nsamples)
				values[valpos] = di / n
				if channels > 1 {
					values[valpos+1] = dx / n
				}
				if channels > 2 {
					values[valpos+2] = dy / n
				}
				valpos += channels
			}
		}

		num := (z + 2) * (z + 2)
		for i := 0; i < num; i++ {
			for j := i + 1; j < num; j++ {
				for k := 0; k < channels; k++ {
					setBit(desc, dpos, values[channels*i+k] > values[channels*j+k])
					dpos++
				}
			}
		}
	}
}

// mldbFillValues averages the channel responses over the grid cells on
// axes rotated by (co, si). Sample coordinates are clamped to the level.
func (a *AKAZE) mldbFillValues(values []float32, sampleStep, levelID int, xf, yf, co, si, scale float32) {
	channels := a.opts.DescriptorChannels
	patternSize := a.opts.DescriptorPatternSize
	level := &a.evolution[levelID]
	lt, lx, ly := level.Lt, level.Lx, level.Ly
	valpos := 0

	for i := -patternSize; i < patternSize; i += sampleStep {
		for j := -patternSize; j < patternSize; j += sampleStep {
			var di, dx, dy float32
			nsamples := 0

			for k := i; k < i+sampleStep; k++ {
				for l := j; l < j+sampleStep; l++ {
					sampleY := yf + (float32(l)*co*scale + float32(k)*si*scale)
					sampleX := xf + (-float32(l)*si*scale + float32(k)*co*scale)

					y1 := clampInt(fRound(sampleY), 0, lt.Rows-1)
					x1 := clampInt(fRound(sampleX), 0, lt.Cols-1)

					di += lt.At(x1, y1)
					if channels > 1 {
						rx := lx.At(x1, y1)
						ry := ly.At(x1, y1)
						if channels == 2 {
							dx += sqrt32(rx*rx + ry*ry)
						} else {
							rry := rx*co + ry*si
							rrx := -rx*si + ry*co
							dx += rrx
							dy += rry
						}
					}
					nsamples++
				}
			}

			n := float32(nsamples)
			values[valpos] = di / n
			if channels > 1 {
				values[valpos+1] = dx / n
			}
			if channels > 2 {
				values[valpos+2] = dy / n
			}
			valpos += channels
		}
	}
}

// mldbBinaryComparisons emits the pairwise cell comparisons channel by
// channel, starting at bit dpos, and returns the next bit position.
func mldbBinaryComparisons(values []float32, desc []byte, count, channels, dpos int) int {
	for pos := 0; pos < channels; pos++ {
		for i := 0; i < count; i++ {
			v := values[channels*i+pos]
			for j := i + 1; j < count; j++ {
				setBit(desc, dpos, v > values[channels*j+pos])
				dpos++
			}
		}
	}
	return dpos
}

// mldbFull computes the full length MLDB descriptor on axes rotated to
// the dominant orientation.
func (a *AKAZE) mldbFull(kpt Keypoint, desc []byte) {
	channels := a.opts.DescriptorChannels
	patternSize := a.opts.DescriptorPatternSize
	sizeMult := [3]float64{1.0, 2.0 / 3.0, 1.0 / 2.0}

	level := &a.evolution[kpt.LevelID]
	ratio := level.octaveRatio
	scale := float32(fRound(0.5 * kpt.Size / ratio))
	angle := float64(kpt.Angle) * math.Pi / 180.0
	co := float32(math.Cos(angle))
	si := float32(math.Sin(angle))
	yf := kpt.Y / ratio
	xf := kpt.X / ratio

	values := make([]float32, 16*channels)
	dpos := 0
	for z := 0; z < 3; z++ {
		count := (z + 2) * (z + 2)
		step := int(math.Ceil(float64(patternSize) * sizeMult[z]))
		a.mldbFillValues(values, step, kpt.LevelID, xf, yf, co, si, scale)
		dpos = mldbBinaryComparisons(values, desc, count, channels, dpos)
	}
}

// mldbSubset computes the reduced MLDB descriptor from the precomputed
// sample and comparison tables. Cell responses are raw sums, the
// comparisons are shared with the generator through the value indices.
func (a *AKAZE) mldbSubset(kpt Keypoint, desc []byte, upright bool) {
	channels := a.opts.DescriptorChannels
	steps := mldbSampleSteps(a.opts.DescriptorPatternSize)

	level := &a.evolution[kpt.LevelID]
	ratio := level.octaveRatio
	scale := fRound(0.5 * kpt.Size / ratio)
	lt, lx, ly := level.Lt, level.Lx, level.Ly
	yf := kpt.Y / ratio
	xf := kpt.X / ratio

	co, si := float32(1), float32(0)
	if !upright {
		angle := float64(kpt.Angle) * math.Pi / 180.0
		co = float32(math.Cos(angle))
		si = float32(math.Sin(angle))
	}

	values := make([]float32, len(a.descSamples)*channels)
	for i, coords := range a.descSamples {
		step := steps[coords[0]]
		var di, dx, dy float32

		for k := coords[1]; k < coords[1]+step; k++ {
			for l := coords[2]; l < coords[2]+step; l++ {
				var sampleX, sampleY float32
				if upright {
					sampleY = yf + float32(l*scale)
					sampleX = xf + float32(k*scale)
				} else {
					sampleY = yf + (float32(l)*co+float32(k)*si)*float32(scale)
					sampleX = xf + (-float32(l)*si+float32(k)*co)*float32(scale)
				}

				y1 := clampInt(fRound(sampleY), 0, lt.Rows-1)
				x1 := clampInt(fRound(sampleX), 0, lt.Cols-1)

				di += lt.At(x1, y1)
				if channels > 1 {
					rx := lx.At(x1, y1)
					ry := ly.At(x1, y1)
					switch {
					case channels == 2:
						dx += sqrt32(rx*rx + ry*ry)
					case upright:
						dx += rx
						dy += ry
					default:
						dx += rx*co + ry*si
						dy += -rx*si + ry*co
					}
				}
			}
		}

		values[channels*i] = di
		if channels > 1 {
			values[channels*i+1] = dx
		}
		if channels > 2 {
			values[channels*i+2] = dy
		}
	}

	for i, comp := range a.descBits {
		setBit(desc, i, values[comp[0]] > values[comp[1]])
	}
}

// generateDescriptorSubsample draws a quasi random subset of the full
// descriptor comparisons, returning the grid cells that must be sampled
// and the value index pairs to compare. The first six picks keep the
// coarsest grid since it provides the most robust estimations; the
// fixed seed makes the tables reproducible.
func generateDescriptorSubsample(nbits, patternSize, nchannels int) (samples [][3]int, comps [][2]int, err error) {
	ssz := 0
	for i := 0; i < 3; i++ {
		gz := (i + 2) * (i + 2)
		ssz += gz * (gz - 1) / 2
	}
	if nbits > ssz*nchannels {
		return nil, nil, ErrDescriptorSize
	}

	// Every row of the full comparison list holds the grid index and
	// the two cell origins.
	full := make([][5]int, 0, ssz)
	for i := 0; i < 3; i++ {
		gdiv := i + 2
		gsz := gdiv * gdiv
		psz := int(math.Ceil(2.0 * float64(patternSize) / float64(gdiv)))

		for j := 0; j < gsz; j++ {
			for k := j + 1; k < gsz; k++ {
				full = append(full, [5]int{
					i,
					psz*(j%gdiv) - patternSize,
					psz*(j/gdiv) - patternSize,
					psz*(k%gdiv) - patternSize,
					psz*(k/gdiv) - patternSize,
				})
			}
		}
	}

	rng := rand.New(rand.NewSource(descriptorTableSeed))
	npicks := int(math.Ceil(float64(nbits) / float64(nchannels)))
	comps = make([][2]int, nchannels*npicks)
	for i := range comps {
		comps[i] = [2]int{1000, 1000}
	}

	fullcopy := make([][5]int, len(full))
	copy(fullcopy, full)
	samples = make([][3]int, 0, 29)

	for i := 0; i < npicks; i++ {
		k := rng.Intn(len(full) - i)
		if i < 6 {
			k = i
		}

		// Register both endpoints of the pick, sharing cells that were
		// already sampled by an earlier pick.
		for end := 0; end < 2; end++ {
			cell := [3]int{fullcopy[k][0], fullcopy[k][1+2*end], fullcopy[k][2+2*end]}
			idx := -1
			for j := range samples {
				if samples[j] == cell {
					idx = j
					break
				}
			}
			if idx < 0 {
				idx = len(samples)
				samples = append(samples, cell)
			}
			for c := 0; c < nchannels; c++ {
				comps[i*nchannels+c][end] = nchannels*idx + c
			}
		}

		// Swap the consumed row out of the draw range.
		fullcopy[k] = fullcopy[len(fullcopy)-i-1]
	}
	return samples, comps[:nbits], nil
}
