package akaze

import (
	"math"
)

// Border handling modes for the separable convolutions.
const (
	borderReplicate = iota
	borderReflect101
)

// gaussianKernelSize derives the kernel width used for the base level
// smoothing from the requested sigma.
func gaussianKernelSize(sigma float64) int {
	ksize := int(math.Ceil(2.0 * (1.0 + (sigma-0.8)/0.3)))
	if ksize%2 == 0 {
		ksize++
	}
	return ksize
}

// gaussianKernel builds a normalized 1D Gaussian kernel of the given size.
func gaussianKernel(ksize int, sigma float64) []float32 {
	kernel := make([]float32, ksize)
	center := float64(ksize-1) / 2
	sum := 0.0

	for i := 0; i < ksize; i++ {
		d := float64(i) - center
		v := math.Exp(-d * d / (2 * sigma * sigma))
		kernel[i] = float32(v)
		sum += v
	}
	for i := range kernel {
		kernel[i] /= float32(sum)
	}
	return kernel
}

// borderIndex maps an out of range coordinate back into [0, n).
func borderIndex(i, n, border int) int {
	if i >= 0 && i < n {
		return i
	}
	if border == borderReplicate {
		if i < 0 {
			return 0
		}
		return n - 1
	}
	if i < 0 {
		return -i
	}
	return 2*n - 2 - i
}

// sepConvolve applies the separable kernel pair, kx along the rows and
// ky along the columns.
func sepConvolve(src *Matrix, kx, ky []float32, border int) *Matrix {
	rows, cols := src.Rows, src.Cols
	rx, ry := len(kx)/2, len(ky)/2

	tmp := NewMatrix(rows, cols)
	for y := 0; y < rows; y++ {
		srow := src.Row(y)
		trow := tmp.Row(y)
		for x := 0; x < cols; x++ {
			var acc float32
			for k, w := range kx {
				acc += w * srow[borderIndex(x+k-rx, cols, border)]
			}
			trow[x] = acc
		}
	}

	dst := NewMatrix(rows, cols)
	for y := 0; y < rows; y++ {
		drow := dst.Row(y)
		for k, w := range ky {
			srow := tmp.Row(borderIndex(y+k-ry, rows, border))
			for x := 0; x < cols; x++ {
				drow[x] += w * srow[x]
			}
		}
	}
	return dst
}

// gaussianBlur smooths the plane with a separable Gaussian of the given
// kernel size and sigma, replicating the borders.
func gaussianBlur(src *Matrix, ksize int, sigma float64) *Matrix {
	kernel := gaussianKernel(ksize, sigma)
	return sepConvolve(src, kernel, kernel, borderReplicate)
}

// scharrDerivative computes the unnormalized 3x3 Scharr first order
// derivative, dx and dy selecting the direction.
func scharrDerivative(src *Matrix, dx, dy int) *Matrix {
	smooth := []float32{3, 10, 3}
	deriv := []float32{-1, 0, 1}
	if dx == 1 {
		return sepConvolve(src, deriv, smooth, borderReflect101)
	}
	if dy != 1 {
		panic("akaze: scharr derivative order must be (1,0) or (0,1)")
	}
	return sepConvolve(src, smooth, deriv, borderReflect101)
}

// derivativeKernels builds the scale dependent separable kernels for a
// first order derivative of the given orders. Scale 1 falls back to the
// normalized Scharr pair.
func derivativeKernels(dx, dy, scale int) (kx, ky []float32) {
	if dx+dy != 1 {
		panic("akaze: derivative kernel order must be (1,0) or (0,1)")
	}

	var smooth, deriv []float32
	if scale == 1 {
		smooth = []float32{3.0 / 16.0, 10.0 / 16.0, 3.0 / 16.0}
		deriv = []float32{-1, 0, 1}
	} else {
		ksize := 3 + 2*(scale-1)
		w := float32(10.0 / 3.0)
		norm := 1.0 / (2.0 * float32(scale) * (w + 2.0))

		smooth = make([]float32, ksize)
		deriv = make([]float32, ksize)
		smooth[0] = norm
		smooth[ksize-1] = norm
		smooth[ksize/2] = w * norm
		deriv[0] = -1
		deriv[ksize-1] = 1
	}

	if dx == 1 {
		return deriv, smooth
	}
	return smooth, deriv
}

// scaledDerivative computes the first order derivative at the given
// integer sampling scale.
func scaledDerivative(src *Matrix, dx, dy, scale int) *Matrix {
	kx, ky := derivativeKernels(dx, dy, scale)
	return sepConvolve(src, kx, ky, borderReflect101)
}

// halfSample shrinks the plane to dstRows x dstCols with area weighted
// averaging, matching the pyramid octave step where the target size is
// the floor of the source size over a power of two.
func halfSample(src *Matrix, dstRows, dstCols int) *Matrix {
	dst := NewMatrix(dstRows, dstCols)
	scaleY := float64(src.Rows) / float64(dstRows)
	scaleX := float64(src.Cols) / float64(dstCols)

	for y := 0; y < dstRows; y++ {
		y0 := float64(y) * scaleY
		y1 := y0 + scaleY
		if y1 > float64(src.Rows) {
			y1 = float64(src.Rows)
		}
		drow := dst.Row(y)

		for x := 0; x < dstCols; x++ {
			x0 := float64(x) * scaleX
			x1 := x0 + scaleX
			if x1 > float64(src.Cols) {
				x1 = float64(src.Cols)
			}

			var acc, area float64
			for sy := int(y0); sy < src.Rows && float64(sy) < y1; sy++ {
				wy := math.Min(float64(sy+1), y1) - math.Max(float64(sy), y0)
				srow := src.Row(sy)
				for sx := int(x0); sx < src.Cols && float64(sx) < x1; sx++ {
					wx := math.Min(float64(sx+1), x1) - math.Max(float64(sx), x0)
					acc += wy * wx * float64(srow[sx])
					area += wy * wx
				}
			}
			drow[x] = float32(acc / area)
		}
	}
	return dst
}
