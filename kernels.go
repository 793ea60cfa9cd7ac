package akaze

import (
	"os"
	"sync"

	"github.com/anthonynsimon/bild/parallel"
)

// The three hot per-pixel kernels have a second implementation working
// on the flat backing slabs in a single pass. The flat path is opt-in
// through the environment and every entry point falls back to the
// reference row implementation when it cannot serve the input, so both
// paths must stay bit-for-bit equivalent.

var (
	flatProbeOnce sync.Once
	flatProbeOK   bool
)

// flatKernelsEnabled reports whether the flat kernel path was requested.
func flatKernelsEnabled() bool {
	flatProbeOnce.Do(func() {
		flatProbeOK = os.Getenv("AKAZE_FLAT_KERNELS") == "1"
	})
	return flatProbeOK
}

// flatSlabUsable reports whether the matrix storage is one contiguous
// slab the flat kernels can iterate directly.
func flatSlabUsable(ms ...*Matrix) bool {
	for _, m := range ms {
		if m == nil || len(m.Data) != m.Rows*m.Cols {
			return false
		}
	}
	return true
}

// flatNLDStep is the single pass form of nldStepRows. It reports false
// when the buffers cannot be processed.
func flatNLDStep(lt, lf, lstep *Matrix, stepSize float32) bool {
	if !flatSlabUsable(lt, lf, lstep) {
		return false
	}
	rows, cols := lt.Rows, lt.Cols
	if rows < 2 || cols < 2 {
		return false
	}

	parallel.Line(rows*cols, func(start, end int) {
		for idx := start; idx < end; idx++ {
			x := idx % cols
			y := idx / cols

			if (y == 0 || y == rows-1) && (x == 0 || x == cols-1) {
				lstep.Data[idx] = 0
				continue
			}

			c := lt.Data[idx]
			f := lf.Data[idx]
			var step float32
			if x < cols-1 {
				step += (f + lf.Data[idx+1]) * (lt.Data[idx+1] - c)
			}
			if x > 0 {
				step += (f + lf.Data[idx-1]) * (lt.Data[idx-1] - c)
			}
			if y < rows-1 {
				step += (f + lf.Data[idx+cols]) * (lt.Data[idx+cols] - c)
			}
			if y > 0 {
				step += (f + lf.Data[idx-cols]) * (lt.Data[idx-cols] - c)
			}
			lstep.Data[idx] = step * stepSize
		}
	})
	return true
}

// flatDiffusivityPMG2 is the single pass form of the Perona-Malik g2
// conductivity. It returns nil when the buffers cannot be processed.
func flatDiffusivityPMG2(lx, ly *Matrix, k float32) *Matrix {
	if !flatSlabUsable(lx, ly) {
		return nil
	}
	dst := NewMatrix(lx.Rows, lx.Cols)
	invK2 := 1.0 / (k * k)

	parallel.Line(len(dst.Data), func(start, end int) {
		for i := start; i < end; i++ {
			x := lx.Data[i]
			y := ly.Data[i]
			dst.Data[i] = 1.0 / (1.0 + (x*x+y*y)*invK2)
		}
	})
	return dst
}

// flatDeterminant is the single pass form of the Hessian determinant
// with the scale normalization folded in. It returns nil when the
// buffers cannot be processed.
func flatDeterminant(lxx, lxy, lyy *Matrix, sigmaQuad float32) *Matrix {
	if !flatSlabUsable(lxx, lxy, lyy) {
		return nil
	}
	dst := NewMatrix(lxx.Rows, lxx.Cols)

	parallel.Line(len(dst.Data), func(start, end int) {
		for i := start; i < end; i++ {
			dst.Data[i] = (lxx.Data[i]*lyy.Data[i] - lxy.Data[i]*lxy.Data[i]) * sigmaQuad
		}
	})
	return dst
}
