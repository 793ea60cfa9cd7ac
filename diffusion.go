package akaze

import (
	"github.com/anthonynsimon/bild/parallel"
	"github.com/philippefoubert/akaze/utils"
)

// defaultContrast is the contrast factor fallback for blank images.
const defaultContrast = 0.03

// computeDiffusivity evaluates the selected conductivity over the
// smoothed derivative pair with contrast factor k.
func computeDiffusivity(lx, ly *Matrix, k float32, d Diffusivity) *Matrix {
	if d == DiffPMG2 && flatKernelsEnabled() {
		if dst := flatDiffusivityPMG2(lx, ly, k); dst != nil {
			return dst
		}
	}

	dst := NewMatrix(lx.Rows, lx.Cols)
	invK2 := 1.0 / (k * k)

	switch d {
	case DiffPMG1:
		for i, x := range lx.Data {
			y := ly.Data[i]
			dst.Data[i] = exp32(-(x*x + y*y) * invK2)
		}
	case DiffPMG2:
		for i, x := range lx.Data {
			y := ly.Data[i]
			dst.Data[i] = 1.0 / (1.0 + (x*x+y*y)*invK2)
		}
	case DiffWeickert:
		for i, x := range lx.Data {
			y := ly.Data[i]
			dl := (x*x + y*y) * invK2
			dl2 := dl * dl
			dst.Data[i] = 1.0 - exp32(-3.315/(dl2*dl2))
		}
	case DiffCharbonnier:
		for i, x := range lx.Data {
			y := ly.Data[i]
			dst.Data[i] = 1.0 / sqrt32(1.0+(x*x+y*y)*invK2)
		}
	}
	return dst
}

// computeContrastFactor estimates the contrast factor k as a percentile
// of the gradient magnitude histogram over the interior, eroded by two
// pixels on every border, skipping the zero magnitude bin.
func computeContrastFactor(lx, ly *Matrix, perc float64, nbins int) float64 {
	rows, cols := lx.Rows, lx.Cols
	modg := make([]float32, 0, utils.Max(0, (rows-4)*(cols-4)))
	var hmax float32

	for y := 2; y < rows-2; y++ {
		rowx := lx.Row(y)
		rowy := ly.Row(y)
		for x := 2; x < cols-2; x++ {
			dist := sqrt32(rowx[x]*rowx[x] + rowy[x]*rowy[x])
			modg = append(modg, dist)
			if dist > hmax {
				hmax = dist
			}
		}
	}
	if hmax == 0 {
		return defaultContrast
	}

	hist := make([]int, nbins)
	scale := float32(nbins-1) / hmax
	for _, v := range modg {
		hist[int(v*scale)]++
	}

	nthreshold := int(float64(len(modg)-hist[0]) * perc)
	nelements := 0
	k := 1
	for ; k < nbins && nelements < nthreshold; k++ {
		nelements += hist[k]
	}
	if nelements < nthreshold {
		return defaultContrast
	}
	return float64(hmax) * float64(k) / float64(nbins)
}

// nldStep evaluates one explicit diffusion step of the image lt with
// flow lf into lstep, scaled by stepSize.
func nldStep(lt, lf, lstep *Matrix, stepSize float32) {
	if flatKernelsEnabled() && flatNLDStep(lt, lf, lstep, stepSize) {
		return
	}
	parallel.Line(lt.Rows, func(start, end int) {
		nldStepRows(lt, lf, lstep, stepSize, start, end)
	})
}

// nldStepRows evaluates the diffusion stencil over the half open row
// range [rowBegin, rowEnd). Each output row only reads the rows directly
// above and below it, so disjoint ranges can run concurrently.
//
// Interior pixels use the full 4-neighbor stencil, the first and last
// rows and columns drop the missing neighbor term and the four corners
// are written as zero.
func nldStepRows(lt, lf, lstep *Matrix, stepSize float32, rowBegin, rowEnd int) {
	rows, cols := lt.Rows, lt.Cols
	inner := cols - 2
	row := rowBegin

	if row == 0 {
		ltc, lfc := lt.Row(0), lf.Row(0)
		ltb, lfb := lt.Row(1), lf.Row(1)
		dst := lstep.Row(0)

		dst[0] = 0
		for j := 1; j <= inner; j++ {
			step := (lfc[j]+lfc[j+1])*(ltc[j+1]-ltc[j]) +
				(lfc[j]+lfc[j-1])*(ltc[j-1]-ltc[j]) +
				(lfc[j]+lfb[j])*(ltb[j]-ltc[j])
			dst[j] = step * stepSize
		}
		dst[cols-1] = 0
		row++
	}

	middleEnd := utils.Min(rows-1, rowEnd)
	for ; row < middleEnd; row++ {
		lta, lfa := lt.Row(row-1), lf.Row(row-1)
		ltc, lfc := lt.Row(row), lf.Row(row)
		ltb, lfb := lt.Row(row+1), lf.Row(row+1)
		dst := lstep.Row(row)

		step := (lfc[0]+lfc[1])*(ltc[1]-ltc[0]) +
			(lfc[0]+lfb[0])*(ltb[0]-ltc[0]) +
			(lfc[0]+lfa[0])*(lta[0]-ltc[0])
		dst[0] = step * stepSize

		for j := 1; j <= inner; j++ {
			step = (lfc[j]+lfc[j+1])*(ltc[j+1]-ltc[j]) +
				(lfc[j]+lfc[j-1])*(ltc[j-1]-ltc[j]) +
				(lfc[j]+lfb[j])*(ltb[j]-ltc[j]) +
				(lfc[j]+lfa[j])*(lta[j]-ltc[j])
			dst[j] = step * stepSize
		}

		c := cols - 1
		step = (lfc[c]+lfc[c-1])*(ltc[c-1]-ltc[c]) +
			(lfc[c]+lfb[c])*(ltb[c]-ltc[c]) +
			(lfc[c]+lfa[c])*(lta[c]-ltc[c])
		dst[c] = step * stepSize
	}

	if rowEnd == rows {
		row = rows - 1
		lta, lfa := lt.Row(row-1), lf.Row(row-1)
		ltc, lfc := lt.Row(row), lf.Row(row)
		dst := lstep.Row(row)

		dst[0] = 0
		for j := 1; j <= inner; j++ {
			step := (lfc[j]+lfc[j+1])*(ltc[j+1]-ltc[j]) +
				(lfc[j]+lfc[j-1])*(ltc[j-1]-ltc[j]) +
				(lfc[j]+lfa[j])*(lta[j]-ltc[j])
			dst[j] = step * stepSize
		}
		dst[cols-1] = 0
	}
}
