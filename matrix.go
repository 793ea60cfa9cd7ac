package akaze

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Matrix is a dense float32 image plane with a row-major flat layout.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// Row returns the y-th row as a slice sharing the matrix storage.
func (m *Matrix) Row(y int) []float32 {
	return m.Data[y*m.Cols : (y+1)*m.Cols]
}

// At returns the value at column x, row y.
func (m *Matrix) At(x, y int) float32 {
	return m.Data[y*m.Cols+x]
}

// Set stores v at column x, row y.
func (m *Matrix) Set(x, y int, v float32) {
	m.Data[y*m.Cols+x] = v
}

// Clone returns a deep copy of the matrix.
func (m *Matrix) Clone() *Matrix {
	dst := NewMatrix(m.Rows, m.Cols)
	copy(dst.Data, m.Data)
	return dst
}

// addInPlace accumulates step into the matrix.
func (m *Matrix) addInPlace(step *Matrix) {
	for i, v := range step.Data {
		m.Data[i] += v
	}
}

// imageToMatrix converts the source image to a single channel float32
// plane scaled to the [0, 1] range.
func imageToMatrix(img image.Image) *Matrix {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	m := NewMatrix(b.Dy(), b.Dx())

	for y := 0; y < m.Rows; y++ {
		pix := gray.Pix[y*gray.Stride : y*gray.Stride+m.Cols*4]
		row := m.Row(y)
		for x := 0; x < m.Cols; x++ {
			row[x] = float32(pix[x*4]) / 255.0
		}
	}
	return m
}

// fRound rounds to the nearest integer the way the pipeline expects for
// non negative coordinates and truncates towards zero for negative ones.
func fRound(v float32) int {
	return int(v + 0.5)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func exp32(v float32) float32 {
	return float32(math.Exp(float64(v)))
}

// angleRad maps the gradient (x, y) to an angle in radians within [0, 2pi).
func angleRad(y, x float32) float32 {
	a := math.Atan2(float64(y), float64(x))
	if a < 0 {
		a += 2 * math.Pi
	}
	return float32(a)
}

// angleDeg maps the gradient (x, y) to an angle in degrees within [0, 360).
func angleDeg(y, x float32) float32 {
	a := math.Atan2(float64(y), float64(x)) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return float32(a)
}
