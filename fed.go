package akaze

import (
	"math"
)

// maxStepSize is the explicit diffusion stability bound for the
// 5-point stencil.
const maxStepSize = 0.25

// fedTauByProcessTime returns the FED step sizes covering the process
// time T split into m cycles, with the largest admissible step tauMax.
func fedTauByProcessTime(t float64, m int, tauMax float64, reordering bool) []float32 {
	return fedTauByCycleTime(t/float64(m), tauMax, reordering)
}

// fedTauByCycleTime returns the FED step sizes of one cycle of
// duration t.
func fedTauByCycleTime(t, tauMax float64, reordering bool) []float32 {
	// Number of time steps per cycle and the remaining scaling factor.
	n := int(math.Ceil(math.Sqrt(3.0*t/tauMax+0.25)-0.5-1.0e-8) + 0.5)
	scale := 3.0 * t / (tauMax * float64(n*(n+1)))

	return fedTauInternal(n, scale, tauMax, reordering)
}

// fedTauInternal builds the n step sizes, optionally reordered with the
// kappa cycle permutation for numerical stability.
func fedTauInternal(n int, scale, tauMax float64, reordering bool) []float32 {
	if n <= 0 {
		return nil
	}

	tauh := make([]float32, n)
	c := 1.0 / (4.0*float64(n) + 2.0)
	d := scale * tauMax / 2.0
	for k := 0; k < n; k++ {
		h := math.Cos(math.Pi * (2.0*float64(k) + 1.0) * c)
		tauh[k] = float32(d / (h * h))
	}
	if !reordering || n == 1 {
		return tauh
	}

	kappa := n / 2
	prime := n + 1
	for !fedIsPrime(prime) {
		prime++
	}

	tau := make([]float32, n)
	for k, l := 0, 0; l < n; k, l = k+1, l+1 {
		index := 0
		for {
			index = ((k+1)*kappa)%prime - 1
			if index < n {
				break
			}
			k++
		}
		tau[l] = tauh[index]
	}
	return tau
}

// fedIsPrime reports whether n is a prime number.
func fedIsPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for d := 3; d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
