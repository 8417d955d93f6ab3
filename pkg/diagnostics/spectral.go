package diagnostics

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectralEnergyRatio reports the fraction of a weight-map slice's spectral
// energy that lies above half the Nyquist radius, a cheap proxy for how
// noisy (versus smoothly varying) the solved weights are across the slice.
// A ratio near 0 means the weight map is dominated by low-frequency
// structure; a ratio approaching 1 suggests voxel-to-voxel weight
// instability worth investigating with a smaller search radius or larger
// alpha.
func SpectralEnergyRatio(data []float64, width, height int) float64 {
	side := nextPow2(maxInt(width, height))
	padded := padZeroSquare(data, width, height, side)
	spectrum := fft2D(padded, side)

	var total, high float64
	nyquist := float64(side) / 2
	cutoff := nyquist / 2

	for i, c := range spectrum {
		row, col := i/side, i%side
		fy := freqIndex(row, side)
		fx := freqIndex(col, side)
		radius := math.Hypot(float64(fx), float64(fy))

		e := cmplx.Abs(c) * cmplx.Abs(c)
		total += e
		if radius > cutoff {
			high += e
		}
	}

	if total == 0 {
		return 0
	}
	return high / total
}

func freqIndex(i, n int) int {
	if i > n/2 {
		return i - n
	}
	return i
}

func padZeroSquare(data []float64, width, height, side int) []float64 {
	padded := make([]float64, side*side)
	for y := 0; y < height; y++ {
		copy(padded[y*side:y*side+width], data[y*width:(y+1)*width])
	}
	return padded
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	if p == 0 {
		p = 1
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// fft2D performs a 2D FFT on a size x size real-valued image, using gonum's
// real-input FFT per row and a recursive complex FFT per column.
func fft2D(data []float64, size int) []complex128 {
	fft := fourier.NewFFT(size)
	result := make([]complex128, size*size)

	rowInput := make([]float64, size)
	rowOutput := make([]complex128, size/2+1)

	for i := 0; i < size; i++ {
		copy(rowInput, data[i*size:(i+1)*size])
		fft.Coefficients(rowOutput, rowInput)

		for j := 0; j < len(rowOutput); j++ {
			result[i*size+j] = rowOutput[j]
		}
		for j := len(rowOutput); j < size; j++ {
			k := size - j
			if k < len(rowOutput) {
				result[i*size+j] = complex(real(rowOutput[k]), -imag(rowOutput[k]))
			}
		}
	}

	colInput := make([]complex128, size)
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			colInput[i] = result[i*size+j]
		}
		colOutput := complexFFT(colInput)
		for i := 0; i < size; i++ {
			result[i*size+j] = colOutput[i]
		}
	}

	return result
}

// complexFFT is a recursive radix-2 Cooley-Tukey FFT; the caller must pass
// a power-of-two length.
func complexFFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		return x
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}

	even = complexFFT(even)
	odd = complexFFT(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		twiddle := complex(
			math.Cos(-2*math.Pi*float64(k)/float64(n)),
			math.Sin(-2*math.Pi*float64(k)/float64(n)),
		) * odd[k]
		result[k] = even[k] + twiddle
		result[k+n/2] = even[k] - twiddle
	}

	return result
}
