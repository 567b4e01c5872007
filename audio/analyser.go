package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	FFTSize            = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// Analyser turns a stream of PCM16 samples into byte frequency bins the way
// a browser AnalyserNode does: Blackman window, magnitude normalised by the
// transform size, exponential smoothing across reads, then a linear map of
// the dB range onto 0..255.
type Analyser struct {
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64

	mu       sync.Mutex
	fft      *fourier.FFT
	window   []float64
	ring     []float64
	pos      int
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

func NewAnalyser() *Analyser {
	window := make([]float64, FFTSize)
	for n := range window {
		x := 2 * math.Pi * float64(n) / FFTSize
		window[n] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return &Analyser{
		Smoothing:   DefaultSmoothing,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
		fft:         fourier.NewFFT(FFTSize),
		window:      window,
		ring:        make([]float64, FFTSize),
		frame:       make([]float64, FFTSize),
		smoothed:    make([]float64, FFTSize/2),
	}
}

// BinCount is the number of frequency bins, half the transform size.
func (a *Analyser) BinCount() int { return FFTSize / 2 }

// Write appends little-endian PCM16 mono samples. Safe to call from the
// capture goroutine.
func (a *Analyser) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % FFTSize
	}
}

// ByteFrequencyData fills dst (grown as needed) with BinCount bins computed
// over the most recent FFTSize samples.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := FFTSize / 2
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	for i := range a.frame {
		a.frame[i] = a.ring[(a.pos+i)%FFTSize] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	rangeDB := a.MaxDecibels - a.MinDecibels
	for k := 0; k < n; k++ {
		mag := cmplx.Abs(a.coeffs[k]) / FFTSize
		a.smoothed[k] = a.Smoothing*a.smoothed[k] + (1-a.Smoothing)*mag

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := math.Floor(255 / rangeDB * (db - a.MinDecibels))
		switch {
		case v < 0 || math.IsNaN(v):
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	return dst
}

// Reset drops buffered samples and smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

// Loudness is the mean of the bins normalised to [0,1].
func Loudness(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	l := float64(sum) / float64(len(bins)) / 255
	return max(0, min(1, l))
}
