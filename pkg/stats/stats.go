// Package stats builds the intensity histogram for a volume and derives
// the summary statistics and background level that drive the foci
// finding engine.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"focifinder3d/internal/models"
)

// Scope selects which part of the volume the reported statistics cover
// when an exclusion mask is present.
type Scope int

const (
	// ScopeAll computes statistics over every voxel regardless of mask.
	ScopeAll Scope = iota
	// ScopeInside restricts the reported statistics to masked-in voxels.
	ScopeInside
	// ScopeOutside restricts the reported statistics to masked-out voxels.
	ScopeOutside
	// ScopeBoth reports the unrestricted statistics alongside the masked
	// ones.
	ScopeBoth
)

// BackgroundMethod selects how the background intensity level is derived
// from the image statistics.
type BackgroundMethod int

const (
	// BackgroundAbsolute uses the parameter as a literal intensity.
	BackgroundAbsolute BackgroundMethod = iota
	// BackgroundMean uses the mean intensity.
	BackgroundMean
	// BackgroundStdDevAboveMean uses mean + parameter*stddev.
	BackgroundStdDevAboveMean
	// BackgroundAuto uses an externally computed auto-threshold value.
	BackgroundAuto
	// BackgroundNone disables the background (level zero).
	BackgroundNone
)

// floatBins is the histogram cardinality used for volumes whose values
// are not small non-negative integers. Integer-valued volumes get one
// bin per value instead, which keeps level-ordered processing exact.
const floatBins = 4096

// Histogram is an intensity histogram over a chosen subset of a volume.
type Histogram struct {
	// Counts holds the population of each bin. Stored as float64 so the
	// bins can be fed to the gonum weighted estimators directly.
	Counts []float64

	// Values holds the representative intensity of each bin: the exact
	// value for integer data, the bin centre otherwise.
	Values []float64

	// Min and Max are the extreme intensities over the included voxels.
	Min, Max float32

	// Integer reports whether the histogram has one bin per intensity
	// value (bin width 1, starting at Min).
	Integer bool

	binWidth float64
	n        int
}

// Summary holds the derived statistics of a histogram.
type Summary struct {
	Min, Max float32
	Mean     float64
	StdDev   float64
	Sum      float64
	Count    int
}

// Build constructs a histogram over the voxels of vol for which include
// returns true. A nil include function covers the whole volume.
func Build(vol *models.Volume, include func(i int) bool) *Histogram {
	h := &Histogram{}

	first := true
	integer := true
	for i, v := range vol.Data {
		if include != nil && !include(i) {
			continue
		}
		if first {
			h.Min, h.Max = v, v
			first = false
		} else {
			if v < h.Min {
				h.Min = v
			}
			if v > h.Max {
				h.Max = v
			}
		}
		if v != float32(math.Trunc(float64(v))) || v < 0 || v > 65535 {
			integer = false
		}
		h.n++
	}

	if h.n == 0 {
		h.Counts = []float64{0}
		h.Values = []float64{0}
		h.binWidth = 1
		h.Integer = true
		return h
	}

	h.Integer = integer
	if integer {
		bins := int(h.Max) - int(h.Min) + 1
		h.Counts = make([]float64, bins)
		h.Values = make([]float64, bins)
		h.binWidth = 1
		for b := range h.Values {
			h.Values[b] = float64(h.Min) + float64(b)
		}
	} else {
		bins := floatBins
		if h.Max == h.Min {
			bins = 1
		}
		h.Counts = make([]float64, bins)
		h.Values = make([]float64, bins)
		h.binWidth = float64(h.Max-h.Min) / float64(bins)
		if h.binWidth == 0 {
			h.binWidth = 1
		}
		for b := range h.Values {
			h.Values[b] = float64(h.Min) + (float64(b)+0.5)*h.binWidth
		}
	}

	for i, v := range vol.Data {
		if include != nil && !include(i) {
			continue
		}
		h.Counts[h.Bin(v)]++
	}

	return h
}

// Bin returns the bin index holding intensity v, clamped to the valid
// range.
func (h *Histogram) Bin(v float32) int {
	var b int
	if h.Integer {
		b = int(v) - int(h.Min)
	} else {
		b = int(float64(v-h.Min) / h.binWidth)
	}
	if b < 0 {
		b = 0
	}
	if b >= len(h.Counts) {
		b = len(h.Counts) - 1
	}
	return b
}

// NumBins returns the histogram cardinality.
func (h *Histogram) NumBins() int {
	return len(h.Counts)
}

// Summarize derives min, max, mean and standard deviation from the
// populated bins. Min and max come from the first and last non-zero
// bins; mean and stddev use the gonum weighted estimators over the bin
// values, which for integer data reproduces the Bessel-corrected
// population formula sqrt((n*Sx2 - Sx*Sx) / (n*(n-1))) exactly.
func (h *Histogram) Summarize() Summary {
	s := Summary{Count: h.n}
	if h.n == 0 {
		return s
	}

	lo, hi := -1, -1
	for b, c := range h.Counts {
		if c == 0 {
			continue
		}
		if lo < 0 {
			lo = b
		}
		hi = b
	}
	if h.Integer {
		s.Min = float32(h.Values[lo])
		s.Max = float32(h.Values[hi])
	} else {
		// Bin centres would distort the extremes of binned float data,
		// so use the exact values recorded during the build.
		s.Min = h.Min
		s.Max = h.Max
	}

	s.Mean = stat.Mean(h.Values, h.Counts)
	for b, c := range h.Counts {
		s.Sum += h.Values[b] * c
	}
	if h.n > 1 {
		s.StdDev = stat.StdDev(h.Values, h.Counts)
	}
	return s
}

// Background derives the background intensity level from a summary.
// The auto value is the externally supplied threshold used by
// BackgroundAuto; it is ignored by the other methods.
func Background(method BackgroundMethod, param, auto float64, s Summary) float32 {
	switch method {
	case BackgroundAbsolute:
		return float32(param)
	case BackgroundMean:
		return float32(s.Mean)
	case BackgroundStdDevAboveMean:
		return float32(s.Mean + param*s.StdDev)
	case BackgroundAuto:
		return float32(auto)
	default:
		return 0
	}
}
