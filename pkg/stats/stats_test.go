package stats

import (
	"math"
	"testing"

	"focifinder3d/internal/models"
)

func mustVolume(t *testing.T, data []float32, w, h, d int) *models.Volume {
	t.Helper()
	vol, err := models.FromData(data, w, h, d)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// TestBuildIntegerHistogram verifies that small non-negative integer
// data gets one bin per value
func TestBuildIntegerHistogram(t *testing.T) {
	vol := mustVolume(t, []float32{2, 5, 5, 3, 2, 7}, 6, 1, 1)
	h := Build(vol, nil)

	if !h.Integer {
		t.Fatal("Expected an integer histogram")
	}
	if h.NumBins() != 6 {
		t.Fatalf("Expected 6 bins for values 2..7, got %d", h.NumBins())
	}
	if h.Min != 2 || h.Max != 7 {
		t.Errorf("Expected range [2,7], got [%v,%v]", h.Min, h.Max)
	}
	if h.Counts[h.Bin(5)] != 2 {
		t.Errorf("Expected 2 voxels at value 5, got %v", h.Counts[h.Bin(5)])
	}
	if h.Values[h.Bin(5)] != 5 {
		t.Errorf("Expected bin value 5, got %v", h.Values[h.Bin(5)])
	}
}

// TestBuildFloatHistogram verifies fractional data falls back to fixed
// cardinality binning with exact recorded extremes
func TestBuildFloatHistogram(t *testing.T) {
	vol := mustVolume(t, []float32{0.25, 1.5, 3.75, 2.0}, 4, 1, 1)
	h := Build(vol, nil)

	if h.Integer {
		t.Fatal("Expected a binned float histogram")
	}
	if h.NumBins() != 4096 {
		t.Fatalf("Expected 4096 bins, got %d", h.NumBins())
	}

	s := h.Summarize()
	if s.Min != 0.25 || s.Max != 3.75 {
		t.Errorf("Expected exact extremes [0.25,3.75], got [%v,%v]", s.Min, s.Max)
	}

	// Highest value lands in the last bin, lowest in the first.
	if h.Bin(3.75) != 4095 {
		t.Errorf("Expected max value in last bin, got %d", h.Bin(3.75))
	}
	if h.Bin(0.25) != 0 {
		t.Errorf("Expected min value in first bin, got %d", h.Bin(0.25))
	}
}

// TestBuildWithInclude verifies the include predicate restricts the
// histogram population
func TestBuildWithInclude(t *testing.T) {
	vol := mustVolume(t, []float32{1, 100, 2, 100}, 4, 1, 1)
	h := Build(vol, func(i int) bool { return i%2 == 0 })

	s := h.Summarize()
	if s.Count != 2 {
		t.Fatalf("Expected 2 included voxels, got %d", s.Count)
	}
	if s.Min != 1 || s.Max != 2 {
		t.Errorf("Expected range [1,2], got [%v,%v]", s.Min, s.Max)
	}
}

// TestSummarizeMatchesDirectFormulas verifies mean, sum and the
// Bessel-corrected standard deviation against direct computation
func TestSummarizeMatchesDirectFormulas(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 5, 5, 9}
	vol := mustVolume(t, data, 8, 1, 1)
	s := Build(vol, nil).Summarize()

	var sum, sum2 float64
	for _, v := range data {
		sum += float64(v)
		sum2 += float64(v) * float64(v)
	}
	n := float64(len(data))
	wantMean := sum / n
	wantStd := math.Sqrt((n*sum2 - sum*sum) / (n * (n - 1)))

	if math.Abs(s.Mean-wantMean) > 1e-9 {
		t.Errorf("Expected mean %v, got %v", wantMean, s.Mean)
	}
	if math.Abs(s.Sum-sum) > 1e-9 {
		t.Errorf("Expected sum %v, got %v", sum, s.Sum)
	}
	if math.Abs(s.StdDev-wantStd) > 1e-9 {
		t.Errorf("Expected stddev %v, got %v", wantStd, s.StdDev)
	}
}

// TestSummarizeEmpty verifies an all-excluded histogram yields a zero
// summary instead of NaNs
func TestSummarizeEmpty(t *testing.T) {
	vol := mustVolume(t, []float32{1, 2, 3}, 3, 1, 1)
	s := Build(vol, func(i int) bool { return false }).Summarize()

	if s.Count != 0 {
		t.Errorf("Expected count 0, got %d", s.Count)
	}
	if s.Mean != 0 || s.StdDev != 0 || s.Sum != 0 {
		t.Errorf("Expected zero summary, got %+v", s)
	}
}

// TestBackgroundMethods verifies each background derivation rule
func TestBackgroundMethods(t *testing.T) {
	s := Summary{Mean: 10, StdDev: 2}

	cases := []struct {
		name   string
		method BackgroundMethod
		param  float64
		auto   float64
		want   float32
	}{
		{"absolute", BackgroundAbsolute, 7, 0, 7},
		{"mean", BackgroundMean, 0, 0, 10},
		{"stddev_above_mean", BackgroundStdDevAboveMean, 3, 0, 16},
		{"auto", BackgroundAuto, 0, 42, 42},
		{"none", BackgroundNone, 99, 99, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Background(tc.method, tc.param, tc.auto, s); got != tc.want {
				t.Errorf("Expected background %v, got %v", tc.want, got)
			}
		})
	}
}
