package findfoci

import (
	"context"
	"testing"

	"focifinder3d/internal/models"
	"focifinder3d/pkg/centroid"
	"focifinder3d/pkg/stats"
)

func mustVolume(t *testing.T, data []float32, w, h, d int) *models.Volume {
	t.Helper()
	vol, err := models.FromData(data, w, h, d)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

func mustRun(t *testing.T, vol *models.Volume, opts Options) *Result {
	t.Helper()
	res, err := Run(context.Background(), vol, nil, nil, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

// TestSinglePixelPeak verifies a 5x5 zero image with one bright pixel
// yields exactly one single-pixel peak
func TestSinglePixelPeak(t *testing.T) {
	data := make([]float32, 25)
	data[2*5+2] = 10

	opts := DefaultOptions()
	opts.MinSize = 1
	res := mustRun(t, mustVolume(t, data, 5, 5, 1), opts)

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak, got %d", len(res.Peaks))
	}
	p := res.Peaks[0]
	if p.X != 2 || p.Y != 2 || p.Z != 0 {
		t.Errorf("Expected peak at (2,2,0), got (%d,%d,%d)", p.X, p.Y, p.Z)
	}
	if p.Count != 1 {
		t.Errorf("Expected pixel count 1, got %d", p.Count)
	}
	if p.MaxValue != 10 {
		t.Errorf("Expected max value 10, got %v", p.MaxValue)
	}
	if p.SaddleNeighbourID != 0 {
		t.Errorf("Expected no saddle neighbour, got %d", p.SaddleNeighbourID)
	}
}

// TestTwoSeparatedPeaks verifies two isolated bright pixels in a zero
// image both survive with no connecting saddle above the background
func TestTwoSeparatedPeaks(t *testing.T) {
	data := make([]float32, 100)
	data[1*10+1] = 10
	data[8*10+8] = 10

	opts := DefaultOptions()
	opts.MinSize = 1
	res := mustRun(t, mustVolume(t, data, 10, 10, 1), opts)

	if len(res.Peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d", len(res.Peaks))
	}
	for _, p := range res.Peaks {
		if p.Count != 1 {
			t.Errorf("Peak %d: expected count 1, got %d", p.ID, p.Count)
		}
		if p.SaddleValue != 0 {
			t.Errorf("Peak %d: expected saddle height 0, got %v", p.ID, p.SaddleValue)
		}
		if p.SaddleNeighbourID != 0 {
			t.Errorf("Peak %d: regions never touch above background, expected no neighbour, got %d",
				p.ID, p.SaddleNeighbourID)
		}
	}
}

// TestTwoSeparatedPeaksMinSizeTwo verifies both single-pixel peaks are
// merged away when the minimum size cannot be met
func TestTwoSeparatedPeaksMinSizeTwo(t *testing.T) {
	data := make([]float32, 100)
	data[1*10+1] = 10
	data[8*10+8] = 10

	opts := DefaultOptions()
	opts.MinSize = 2
	res := mustRun(t, mustVolume(t, data, 10, 10, 1), opts)

	if len(res.Peaks) != 0 {
		t.Fatalf("Expected empty output, got %d peaks", len(res.Peaks))
	}
	for i, l := range res.RenderLabels() {
		if l != 0 {
			t.Fatalf("Expected empty label volume, voxel %d has label %d", i, l)
		}
	}
}

// TestSingleRowTwoMaxima verifies a single-row image with two maxima
// whose regions never touch above a zero background
func TestSingleRowTwoMaxima(t *testing.T) {
	data := []float32{0, 5, 10, 5, 0, 0, 3, 8, 3, 0}
	res := mustRun(t, mustVolume(t, data, 10, 1, 1), DefaultOptions())

	if len(res.Peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d", len(res.Peaks))
	}

	// Default sort is total intensity, so the value-10 peak ranks first.
	if res.Peaks[0].X != 2 || res.Peaks[0].MaxValue != 10 {
		t.Errorf("Expected first peak at x=2 with max 10, got x=%d max %v",
			res.Peaks[0].X, res.Peaks[0].MaxValue)
	}
	if res.Peaks[1].X != 7 || res.Peaks[1].MaxValue != 8 {
		t.Errorf("Expected second peak at x=7 with max 8, got x=%d max %v",
			res.Peaks[1].X, res.Peaks[1].MaxValue)
	}
	for _, p := range res.Peaks {
		if p.Count != 3 {
			t.Errorf("Peak %d: expected count 3, got %d", p.ID, p.Count)
		}
		if p.SaddleValue != 0 || p.SaddleNeighbourID != 0 {
			t.Errorf("Peak %d: expected no saddle, got value %v neighbour %d",
				p.ID, p.SaddleValue, p.SaddleNeighbourID)
		}
	}
}

// TestTouchingPeaksSaddle verifies the saddle between two touching
// regions is the lowest value on the connecting ridge, recorded in both
// directions
func TestTouchingPeaksSaddle(t *testing.T) {
	data := []float32{1, 2, 5, 2, 3, 8, 3, 1}

	opts := DefaultOptions()
	opts.MinSize = 1
	res := mustRun(t, mustVolume(t, data, 8, 1, 1), opts)

	if len(res.Peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d", len(res.Peaks))
	}
	first, second := res.Peaks[0], res.Peaks[1]
	if first.MaxValue != 8 || second.MaxValue != 5 {
		t.Fatalf("Expected maxima 8 and 5, got %v and %v", first.MaxValue, second.MaxValue)
	}

	for _, p := range res.Peaks {
		if p.SaddleValue != 2 {
			t.Errorf("Peak %d: expected saddle height 2, got %v", p.ID, p.SaddleValue)
		}
		if p.Count != 4 {
			t.Errorf("Peak %d: expected count 4, got %d", p.ID, p.Count)
		}
	}
	if first.SaddleNeighbourID != second.ID || second.SaddleNeighbourID != first.ID {
		t.Errorf("Expected mutual saddle neighbours, got %d and %d",
			first.SaddleNeighbourID, second.SaddleNeighbourID)
	}

	// Above-saddle analysis counts voxels strictly above the ridge.
	if first.CountAboveSaddle != 3 {
		t.Errorf("Expected 3 voxels above saddle for the taller peak, got %d",
			first.CountAboveSaddle)
	}
	if second.CountAboveSaddle != 1 {
		t.Errorf("Expected 1 voxel above saddle for the smaller peak, got %d",
			second.CountAboveSaddle)
	}
}

// TestHeightMergeIntoNeighbour verifies a peak failing the minimum
// height criterion is folded into its saddle neighbour
func TestHeightMergeIntoNeighbour(t *testing.T) {
	data := []float32{1, 2, 5, 2, 3, 8, 3, 1}

	opts := DefaultOptions()
	opts.MinSize = 1
	opts.Peak = PeakAbsolute
	opts.PeakParameter = 4 // value-5 peak rises only 3 above its saddle
	res := mustRun(t, mustVolume(t, data, 8, 1, 1), opts)

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak after height merge, got %d", len(res.Peaks))
	}
	p := res.Peaks[0]
	if p.MaxValue != 8 || p.X != 5 {
		t.Errorf("Expected surviving seed at x=5 with max 8, got x=%d max %v", p.X, p.MaxValue)
	}
	if p.Count != 8 {
		t.Errorf("Expected merged count 8, got %d", p.Count)
	}
	if p.Intensity != 25 {
		t.Errorf("Expected merged intensity 25, got %v", p.Intensity)
	}
	if p.SaddleNeighbourID != 0 || p.SaddleValue != 0 {
		t.Errorf("Expected no remaining saddle, got value %v neighbour %d",
			p.SaddleValue, p.SaddleNeighbourID)
	}

	// The merge removed the survivor's saddle, so the above-saddle
	// counters must be rebuilt against the background floor: every
	// region voxel sits above it.
	if p.CountAboveSaddle != 8 {
		t.Errorf("Expected count above saddle 8 after merge, got %d", p.CountAboveSaddle)
	}
	if p.IntensityAboveSaddle != 25 {
		t.Errorf("Expected intensity above saddle 25 after merge, got %v", p.IntensityAboveSaddle)
	}
}

// TestAboveSaddleSizeMerge verifies the optional third pass merges
// peaks whose above-saddle count falls below the minimum size
func TestAboveSaddleSizeMerge(t *testing.T) {
	data := []float32{1, 2, 5, 2, 3, 8, 3, 1}

	opts := DefaultOptions()
	opts.MinSize = 2
	opts.MinSizeAboveSaddle = true
	res := mustRun(t, mustVolume(t, data, 8, 1, 1), opts)

	// The value-5 peak has only one voxel above its saddle of 2.
	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak after above-saddle merge, got %d", len(res.Peaks))
	}
	if res.Peaks[0].Count != 8 {
		t.Errorf("Expected merged count 8, got %d", res.Peaks[0].Count)
	}
}

// TestValidPlateau verifies a flat-topped maximum registers once, with
// the member nearest the plateau's mean coordinate as representative
func TestValidPlateau(t *testing.T) {
	data := []float32{0, 0, 4, 4, 4, 0, 0}

	opts := DefaultOptions()
	res := mustRun(t, mustVolume(t, data, 7, 1, 1), opts)

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak for a flat plateau, got %d", len(res.Peaks))
	}
	p := res.Peaks[0]
	if p.X != 3 {
		t.Errorf("Expected the central plateau member as representative, got x=%d", p.X)
	}
	if p.Count != 3 {
		t.Errorf("Expected count 3, got %d", p.Count)
	}
}

// TestInvalidPlateau verifies a plateau touching a strictly higher
// neighbour is not a maximum but its members still join the region that
// absorbs them
func TestInvalidPlateau(t *testing.T) {
	data := []float32{0, 4, 4, 4, 5, 0, 0}

	opts := DefaultOptions()
	opts.MinSize = 1
	res := mustRun(t, mustVolume(t, data, 7, 1, 1), opts)

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected only the higher maximum, got %d peaks", len(res.Peaks))
	}
	p := res.Peaks[0]
	if p.X != 4 || p.MaxValue != 5 {
		t.Errorf("Expected peak at x=4 with max 5, got x=%d max %v", p.X, p.MaxValue)
	}
	if p.Count != 4 {
		t.Errorf("Expected the plateau members absorbed (count 4), got %d", p.Count)
	}
	if p.Intensity != 17 {
		t.Errorf("Expected intensity 17, got %v", p.Intensity)
	}
}

// TestRemoveEdgeMaxima verifies peaks whose regions touch the volume
// boundary are discarded
func TestRemoveEdgeMaxima(t *testing.T) {
	data := make([]float32, 25)
	data[0] = 10       // corner peak
	data[2*5+2] = 8    // interior peak

	opts := DefaultOptions()
	opts.MinSize = 1
	opts.RemoveEdgeMaxima = true
	res := mustRun(t, mustVolume(t, data, 5, 5, 1), opts)

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak after edge removal, got %d", len(res.Peaks))
	}
	p := res.Peaks[0]
	if p.X != 2 || p.Y != 2 {
		t.Errorf("Expected the interior peak to survive, got (%d,%d)", p.X, p.Y)
	}
	for i, l := range res.RenderLabels() {
		if l != 0 && i != 2*5+2 {
			t.Errorf("Expected edge region cleared from labels, voxel %d has label %d", i, l)
		}
	}
}

// TestMaskedRunExcludesPeaks verifies masked-out voxels never produce
// or join peaks and the mask scope controls the reported statistics
func TestMaskedRunExcludesPeaks(t *testing.T) {
	data := make([]float32, 100)
	data[2*10+2] = 10
	data[7*10+7] = 8

	mask := make([]bool, 100)
	for i := range mask {
		mask[i] = i >= 50 // exclude the top half, losing the value-10 peak
	}

	opts := DefaultOptions()
	opts.MinSize = 1
	opts.StatisticsScope = stats.ScopeBoth
	vol := mustVolume(t, data, 10, 10, 1)
	res, err := Run(context.Background(), vol, nil, mask, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak inside the mask, got %d", len(res.Peaks))
	}
	if res.Peaks[0].X != 7 || res.Peaks[0].Y != 7 {
		t.Errorf("Expected the masked-in peak at (7,7), got (%d,%d)",
			res.Peaks[0].X, res.Peaks[0].Y)
	}

	if res.Stats.Image.Count != 50 {
		t.Errorf("Expected statistics over 50 masked-in voxels, got %d", res.Stats.Image.Count)
	}
	if res.Stats.Masked == nil {
		t.Fatal("Expected whole-image statistics under ScopeBoth")
	}
	if res.Stats.Masked.Count != 100 {
		t.Errorf("Expected 100 voxels in the unrestricted summary, got %d",
			res.Stats.Masked.Count)
	}
}

// TestSmoothedTopologyNativeIntensities verifies intensity totals are
// recomputed from the original volume when topology ran on a smoothed
// copy
func TestSmoothedTopologyNativeIntensities(t *testing.T) {
	smoothed := []float32{0, 5, 10, 5, 0}
	original := []float32{0, 50, 100, 50, 0}

	opts := DefaultOptions()
	res, err := Run(context.Background(),
		mustVolume(t, smoothed, 5, 1, 1),
		mustVolume(t, original, 5, 1, 1),
		nil, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak, got %d", len(res.Peaks))
	}
	p := res.Peaks[0]
	if p.Intensity != 200 {
		t.Errorf("Expected native intensity 200, got %v", p.Intensity)
	}
	if p.MaxValue != 100 {
		t.Errorf("Expected native max 100, got %v", p.MaxValue)
	}
	if p.CountAboveSaddle != 3 {
		t.Errorf("Expected 3 voxels above saddle, got %d", p.CountAboveSaddle)
	}
	if p.IntensityAboveSaddle != 200 {
		t.Errorf("Expected native above-saddle intensity 200, got %v", p.IntensityAboveSaddle)
	}
}

// TestSortKeys verifies the coordinate keys sort ascending and the
// magnitude keys descending
func TestSortKeys(t *testing.T) {
	// Two touching peaks: max 8 at x=5 (larger) and max 5 at x=2.
	data := []float32{1, 2, 5, 2, 3, 8, 3, 1}
	vol := mustVolume(t, data, 8, 1, 1)

	opts := DefaultOptions()
	opts.MinSize = 1

	opts.Sort = SortMaxValue
	res := mustRun(t, vol, opts)
	if res.Peaks[0].MaxValue != 8 {
		t.Errorf("SortMaxValue: expected the max-8 peak first, got %v", res.Peaks[0].MaxValue)
	}

	opts.Sort = SortX
	res = mustRun(t, vol, opts)
	if res.Peaks[0].X != 2 {
		t.Errorf("SortX: expected the x=2 peak first, got x=%d", res.Peaks[0].X)
	}

	opts.Sort = SortSaddleHeight
	res = mustRun(t, vol, opts)
	if len(res.Peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d", len(res.Peaks))
	}
}

// TestGaussianFitFallback verifies a failed fit on a degenerate region
// keeps the seed coordinate instead of failing the run
func TestGaussianFitFallback(t *testing.T) {
	data := make([]float32, 25)
	data[2*5+2] = 10

	opts := DefaultOptions()
	opts.MinSize = 1
	opts.Centroid = centroid.GaussianFit
	res := mustRun(t, mustVolume(t, data, 5, 5, 1), opts)

	if len(res.Peaks) != 1 {
		t.Fatalf("Expected 1 peak, got %d", len(res.Peaks))
	}
	if res.Peaks[0].X != 2 || res.Peaks[0].Y != 2 {
		t.Errorf("Expected coordinate kept at (2,2), got (%d,%d)",
			res.Peaks[0].X, res.Peaks[0].Y)
	}
}
