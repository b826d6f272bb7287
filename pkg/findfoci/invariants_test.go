package findfoci

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"focifinder3d/internal/models"
)

// blobVolume builds a deterministic stack with several Gaussian-shaped
// integer-valued blobs for the property tests.
func blobVolume(t *testing.T) *models.Volume {
	t.Helper()
	width, height, depth := 16, 16, 5
	type blob struct {
		x, y, z int
		amp     float64
	}
	blobs := []blob{
		{4, 4, 2, 100},
		{11, 5, 2, 80},
		{6, 12, 1, 60},
		{13, 13, 3, 40},
	}

	data := make([]float32, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var v float64
				for _, b := range blobs {
					d2 := float64((x-b.x)*(x-b.x) + (y-b.y)*(y-b.y) + (z-b.z)*(z-b.z))
					v += b.amp * math.Exp(-d2/6)
				}
				data[z*width*height+y*width+x] = float32(math.Floor(v))
			}
		}
	}
	return mustVolume(t, data, width, height, depth)
}

// TestPartitionInvariant verifies every voxel's final label is either
// zero or owned by exactly one surviving peak whose count matches
func TestPartitionInvariant(t *testing.T) {
	opts := DefaultOptions()
	res := mustRun(t, blobVolume(t), opts)

	if len(res.Peaks) < 2 {
		t.Fatalf("Expected multiple peaks from the blob volume, got %d", len(res.Peaks))
	}

	counts := make(map[int32]int)
	for _, l := range res.RenderLabels() {
		if l < 0 || int(l) > len(res.Peaks) {
			t.Fatalf("Label %d out of range 0..%d", l, len(res.Peaks))
		}
		if l != 0 {
			counts[l]++
		}
	}
	for _, p := range res.Peaks {
		if counts[p.ID] != p.Count {
			t.Errorf("Peak %d: label volume holds %d voxels, peak records %d",
				p.ID, counts[p.ID], p.Count)
		}
	}
}

// TestSaddleBound verifies every recorded saddle sits at or below the
// maxima of both peaks it separates
func TestSaddleBound(t *testing.T) {
	opts := DefaultOptions()
	res := mustRun(t, blobVolume(t), opts)

	byID := make(map[int32]Peak, len(res.Peaks))
	for _, p := range res.Peaks {
		byID[p.ID] = p
	}
	for _, p := range res.Peaks {
		if p.SaddleNeighbourID == 0 {
			continue
		}
		nb, ok := byID[p.SaddleNeighbourID]
		if !ok {
			t.Fatalf("Peak %d: saddle neighbour %d not in output", p.ID, p.SaddleNeighbourID)
		}
		if p.SaddleValue > p.MaxValue || p.SaddleValue > nb.MaxValue {
			t.Errorf("Peak %d: saddle %v exceeds a peak maximum (%v, %v)",
				p.ID, p.SaddleValue, p.MaxValue, nb.MaxValue)
		}
	}
}

// TestDeterminism verifies repeated runs over the same buffer and
// configuration yield identical output lists and label volumes
func TestDeterminism(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSizeAboveSaddle = true

	vol := blobVolume(t)
	first, err := Run(context.Background(), vol.Clone(), nil, nil, opts)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := Run(context.Background(), vol.Clone(), nil, nil, opts)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.Peaks, second.Peaks) {
		t.Error("Peak lists differ between identical runs")
	}
	if !reflect.DeepEqual(first.RenderLabels(), second.RenderLabels()) {
		t.Error("Label volumes differ between identical runs")
	}
}

// TestMaxPeaksCap verifies truncation keeps exactly the top peaks under
// the configured sort key and drops their labels
func TestMaxPeaksCap(t *testing.T) {
	opts := DefaultOptions()
	full := mustRun(t, blobVolume(t), opts)
	if len(full.Peaks) < 3 {
		t.Fatalf("Need at least 3 peaks for the cap test, got %d", len(full.Peaks))
	}

	opts.MaxPeaks = 2
	capped := mustRun(t, blobVolume(t), opts)

	if len(capped.Peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d", len(capped.Peaks))
	}
	for i := range capped.Peaks {
		if capped.Peaks[i].Intensity != full.Peaks[i].Intensity ||
			capped.Peaks[i].Index != full.Peaks[i].Index {
			t.Errorf("Rank %d differs between capped and full run", i+1)
		}
	}

	for _, l := range capped.RenderLabels() {
		if l > 2 {
			t.Fatalf("Label %d survived truncation to 2 peaks", l)
		}
	}
}

// TestIDCapacityExceeded verifies the run aborts with the typed error
// when more candidate maxima appear than the id space allows
func TestIDCapacityExceeded(t *testing.T) {
	old := idCapacity
	idCapacity = 2
	defer func() { idCapacity = old }()

	data := make([]float32, 100)
	data[1*10+1] = 10
	data[1*10+8] = 10
	data[8*10+4] = 10

	opts := DefaultOptions()
	opts.MinSize = 1
	_, err := Run(context.Background(), mustVolume(t, data, 10, 10, 1), nil, nil, opts)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}
}

// TestMaskDimensionMismatch verifies a mask of the wrong length is
// rejected before any processing
func TestMaskDimensionMismatch(t *testing.T) {
	vol := mustVolume(t, make([]float32, 25), 5, 5, 1)
	mask := make([]bool, 24)

	_, err := Run(context.Background(), vol, nil, mask, DefaultOptions())
	if !errors.Is(err, ErrMaskDimensionMismatch) {
		t.Fatalf("Expected ErrMaskDimensionMismatch, got %v", err)
	}
}

// TestCancelledContext verifies a cancelled context aborts the run with
// the typed error and no partial result
func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, blobVolume(t), nil, nil, DefaultOptions())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if res != nil {
		t.Error("Expected no partial result from a cancelled run")
	}
}
