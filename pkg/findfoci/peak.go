package findfoci

import "focifinder3d/pkg/stats"

// Pixel state flags. Excluded voxels are never touched by the engine;
// Listed is transient and always cleared before a flood fill returns.
const (
	flagExcluded uint8 = 1 << iota
	flagMaximum
	flagListed
	flagMaxArea
	flagPlateau
)

// Peak is one surviving intensity peak and its region measurements.
// Derived fields (AverageIntensity and the background-subtracted
// variants) are only populated at finalisation.
type Peak struct {
	// ID is the 1-based rank of the peak in the final sort order.
	ID int32

	// X, Y, Z is the reported peak coordinate and Index its linear index.
	X, Y, Z int
	Index   int

	// Count is the region size in voxels and Intensity its summed value.
	Count     int
	Intensity float64

	// MaxValue is the highest intensity inside the region.
	MaxValue float32

	// SaddleValue is the highest saddle to any neighbouring peak and
	// SaddleNeighbourID that neighbour's final id (0 if none).
	SaddleValue       float32
	SaddleNeighbourID int32

	// CountAboveSaddle and IntensityAboveSaddle restrict the region
	// measurements to voxels strictly above SaddleValue.
	CountAboveSaddle     int
	IntensityAboveSaddle float64

	// Derived at finalisation.
	AverageIntensity                float64
	MaxValueMinusBackground         float64
	IntensityMinusBackground        float64
	AverageIntensityMinusBackground float64

	saddles []saddleEdge
	dead    bool
}

// saddleEdge is one outgoing best-edge of the saddle graph: the highest
// recorded connecting value to a distinct neighbouring peak.
type saddleEdge struct {
	id    int32
	value float32
}

// Statistics is the global statistics vector of one invocation.
type Statistics struct {
	// Image covers every non-excluded voxel.
	Image stats.Summary

	// Masked covers the inside- or outside-mask voxel set when the
	// statistics scope requests it, nil otherwise.
	Masked *stats.Summary

	// Background is the derived background level used by the run.
	Background float32
}

// Result is the externally-returned output of one invocation. All other
// per-voxel working buffers are discarded when the run ends.
type Result struct {
	// Peaks is the final ordered result list.
	Peaks []Peak

	// Stats is the global statistics vector.
	Stats Statistics

	// Width, Height, Depth echo the processed volume shape.
	Width, Height, Depth int

	labels []int32
}

// RenderLabels returns a label volume of the processed shape where each
// voxel holds the final rank of its owning peak, or 0 for background.
func (r *Result) RenderLabels() []int32 {
	out := make([]int32, len(r.labels))
	copy(out, r.labels)
	return out
}
