package findfoci

import (
	"context"
	"fmt"
	"math"

	"focifinder3d/internal/models"
	"focifinder3d/pkg/grid"
	"focifinder3d/pkg/stats"
)

// idCapacity bounds the number of candidate maxima in one run. The
// legacy 16-bit id field is widened to int32 here, so the limit is only
// a guard against runaway inputs. Variable so tests can lower it.
var idCapacity = int32(math.MaxInt32 - 1)

// cancelCheckMask controls how often the long passes poll the context:
// once every cancelCheckMask+1 processed voxels.
const cancelCheckMask = 0xFFF

// state carries the working buffers of one invocation. Everything here
// is discarded when Run returns; only the Result escapes.
type state struct {
	ctx  context.Context
	opts Options

	vol  *models.Volume
	data []float32
	orig []float32 // native intensities when topology ran on a smoothed copy

	width, height, depth int

	nb    *grid.Neighborhood
	types []uint8
	ids   []int32

	hist       *stats.Histogram
	summary    stats.Summary
	result     Statistics
	background float32

	peaks     []*Peak // indexed by current id; peaks[0] is nil
	peakIDMap []int32
	pList     []int // reusable flood-fill queue, sized to the volume
}

// Run executes the full foci finding pipeline on a volume.
//
// If the topology volume vol is a smoothed copy, the unblurred source
// is passed as original and the final per-peak intensity totals are
// recomputed from it; otherwise original is nil. The mask, when
// non-nil, flags the voxels to analyse (false = excluded) and must
// match the volume length.
//
// The context is polled at coarse intervals by every long pass; a
// cancelled context aborts the run with ErrCancelled and no partial
// result.
func Run(ctx context.Context, vol *models.Volume, original *models.Volume, mask []bool, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if mask != nil && len(mask) != vol.Len() {
		return nil, fmt.Errorf("%w: mask has %d entries, volume has %d voxels",
			ErrMaskDimensionMismatch, len(mask), vol.Len())
	}
	if original != nil &&
		(original.Width != vol.Width || original.Height != vol.Height || original.Depth != vol.Depth) {
		return nil, fmt.Errorf("original volume is %dx%dx%d, topology volume is %dx%dx%d",
			original.Width, original.Height, original.Depth, vol.Width, vol.Height, vol.Depth)
	}

	s := &state{
		ctx:    ctx,
		opts:   opts,
		vol:    vol,
		data:   vol.Data,
		width:  vol.Width,
		height: vol.Height,
		depth:  vol.Depth,
		nb:     grid.New(vol.Width, vol.Height, vol.Depth),
		types:  make([]uint8, vol.Len()),
		ids:    make([]int32, vol.Len()),
		pList:  make([]int, vol.Len()),
	}
	if original != nil {
		s.orig = original.Data
	}
	if mask != nil {
		for i, in := range mask {
			if !in {
				s.types[i] |= flagExcluded
			}
		}
	}

	s.computeStatistics(mask != nil)

	if err := s.findMaxima(); err != nil {
		return nil, err
	}
	if err := s.assignPoints(); err != nil {
		return nil, err
	}
	s.pruneRegions()
	s.computeInitialStats()
	if err := s.findSaddles(); err != nil {
		return nil, err
	}
	s.analyseAboveSaddle()
	if err := s.mergePeaks(); err != nil {
		return nil, err
	}
	if s.opts.RemoveEdgeMaxima {
		s.removeEdgePeaks()
	}
	if s.orig != nil {
		s.recomputeNativeTotals()
	}
	// Merging and edge removal change the surviving peaks' highest
	// saddles, so the reported above-saddle counters are rebuilt once
	// against the final saddle graph.
	s.analyseAboveSaddle()
	s.relocateCentroids()

	return s.finalize(), nil
}

// cancelled reports a context cancellation as the engine's typed error.
func (s *state) cancelled() error {
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, s.ctx.Err())
	default:
		return nil
	}
}

// computeStatistics builds the intensity histogram over the analysed
// voxels, derives the summary and background level, and fills the
// reported statistics vector according to the configured scope.
func (s *state) computeStatistics(hasMask bool) {
	include := func(i int) bool { return s.types[i]&flagExcluded == 0 }

	s.hist = stats.Build(s.vol, include)
	s.summary = s.hist.Summarize()
	s.background = stats.Background(
		s.opts.Background, s.opts.BackgroundParameter, s.opts.AutoThreshold, s.summary)

	s.result = Statistics{Image: s.summary, Background: s.background}
	if !hasMask {
		return
	}
	switch s.opts.StatisticsScope {
	case stats.ScopeInside:
		sum := s.summary
		s.result.Masked = &sum
	case stats.ScopeOutside:
		outside := func(i int) bool { return s.types[i]&flagExcluded != 0 }
		sum := stats.Build(s.vol, outside).Summarize()
		s.result.Masked = &sum
	case stats.ScopeBoth:
		sum := stats.Build(s.vol, nil).Summarize()
		s.result.Masked = &sum
	}
}

// saddleFloor is the level separating a peak from its surroundings: its
// highest saddle, or the background when it has no neighbour.
func (s *state) saddleFloor(p *Peak) float32 {
	if p.SaddleNeighbourID != 0 {
		return p.SaddleValue
	}
	return s.background
}

// resolve follows the merge map to the peak currently absorbing id.
func (s *state) resolve(id int32) int32 {
	for s.peakIDMap[id] != id {
		id = s.peakIDMap[id]
	}
	return id
}
