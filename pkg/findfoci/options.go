// Package findfoci implements the multi-dimensional local-maxima
// segmentation engine: it locates significant intensity peaks in a 2D
// image or 3D stack, grows a region around each peak, records the
// highest saddle between every pair of adjacent peaks, and iteratively
// merges peaks that fail the minimum-height or minimum-size criteria
// into their best neighbour.
package findfoci

import (
	"focifinder3d/pkg/centroid"
	"focifinder3d/pkg/stats"
)

// SearchMethod selects the growth-stopping tolerance of each peak's
// region.
type SearchMethod int

const (
	// SearchAboveBackground keeps every voxel above the background level.
	SearchAboveBackground SearchMethod = iota
	// SearchFractionOfPeak stops at background + f*(peakMax-background).
	SearchFractionOfPeak
	// SearchHalfPeak is the f=0.5 variant of SearchFractionOfPeak.
	SearchHalfPeak
)

// PeakMethod selects how the minimum peak height threshold is computed
// during the height merge pass.
type PeakMethod int

const (
	// PeakAbsolute uses the parameter as a literal height.
	PeakAbsolute PeakMethod = iota
	// PeakRelative uses parameter*peakMax.
	PeakRelative
	// PeakRelativeAboveBackground uses parameter*(peakMax-background).
	PeakRelativeAboveBackground
)

// SortKey orders the final result list.
type SortKey int

const (
	// SortIntensity orders by total intensity, largest first.
	SortIntensity SortKey = iota
	// SortCount orders by region size, largest first.
	SortCount
	// SortMaxValue orders by peak maximum, largest first.
	SortMaxValue
	// SortAverageIntensity orders by mean region intensity, largest first.
	SortAverageIntensity
	// SortIntensityMinusBackground orders by background-subtracted total
	// intensity, largest first.
	SortIntensityMinusBackground
	// SortAverageIntensityMinusBackground orders by background-subtracted
	// mean intensity, largest first.
	SortAverageIntensityMinusBackground
	// SortX, SortY and SortZ order by the raw coordinate, smallest first.
	SortX
	SortY
	SortZ
	// SortSaddleHeight orders by the highest saddle value, largest first.
	SortSaddleHeight
	// SortCountAboveSaddle orders by region size above the saddle,
	// largest first.
	SortCountAboveSaddle
	// SortIntensityAboveSaddle orders by intensity above the saddle,
	// largest first.
	SortIntensityAboveSaddle
	// SortAbsoluteHeight orders by max minus the higher of background and
	// saddle, largest first.
	SortAbsoluteHeight
	// SortRelativeHeight orders by absolute height divided by the peak
	// maximum, largest first.
	SortRelativeHeight
)

// Options is the immutable per-invocation configuration of the engine.
// No configuration state survives between runs.
type Options struct {
	// Background selects the background level derivation and
	// BackgroundParameter its parameter. AutoThreshold carries the
	// externally computed value used by stats.BackgroundAuto.
	Background          stats.BackgroundMethod
	BackgroundParameter float64
	AutoThreshold       float64

	// StatisticsScope selects which voxels the reported statistics cover
	// when a mask is present.
	StatisticsScope stats.Scope

	// Search selects the region growth-stopping rule and SearchParameter
	// its fraction.
	Search          SearchMethod
	SearchParameter float64

	// MinSize is the minimum surviving region size in voxels.
	MinSize int

	// MinSizeAboveSaddle enables the third merge pass, which applies
	// MinSize to the voxel count above each peak's highest saddle.
	MinSizeAboveSaddle bool

	// Peak selects the minimum peak height rule of the height merge pass
	// and PeakParameter its parameter.
	Peak          PeakMethod
	PeakParameter float64

	// MaxPeaks caps the final result list.
	MaxPeaks int

	// Sort orders the final result list.
	Sort SortKey

	// RemoveEdgeMaxima discards peaks whose region touches the volume
	// boundary.
	RemoveEdgeMaxima bool

	// Centroid selects the coordinate relocation strategy,
	// CentroidParameter its half-window in voxels, and
	// CentroidProjection the z-collapse used by the Gaussian fit.
	Centroid           centroid.Method
	CentroidParameter  int
	CentroidProjection centroid.Projection
}

// DefaultOptions returns the engine defaults: absolute zero background,
// growth above background, minimum size 3, height threshold 0, all
// peaks kept, sorted by total intensity, no relocation.
func DefaultOptions() Options {
	return Options{
		Background:          stats.BackgroundAbsolute,
		BackgroundParameter: 0,
		StatisticsScope:     stats.ScopeAll,
		Search:              SearchAboveBackground,
		SearchParameter:     0,
		MinSize:             3,
		Peak:                PeakAbsolute,
		PeakParameter:       0,
		MaxPeaks:            0,
		Sort:                SortIntensity,
		Centroid:            centroid.None,
		CentroidParameter:   2,
	}
}
