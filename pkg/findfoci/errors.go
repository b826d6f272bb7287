package findfoci

import (
	"errors"

	"focifinder3d/internal/models"
	"focifinder3d/pkg/centroid"
)

// ErrCapacityExceeded is returned when the number of candidate maxima
// exceeds the id capacity of a single run.
var ErrCapacityExceeded = errors.New("too many candidate maxima for a single run")

// ErrCancelled is returned when the caller's context is cancelled while
// a pass is in flight. No partial result is produced.
var ErrCancelled = errors.New("foci finding cancelled")

// ErrMaskDimensionMismatch is returned when the exclusion mask does not
// match the volume shape.
var ErrMaskDimensionMismatch = errors.New("mask dimensions do not match volume")

// ErrUnsupportedPixelFormat mirrors the volume conversion failure so
// callers can test the whole failure surface against this package.
var ErrUnsupportedPixelFormat = models.ErrUnsupportedPixelFormat

// ErrGaussianFitUnavailable is the degraded-centroid condition; the run
// itself never fails with it, affected peaks keep their coordinate.
var ErrGaussianFitUnavailable = centroid.ErrGaussianFitUnavailable
