// Package centroid relocates the reported coordinate of a peak within
// its extracted core region, either by iterative centre-of-mass or by
// fitting a 2D Gaussian to a z-axis projection.
package centroid

import (
	"math"
)

// Method selects the relocation strategy for peak coordinates.
type Method int

const (
	// None keeps the discovery-time maximum location.
	None Method = iota
	// OriginalImage recomputes the discovery-time rule (maximum value,
	// centroid of ties) against the unblurred source image.
	OriginalImage
	// CentreOfMass iterates a centre-of-mass computation inside a
	// half-window until it converges.
	CentreOfMass
	// GaussianFit fits a 2D Gaussian to a z-axis projection of the core
	// region.
	GaussianFit
)

// Projection selects how the core region is collapsed along z before a
// Gaussian fit.
type Projection int

const (
	// MaxProjection takes the maximum intensity along z.
	MaxProjection Projection = iota
	// AverageProjection takes the mean intensity along z.
	AverageProjection
)

// maxIterations caps the centre-of-mass refinement loop.
const maxIterations = 20

// Region is the extracted core sub-volume of one peak: the bounding box
// of its voxels above the highest saddle, with intensities clipped to
// max(0, value-saddle). Coordinates X0/Y0/Z0 locate the box inside the
// parent volume.
type Region struct {
	Data                 []float32
	Width, Height, Depth int
	X0, Y0, Z0           int
}

func (r *Region) index(x, y, z int) int {
	return z*r.Width*r.Height + y*r.Width + x
}

// Project collapses the region along z into a width x height plane.
func (r *Region) Project(p Projection) []float64 {
	plane := make([]float64, r.Width*r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			var acc float64
			for z := 0; z < r.Depth; z++ {
				v := float64(r.Data[r.index(x, y, z)])
				if p == MaxProjection {
					if z == 0 || v > acc {
						acc = v
					}
				} else {
					acc += v
				}
			}
			if p == AverageProjection {
				acc /= float64(r.Depth)
			}
			plane[y*r.Width+x] = acc
		}
	}
	return plane
}

// WeightedZ returns the intensity-weighted centroid along z at the given
// region-local column, and whether the column carried any intensity.
func (r *Region) WeightedZ(x, y int) (float64, bool) {
	var sum, wsum float64
	for z := 0; z < r.Depth; z++ {
		v := float64(r.Data[r.index(x, y, z)])
		sum += v * float64(z)
		wsum += v
	}
	if wsum <= 0 {
		return 0, false
	}
	return sum / wsum, true
}

// Refine runs the iterative centre-of-mass relocation. The start
// coordinate is in parent-volume space; the returned coordinate is too.
// Each iteration computes the centre of mass of a +-halfWindow box
// around the current position (clamped to the region) and moves there,
// stopping once the squared movement drops below one voxel or the
// iteration cap is reached.
func (r *Region) Refine(startX, startY, startZ, halfWindow int) (x, y, z int) {
	cx := float64(startX - r.X0)
	cy := float64(startY - r.Y0)
	cz := float64(startZ - r.Z0)

	for iter := 0; iter < maxIterations; iter++ {
		x0, x1 := clampBox(int(math.Round(cx)), halfWindow, r.Width)
		y0, y1 := clampBox(int(math.Round(cy)), halfWindow, r.Height)
		z0, z1 := clampBox(int(math.Round(cz)), halfWindow, r.Depth)

		var sx, sy, sz, sw float64
		for zz := z0; zz <= z1; zz++ {
			for yy := y0; yy <= y1; yy++ {
				for xx := x0; xx <= x1; xx++ {
					v := float64(r.Data[r.index(xx, yy, zz)])
					sx += v * float64(xx)
					sy += v * float64(yy)
					sz += v * float64(zz)
					sw += v
				}
			}
		}
		if sw <= 0 {
			break
		}

		nx, ny, nz := sx/sw, sy/sw, sz/sw
		move := (nx-cx)*(nx-cx) + (ny-cy)*(ny-cy) + (nz-cz)*(nz-cz)
		cx, cy, cz = nx, ny, nz
		if move < 1 {
			break
		}
	}

	x = r.X0 + int(math.Round(cx))
	y = r.Y0 + int(math.Round(cy))
	z = r.Z0 + int(math.Round(cz))
	return clamp(x, r.X0, r.X0+r.Width-1),
		clamp(y, r.Y0, r.Y0+r.Height-1),
		clamp(z, r.Z0, r.Z0+r.Depth-1)
}

func clampBox(c, half, size int) (lo, hi int) {
	lo = c - half
	hi = c + half
	if lo < 0 {
		lo = 0
	}
	if hi > size-1 {
		hi = size - 1
	}
	if lo > hi {
		lo, hi = 0, size-1
	}
	return lo, hi
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
