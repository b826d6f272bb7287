package centroid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ErrGaussianFitUnavailable is returned when a Gaussian fit cannot be
// performed on the projected region (too few pixels, no signal, or the
// optimisation failed to converge to a plausible location). Callers
// degrade to keeping the prior coordinate.
var ErrGaussianFitUnavailable = errors.New("gaussian fit unavailable")

// gaussianParams indexes the parameter vector of the 2D model
// A*exp(-((x-cx)^2/(2*sx^2) + (y-cy)^2/(2*sy^2))) + b.
const (
	pAmp = iota
	pCx
	pCy
	pSx
	pSy
	pBase
	nParams
)

// FitGaussian2D fits a 2D Gaussian to a width x height plane and returns
// the fitted centre in plane coordinates. The fit minimises the sum of
// squared residuals with Nelder-Mead, starting from the intensity
// moments of the plane.
func FitGaussian2D(plane []float64, width, height int) (cx, cy float64, err error) {
	if width < 3 || height < 3 || len(plane) != width*height {
		return 0, 0, fmt.Errorf("%w: plane %dx%d too small", ErrGaussianFitUnavailable, width, height)
	}

	m := mat.NewDense(height, width, plane)
	lo := mat.Min(m)
	hi := mat.Max(m)
	if hi <= lo {
		return 0, 0, fmt.Errorf("%w: no signal in projection", ErrGaussianFitUnavailable)
	}

	// Moment-based starting point.
	var sx, sy, sw float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := plane[y*width+x] - lo
			sx += v * float64(x)
			sy += v * float64(y)
			sw += v
		}
	}
	cx0 := sx / sw
	cy0 := sy / sw

	var vx, vy float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := plane[y*width+x] - lo
			vx += v * (float64(x) - cx0) * (float64(x) - cx0)
			vy += v * (float64(y) - cy0) * (float64(y) - cy0)
		}
	}
	sx0 := math.Max(0.5, math.Sqrt(vx/sw))
	sy0 := math.Max(0.5, math.Sqrt(vy/sw))

	p0 := make([]float64, nParams)
	p0[pAmp] = hi - lo
	p0[pCx] = cx0
	p0[pCy] = cy0
	p0[pSx] = sx0
	p0[pSy] = sy0
	p0[pBase] = lo

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			amp, fcx, fcy := p[pAmp], p[pCx], p[pCy]
			tx := 2 * p[pSx] * p[pSx]
			ty := 2 * p[pSy] * p[pSy]
			if tx <= 0 || ty <= 0 {
				return math.Inf(1)
			}
			var sum float64
			for y := 0; y < height; y++ {
				dy := float64(y) - fcy
				ey := dy * dy / ty
				for x := 0; x < width; x++ {
					dx := float64(x) - fcx
					model := amp*math.Exp(-(dx*dx/tx+ey)) + p[pBase]
					r := model - plane[y*width+x]
					sum += r * r
				}
			}
			return sum
		},
	}

	result, err := optimize.Minimize(problem, p0, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrGaussianFitUnavailable, err)
	}

	fit := result.Location.X
	cx, cy = fit[pCx], fit[pCy]
	if math.IsNaN(cx) || math.IsNaN(cy) ||
		cx < 0 || cx > float64(width-1) || cy < 0 || cy > float64(height-1) ||
		fit[pSx] <= 0 || fit[pSy] <= 0 || fit[pAmp] <= 0 {
		return 0, 0, fmt.Errorf("%w: implausible fit", ErrGaussianFitUnavailable)
	}
	return cx, cy, nil
}
