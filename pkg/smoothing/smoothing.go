// Package smoothing provides the optional Gaussian pre-filter applied
// to a volume before foci finding. The engine itself never smooths:
// callers blur a copy, run the topology on it, and let the engine
// report final intensities from the original.
//
// The filter works directly on the float intensity buffer so 16-bit and
// float data keep their precision; image-library blurs would round-trip
// through 8-bit channels.
package smoothing

import (
	"math"

	"focifinder3d/internal/models"
)

// Blur returns a smoothed copy of the volume. Each z-slice is convolved
// with a separable 2D Gaussian of the given sigma; slices are treated
// independently, matching a per-slice acquisition. A sigma of zero or
// less returns an unmodified copy.
func Blur(vol *models.Volume, sigma float64) *models.Volume {
	out := vol.Clone()
	if sigma <= 0 {
		return out
	}

	k := kernel(sigma)
	radius := len(k) / 2
	w, h := vol.Width, vol.Height
	tmp := make([]float32, w*h)

	for z := 0; z < vol.Depth; z++ {
		slice := out.Data[z*w*h : (z+1)*w*h]

		// Horizontal pass.
		for y := 0; y < h; y++ {
			row := slice[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var acc, norm float64
				for t := -radius; t <= radius; t++ {
					xx := x + t
					if xx < 0 || xx >= w {
						continue
					}
					wgt := k[t+radius]
					acc += wgt * float64(row[xx])
					norm += wgt
				}
				tmp[y*w+x] = float32(acc / norm)
			}
		}

		// Vertical pass.
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var acc, norm float64
				for t := -radius; t <= radius; t++ {
					yy := y + t
					if yy < 0 || yy >= h {
						continue
					}
					wgt := k[t+radius]
					acc += wgt * float64(tmp[yy*w+x])
					norm += wgt
				}
				slice[y*w+x] = float32(acc / norm)
			}
		}
	}

	return out
}

// kernel builds a normalised 1D Gaussian sampled at integer offsets,
// truncated at three sigma.
func kernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	var sum float64
	for t := -radius; t <= radius; t++ {
		v := math.Exp(-float64(t*t) / (2 * sigma * sigma))
		k[t+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}
