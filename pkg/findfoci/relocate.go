package findfoci

import (
	"math"

	"focifinder3d/pkg/centroid"
)

// relocateCentroids recomputes each surviving peak's reported
// coordinate using the configured strategy. Every strategy works on the
// peak's core region: the bounding box of its voxels above the final
// highest saddle, with intensities clipped to max(0, value-saddle).
// Any failure (empty core, failed fit) keeps the prior coordinate.
func (s *state) relocateCentroids() {
	if s.opts.Centroid == centroid.None {
		return
	}

	for id := int32(1); id < int32(len(s.peaks)); id++ {
		p := s.peaks[id]
		if p.dead || p.Count == 0 {
			continue
		}
		reg, members, ok := s.extractCore(id)
		if !ok {
			continue
		}

		switch s.opts.Centroid {
		case centroid.OriginalImage:
			s.relocateToNativeMaximum(p, members)

		case centroid.CentreOfMass:
			x, y, z := reg.Refine(p.X, p.Y, p.Z, s.opts.CentroidParameter)
			p.X, p.Y, p.Z = x, y, z
			p.Index = s.vol.Index(x, y, z)

		case centroid.GaussianFit:
			plane := reg.Project(s.opts.CentroidProjection)
			cx, cy, err := centroid.FitGaussian2D(plane, reg.Width, reg.Height)
			if err != nil {
				continue // degrade to no relocation
			}
			xi := clampInt(int(math.Round(cx)), 0, reg.Width-1)
			yi := clampInt(int(math.Round(cy)), 0, reg.Height-1)
			zi := p.Z - reg.Z0
			if wz, hasZ := reg.WeightedZ(xi, yi); hasZ {
				zi = clampInt(int(math.Round(wz)), 0, reg.Depth-1)
			}
			p.X = reg.X0 + xi
			p.Y = reg.Y0 + yi
			p.Z = reg.Z0 + zi
			p.Index = s.vol.Index(p.X, p.Y, p.Z)
		}
	}
}

// extractCore flood-fills the peak's region restricted to voxels above
// its final highest saddle, and returns the clipped bounding-box
// sub-volume plus the member voxel indices. The member slice aliases
// the shared flood buffer and is only valid until the next flood.
func (s *state) extractCore(id int32) (*centroid.Region, []int, bool) {
	p := s.peaks[id]
	floor := s.saddleFloor(p)
	if s.ids[p.Index] != id || !(s.data[p.Index] > floor) {
		return nil, nil, false
	}

	dirs := s.nb.Dirs()
	pl := s.pList
	pl[0] = p.Index
	s.types[p.Index] |= flagListed
	m := 1

	for k := 0; k < m; k++ {
		q0 := pl[k]
		inner := s.nb.IsInner(q0)
		for d := 0; d < dirs; d++ {
			if !inner && !s.nb.CanMove(q0, d) {
				continue
			}
			q := q0 + s.nb.Offsets[d]
			if s.types[q]&flagListed != 0 || s.ids[q] != id {
				continue
			}
			if !(s.data[q] > floor) {
				continue
			}
			s.types[q] |= flagListed
			pl[m] = q
			m++
		}
	}

	minX, minY, minZ := s.width, s.height, s.depth
	maxX, maxY, maxZ := 0, 0, 0
	for k := 0; k < m; k++ {
		x, y, z := s.vol.Coords(pl[k])
		minX, maxX = minInt(minX, x), maxInt(maxX, x)
		minY, maxY = minInt(minY, y), maxInt(maxY, y)
		minZ, maxZ = minInt(minZ, z), maxInt(maxZ, z)
	}

	reg := &centroid.Region{
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
		Depth:  maxZ - minZ + 1,
		X0:     minX,
		Y0:     minY,
		Z0:     minZ,
	}
	reg.Data = make([]float32, reg.Width*reg.Height*reg.Depth)
	for k := 0; k < m; k++ {
		idx := pl[k]
		s.types[idx] &^= flagListed
		x, y, z := s.vol.Coords(idx)
		v := s.data[idx] - floor
		if v < 0 {
			v = 0
		}
		reg.Data[(z-minZ)*reg.Width*reg.Height+(y-minY)*reg.Width+(x-minX)] = v
	}

	return reg, pl[:m], true
}

// relocateToNativeMaximum re-applies the discovery-time rule (maximum
// value, centroid of ties) against the unblurred source image over the
// peak's core voxels.
func (s *state) relocateToNativeMaximum(p *Peak, members []int) {
	src := s.orig
	if src == nil {
		src = s.data
	}

	maxV := float32(math.Inf(-1))
	for _, idx := range members {
		if src[idx] > maxV {
			maxV = src[idx]
		}
	}

	var mx, my, mz float64
	ties := 0
	for _, idx := range members {
		if src[idx] != maxV {
			continue
		}
		x, y, z := s.vol.Coords(idx)
		mx += float64(x)
		my += float64(y)
		mz += float64(z)
		ties++
	}
	mx /= float64(ties)
	my /= float64(ties)
	mz /= float64(ties)

	best := -1
	bestDist := math.MaxFloat64
	for _, idx := range members {
		if src[idx] != maxV {
			continue
		}
		x, y, z := s.vol.Coords(idx)
		d := (float64(x)-mx)*(float64(x)-mx) +
			(float64(y)-my)*(float64(y)-my) +
			(float64(z)-mz)*(float64(z)-mz)
		if d < bestDist {
			bestDist = d
			best = idx
		}
	}
	if best >= 0 {
		p.X, p.Y, p.Z = s.vol.Coords(best)
		p.Index = best
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
