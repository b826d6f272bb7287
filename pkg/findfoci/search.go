package findfoci

import (
	"math"
	"sort"
)

// maximum is one accepted local maximum before renumbering.
type maximum struct {
	index int
	id    int32
	value float32
}

// findMaxima scans every analysable voxel once and marks the strict
// local maxima, resolving flat plateaus to a single representative
// point. Accepted maxima are sorted by descending value (stable with
// respect to discovery order) and renumbered 1..N; every id already
// written to the map is rewritten through the old-to-new table, which
// zeroes the ids of invalid plateaus.
func (s *state) findMaxima() error {
	var accepted []maximum
	var nIDs int32

	threshold := s.background
	globalMin := s.summary.Min
	dirs := s.nb.Dirs()

	for i := range s.data {
		if i&cancelCheckMask == 0 {
			if err := s.cancelled(); err != nil {
				return err
			}
		}
		if s.types[i]&(flagExcluded|flagMaxArea|flagPlateau) != 0 {
			continue
		}
		v := s.data[i]
		if v < threshold || v == globalMin {
			// At or below the floor there is no signal to segment.
			continue
		}

		isMax := true
		hasEqual := false
		inner := s.nb.IsInner(i)
		for d := 0; d < dirs; d++ {
			if !inner && !s.nb.CanMove(i, d) {
				continue
			}
			q := i + s.nb.Offsets[d]
			if s.types[q]&flagExcluded != 0 {
				continue
			}
			nv := s.data[q]
			if nv > v {
				isMax = false
				break
			}
			if nv == v {
				hasEqual = true
			}
		}
		if !isMax {
			continue
		}

		if nIDs >= idCapacity {
			return ErrCapacityExceeded
		}
		nIDs++
		id := nIDs

		if hasEqual {
			rep, ok := s.expandPlateau(i, v, id)
			if ok {
				accepted = append(accepted, maximum{index: rep, id: id, value: v})
			}
		} else {
			s.ids[i] = id
			s.types[i] |= flagMaximum | flagMaxArea
			accepted = append(accepted, maximum{index: i, id: id, value: v})
		}
	}

	// Descending by value; ties keep discovery order.
	sort.SliceStable(accepted, func(a, b int) bool {
		return accepted[a].value > accepted[b].value
	})

	oldToNew := make([]int32, nIDs+1)
	s.peaks = make([]*Peak, len(accepted)+1)
	s.peakIDMap = make([]int32, len(accepted)+1)
	for rank, m := range accepted {
		id := int32(rank + 1)
		oldToNew[m.id] = id
		x, y, z := s.vol.Coords(m.index)
		s.peaks[id] = &Peak{ID: id, X: x, Y: y, Z: z, Index: m.index, MaxValue: m.value}
		s.peakIDMap[id] = id
	}
	for i, id := range s.ids {
		if id > 0 {
			s.ids[i] = oldToNew[id]
			if s.ids[i] == 0 {
				// Invalid plateau members stay claimable by region growing.
				s.types[i] &^= flagMaxArea
			}
		}
	}
	return nil
}

// expandPlateau flood-fills the connected component of voxels equal to v
// around start. If the component touches a strictly higher neighbour it
// is not a maximum; the member voxels are still claimed so later
// scanning skips them, but no maximum is recorded. For a true plateau
// the representative is the member voxel nearest the component's mean
// coordinate (first such voxel wins ties).
func (s *state) expandPlateau(start int, v float32, id int32) (rep int, ok bool) {
	dirs := s.nb.Dirs()
	pl := s.pList
	pl[0] = start
	s.types[start] |= flagListed | flagPlateau
	n := 1
	valid := true

	for k := 0; k < n; k++ {
		p := pl[k]
		inner := s.nb.IsInner(p)
		for d := 0; d < dirs; d++ {
			if !inner && !s.nb.CanMove(p, d) {
				continue
			}
			q := p + s.nb.Offsets[d]
			if s.types[q]&(flagListed|flagExcluded) != 0 {
				continue
			}
			nv := s.data[q]
			if nv > v {
				valid = false
			} else if nv == v {
				s.types[q] |= flagListed | flagPlateau
				pl[n] = q
				n++
			}
		}
	}

	var mx, my, mz float64
	for k := 0; k < n; k++ {
		x, y, z := s.vol.Coords(pl[k])
		mx += float64(x)
		my += float64(y)
		mz += float64(z)
	}
	mx /= float64(n)
	my /= float64(n)
	mz /= float64(n)

	rep = pl[0]
	bestDist := math.MaxFloat64
	for k := 0; k < n; k++ {
		x, y, z := s.vol.Coords(pl[k])
		d := (float64(x)-mx)*(float64(x)-mx) +
			(float64(y)-my)*(float64(y)-my) +
			(float64(z)-mz)*(float64(z)-mz)
		if d < bestDist {
			bestDist = d
			rep = pl[k]
		}
	}

	for k := 0; k < n; k++ {
		p := pl[k]
		s.types[p] &^= flagListed
		s.types[p] |= flagMaxArea
		s.ids[p] = id
	}
	if valid {
		s.types[rep] |= flagMaximum
	}
	return rep, valid
}
