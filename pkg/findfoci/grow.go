package findfoci

// assignPoints performs the level-ordered region growing: every
// analysable voxel strictly above the background is bucketed by
// histogram level and, from the highest level down, assigned to the
// peak its steepest ascent drains toward. Voxels with no assignable
// neighbour are carried down to the next populated level; whatever is
// left unassignable at the bottom stays background.
func (s *state) assignPoints() error {
	h := s.hist
	nBins := h.NumBins()

	counts := make([]int, nBins)
	total := 0
	for i, v := range s.data {
		if s.types[i]&(flagExcluded|flagMaxArea) != 0 {
			continue
		}
		if !(v > s.background) {
			continue
		}
		counts[h.Bin(v)]++
		total++
	}

	start := make([]int, nBins+1)
	for b := 0; b < nBins; b++ {
		start[b+1] = start[b] + counts[b]
	}

	// Counting sort of candidate voxel indices by level.
	sorted := make([]int, total)
	fill := make([]int, nBins)
	copy(fill, start[:nBins])
	for i, v := range s.data {
		if s.types[i]&(flagExcluded|flagMaxArea) != 0 {
			continue
		}
		if !(v > s.background) {
			continue
		}
		b := h.Bin(v)
		sorted[fill[b]] = i
		fill[b]++
	}

	// pending holds the current level's voxels plus everything carried
	// down from the levels above.
	pending := make([]int, 0, 256)
	for b := nBins - 1; b >= 0; b-- {
		if err := s.cancelled(); err != nil {
			return err
		}
		levelVoxels := sorted[start[b]:start[b+1]]
		if len(levelVoxels) == 0 && len(pending) == 0 {
			continue
		}
		pending = append(pending, levelVoxels...)

		for {
			assigned := 0
			w := 0
			for _, p := range pending {
				if s.ids[p] != 0 {
					continue // claimed by an earlier pass over this level
				}
				if s.tryAssign(p) {
					assigned++
				} else {
					pending[w] = p
					w++
				}
			}
			pending = pending[:w]
			if assigned == 0 || len(pending) == 0 {
				break
			}
		}
	}
	return nil
}

// tryAssign inspects the neighbours of voxel p and assigns it to the
// highest-valued one that is at least as high as p, preferring claimed
// neighbours so an equal-height plateau member drains into a claimed
// sibling rather than stalling on an unclaimed one. Remaining ties
// prefer axis-aligned (flat) directions over diagonal ones; otherwise
// the first direction in canonical order wins.
func (s *state) tryAssign(p int) bool {
	v := s.data[p]
	dirs := s.nb.Dirs()
	inner := s.nb.IsInner(p)

	best := -1
	var bestVal float32
	bestClaimed := false
	bestFlat := false
	for d := 0; d < dirs; d++ {
		if !inner && !s.nb.CanMove(p, d) {
			continue
		}
		q := p + s.nb.Offsets[d]
		if s.types[q]&flagExcluded != 0 {
			continue
		}
		nv := s.data[q]
		claimed := s.ids[q] != 0
		better := best < 0 || nv > bestVal
		if !better && nv == bestVal {
			if claimed != bestClaimed {
				better = claimed
			} else {
				better = !bestFlat && s.nb.Flat[d]
			}
		}
		if better {
			best = q
			bestVal = nv
			bestClaimed = claimed
			bestFlat = s.nb.Flat[d]
		}
	}
	if best < 0 || bestVal < v || !bestClaimed {
		return false
	}
	s.ids[p] = s.ids[best]
	s.types[p] |= flagMaxArea
	return true
}

// pruneRegions clears every voxel that sits below its peak's
// growth-stopping tolerance. The tolerance uses each peak's current
// (pre-merge) maximum.
func (s *state) pruneRegions() {
	n := len(s.peaks) - 1
	if n == 0 {
		return
	}
	floors := make([]float32, n+1)
	for id := 1; id <= n; id++ {
		p := s.peaks[id]
		switch s.opts.Search {
		case SearchFractionOfPeak:
			f := float32(s.opts.SearchParameter)
			floors[id] = s.background + f*(p.MaxValue-s.background)
		case SearchHalfPeak:
			floors[id] = s.background + 0.5*(p.MaxValue-s.background)
		default:
			floors[id] = s.background
		}
	}

	for i, id := range s.ids {
		if id > 0 && s.data[i] < floors[id] {
			s.ids[i] = 0
			s.types[i] &^= flagMaxArea
		}
	}
}

// computeInitialStats fills each peak's size and summed intensity after
// growing and pruning.
func (s *state) computeInitialStats() {
	for i, id := range s.ids {
		if id == 0 {
			continue
		}
		p := s.peaks[id]
		p.Count++
		p.Intensity += float64(s.data[i])
	}
}
