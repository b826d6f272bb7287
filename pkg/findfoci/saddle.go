package findfoci

import "sort"

// findSaddles flood-fills each peak's assigned region and records, for
// every distinct neighbouring peak touched along the way, the highest
// connecting value: the saddle height is the lower of the two adjoining
// voxel values at the point of contact. Both directions of every edge
// are populated in the same pass, since growth ordering does not
// guarantee each peak sees all of its neighbours from its own side.
func (s *state) findSaddles() error {
	n := len(s.peaks) - 1
	if n == 0 {
		return nil
	}
	dirs := s.nb.Dirs()
	best := make([]float32, n+1)
	seen := make([]bool, n+1)
	touched := make([]int32, 0, 16)

	for id := int32(1); id <= int32(n); id++ {
		if err := s.cancelled(); err != nil {
			return err
		}
		peak := s.peaks[id]
		if s.ids[peak.Index] != id {
			continue
		}

		pl := s.pList
		pl[0] = peak.Index
		s.types[peak.Index] |= flagListed
		m := 1
		touched = touched[:0]

		for k := 0; k < m; k++ {
			p := pl[k]
			inner := s.nb.IsInner(p)
			for d := 0; d < dirs; d++ {
				if !inner && !s.nb.CanMove(p, d) {
					continue
				}
				q := p + s.nb.Offsets[d]
				qid := s.ids[q]
				if qid == id {
					if s.types[q]&flagListed == 0 {
						s.types[q] |= flagListed
						pl[m] = q
						m++
					}
					continue
				}
				if qid == 0 {
					continue
				}
				h := s.data[p]
				if s.data[q] < h {
					h = s.data[q]
				}
				if !seen[qid] {
					seen[qid] = true
					touched = append(touched, qid)
					best[qid] = h
				} else if h > best[qid] {
					best[qid] = h
				}
			}
		}

		for k := 0; k < m; k++ {
			s.types[pl[k]] &^= flagListed
		}
		for _, other := range touched {
			s.addSaddle(id, other, best[other])
			s.addSaddle(other, id, best[other])
			seen[other] = false
		}
	}

	for id := 1; id <= n; id++ {
		p := s.peaks[id]
		sort.SliceStable(p.saddles, func(a, b int) bool {
			if p.saddles[a].value != p.saddles[b].value {
				return p.saddles[a].value > p.saddles[b].value
			}
			return p.saddles[a].id < p.saddles[b].id
		})
		if len(p.saddles) > 0 {
			p.SaddleValue = p.saddles[0].value
			p.SaddleNeighbourID = p.saddles[0].id
		}
	}
	return nil
}

// addSaddle records a connecting height from peak a to peak b, keeping
// only the maximum height per distinct neighbour.
func (s *state) addSaddle(a, b int32, v float32) {
	p := s.peaks[a]
	for i := range p.saddles {
		if p.saddles[i].id == b {
			if v > p.saddles[i].value {
				p.saddles[i].value = v
			}
			return
		}
	}
	p.saddles = append(p.saddles, saddleEdge{id: b, value: v})
}

// analyseAboveSaddle recomputes each peak's size and intensity
// restricted to voxels strictly above its current highest saddle (the
// background stands in when a peak has no neighbour). The cut runs on
// the topology volume; intensities are summed from the unblurred source
// when one was supplied. Merged-away ids are resolved to their
// absorbing peak, so the pass is valid before, during and after
// merging.
func (s *state) analyseAboveSaddle() {
	for id := 1; id < len(s.peaks); id++ {
		p := s.peaks[id]
		p.CountAboveSaddle = 0
		p.IntensityAboveSaddle = 0
	}
	src := s.data
	if s.orig != nil {
		src = s.orig
	}
	for i, id := range s.ids {
		if id == 0 {
			continue
		}
		r := s.resolve(id)
		p := s.peaks[r]
		if p.dead {
			continue
		}
		if s.data[i] > s.saddleFloor(p) {
			p.CountAboveSaddle++
			p.IntensityAboveSaddle += float64(src[i])
		}
	}
}
