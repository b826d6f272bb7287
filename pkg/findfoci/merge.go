package findfoci

import (
	"math"
	"sort"
)

// mergePeaks runs the three merge passes over a shared peak id map:
// the height filter, the size filter, and (when enabled) the
// above-saddle size filter. Each pass processes peaks in a
// deterministic order and skips any peak already remapped away from
// itself. Afterwards the maxima buffer is remapped through the final
// map, dead peaks keep their zero-intensity sentinel for compaction,
// and every survivor's saddle fields are refreshed.
func (s *state) mergePeaks() error {
	n := len(s.peaks) - 1
	if n == 0 {
		return nil
	}

	// Height pass: descending by current highest saddle height.
	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i + 1)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.peaks[order[a]].SaddleValue > s.peaks[order[b]].SaddleValue
	})
	for _, id := range order {
		if err := s.cancelled(); err != nil {
			return err
		}
		if s.peakIDMap[id] != id || s.peaks[id].dead {
			continue
		}
		p := s.peaks[id]
		nbID, nbVal, hasNb := s.highestUnmergedSaddle(id)
		base := s.background
		if hasNb {
			base = nbVal
		}
		if float64(p.MaxValue-base) < s.peakHeightThreshold(p) {
			if hasNb {
				s.merge(id, nbID, false)
			} else {
				s.kill(id)
			}
		}
	}

	// Size pass: ascending by pixel count.
	sort.SliceStable(order, func(a, b int) bool {
		return s.peaks[order[a]].Count < s.peaks[order[b]].Count
	})
	for _, id := range order {
		if s.peakIDMap[id] != id || s.peaks[id].dead {
			continue
		}
		if s.peaks[id].Count >= s.opts.MinSize {
			continue
		}
		if nbID, _, hasNb := s.highestUnmergedSaddle(id); hasNb {
			s.merge(id, nbID, false)
		} else {
			s.kill(id)
		}
	}

	// Above-saddle size pass: ascending by count above saddle. The
	// above-saddle analysis is refreshed for all peaks immediately
	// before the pass; each merge re-synchronises the target.
	if s.opts.MinSizeAboveSaddle {
		s.analyseAboveSaddle()
		sort.SliceStable(order, func(a, b int) bool {
			return s.peaks[order[a]].CountAboveSaddle < s.peaks[order[b]].CountAboveSaddle
		})
		for _, id := range order {
			if err := s.cancelled(); err != nil {
				return err
			}
			if s.peakIDMap[id] != id || s.peaks[id].dead {
				continue
			}
			if s.peaks[id].CountAboveSaddle >= s.opts.MinSize {
				continue
			}
			if nbID, _, hasNb := s.highestUnmergedSaddle(id); hasNb {
				s.merge(id, nbID, true)
			} else {
				s.kill(id)
			}
		}
	}

	// Remap the maxima buffer and refresh the survivors.
	for i, id := range s.ids {
		if id == 0 {
			continue
		}
		r := s.resolve(id)
		if s.peaks[r].dead {
			r = 0
		}
		s.ids[i] = r
	}
	for id := int32(1); id <= int32(n); id++ {
		p := s.peaks[id]
		if p.dead || s.peakIDMap[id] != id {
			continue
		}
		if nbID, nbVal, hasNb := s.highestUnmergedSaddle(id); hasNb {
			p.SaddleValue = nbVal
			p.SaddleNeighbourID = nbID
		} else {
			p.SaddleValue = 0
			p.SaddleNeighbourID = 0
		}
	}
	return nil
}

// peakHeightThreshold computes the minimum height a peak must rise
// above its base. For integer-valued volumes the threshold is floored
// at one level step.
func (s *state) peakHeightThreshold(p *Peak) float64 {
	var th float64
	switch s.opts.Peak {
	case PeakRelative:
		th = s.opts.PeakParameter * float64(p.MaxValue)
	case PeakRelativeAboveBackground:
		th = s.opts.PeakParameter * float64(p.MaxValue-s.background)
	default:
		th = s.opts.PeakParameter
	}
	if s.hist.Integer && th < 1 {
		th = 1
	}
	return th
}

// highestUnmergedSaddle returns the best remaining external saddle of a
// peak: the highest recorded edge whose neighbour, resolved through the
// merge map, is alive and distinct. Ties prefer the lower neighbour id.
func (s *state) highestUnmergedSaddle(id int32) (nb int32, v float32, ok bool) {
	p := s.peaks[id]
	for _, e := range p.saddles {
		r := s.resolve(e.id)
		if r == id || s.peaks[r].dead {
			continue
		}
		if !ok || e.value > v || (e.value == v && r < nb) {
			nb, v, ok = r, e.value, true
		}
	}
	return nb, v, ok
}

// merge folds the source peak into the target: sizes and intensities
// accumulate, the target adopts the source's seed if it is higher, the
// saddle lists union keeping the higher height per external neighbour,
// and every id mapped to the source is remapped onto the target. During
// the above-saddle pass the target's counters are recomputed whenever
// its separating level dropped.
func (s *state) merge(src, dst int32, aboveSaddlePass bool) {
	srcP := s.peaks[src]
	dstP := s.peaks[dst]

	oldFloor := s.saddleFloor(dstP)

	dstP.Count += srcP.Count
	dstP.Intensity += srcP.Intensity
	if srcP.MaxValue > dstP.MaxValue {
		dstP.MaxValue = srcP.MaxValue
		dstP.X, dstP.Y, dstP.Z = srcP.X, srcP.Y, srcP.Z
		dstP.Index = srcP.Index
	}

	for _, e := range srcP.saddles {
		r := s.resolve(e.id)
		if r == src || r == dst || s.peaks[r].dead {
			continue
		}
		s.addSaddle(dst, r, e.value)
	}

	for id := range s.peakIDMap {
		if s.peakIDMap[id] == src {
			s.peakIDMap[id] = dst
		}
	}
	s.kill(src)

	if nbID, nbVal, ok := s.highestUnmergedSaddle(dst); ok {
		dstP.SaddleValue = nbVal
		dstP.SaddleNeighbourID = nbID
	} else {
		dstP.SaddleValue = 0
		dstP.SaddleNeighbourID = 0
	}

	if aboveSaddlePass && s.saddleFloor(dstP) < oldFloor {
		s.recomputeAboveSaddle(dst)
	}
}

// kill marks a peak dead using the zero-intensity sentinel; the later
// compaction step removes all zero-intensity peaks.
func (s *state) kill(id int32) {
	p := s.peaks[id]
	p.dead = true
	p.Intensity = 0
}

// recomputeAboveSaddle refreshes one peak's above-saddle counters with a
// single scan of the maxima buffer, resolving merged-away ids.
func (s *state) recomputeAboveSaddle(id int32) {
	p := s.peaks[id]
	floor := s.saddleFloor(p)
	p.CountAboveSaddle = 0
	p.IntensityAboveSaddle = 0
	src := s.data
	if s.orig != nil {
		src = s.orig
	}
	for i, pid := range s.ids {
		if pid == 0 || s.resolve(pid) != id {
			continue
		}
		if s.data[i] > floor {
			p.CountAboveSaddle++
			p.IntensityAboveSaddle += float64(src[i])
		}
	}
}

// removeEdgePeaks discards any surviving peak whose region touches the
// outermost one-voxel shell of the volume, using the same dead-peak
// convention as merging.
func (s *state) removeEdgePeaks() {
	for i, id := range s.ids {
		if id == 0 || !s.nb.OnBoundary(i) {
			continue
		}
		p := s.peaks[id]
		if !p.dead {
			s.kill(id)
		}
	}
	for i, id := range s.ids {
		if id > 0 && s.peaks[id].dead {
			s.ids[i] = 0
		}
	}
}

// recomputeNativeTotals replaces each surviving peak's intensity totals
// and maximum with values taken from the unblurred source volume. The
// region topology itself (sizes, saddles) keeps following the smoothed
// copy that produced it.
func (s *state) recomputeNativeTotals() {
	for id := 1; id < len(s.peaks); id++ {
		p := s.peaks[id]
		if p.dead {
			continue
		}
		p.Intensity = 0
		p.MaxValue = float32(math.Inf(-1))
	}
	for i, id := range s.ids {
		if id == 0 {
			continue
		}
		p := s.peaks[id]
		v := s.orig[i]
		p.Intensity += float64(v)
		if v > p.MaxValue {
			p.MaxValue = v
			p.X, p.Y, p.Z = s.vol.Coords(i)
			p.Index = i
		}
	}
}
