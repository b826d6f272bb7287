package findfoci

import (
	"sort"
)

// finalize computes the derived per-peak metrics, orders and truncates
// the surviving peaks, renumbers them 1..N in final rank order, and
// renders the rank label volume. This is the only structure that
// outlives the invocation.
func (s *state) finalize() *Result {
	res := &Result{
		Stats:  s.result,
		Width:  s.width,
		Height: s.height,
		Depth:  s.depth,
	}
	bg := float64(s.background)

	live := make([]*Peak, 0, len(s.peaks))
	for id := 1; id < len(s.peaks); id++ {
		p := s.peaks[id]
		if p.dead || p.Count == 0 {
			continue
		}
		p.AverageIntensity = p.Intensity / float64(p.Count)
		p.MaxValueMinusBackground = float64(p.MaxValue) - bg
		p.IntensityMinusBackground = p.Intensity - float64(p.Count)*bg
		p.AverageIntensityMinusBackground = p.AverageIntensity - bg
		live = append(live, p)
	}

	key := s.opts.Sort
	sort.SliceStable(live, func(a, b int) bool {
		va, asc := sortValue(live[a], key, bg)
		vb, _ := sortValue(live[b], key, bg)
		if asc {
			return va < vb
		}
		return va > vb
	})

	if s.opts.MaxPeaks > 0 && len(live) > s.opts.MaxPeaks {
		live = live[:s.opts.MaxPeaks]
	}

	rankOf := make([]int32, len(s.peaks))
	for rank, p := range live {
		rankOf[p.ID] = int32(rank + 1)
	}

	// The working id buffer becomes the returned label volume.
	for i, id := range s.ids {
		s.ids[i] = rankOf[id]
	}
	res.labels = s.ids

	res.Peaks = make([]Peak, len(live))
	for rank, p := range live {
		cp := *p
		cp.ID = int32(rank + 1)
		cp.SaddleNeighbourID = rankOf[p.SaddleNeighbourID]
		cp.saddles = nil
		res.Peaks[rank] = cp
	}
	return res
}

// sortValue returns the ranking value of a peak under the given key and
// whether smaller values rank first. Coordinates sort ascending, every
// magnitude key descending; ties keep insertion order either way.
func sortValue(p *Peak, key SortKey, bg float64) (v float64, asc bool) {
	switch key {
	case SortCount:
		return float64(p.Count), false
	case SortMaxValue:
		return float64(p.MaxValue), false
	case SortAverageIntensity:
		return p.AverageIntensity, false
	case SortIntensityMinusBackground:
		return p.IntensityMinusBackground, false
	case SortAverageIntensityMinusBackground:
		return p.AverageIntensityMinusBackground, false
	case SortX:
		return float64(p.X), true
	case SortY:
		return float64(p.Y), true
	case SortZ:
		return float64(p.Z), true
	case SortSaddleHeight:
		return float64(p.SaddleValue), false
	case SortCountAboveSaddle:
		return float64(p.CountAboveSaddle), false
	case SortIntensityAboveSaddle:
		return p.IntensityAboveSaddle, false
	case SortAbsoluteHeight:
		return absoluteHeight(p, bg), false
	case SortRelativeHeight:
		h := absoluteHeight(p, bg)
		if p.MaxValue != 0 {
			h /= float64(p.MaxValue)
		}
		return h, false
	default:
		return p.Intensity, false
	}
}

// absoluteHeight is the peak maximum above whichever separating level
// is higher, its saddle or the background.
func absoluteHeight(p *Peak, bg float64) float64 {
	base := bg
	if p.SaddleNeighbourID != 0 && float64(p.SaddleValue) > base {
		base = float64(p.SaddleValue)
	}
	return float64(p.MaxValue) - base
}
