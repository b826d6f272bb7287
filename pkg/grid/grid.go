// Package grid precomputes the neighbour topology for a volume shape:
// the 8-connected (2D) or 26-connected (3D) offset table, the flat-edge
// classification of each direction, and the boundary predicates used by
// the scanning and flood-fill passes.
package grid

// Neighborhood holds the neighbour offset tables for one volume shape.
//
// The direction order is canonical and identical for every pass that
// walks neighbours: z from -1 to 1 (omitted in 2D), then y from -1 to 1,
// then x from -1 to 1, skipping the centre. Plateau tie-breaking depends
// on this order being stable between the maximum-detection and
// region-growing passes.
type Neighborhood struct {
	// Offsets holds the linear-index delta for each direction.
	Offsets []int

	// Flat marks directions that are axis-aligned (exactly one non-zero
	// component). Equal-height ties during region growing prefer flat
	// directions over diagonal ones.
	Flat []bool

	dx, dy, dz []int

	width, height, depth int
	sliceSize            int
}

// New builds the neighbourhood tables for a volume of the given shape.
// A depth of 1 yields the 8-connected 2D topology, anything larger the
// 26-connected 3D topology.
func New(width, height, depth int) *Neighborhood {
	n := &Neighborhood{
		width:     width,
		height:    height,
		depth:     depth,
		sliceSize: width * height,
	}

	zLo, zHi := 0, 0
	if depth > 1 {
		zLo, zHi = -1, 1
	}

	for z := zLo; z <= zHi; z++ {
		for y := -1; y <= 1; y++ {
			for x := -1; x <= 1; x++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				n.Offsets = append(n.Offsets, z*n.sliceSize+y*width+x)
				n.Flat = append(n.Flat, countNonZero(x, y, z) == 1)
				n.dx = append(n.dx, x)
				n.dy = append(n.dy, y)
				n.dz = append(n.dz, z)
			}
		}
	}

	return n
}

func countNonZero(vals ...int) int {
	c := 0
	for _, v := range vals {
		if v != 0 {
			c++
		}
	}
	return c
}

// Dirs returns the number of neighbour directions (8 in 2D, 26 in 3D).
func (n *Neighborhood) Dirs() int {
	return len(n.Offsets)
}

// IsInner reports whether every neighbour of the voxel at idx is in
// bounds, so the per-direction checks can be skipped entirely.
func (n *Neighborhood) IsInner(idx int) bool {
	z := idx / n.sliceSize
	rem := idx - z*n.sliceSize
	y := rem / n.width
	x := rem - y*n.width

	if x < 1 || x >= n.width-1 || y < 1 || y >= n.height-1 {
		return false
	}
	if n.depth > 1 && (z < 1 || z >= n.depth-1) {
		return false
	}
	return true
}

// CanMove reports whether stepping from idx in the given direction stays
// inside the volume. Only needed for voxels that fail IsInner.
func (n *Neighborhood) CanMove(idx, dir int) bool {
	z := idx / n.sliceSize
	rem := idx - z*n.sliceSize
	y := rem / n.width
	x := rem - y*n.width

	nx := x + n.dx[dir]
	ny := y + n.dy[dir]
	nz := z + n.dz[dir]
	return nx >= 0 && nx < n.width && ny >= 0 && ny < n.height && nz >= 0 && nz < n.depth
}

// OnBoundary reports whether the voxel at idx lies on the outermost
// one-voxel shell of the volume. Used by edge exclusion.
func (n *Neighborhood) OnBoundary(idx int) bool {
	return !n.IsInner(idx)
}
