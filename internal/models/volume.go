// Package models holds the shared data structures for the foci finding
// pipeline: the intensity volume and its addressing conventions.
package models

import (
	"errors"
	"fmt"
	"image"
)

// ErrUnsupportedPixelFormat is returned when input images cannot be
// interpreted as scalar intensity data. The engine operates on grayscale
// volumes only; colour inputs must be converted by the caller first.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format: expected grayscale image data")

// Volume is a width x height x depth scalar intensity buffer stored as a
// single linear array. The linear index of voxel (x, y, z) is
// z*(width*height) + y*width + x.
//
// A Volume is treated as immutable once constructed: the engine never
// writes to Data, and all per-voxel working state lives in buffers owned
// by a single invocation.
type Volume struct {
	// Data is the intensity buffer in row-major, slice-major order.
	Data []float32

	// Width, Height and Depth are the volume dimensions in voxels.
	// Depth is 1 for a plain 2D image.
	Width, Height, Depth int
}

// FromData wraps a raw float buffer as a Volume. The buffer length must
// match the given dimensions exactly.
func FromData(data []float32, width, height, depth int) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d", width, height, depth)
	}
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("buffer length %d does not match dimensions %dx%dx%d",
			len(data), width, height, depth)
	}
	return &Volume{Data: data, Width: width, Height: height, Depth: depth}, nil
}

// FromSlices builds a volume from a stack of grayscale images, one image
// per z-slice. All slices must share the dimensions of the first one.
// Accepted colour models are Gray (8-bit) and Gray16; anything else
// returns ErrUnsupportedPixelFormat.
func FromSlices(slices []image.Image) (*Volume, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("no slices provided")
	}

	bounds := slices[0].Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	depth := len(slices)

	data := make([]float32, width*height*depth)
	for z, img := range slices {
		b := img.Bounds()
		if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("slice %d is %dx%d, expected %dx%d",
				z, b.Dx(), b.Dy(), width, height)
		}

		base := z * width * height
		switch im := img.(type) {
		case *image.Gray:
			for y := 0; y < height; y++ {
				row := im.Pix[y*im.Stride : y*im.Stride+width]
				for x, v := range row {
					data[base+y*width+x] = float32(v)
				}
			}
		case *image.Gray16:
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					off := y*im.Stride + x*2
					v := uint16(im.Pix[off])<<8 | uint16(im.Pix[off+1])
					data[base+y*width+x] = float32(v)
				}
			}
		default:
			return nil, fmt.Errorf("slice %d: %w", z, ErrUnsupportedPixelFormat)
		}
	}

	return &Volume{Data: data, Width: width, Height: height, Depth: depth}, nil
}

// Len returns the number of voxels in the volume.
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Is2D reports whether the volume is a single slice.
func (v *Volume) Is2D() bool {
	return v.Depth == 1
}

// Index returns the linear index of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// Coords decomposes a linear index back into (x, y, z).
func (v *Volume) Coords(idx int) (x, y, z int) {
	sliceSize := v.Width * v.Height
	z = idx / sliceSize
	rem := idx - z*sliceSize
	y = rem / v.Width
	x = rem - y*v.Width
	return x, y, z
}

// At returns the intensity of voxel (x, y, z).
func (v *Volume) At(x, y, z int) float32 {
	return v.Data[v.Index(x, y, z)]
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]float32, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Width: v.Width, Height: v.Height, Depth: v.Depth}
}
