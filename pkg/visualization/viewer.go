// Package visualization renders the segmentation output as images: each
// z-slice of the label volume is drawn over the grayscale source with a
// distinct colour per peak rank.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"focifinder3d/internal/models"
)

// goldenAngle spaces consecutive peak hues so neighbouring ranks stay
// visually distinct.
const goldenAngle = 137.508

// Viewer renders label-volume slices for a processed volume.
type Viewer struct {
	source *models.Volume
	labels []int32

	width, height, depth int

	palette []colorful.Color
	lo, hi  float32
}

// NewViewer pairs a source volume with its rank label volume. numPeaks
// sizes the colour palette; it is the highest rank present in labels.
func NewViewer(source *models.Volume, labels []int32, numPeaks int) (*Viewer, error) {
	if len(labels) != source.Len() {
		return nil, fmt.Errorf("label volume has %d entries, source has %d voxels",
			len(labels), source.Len())
	}

	v := &Viewer{
		source: source,
		labels: labels,
		width:  source.Width,
		height: source.Height,
		depth:  source.Depth,
	}

	v.palette = make([]colorful.Color, numPeaks)
	for i := range v.palette {
		hue := float64(i) * goldenAngle
		hue -= 360 * float64(int(hue/360))
		v.palette[i] = colorful.Hsv(hue, 0.85, 0.95)
	}

	v.lo, v.hi = source.Data[0], source.Data[0]
	for _, val := range source.Data {
		if val < v.lo {
			v.lo = val
		}
		if val > v.hi {
			v.hi = val
		}
	}
	return v, nil
}

// RenderSlice draws one z-slice: unlabelled voxels as normalised
// grayscale, labelled voxels blended toward their peak's palette
// colour.
func (v *Viewer) RenderSlice(z int) (image.Image, error) {
	if z < 0 || z >= v.depth {
		return nil, fmt.Errorf("slice %d out of range [0,%d)", z, v.depth)
	}

	img := image.NewNRGBA(image.Rect(0, 0, v.width, v.height))
	base := z * v.width * v.height
	span := v.hi - v.lo
	if span <= 0 {
		span = 1
	}

	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			idx := base + y*v.width + x
			g := float64((v.source.Data[idx] - v.lo) / span)

			rank := v.labels[idx]
			if rank > 0 && int(rank) <= len(v.palette) {
				c := v.palette[rank-1]
				// Blend the label colour with the local brightness so
				// internal structure stays visible.
				shade := 0.35 + 0.65*g
				img.SetNRGBA(x, y, color.NRGBA{
					R: uint8(c.R * shade * 255),
					G: uint8(c.G * shade * 255),
					B: uint8(c.B * shade * 255),
					A: 255,
				})
			} else {
				gv := uint8(g * 255)
				img.SetNRGBA(x, y, color.NRGBA{R: gv, G: gv, B: gv, A: 255})
			}
		}
	}
	return img, nil
}

// SaveSliceSequence renders every z-slice into outputDir as PNG files
// named labels_000.png, labels_001.png and so on.
func (v *Viewer) SaveSliceSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for z := 0; z < v.depth; z++ {
		img, err := v.RenderSlice(z)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("labels_%03d.png", z))
		if err := imaging.Save(img, filename); err != nil {
			return fmt.Errorf("failed to save slice %d: %w", z, err)
		}
	}
	return nil
}
