package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"focifinder3d/internal/models"
)

func testVolume(t *testing.T) (*models.Volume, []int32) {
	t.Helper()
	data := make([]float32, 4*4*2)
	labels := make([]int32, len(data))

	data[1*4+1] = 100
	labels[1*4+1] = 1
	data[16+2*4+2] = 50
	labels[16+2*4+2] = 2

	vol, err := models.FromData(data, 4, 4, 2)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol, labels
}

// TestNewViewerRejectsMismatch verifies label and source lengths must
// agree
func TestNewViewerRejectsMismatch(t *testing.T) {
	vol, _ := testVolume(t)
	if _, err := NewViewer(vol, make([]int32, 3), 1); err == nil {
		t.Error("Expected an error for a mismatched label volume")
	}
}

// TestRenderSlice verifies labelled voxels are coloured and unlabelled
// voxels stay grayscale
func TestRenderSlice(t *testing.T) {
	vol, labels := testVolume(t)
	v, err := NewViewer(vol, labels, 2)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	img, err := v.RenderSlice(0)
	if err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("Expected an NRGBA image, got %T", img)
	}

	labelled := nrgba.NRGBAAt(1, 1)
	if labelled.R == labelled.G && labelled.G == labelled.B {
		t.Error("Expected the labelled voxel to be coloured, got gray")
	}

	background := nrgba.NRGBAAt(0, 0)
	if background.R != background.G || background.G != background.B {
		t.Error("Expected the background voxel to stay grayscale")
	}

	if _, err := v.RenderSlice(5); err == nil {
		t.Error("Expected an error for an out-of-range slice")
	}
}

// TestSaveSliceSequence verifies one PNG per z-slice is written
func TestSaveSliceSequence(t *testing.T) {
	vol, labels := testVolume(t)
	v, err := NewViewer(vol, labels, 2)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	dir := t.TempDir()
	if err := v.SaveSliceSequence(dir); err != nil {
		t.Fatalf("SaveSliceSequence failed: %v", err)
	}

	for z := 0; z < vol.Depth; z++ {
		name := filepath.Join(dir, fmt.Sprintf("labels_%03d.png", z))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("Expected slice file %s: %v", name, err)
		}
	}
}
