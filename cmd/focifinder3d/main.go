package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"focifinder3d/internal/models"
	"focifinder3d/pkg/config"
	"focifinder3d/pkg/findfoci"
	"focifinder3d/pkg/smoothing"
	"focifinder3d/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing grayscale image slices")
	configPath := flag.String("config", "focifinder3d.yaml", "Path to the YAML configuration file")
	outputName := flag.String("output", "foci_results.csv", "Output CSV filename")
	sigma := flag.Float64("sigma", -1, "Gaussian smoothing sigma (overrides config when >= 0)")
	saveMask := flag.Bool("save-mask", false, "Save the label volume as per-slice PNG images")
	maskDir := flag.String("mask-dir", "", "Directory to save label mask slices (overrides config)")
	flag.Parse()

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *sigma >= 0 {
		cfg.Smoothing.Sigma = *sigma
	}
	if *saveMask {
		cfg.Output.SaveMask = true
	}
	if *maskDir != "" {
		cfg.Output.MaskDir = *maskDir
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.Output.Verbose {
		fmt.Println("================================")
		fmt.Println("FOCIFINDER3D - LOCAL MAXIMA SEGMENTATION OF 2D/3D IMAGE VOLUMES")
		fmt.Println("================================")
	}

	vol, err := loadVolume(*inputDir)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("Loaded %d slices with dimensions %dx%d\n", vol.Depth, vol.Width, vol.Height)
	}

	// Smoothing runs the topology on a filtered copy while intensities
	// are reported from the original volume.
	search := vol
	var original *models.Volume
	if cfg.Smoothing.Sigma > 0 {
		if cfg.Output.Verbose {
			fmt.Printf("Applying Gaussian smoothing with sigma %.2f\n", cfg.Smoothing.Sigma)
		}
		search = smoothing.Blur(vol, cfg.Smoothing.Sigma)
		original = vol
	}

	startTime := time.Now()
	result, err := findfoci.Run(context.Background(), search, original, nil, opts)
	if err != nil {
		log.Fatalf("Foci search failed: %v", err)
	}
	elapsed := time.Since(startTime)

	if cfg.Output.Verbose {
		fmt.Printf("\nFound %d foci in %.2f seconds\n", len(result.Peaks), elapsed.Seconds())
		fmt.Printf("Image statistics:\n")
		fmt.Printf("  Min: %.1f  Max: %.1f\n", result.Stats.Image.Min, result.Stats.Image.Max)
		fmt.Printf("  Mean: %.3f  StdDev: %.3f\n", result.Stats.Image.Mean, result.Stats.Image.StdDev)
		fmt.Printf("  Background level: %.1f\n\n", result.Stats.Background)

		printResultsTable(result)
	}

	if err := writeCSV(*outputName, result); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}
	fmt.Printf("Results saved to: %s\n", *outputName)

	if cfg.Output.SaveMask {
		viewer, err := visualization.NewViewer(vol, result.RenderLabels(), len(result.Peaks))
		if err != nil {
			log.Fatalf("Failed to create viewer: %v", err)
		}
		if err := viewer.SaveSliceSequence(cfg.Output.MaskDir); err != nil {
			log.Printf("Warning: Failed to save label masks: %v", err)
		} else {
			fmt.Printf("Label masks saved to: %s\n", cfg.Output.MaskDir)
		}
	}
}

// loadVolume loads all image slices from a directory, sorted by the
// numeric part of their filenames, and stacks them into a volume.
func loadVolume(inputDir string) (*models.Volume, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".tif", ".tiff", ".jpg", ".jpeg":
			imageFiles = append(imageFiles, entry.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no image slices found in %s", inputDir)
	}

	// Sort by the numeric part of the filename so slice order matches
	// acquisition order.
	sort.Slice(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	slices := make([]image.Image, 0, len(imageFiles))
	for _, name := range imageFiles {
		img, err := imaging.Open(filepath.Join(inputDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		slices = append(slices, toGray(img))
	}

	return models.FromSlices(slices)
}

// toGray converts an image to a grayscale representation, keeping
// 16-bit depth when the source provides it.
func toGray(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return img
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// printResultsTable prints the top foci to stdout.
func printResultsTable(result *findfoci.Result) {
	fmt.Println("  ID     X     Y     Z     Count    Intensity    Max    Saddle")
	fmt.Println("  --------------------------------------------------------------")
	limit := len(result.Peaks)
	if limit > 20 {
		limit = 20
	}
	for _, p := range result.Peaks[:limit] {
		fmt.Printf("  %2d  %4d  %4d  %4d  %8d  %11.1f  %5.1f  %6.1f\n",
			p.ID, p.X, p.Y, p.Z, p.Count, p.Intensity, p.MaxValue, p.SaddleValue)
	}
	if len(result.Peaks) > limit {
		fmt.Printf("  ... and %d more\n", len(result.Peaks)-limit)
	}
	fmt.Println()
}

// writeCSV exports the full result list to a CSV file.
func writeCSV(path string, result *findfoci.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"id", "x", "y", "z", "count", "intensity", "max_value",
		"saddle_value", "saddle_neighbour", "count_above_saddle",
		"intensity_above_saddle", "average_intensity",
		"intensity_minus_background",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, p := range result.Peaks {
		row := []string{
			strconv.Itoa(int(p.ID)),
			strconv.Itoa(p.X),
			strconv.Itoa(p.Y),
			strconv.Itoa(p.Z),
			strconv.Itoa(p.Count),
			strconv.FormatFloat(p.Intensity, 'f', 1, 64),
			strconv.FormatFloat(float64(p.MaxValue), 'f', 1, 32),
			strconv.FormatFloat(float64(p.SaddleValue), 'f', 1, 32),
			strconv.Itoa(int(p.SaddleNeighbourID)),
			strconv.Itoa(p.CountAboveSaddle),
			strconv.FormatFloat(p.IntensityAboveSaddle, 'f', 1, 64),
			strconv.FormatFloat(p.AverageIntensity, 'f', 3, 64),
			strconv.FormatFloat(p.IntensityMinusBackground, 'f', 1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
