package prepare

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

var DebugLog func(string, ...interface{})

// Options configures one dataset preparation pass over COCO images.
type Options struct {
	ImageDir       string
	AnnotationFile string
	OutputDir      string
	MinCount       int
	MaxCount       int
	ImageSize      int
	MinArea        float64
}

func DefaultOptions() Options {
	return Options{
		ImageDir:       "datasets/val2017",
		AnnotationFile: "datasets/annotations/instances_val2017.json",
		OutputDir:      "datasets/coco_real",
		MinCount:       1,
		MaxCount:       7,
		ImageSize:      256,
		MinArea:        1024,
	}
}

// Stats summarizes one preparation pass.
type Stats struct {
	Selected int
	Copied   int
	Skipped  int
	Failed   int
}

// Run reads the COCO annotations, filters images by instance count, and
// writes cropped, resized copies renamed to the <count>_<name>.jpg convention
// into the output directory.
func Run(opts Options, logger *logrus.Logger) (*Stats, error) {
	if opts.MinCount > opts.MaxCount {
		return nil, fmt.Errorf("min count (%d) is greater than max count (%d)", opts.MinCount, opts.MaxCount)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Infof("Loading annotations from %s", opts.AnnotationFile)
	ann, err := LoadAnnotations(opts.AnnotationFile)
	if err != nil {
		return nil, err
	}

	fileNames := ann.FileNames()
	counts := ann.CountInstances(opts.MinArea)

	if DebugLog != nil {
		DebugLog("%d images, %d annotations, %d images with countable objects",
			len(ann.Images), len(ann.Annotations), len(counts))
	}

	selected := SelectByCount(counts, opts.MinCount, opts.MaxCount)
	logger.Infof("Selected %d of %d annotated images in count range [%d, %d]",
		len(selected), len(counts), opts.MinCount, opts.MaxCount)

	for _, d := range Distribution(selected) {
		logger.Infof("  c=%d: %d images", d[0], d[1])
	}

	// Stable processing order so repeated runs touch files identically.
	imgIDs := make([]int, 0, len(selected))
	for imgID := range selected {
		imgIDs = append(imgIDs, imgID)
	}
	sort.Ints(imgIDs)

	stats := &Stats{Selected: len(selected)}

	bar := progressbar.Default(int64(len(imgIDs)), "preparing")
	for _, imgID := range imgIDs {
		bar.Add(1)

		srcFileName, ok := fileNames[imgID]
		if !ok {
			stats.Skipped++
			continue
		}

		srcPath := filepath.Join(opts.ImageDir, srcFileName)
		if _, err := os.Stat(srcPath); err != nil {
			logger.Warnf("%s not found, skipping", srcPath)
			stats.Skipped++
			continue
		}

		dstPath := filepath.Join(opts.OutputDir, OutputFileName(srcFileName, selected[imgID]))

		if err := ConvertImage(srcPath, dstPath, opts.ImageSize); err != nil {
			logger.Errorf("Failed to process %s: %v", srcPath, err)
			stats.Failed++
			continue
		}

		stats.Copied++
	}

	logger.Infof("Copied and resized %d images to %s", stats.Copied, opts.OutputDir)
	return stats, nil
}
