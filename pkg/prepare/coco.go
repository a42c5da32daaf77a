package prepare

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Annotations is the subset of a COCO instance annotation file the prepare
// step needs: the image list and the per-instance annotations.
type Annotations struct {
	Images      []ImageInfo  `json:"images"`
	Annotations []Annotation `json:"annotations"`
}

type ImageInfo struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
}

type Annotation struct {
	ImageID int     `json:"image_id"`
	Area    float64 `json:"area"`
	IsCrowd int     `json:"iscrowd"`
}

func LoadAnnotations(path string) (*Annotations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation file: %w", err)
	}

	var ann Annotations
	if err := json.Unmarshal(data, &ann); err != nil {
		return nil, fmt.Errorf("failed to parse annotation file: %w", err)
	}

	return &ann, nil
}

// FileNames maps image id to source filename.
func (a *Annotations) FileNames() map[int]string {
	names := make(map[int]string, len(a.Images))
	for _, img := range a.Images {
		names[img.ID] = img.FileName
	}
	return names
}

// CountInstances counts object instances per image. Crowd annotations and
// annotations smaller than minArea are skipped; the remaining count is the
// image's topological constraint (number of connected components).
func (a *Annotations) CountInstances(minArea float64) map[int]int {
	counts := make(map[int]int)
	for _, ann := range a.Annotations {
		if ann.IsCrowd != 0 {
			continue
		}
		if ann.Area < minArea {
			continue
		}
		counts[ann.ImageID]++
	}
	return counts
}

// SelectByCount keeps images whose instance count falls in [minCount, maxCount].
func SelectByCount(counts map[int]int, minCount, maxCount int) map[int]int {
	selected := make(map[int]int)
	for imgID, count := range counts {
		if count >= minCount && count <= maxCount {
			selected[imgID] = count
		}
	}
	return selected
}

// Distribution returns the (count, images-with-that-count) pairs in ascending
// count order, for reporting.
func Distribution(counts map[int]int) [][2]int {
	byCount := make(map[int]int)
	for _, count := range counts {
		byCount[count]++
	}

	dist := make([][2]int, 0, len(byCount))
	for count, images := range byCount {
		dist = append(dist, [2]int{count, images})
	}
	sort.Slice(dist, func(i, j int) bool {
		return dist[i][0] < dist[j][0]
	})
	return dist
}

// OutputFileName renames a source image to the dataset convention the
// training program expects: <count>_<basename>.jpg.
func OutputFileName(srcFileName string, count int) string {
	base := srcFileName[:len(srcFileName)-len(filepath.Ext(srcFileName))]
	return fmt.Sprintf("%d_%s.jpg", count, base)
}
