package allocate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"water-synth/models"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile reports whether name has a recognised image extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DiscoverBuckets returns one bucket per subdirectory of root, in name order,
// each listing its image files in name order.
func DiscoverBuckets(root string) ([]models.ClassBucket, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read class root %s: %w", root, err)
	}

	var buckets []models.ClassBucket
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		images, err := collectImages(dir)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, models.ClassBucket{Name: entry.Name(), Images: images})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read class dir %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// Available is how many images Allocate could take from buckets under cap.
func Available(buckets []models.ClassBucket, perClassCap int) int {
	n := 0
	for _, b := range buckets {
		n += min(len(b.Images), perClassCap)
	}
	return n
}
