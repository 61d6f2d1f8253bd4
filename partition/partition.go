// Package partition splits rendered frames into train, validation and test
// sets and copies them into the training data layout.
package partition

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"water-synth/models"
)

// Collect lists every frame under <outputDir>/distorted/<sample>/<frame>,
// sorted by sample then frame so a seeded shuffle is reproducible.
func Collect(outputDir string) ([]models.RenderedFrame, error) {
	root := filepath.Join(outputDir, "distorted")
	samples, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read rendered samples: %w", err)
	}

	var frames []models.RenderedFrame
	for _, s := range samples {
		if !s.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, s.Name()))
		if err != nil {
			return nil, fmt.Errorf("read sample %s: %w", s.Name(), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			frames = append(frames, models.RenderedFrame{Sample: s.Name(), Frame: e.Name()})
		}
	}
	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Sample != frames[j].Sample {
			return frames[i].Sample < frames[j].Sample
		}
		return frames[i].Frame < frames[j].Frame
	})
	return frames, nil
}

// Partition shuffles frames once and slices off floor(n*valPct) validation
// frames, then floor(n*testPct) test frames. The rest is training data.
// frames itself is not reordered.
func Partition(frames []models.RenderedFrame, valPct, testPct float64, rng *rand.Rand) (models.DatasetSplit, error) {
	if valPct < 0 || valPct > 1 || testPct < 0 || testPct > 1 {
		return models.DatasetSplit{}, fmt.Errorf("split percentages must be within [0,1], got val=%v test=%v", valPct, testPct)
	}
	if valPct+testPct > 1 {
		return models.DatasetSplit{}, fmt.Errorf("val (%v) and test (%v) percentages exceed 1", valPct, testPct)
	}

	shuffled := make([]models.RenderedFrame, len(frames))
	copy(shuffled, frames)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := len(shuffled)
	nVal := int(float64(n) * valPct)
	nTest := int(float64(n) * testPct)

	return models.DatasetSplit{
		Val:   shuffled[:nVal],
		Test:  shuffled[nVal : nVal+nTest],
		Train: shuffled[nVal+nTest:],
	}, nil
}
