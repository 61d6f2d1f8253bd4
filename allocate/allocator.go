// Package allocate picks a fixed number of source images out of per-class
// buckets and renames them to sequential sample ids.
package allocate

import (
	"errors"
	"fmt"
	"math/rand"

	"water-synth/models"
)

// ErrShortfall is returned when the buckets hold fewer images than requested.
var ErrShortfall = errors.New("not enough source images")

// Counts is the reconciled request: how many samples overall and how many
// classes must be fetched to get them.
type Counts struct {
	TotalImages     int
	NumberOfClasses int
	ImagesPerClass  int
}

// ReconcileCounts derives the missing count. A positive class count takes
// priority and fixes the total; otherwise the class count is the ceiling of
// total/perClass.
func ReconcileCounts(totalImages, numberOfClasses, imagesPerClass int) (Counts, error) {
	if imagesPerClass < 1 {
		return Counts{}, fmt.Errorf("images per class must be >= 1, got %d", imagesPerClass)
	}
	if totalImages <= 0 && numberOfClasses <= 0 {
		return Counts{}, errors.New("either total images or number of classes must be specified")
	}
	c := Counts{ImagesPerClass: imagesPerClass}
	if numberOfClasses > 0 {
		c.NumberOfClasses = numberOfClasses
		c.TotalImages = numberOfClasses * imagesPerClass
	} else {
		c.TotalImages = totalImages
		c.NumberOfClasses = (totalImages + imagesPerClass - 1) / imagesPerClass
	}
	return c, nil
}

// Allocation is the result of one Allocate call.
type Allocation struct {
	Samples   []models.Sample
	Requested int
}

// Shortfall is how many requested samples could not be allocated.
func (a Allocation) Shortfall() int {
	return max(a.Requested-len(a.Samples), 0)
}

// Allocator shuffles buckets with its own random source.
type Allocator struct {
	rng *rand.Rand
}

// NewAllocator returns an allocator drawing shuffles from rng.
func NewAllocator(rng *rand.Rand) *Allocator {
	return &Allocator{rng: rng}
}

// Allocate visits buckets in order, takes a shuffled prefix of at most
// perClassCap images from each, and numbers them sequentially until total
// samples are assigned. Bucket image slices are shuffled in place.
//
// When the buckets cannot fill the request, every sample that could be
// assigned is still returned together with an error wrapping ErrShortfall.
func (a *Allocator) Allocate(buckets []models.ClassBucket, total, perClassCap int) (Allocation, error) {
	alloc := Allocation{Requested: total}
	if total <= 0 {
		return alloc, nil
	}
	if perClassCap < 1 {
		return alloc, fmt.Errorf("per class cap must be >= 1, got %d", perClassCap)
	}

	alloc.Samples = make([]models.Sample, 0, total)
	nextID := 0
	for _, bucket := range buckets {
		if nextID == total {
			break
		}
		a.rng.Shuffle(len(bucket.Images), func(i, j int) {
			bucket.Images[i], bucket.Images[j] = bucket.Images[j], bucket.Images[i]
		})
		take := min(len(bucket.Images), perClassCap)
		for _, src := range bucket.Images[:take] {
			if nextID == total {
				break
			}
			alloc.Samples = append(alloc.Samples, models.Sample{
				ID:     nextID,
				Name:   models.SampleName(nextID),
				Class:  bucket.Name,
				Source: src,
			})
			nextID++
		}
	}

	if short := alloc.Shortfall(); short > 0 {
		return alloc, fmt.Errorf("%w: allocated %d of %d requested (short by %d)", ErrShortfall, len(alloc.Samples), total, short)
	}
	return alloc, nil
}
