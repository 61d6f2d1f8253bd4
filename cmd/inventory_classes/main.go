package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"water-synth/allocate"

	"github.com/dustin/go-humanize"
)

// Preview how many samples the downloaded class folders can supply before
// running the pipeline with --skip_download.
func main() {
	rootDir := flag.String("dir", filepath.Join("ImageNet-Datasets-Downloader", "imagenet_images"), "Root directory with one subdirectory per class")
	perClass := flag.Int("images_per_class", 1, "Images taken from each class")
	total := flag.Int("total_images", 0, "Requested number of samples (0 = everything available)")
	flag.Parse()

	buckets, err := allocate.DiscoverBuckets(*rootDir)
	if err != nil {
		log.Fatalf("failed to read directory: %v", err)
	}
	if len(buckets) == 0 {
		log.Fatalf("no class directories found in %s", *rootDir)
	}

	log.Printf("Found %d classes in %s:\n", len(buckets), *rootDir)
	images := 0
	for _, b := range buckets {
		usable := min(len(b.Images), *perClass)
		images += len(b.Images)
		fmt.Printf("  %-30s %6d images, %d usable\n", b.Name, len(b.Images), usable)
	}

	available := allocate.Available(buckets, *perClass)
	fmt.Printf("\n%s images on disk, %s usable at %d per class\n",
		humanize.Comma(int64(images)), humanize.Comma(int64(available)), *perClass)

	if *total > 0 {
		if available >= *total {
			fmt.Printf("✅ %s samples can be allocated\n", humanize.Comma(int64(*total)))
		} else {
			fmt.Printf("❌ short by %s samples (requested %s)\n",
				humanize.Comma(int64(*total-available)), humanize.Comma(int64(*total)))
		}
	}
}
