package services

import (
	"math/rand"

	"github.com/agisfl/agisfl-server/pkg/logger"
)

// Partition is one worker's private share of the synthetic dataset.
type Partition struct {
	Features [][]float64
	Labels   []int
}

// GenerateClassification builds a seeded two-class dataset. The first
// informative dimensions are drawn from class-dependent Gaussians; the rest
// is noise, which keeps the task learnable but not trivial.
func GenerateClassification(samples, features int, rng *rand.Rand) Partition {
	informative := features
	if informative > 20 {
		informative = 20
	}

	data := make([][]float64, samples)
	labels := make([]int, samples)
	for i := 0; i < samples; i++ {
		label := rng.Intn(2)
		labels[i] = label

		center := -0.5
		if label == 1 {
			center = 0.5
		}

		row := make([]float64, features)
		for j := 0; j < features; j++ {
			if j < informative {
				row[j] = rng.NormFloat64()*0.8 + center
			} else {
				row[j] = rng.NormFloat64()
			}
		}
		data[i] = row
	}
	return Partition{Features: data, Labels: labels}
}

// SplitShards shuffles the dataset and hands each worker a contiguous chunk,
// giving reasonably different data per worker without any worker ending up
// empty.
func SplitShards(ds Partition, numWorkers int, rng *rand.Rand) []Partition {
	log := logger.WithComponent("dataset")

	if numWorkers < 1 {
		numWorkers = 1
	}

	perm := rng.Perm(len(ds.Features))
	shuffledX := make([][]float64, len(ds.Features))
	shuffledY := make([]int, len(ds.Labels))
	for i, p := range perm {
		shuffledX[i] = ds.Features[p]
		shuffledY[i] = ds.Labels[p]
	}

	chunk := len(shuffledX) / numWorkers
	if chunk < 1 {
		chunk = 1
	}

	splits := make([]Partition, 0, numWorkers)
	for i := 0; i < numWorkers; i++ {
		start := i * chunk
		if start >= len(shuffledX) {
			break
		}
		end := start + chunk
		if i == numWorkers-1 || end > len(shuffledX) {
			end = len(shuffledX)
		}
		splits = append(splits, Partition{
			Features: shuffledX[start:end],
			Labels:   shuffledY[start:end],
		})
	}

	if len(splits) == 0 {
		splits = []Partition{ds}
	}

	log.Debug().
		Int("workers", len(splits)).
		Int("samples", len(ds.Features)).
		Msg("Split dataset into worker shards")

	return splits
}
