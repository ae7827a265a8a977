package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateClassification(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ds := GenerateClassification(500, 30, rng)

	require.Len(t, ds.Features, 500)
	require.Len(t, ds.Labels, 500)

	classes := make(map[int]int)
	for i, row := range ds.Features {
		assert.Len(t, row, 30)
		require.Contains(t, []int{0, 1}, ds.Labels[i])
		classes[ds.Labels[i]]++
	}

	// Labels are drawn uniformly; both classes must be present.
	assert.Greater(t, classes[0], 0)
	assert.Greater(t, classes[1], 0)
}

func TestGenerateClassificationDeterminism(t *testing.T) {
	a := GenerateClassification(50, 10, rand.New(rand.NewSource(3)))
	b := GenerateClassification(50, 10, rand.New(rand.NewSource(3)))

	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Features, b.Features)
}

func TestSplitShards(t *testing.T) {
	t.Run("covers every sample exactly once", func(t *testing.T) {
		rng := rand.New(rand.NewSource(2))
		ds := GenerateClassification(103, 5, rng)

		shards := SplitShards(ds, 4, rng)
		require.Len(t, shards, 4)

		total := 0
		for _, shard := range shards {
			assert.NotEmpty(t, shard.Features)
			assert.Len(t, shard.Labels, len(shard.Features))
			total += len(shard.Features)
		}
		assert.Equal(t, 103, total)
	})

	t.Run("more workers than samples", func(t *testing.T) {
		rng := rand.New(rand.NewSource(2))
		ds := GenerateClassification(3, 5, rng)

		shards := SplitShards(ds, 10, rng)
		assert.LessOrEqual(t, len(shards), 3)

		total := 0
		for _, shard := range shards {
			total += len(shard.Features)
		}
		assert.Equal(t, 3, total)
	})

	t.Run("non-positive worker count falls back to one shard", func(t *testing.T) {
		rng := rand.New(rand.NewSource(2))
		ds := GenerateClassification(10, 5, rng)

		shards := SplitShards(ds, 0, rng)
		require.Len(t, shards, 1)
		assert.Len(t, shards[0].Features, 10)
	})
}
