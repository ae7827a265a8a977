package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformSampler(t *testing.T) {
	t.Run("returns n distinct indices in range", func(t *testing.T) {
		sampler := NewUniformSampler(1)

		indices := sampler.Sample(3, 10)
		require.Len(t, indices, 3)

		seen := make(map[int]struct{})
		for _, i := range indices {
			assert.GreaterOrEqual(t, i, 0)
			assert.Less(t, i, 10)
			_, dup := seen[i]
			assert.False(t, dup, "index %d sampled twice", i)
			seen[i] = struct{}{}
		}
	})

	t.Run("n at least total returns everything", func(t *testing.T) {
		sampler := NewUniformSampler(1)

		indices := sampler.Sample(10, 4)
		assert.Len(t, indices, 4)

		seen := make(map[int]struct{})
		for _, i := range indices {
			seen[i] = struct{}{}
		}
		assert.Len(t, seen, 4)
	})

	t.Run("degenerate input yields nil", func(t *testing.T) {
		sampler := NewUniformSampler(1)
		assert.Nil(t, sampler.Sample(0, 10))
		assert.Nil(t, sampler.Sample(-1, 10))
		assert.Nil(t, sampler.Sample(3, 0))
	})

	t.Run("same seed gives same sequence", func(t *testing.T) {
		a := NewUniformSampler(99)
		b := NewUniformSampler(99)

		for i := 0; i < 5; i++ {
			assert.Equal(t, a.Sample(4, 20), b.Sample(4, 20))
		}
	})

	t.Run("reseed restarts the sequence", func(t *testing.T) {
		sampler := NewUniformSampler(7)
		first := sampler.Sample(5, 50)

		sampler.Reseed(7)
		assert.Equal(t, first, sampler.Sample(5, 50))
	})
}
