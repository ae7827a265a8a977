package services

import (
	"math/rand"
	"sync"
	"time"
)

// UniformSampler draws uniform-random subsets without replacement. It is
// seedable so participant selection can be made deterministic in tests.
type UniformSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformSampler seeds the sampler; a zero seed falls back to the clock.
func NewUniformSampler(seed int64) *UniformSampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &UniformSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *UniformSampler) Reseed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Sample returns n distinct indices in [0, total). When n >= total every
// index is returned (in random order).
func (s *UniformSampler) Sample(n, total int) []int {
	if total <= 0 || n <= 0 {
		return nil
	}
	if n > total {
		n = total
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(total)[:n]
}
