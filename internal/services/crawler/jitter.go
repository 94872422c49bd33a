package crawler

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter draws uniformly distributed delays inside a [min, max] range
type Jitter struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitter creates a jitter source seeded from the clock
func NewJitter() *Jitter {
	return NewSeededJitter(time.Now().UnixNano())
}

// NewSeededJitter creates a deterministic jitter source
func NewSeededJitter(seed int64) *Jitter {
	return &Jitter{rnd: rand.New(rand.NewSource(seed))}
}

// Between returns a duration in [min, max]. An inverted range yields min.
func (j *Jitter) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	j.mu.Lock()
	n := j.rnd.Int63n(int64(max-min) + 1)
	j.mu.Unlock()
	return min + time.Duration(n)
}
