package service

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// RoundRobin rotates through equally ranked tiers in order.
type RoundRobin struct {
	next atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Pick(n int) int {
	if n <= 0 {
		return 0
	}

	return int((r.next.Add(1) - 1) % uint64(n))
}

// RandomSelector picks uniformly at random from a seeded source, so tests can reproduce a sequence.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector seeds the selector. A zero seed draws one from the clock.
func NewRandomSelector(seed uint64) *RandomSelector {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &RandomSelector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomSelector) Pick(n int) int {
	if n <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rng.IntN(n)
}
