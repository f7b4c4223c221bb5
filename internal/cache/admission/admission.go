// Package admission decides which analyses are worth caching. Each set key
// carries a request score that decays exponentially; keys at or above the
// threshold are admitted.
package admission

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const numShards = 64

type Policy struct {
	// Threshold <= 0 admits every key.
	Threshold float64
	HalfLife  time.Duration

	now    func() time.Time
	shards [numShards]shard
}

type shard struct {
	mu sync.Mutex
	m  map[string]*counter
}

type counter struct {
	score float64
	last  time.Time
}

func New(threshold float64, halfLife time.Duration) *Policy {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	p := &Policy{Threshold: threshold, HalfLife: halfLife, now: time.Now}
	for i := range p.shards {
		p.shards[i].m = make(map[string]*counter)
	}
	return p
}

// Admit records one request for key and reports whether its decayed score
// has reached the threshold.
func (p *Policy) Admit(key string) bool {
	score := p.touch(key)
	return p.Threshold <= 0 || score >= p.Threshold
}

func (p *Policy) touch(key string) float64 {
	s := p.pick(key)
	n := p.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.m[key]
	if c == nil {
		s.m[key] = &counter{score: 1, last: n}
		return 1
	}
	c.score = decay(c.score, n.Sub(c.last).Seconds(), p.HalfLife.Seconds()) + 1
	c.last = n
	return c.score
}

// Score is the current decayed score without recording a request.
func (p *Policy) Score(key string) float64 {
	s := p.pick(key)
	s.mu.Lock()
	c := s.m[key]
	if c == nil {
		s.mu.Unlock()
		return 0
	}
	score, last := c.score, c.last
	s.mu.Unlock()
	return decay(score, p.now().Sub(last).Seconds(), p.HalfLife.Seconds())
}

// Prune drops keys whose score decayed below floor and returns how many were
// removed.
func (p *Policy) Prune(floor float64) int {
	n := p.now()
	removed := 0
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.Lock()
		for k, c := range s.m {
			if decay(c.score, n.Sub(c.last).Seconds(), p.HalfLife.Seconds()) < floor {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (p *Policy) Size() int {
	total := 0
	for i := range p.shards {
		p.shards[i].mu.Lock()
		total += len(p.shards[i].m)
		p.shards[i].mu.Unlock()
	}
	return total
}

// e^(-λt) with λ = ln2 / halfLife
func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp(-math.Ln2/halfLife*dt)
}

func (p *Policy) pick(key string) *shard {
	return &p.shards[xxhash.Sum64String(key)&(numShards-1)]
}
