// Package dedup picks broadcast entries so that no id repeats until the
// whole candidate pool has been shown once.
package dedup

import (
	"math/rand"
	"sync"
	"time"

	"cinebot/internal/storage"
)

// Sampler remembers the last K picked ids in a ring. It is safe for
// concurrent use; the window is process-local.
type Sampler struct {
	mu   sync.Mutex
	k    int
	ring []string
	seen map[string]int // id -> occurrences in ring
	rng  *rand.Rand
}

// New returns a sampler with window capacity k (minimum 1).
func New(k int) *Sampler {
	return NewWithSource(k, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource is New with a fixed random source, for tests.
func NewWithSource(k int, src rand.Source) *Sampler {
	if k < 1 {
		k = 1
	}
	return &Sampler{k: k, seen: map[string]int{}, rng: rand.New(src)}
}

// PickUnseen picks uniformly among pool entries not in the window. When
// every entry was seen, the window is cleared and the whole pool is used.
// It returns false only for an empty pool.
func (s *Sampler) PickUnseen(pool []storage.Entry) (storage.Entry, bool) {
	if len(pool) == 0 {
		return storage.Entry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]storage.Entry, 0, len(pool))
	for _, e := range pool {
		if s.seen[e.ID] == 0 {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		s.resetLocked()
		candidates = pool
	}
	chosen := candidates[s.rng.Intn(len(candidates))]
	s.pushLocked(chosen.ID)
	return chosen, true
}

func (s *Sampler) pushLocked(id string) {
	s.ring = append(s.ring, id)
	s.seen[id]++
	for len(s.ring) > s.k {
		old := s.ring[0]
		s.ring = s.ring[1:]
		if s.seen[old]--; s.seen[old] <= 0 {
			delete(s.seen, old)
		}
	}
}

func (s *Sampler) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Sampler) resetLocked() {
	s.ring = s.ring[:0]
	clear(s.seen)
}

// Window returns the remembered ids, oldest first.
func (s *Sampler) Window() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ring...)
}

func (s *Sampler) Cap() int { return s.k }
