// Package keylock provides striped mutexes keyed by user id.
package keylock

import "sync"

const defaultStripes = 64

// Striped serializes callers that share a key while letting most distinct
// keys proceed in parallel. Two keys may map to the same stripe.
type Striped struct {
	stripes []sync.Mutex
}

func New(n int) *Striped {
	if n <= 0 {
		n = defaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

func (s *Striped) Lock(key int64) func() {
	m := &s.stripes[s.index(key)]
	m.Lock()
	return m.Unlock
}

func (s *Striped) index(key int64) int {
	// fold the sign bit so negative chat ids spread too
	u := uint64(key)
	u ^= u >> 33
	return int(u % uint64(len(s.stripes)))
}
