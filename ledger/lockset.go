package ledger

import (
	"sort"
	"sync"
)

// lockSet gives every derived address its own mutex so operations touching
// disjoint accounts run fully in parallel while overlapping address sets
// linearize. Addresses are locked in sorted order, which rules out deadlock
// between two-record operations.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*sync.Mutex)}
}

func (ls *lockSet) lockFor(addr string) *sync.Mutex {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.locks[addr]
	if !ok {
		l = &sync.Mutex{}
		ls.locks[addr] = l
	}
	return l
}

// Acquire locks the deduplicated, sorted address set and returns the
// release function. Locks are held for the whole read-validate-write of an
// operation.
func (ls *lockSet) Acquire(addrs ...string) func() {
	unique := make([]string, 0, len(addrs))
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			unique = append(unique, a)
		}
	}
	sort.Strings(unique)

	held := make([]*sync.Mutex, 0, len(unique))
	for _, a := range unique {
		l := ls.lockFor(a)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
