// Package emptyset implements the EmptyFileSet (§3, §4.4): the set of
// paths currently observed to be zero bytes. It is kept separate from the
// ContentIndex both to respect invariant E1 (disjointness) and to allow
// summary reporting distinct from duplicate reporting. Backed by a map
// rather than the original prototype's linearly-scanned list, per the
// design note in §9 ("a hashed set is preferable").
package emptyset

import "sync"

// EmptyFileSet is the thread-safe set of known zero-byte paths.
type EmptyFileSet struct {
	lock  sync.Mutex
	paths map[string]struct{}
}

// New creates an empty EmptyFileSet.
func New() *EmptyFileSet {
	return &EmptyFileSet{paths: make(map[string]struct{})}
}

// Add idempotently records path as a zero-byte file.
func (s *EmptyFileSet) Add(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.paths[path] = struct{}{}
}

// Remove idempotently removes path from the set.
func (s *EmptyFileSet) Remove(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.paths, path)
}

// Contains reports whether path is currently recorded as zero-byte.
func (s *EmptyFileSet) Contains(path string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of zero-byte paths currently tracked.
func (s *EmptyFileSet) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.paths)
}

// Paths returns a snapshot copy of all currently tracked paths.
func (s *EmptyFileSet) Paths() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	result := make([]string, 0, len(s.paths))
	for p := range s.paths {
		result = append(result, p)
	}
	return result
}
