// Package dedup implements a hash set over canonical-form byte strings.
package dedup

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

const (
	minBuckets = 16
	maxLoad    = 4
)

type node struct {
	hash uint64
	key  []byte
	next *node
}

// Store is a set of byte strings with byte-exact equality.
// Keys are copied on insert. A Store is not safe for concurrent use.
type Store struct {
	buckets []*node
	count   int
}

// New returns a store sized for about hint keys.
func New(hint int) *Store {
	size := minBuckets
	for size*maxLoad < hint {
		size <<= 1
	}
	return &Store{buckets: make([]*node, size)}
}

// Len returns the number of stored keys.
func (s *Store) Len() int { return s.count }

// Insert adds key and reports whether it was absent.
func (s *Store) Insert(key []byte) bool {
	h := xxhash.Sum64(key)
	i := s.index(h)
	for n := s.buckets[i]; n != nil; n = n.next {
		if n.hash == h && bytes.Equal(n.key, key) {
			return false
		}
	}
	s.buckets[i] = &node{hash: h, key: bytes.Clone(key), next: s.buckets[i]}
	s.count++
	if s.count > len(s.buckets)*maxLoad {
		s.grow()
	}
	return true
}

// Contains reports whether key is stored.
func (s *Store) Contains(key []byte) bool {
	h := xxhash.Sum64(key)
	for n := s.buckets[s.index(h)]; n != nil; n = n.next {
		if n.hash == h && bytes.Equal(n.key, key) {
			return true
		}
	}
	return false
}

// Remove deletes key and reports whether it was present.
func (s *Store) Remove(key []byte) bool {
	h := xxhash.Sum64(key)
	i := s.index(h)
	for p := &s.buckets[i]; *p != nil; p = &(*p).next {
		n := *p
		if n.hash == h && bytes.Equal(n.key, key) {
			*p = n.next
			s.count--
			return true
		}
	}
	return false
}

// Reset drops every key and keeps the bucket array.
func (s *Store) Reset() {
	clear(s.buckets)
	s.count = 0
}

func (s *Store) index(h uint64) int {
	return int(h & uint64(len(s.buckets)-1))
}

func (s *Store) grow() {
	old := s.buckets
	s.buckets = make([]*node, len(old)*2)
	for _, head := range old {
		for n := head; n != nil; {
			next := n.next
			i := s.index(n.hash)
			n.next = s.buckets[i]
			s.buckets[i] = n
			n = next
		}
	}
}
