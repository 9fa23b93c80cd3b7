package records

import (
	"fmt"

	"github.com/chainwatch/paratracer/internal/errs"
)

// PrefixedStore organizes entries under a prefix (e.g. a parachain id)
// then a key (e.g. a relay-parent hash) within that prefix, so data for
// distinct parachains can be enumerated independently while still
// supporting prefix-blind Get/Replace lookups. Pruning uses the same
// block-bucket scheme as PlainStore and spans every prefix: dropping a
// block bucket removes its keys from all prefixes.
type PrefixedStore[K comparable, P comparable] struct {
	config    Config
	lastBlock *uint32
	byBlock   map[uint32]map[K]struct{}
	prefixed  map[P]map[K]Entry
}

// NewPrefixedStore creates an empty prefixed store.
func NewPrefixedStore[K comparable, P comparable](config Config) *PrefixedStore[K, P] {
	return &PrefixedStore[K, P]{
		config:   config,
		byBlock:  make(map[uint32]map[K]struct{}),
		prefixed: make(map[P]map[K]Entry),
	}
}

// InsertPrefix adds entry under (prefix, key). Returns an error wrapping
// errs.Duplicate if key is already present within prefix; keys may repeat
// across distinct prefixes.
func (s *PrefixedStore[K, P]) InsertPrefix(prefix P, key K, entry Entry) error {
	bucket, ok := s.prefixed[prefix]
	if !ok {
		bucket = make(map[K]Entry)
		s.prefixed[prefix] = bucket
	}
	if _, exists := bucket[key]; exists {
		return fmt.Errorf("%w: %v", errs.Duplicate, key)
	}
	block := entry.Time.BlockNumber
	s.lastBlock = &block
	bucket[key] = entry.clone()

	blockBucket, ok := s.byBlock[block]
	if !ok {
		blockBucket = make(map[K]struct{})
		s.byBlock[block] = blockBucket
	}
	blockBucket[key] = struct{}{}

	s.prune()
	return nil
}

// ReplacePrefix overwrites an existing entry scanning every prefix for
// key, matching the original's prefix-blind replace semantics. Returns the
// displaced entry, or false if key was not found in any prefix.
func (s *PrefixedStore[K, P]) ReplacePrefix(key K, entry Entry) (Entry, bool) {
	for _, bucket := range s.prefixed {
		if old, exists := bucket[key]; exists {
			bucket[key] = entry.clone()
			return old, true
		}
	}
	return Entry{}, false
}

func (s *PrefixedStore[K, P]) prune() {
	if len(s.byBlock) <= s.config.MaxBlocks {
		return
	}
	var oldest uint32
	first := true
	for block := range s.byBlock {
		if first || block < oldest {
			oldest = block
			first = false
		}
	}
	for key := range s.byBlock[oldest] {
		for _, bucket := range s.prefixed {
			delete(bucket, key)
		}
	}
	delete(s.byBlock, oldest)
}

// Get scans every prefix for key, matching the original's prefix-blind
// lookup semantics.
func (s *PrefixedStore[K, P]) Get(key K) (Entry, bool) {
	for _, bucket := range s.prefixed {
		if e, ok := bucket[key]; ok {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// GetPrefix looks up key within a specific prefix only.
func (s *PrefixedStore[K, P]) GetPrefix(prefix P, key K) (Entry, bool) {
	bucket, ok := s.prefixed[prefix]
	if !ok {
		return Entry{}, false
	}
	e, ok := bucket[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the total number of keys across every prefix.
func (s *PrefixedStore[K, P]) Len() int {
	total := 0
	for _, bucket := range s.prefixed {
		total += len(bucket)
	}
	return total
}

// Keys returns every key across every prefix, in no particular order.
func (s *PrefixedStore[K, P]) Keys() []K {
	out := make([]K, 0, s.Len())
	for _, bucket := range s.prefixed {
		for k := range bucket {
			out = append(out, k)
		}
	}
	return out
}

// PrefixedKeys returns the keys stored under a single prefix.
func (s *PrefixedStore[K, P]) PrefixedKeys(prefix P) []K {
	bucket, ok := s.prefixed[prefix]
	if !ok {
		return []K{}
	}
	out := make([]K, 0, len(bucket))
	for k := range bucket {
		out = append(out, k)
	}
	return out
}
