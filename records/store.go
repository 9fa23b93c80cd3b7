package records

import (
	"fmt"

	"github.com/chainwatch/paratracer/internal/errs"
)

// Config bounds a store's retention window.
type Config struct {
	// MaxBlocks is the maximum number of distinct block-number buckets kept
	// before the oldest bucket is pruned.
	MaxBlocks int
}

// PlainStore is an ephemeral, in-memory map keyed directly by K. Inserts
// reject duplicate keys; Replace requires the key already exist. Entries
// are indexed by block number so the oldest bucket can be evicted once the
// store holds more than Config.MaxBlocks distinct blocks.
type PlainStore[K comparable] struct {
	config    Config
	lastBlock *uint32
	byBlock   map[uint32]map[K]struct{}
	direct    map[K]Entry
}

// NewPlainStore creates an empty store with the given retention config.
func NewPlainStore[K comparable](config Config) *PlainStore[K] {
	return &PlainStore[K]{
		config:  config,
		byBlock: make(map[uint32]map[K]struct{}),
		direct:  make(map[K]Entry),
	}
}

// Insert adds entry under key. Returns an error wrapping errs.Duplicate if
// key is already present.
func (s *PlainStore[K]) Insert(key K, entry Entry) error {
	if _, exists := s.direct[key]; exists {
		return fmt.Errorf("%w: %v", errs.Duplicate, key)
	}
	block := entry.Time.BlockNumber
	s.lastBlock = &block
	s.direct[key] = entry.clone()

	bucket, ok := s.byBlock[block]
	if !ok {
		bucket = make(map[K]struct{})
		s.byBlock[block] = bucket
	}
	bucket[key] = struct{}{}

	s.prune()
	return nil
}

// Replace overwrites an existing entry for key, returning the entry it
// displaced. The second return is false if key was not present, in which
// case no write occurs.
func (s *PlainStore[K]) Replace(key K, entry Entry) (Entry, bool) {
	old, exists := s.direct[key]
	if !exists {
		return Entry{}, false
	}
	s.direct[key] = entry.clone()
	return old, true
}

// prune evicts every key recorded under the single oldest block bucket
// once the number of distinct buckets exceeds config.MaxBlocks. Map
// iteration order is unspecified, matching the original's reliance on an
// arbitrary "first" bucket when several are tied for oldest.
func (s *PlainStore[K]) prune() {
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
		delete(s.direct, key)
	}
	delete(s.byBlock, oldest)
}

// Get returns a copy of the entry stored under key, if any.
func (s *PlainStore[K]) Get(key K) (Entry, bool) {
	e, ok := s.direct[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the number of keys currently stored.
func (s *PlainStore[K]) Len() int {
	return len(s.direct)
}

// Keys returns every key currently stored, in no particular order.
func (s *PlainStore[K]) Keys() []K {
	out := make([]K, 0, len(s.direct))
	for k := range s.direct {
		out = append(out, k)
	}
	return out
}
