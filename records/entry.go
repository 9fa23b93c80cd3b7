// Package records implements the in-memory, block-indexed records store
// described in the component design: a bounded key/value map with
// optional prefix partitioning, pruning by oldest-block-bucket eviction,
// and uniqueness guarantees on insert.
//
// Grounded on original_source/src/core/storage.rs: values carry a source
// (onchain/offchain), a record time (block number + optional timestamp),
// and opaque payload bytes copied out on every read so callers never hold
// a reference into the store.
package records

import "time"

// Source identifies where a stored value came from.
type Source int

const (
	Onchain Source = iota
	Offchain
)

func (s Source) String() string {
	if s == Offchain {
		return "offchain"
	}
	return "onchain"
}

// Time is the time index a record is stored under: every entry has a
// block number; offchain data may additionally carry a timestamp when one
// is known.
type Time struct {
	BlockNumber uint32
	Timestamp   *time.Duration
}

// NewTime builds a Time with no timestamp, the common case for onchain data.
func NewTime(blockNumber uint32) Time {
	return Time{BlockNumber: blockNumber}
}

// NewTimeWithTimestamp builds a Time carrying an explicit timestamp, used
// for offchain data whose block number is estimated.
func NewTimeWithTimestamp(blockNumber uint32, ts time.Duration) Time {
	return Time{BlockNumber: blockNumber, Timestamp: &ts}
}

// Entry is a single stored value: its source, its time index, and its
// opaque payload. Data is copied on Get/Keys reads, never aliased.
type Entry struct {
	Source Source
	Time   Time
	Data   []byte
}

// NewOnchain builds an Entry for onchain data.
func NewOnchain(t Time, data []byte) Entry {
	return Entry{Source: Onchain, Time: t, Data: append([]byte(nil), data...)}
}

// NewOffchain builds an Entry for offchain data.
func NewOffchain(t Time, data []byte) Entry {
	return Entry{Source: Offchain, Time: t, Data: append([]byte(nil), data...)}
}

// clone returns a deep copy, used whenever an Entry crosses the store's
// public API boundary so callers never alias internal storage.
func (e Entry) clone() Entry {
	out := e
	out.Data = append([]byte(nil), e.Data...)
	if e.Time.Timestamp != nil {
		ts := *e.Time.Timestamp
		out.Time.Timestamp = &ts
	}
	return out
}
