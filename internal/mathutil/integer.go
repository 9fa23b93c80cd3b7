// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package mathutil holds the small integer helpers the tracking pipeline
// needs for block-number and threshold arithmetic: saturating differences
// for stall detection, and the two-thirds-majority availability threshold.
package mathutil

// AbsoluteDifference returns the absolute value of x-y in uint64 format,
// without relying on signed arithmetic. It has no caller in the pipeline;
// inclusion delay and stall distance use SaturatingSub.
func AbsoluteDifference(x, y uint64) uint64 {
	if x > y {
		return x - y
	}
	return y - x
}

// SaturatingSub returns x-y, or 0 if y > x. Mirrors Rust's
// `saturating_sub` used by the original tracker to compute inclusion
// and stall deltas on unsigned relay-block numbers.
func SaturatingSub(x, y uint32) uint32 {
	if y > x {
		return 0
	}
	return x - y
}

// TwoThirds computes (n/3)*2 using integer division, the form of the
// bitfield-propagation threshold. It has no caller: BlockInfo inlines its
// thresholds.
func TwoThirds(n uint32) uint32 {
	return (n / 3) * 2
}
