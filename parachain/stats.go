package parachain

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chainwatch/paratracer/metrics"
)

// Stats accumulates the lifetime counters and averages a Tracker reports
// in its shutdown summary. Grounded on spec.md §4.5's summary content
// list; original_source has no dedicated stats.rs in the filtered pack,
// so field choice follows that list directly.
type Stats struct {
	TotalBlocks           uint32
	BackedCount           uint32
	IncludedCount         uint32
	SkippedSlots          uint32
	SlowAvailabilityCount uint32
	LowBitfieldsCount     uint32
	DisputedValidCount    uint32
	DisputedInvalidCount  uint32

	blockTimeTotal     float64
	blockTimeSamples   uint32
	inclusionTotal     uint64
	inclusionSamples   uint32
	disputeTotal       uint64
	disputeSamples     uint32
}

func (s *Stats) recordBlockTime(seconds float64) {
	s.blockTimeTotal += seconds
	s.blockTimeSamples++
}

func (s *Stats) recordInclusionDelay(relayBlocks uint32) {
	s.inclusionTotal += uint64(relayBlocks)
	s.inclusionSamples++
}

func (s *Stats) recordDispute(outcome metrics.DisputesOutcome) {
	if outcome.VotedFor > outcome.VotedAgainst {
		s.DisputedValidCount++
	} else {
		s.DisputedInvalidCount++
	}
	if outcome.ResolveTime != nil {
		s.disputeTotal += uint64(*outcome.ResolveTime)
		s.disputeSamples++
	}
}

func average(total float64, samples uint32) float64 {
	if samples == 0 {
		return 0
	}
	return total / float64(samples)
}

// AverageBlockTime is the mean seconds between successive backed
// candidates.
func (s *Stats) AverageBlockTime() float64 { return average(s.blockTimeTotal, s.blockTimeSamples) }

// AverageInclusionDelay is the mean relay-block distance between
// successive inclusions; the first inclusion contributes no sample.
func (s *Stats) AverageInclusionDelay() float64 {
	return average(float64(s.inclusionTotal), s.inclusionSamples)
}

// AverageDisputeResolution is the mean relay-block distance between a
// dispute's initiation and its conclusion.
func (s *Stats) AverageDisputeResolution() float64 {
	return average(float64(s.disputeTotal), s.disputeSamples)
}

// Summary renders the shutdown statistics table for paraID, in the style
// the teacher's go.mod already declares go-pretty for.
func (s *Stats) Summary(paraID uint32) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("parachain %d summary", paraID))
	t.AppendRows([]table.Row{
		{"total blocks tracked", s.TotalBlocks},
		{"backed", s.BackedCount},
		{"included", s.IncludedCount},
		{"skipped slots", s.SkippedSlots},
		{"slow availability events", s.SlowAvailabilityCount},
		{"low bitfield propagation events", s.LowBitfieldsCount},
		{"average block time (s)", fmt.Sprintf("%.2f", s.AverageBlockTime())},
		{"average inclusion delay (relay blocks)", fmt.Sprintf("%.2f", s.AverageInclusionDelay())},
		{"disputes resolved valid", s.DisputedValidCount},
		{"disputes resolved invalid", s.DisputedInvalidCount},
		{"average dispute resolution (relay blocks)", fmt.Sprintf("%.2f", s.AverageDisputeResolution())},
	})
	return t.Render()
}
