package game

import (
	"sort"
	"time"
)

// PolicyTimes tracks inference time per policy name over a rolling window.
type PolicyTimes struct {
	samples    map[string][]time.Duration
	maxSamples int
}

// NewPolicyTimes creates a tracker keeping the last maxSamples samples per
// name, 120 when maxSamples is not positive.
func NewPolicyTimes(maxSamples int) *PolicyTimes {
	if maxSamples <= 0 {
		maxSamples = 120
	}
	return &PolicyTimes{
		samples:    make(map[string][]time.Duration),
		maxSamples: maxSamples,
	}
}

// Record adds a duration sample for the named policy.
func (p *PolicyTimes) Record(name string, d time.Duration) {
	p.samples[name] = append(p.samples[name], d)
	if len(p.samples[name]) > p.maxSamples {
		p.samples[name] = p.samples[name][1:]
	}
}

// Avg returns the average duration for the named policy.
func (p *PolicyTimes) Avg(name string) time.Duration {
	s := p.samples[name]
	if len(s) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total / time.Duration(len(s))
}

// Total returns the sum of all average durations.
func (p *PolicyTimes) Total() time.Duration {
	var total time.Duration
	for name := range p.samples {
		total += p.Avg(name)
	}
	return total
}

// SortedNames returns policy names sorted by average duration, slowest first.
func (p *PolicyTimes) SortedNames() []string {
	names := make([]string, 0, len(p.samples))
	for name := range p.samples {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.Avg(names[i]) > p.Avg(names[j])
	})
	return names
}
