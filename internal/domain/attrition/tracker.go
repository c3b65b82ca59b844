// Package attrition records cohort population counts after each sequential
// inclusion/exclusion filter. The ordered ledger is the audit trail for a
// derivation run; a silently omitted step is exactly the defect this
// package exists to prevent.
package attrition

import (
	"sort"
	"sync"
)

// Step is one appended ledger entry. Seq is the stable ordering key, so
// partial ledgers produced by independent workers can be merged.
type Step struct {
	Seq       int    `json:"seq"`
	Label     string `json:"label"`
	Predicate string `json:"predicate"`
	Count     int    `json:"count"`
}

// TrackerClosedError reports an append after Finalize. Programming misuse,
// always fatal.
type TrackerClosedError struct{}

func (e *TrackerClosedError) Error() string {
	return "attrition tracker is finalized; no further steps may be recorded"
}

// Tracker is an append-only ledger. It is the one process-wide sequential
// resource in the pipeline, so appends are serialized internally.
type Tracker struct {
	mu     sync.Mutex
	closed bool
	steps  []Step
}

// NewTracker returns an open tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordStep appends one entry. Prior entries are never mutated.
func (t *Tracker) RecordStep(label, predicate string, count int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return &TrackerClosedError{}
	}
	t.steps = append(t.steps, Step{
		Seq:       len(t.steps),
		Label:     label,
		Predicate: predicate,
		Count:     count,
	})
	return nil
}

// Finalize closes the tracker and returns the ordered ledger. Subsequent
// RecordStep calls fail with TrackerClosedError.
func (t *Tracker) Finalize() []Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// Merge concatenates independently produced partial ledgers into one ordered
// ledger using Seq as the stable sort key.
func Merge(partials ...[]Step) []Step {
	var out []Step
	for _, p := range partials {
		out = append(out, p...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
