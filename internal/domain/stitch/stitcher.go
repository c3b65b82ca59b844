package stitch

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Compatibility decides whether two adjacent intervals may share a stitched
// super-interval. The default requires an exact category match.
type Compatibility func(prev, next Interval) bool

// SameCategory is the default compatibility predicate.
func SameCategory(prev, next Interval) bool {
	return prev.Category == next.Category
}

// Config parameterizes one stitching pass. Thresholds are passed explicitly
// per call; there is no package-level state, so concurrent per-encounter
// stitching needs no locking.
type Config struct {
	// GapThreshold is the largest inter-interval gap that still merges.
	GapThreshold time.Duration

	// StrictGap, when set, starts a new super-interval on a gap exactly
	// equal to GapThreshold instead of bridging it. Episode detection
	// requires the strict form.
	StrictGap bool

	// Compatible defaults to SameCategory when nil.
	Compatible Compatibility

	// Kind labels the derived ids so stays and episodes for the same
	// encounter never collide.
	Kind string
}

// Stitch merges chronologically ordered intervals separated by sub-threshold
// gaps into super-intervals. Input order does not matter: intervals are
// sorted by start time first. Overlapping intervals (gap <= 0) always merge.
// O(n log n) in the sort; the merge walk is O(n).
func Stitch(intervals []Interval, cfg Config) ([]Stitched, error) {
	if len(intervals) == 0 {
		return nil, nil
	}

	compatible := cfg.Compatible
	if compatible == nil {
		compatible = SameCategory
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	for _, iv := range sorted {
		if iv.Start.IsZero() || iv.End.IsZero() {
			return nil, &OrderingError{EncounterID: iv.EncounterID, Reason: "interval with null timestamp"}
		}
		if iv.End.Before(iv.Start) {
			return nil, &OrderingError{EncounterID: iv.EncounterID, Reason: "interval end precedes start"}
		}
	}

	var out []Stitched
	cur := newStitched(sorted[0], cfg.Kind, 0)

	for _, iv := range sorted[1:] {
		gap := iv.Start.Sub(cur.End)
		if mergeable(gap, cfg) && compatible(memberView(cur), iv) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			cur.MemberIDs = append(cur.MemberIDs, iv.ID)
			continue
		}
		out = append(out, cur)
		cur = newStitched(iv, cfg.Kind, len(out))
	}
	out = append(out, cur)

	return out, nil
}

func mergeable(gap time.Duration, cfg Config) bool {
	// Overlap or contiguity merges regardless of threshold.
	if gap <= 0 {
		return true
	}
	if cfg.StrictGap {
		return gap < cfg.GapThreshold
	}
	return gap <= cfg.GapThreshold
}

func newStitched(iv Interval, kind string, seq int) Stitched {
	return Stitched{
		ID:          DeriveID(iv.EncounterID, kind, seq),
		EncounterID: iv.EncounterID,
		Start:       iv.Start,
		End:         iv.End,
		Category:    iv.Category,
		MemberIDs:   []uuid.UUID{iv.ID},
	}
}

// memberView exposes the running super-interval as an Interval so the
// compatibility predicate sees its combined extent and category.
func memberView(s Stitched) Interval {
	return Interval{
		EncounterID: s.EncounterID,
		Start:       s.Start,
		End:         s.End,
		Category:    s.Category,
	}
}
