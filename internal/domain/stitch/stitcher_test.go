package stitch

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var encID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func at(hours float64) time.Time {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(hours * float64(time.Hour)))
}

func iv(start, end float64, category string) Interval {
	return Interval{
		ID:          uuid.New(),
		EncounterID: encID,
		Start:       at(start),
		End:         at(end),
		Category:    category,
	}
}

func TestStitch_MergesSubThresholdGaps(t *testing.T) {
	intervals := []Interval{
		iv(0, 10, "icu"),
		iv(12, 20, "icu"), // 2h gap, under threshold
		iv(30, 40, "icu"), // 10h gap, over threshold
	}

	out, err := Stitch(intervals, Config{GapThreshold: 6 * time.Hour, Kind: "stay"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 stitched intervals, got %d", len(out))
	}
	if !out[0].Start.Equal(at(0)) || !out[0].End.Equal(at(20)) {
		t.Errorf("first stitched span = [%v, %v], want [0h, 20h]", out[0].Start, out[0].End)
	}
	if len(out[0].MemberIDs) != 2 {
		t.Errorf("first stitched has %d members, want 2", len(out[0].MemberIDs))
	}
	if !out[1].Start.Equal(at(30)) {
		t.Errorf("second stitched starts at %v, want 30h", out[1].Start)
	}
}

func TestStitch_ThresholdZeroOnlyMergesContiguous(t *testing.T) {
	intervals := []Interval{
		iv(0, 5, "icu"),
		iv(5, 8, "icu"),          // contiguous, merges
		iv(8.001, 10, "icu"),     // positive gap, stays separate
		iv(9.5, 12, "icu"),       // overlaps previous, merges
	}

	out, err := Stitch(intervals, Config{GapThreshold: 0, Kind: "stay"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 stitched intervals, got %d", len(out))
	}
	if !out[0].End.Equal(at(8)) {
		t.Errorf("first stitched ends at %v, want 8h", out[0].End)
	}
	if !out[1].End.Equal(at(12)) {
		t.Errorf("second stitched ends at %v, want 12h", out[1].End)
	}
}

func TestStitch_OrderIndependent(t *testing.T) {
	a := iv(0, 10, "icu")
	b := iv(12, 20, "icu")
	c := iv(30, 40, "ward")
	cfg := Config{GapThreshold: 6 * time.Hour, Kind: "stay"}

	forward, err := Stitch([]Interval{a, b, c}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shuffled, err := Stitch([]Interval{c, a, b}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(forward) != len(shuffled) {
		t.Fatalf("lengths differ: %d vs %d", len(forward), len(shuffled))
	}
	for i := range forward {
		if forward[i].ID != shuffled[i].ID {
			t.Errorf("stitched %d: id %s vs %s", i, forward[i].ID, shuffled[i].ID)
		}
		if !forward[i].Start.Equal(shuffled[i].Start) || !forward[i].End.Equal(shuffled[i].End) {
			t.Errorf("stitched %d spans differ", i)
		}
	}
}

func TestStitch_CategoryChangeSplits(t *testing.T) {
	intervals := []Interval{
		iv(0, 10, "icu"),
		iv(10, 20, "ward"), // contiguous but incompatible
	}

	out, err := Stitch(intervals, Config{GapThreshold: 6 * time.Hour, Kind: "stay"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected category change to split, got %d stitched", len(out))
	}
	if out[0].Category != "icu" || out[1].Category != "ward" {
		t.Errorf("categories = %s, %s", out[0].Category, out[1].Category)
	}
}

func TestStitch_CustomCompatibility(t *testing.T) {
	anyCategory := func(prev, next Interval) bool { return true }
	intervals := []Interval{
		iv(0, 10, "icu"),
		iv(10, 20, "ward"),
	}

	out, err := Stitch(intervals, Config{GapThreshold: 0, Compatible: anyCategory, Kind: "stay"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 stitched interval, got %d", len(out))
	}
}

func TestStitch_ZeroLengthIntervalRetained(t *testing.T) {
	point := iv(5, 5, "icu")
	out, err := Stitch([]Interval{point}, Config{GapThreshold: time.Hour, Kind: "stay"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || !out[0].Start.Equal(out[0].End) {
		t.Fatalf("zero-length interval not retained as single-point member")
	}
}

func TestStitch_OrderingErrors(t *testing.T) {
	cases := []struct {
		name string
		in   Interval
	}{
		{"null start", Interval{ID: uuid.New(), EncounterID: encID, End: at(5), Category: "icu"}},
		{"null end", Interval{ID: uuid.New(), EncounterID: encID, Start: at(5), Category: "icu"}},
		{"end before start", iv(10, 5, "icu")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Stitch([]Interval{tc.in}, Config{GapThreshold: time.Hour, Kind: "stay"})
			var oe *OrderingError
			if !errors.As(err, &oe) {
				t.Fatalf("expected OrderingError, got %v", err)
			}
			if oe.EncounterID != encID {
				t.Errorf("error carries encounter %s, want %s", oe.EncounterID, encID)
			}
		})
	}
}

func TestStitch_StrictGapSplitsAtThreshold(t *testing.T) {
	intervals := []Interval{
		iv(0, 10, "vent"),
		iv(16, 20, "vent"), // exactly 6h gap
	}

	loose, err := Stitch(intervals, Config{GapThreshold: 6 * time.Hour, Kind: "episode"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	strict, err := Stitch(intervals, Config{GapThreshold: 6 * time.Hour, StrictGap: true, Kind: "episode"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(loose) != 1 {
		t.Errorf("inclusive threshold: expected merge, got %d stitched", len(loose))
	}
	if len(strict) != 2 {
		t.Errorf("strict threshold: expected split, got %d stitched", len(strict))
	}
}

func TestStitch_EmptyInput(t *testing.T) {
	out, err := Stitch(nil, Config{GapThreshold: time.Hour, Kind: "stay"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output for empty input, got %v", out)
	}
}
