package stitch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interval is one contiguous span at a single category, keyed by encounter.
type Interval struct {
	ID          uuid.UUID `json:"id"`
	EncounterID uuid.UUID `json:"encounter_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Category    string    `json:"category"`
}

// Duration returns the span length. Zero-length intervals are valid.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Stitched is a super-interval produced by merging adjacent member intervals
// whose inter-interval gap fell below the configured threshold. It is
// recomputed in full on every run and never mutated.
type Stitched struct {
	ID          uuid.UUID   `json:"id"`
	EncounterID uuid.UUID   `json:"encounter_id"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Category    string      `json:"category"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

// OrderingError reports an encounter whose intervals carry null or
// non-monotonic timestamps. The encounter is skipped, not the whole run.
type OrderingError struct {
	EncounterID uuid.UUID
	Reason      string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("interval ordering violated for encounter %s: %s", e.EncounterID, e.Reason)
}

// stitchNamespace seeds deterministic stitched ids so that re-running the
// pipeline on unchanged input yields identical rows.
var stitchNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// DeriveID returns a stable id for the i-th stitched interval of an encounter.
func DeriveID(encounterID uuid.UUID, kind string, seq int) uuid.UUID {
	return uuid.NewSHA1(stitchNamespace, []byte(fmt.Sprintf("%s/%s/%d", encounterID, kind, seq)))
}
