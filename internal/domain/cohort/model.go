package cohort

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

// LocationCategory is a closed care-location category.
type LocationCategory string

const (
	LocationICU      LocationCategory = "icu"
	LocationWard     LocationCategory = "ward"
	LocationED       LocationCategory = "ed"
	LocationOR       LocationCategory = "or"
	LocationStepDown LocationCategory = "step_down"
)

// Known reports whether c is one of the closed location categories.
func (c LocationCategory) Known() bool {
	switch c {
	case LocationICU, LocationWard, LocationED, LocationOR, LocationStepDown:
		return true
	}
	return false
}

// Encounter identifies one hospital stay. Owned by the source system and
// read-only to this engine; End is nil when discharge is missing upstream.
type Encounter struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
}

// PatientInfo carries the per-patient attributes the engine needs: age for
// the adult filter and mass for weight-based dose conversion. MassKg is nil
// when unknown; the dose normalizer surfaces that explicitly.
type PatientInfo struct {
	PatientID      uuid.UUID `json:"patient_id"`
	AgeAtAdmission int       `json:"age_at_admission"`
	MassKg         *float64  `json:"mass_kg,omitempty"`
}

// LocationInterval is one contiguous span at a care location within an
// encounter. Intervals are time-ordered and non-overlapping by upstream
// invariant; the stitcher still verifies timestamps.
type LocationInterval struct {
	ID          uuid.UUID        `json:"id"`
	EncounterID uuid.UUID        `json:"encounter_id"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Category    LocationCategory `json:"category"`
}

// AsInterval adapts a location interval for the generic stitcher.
func (li LocationInterval) AsInterval() stitch.Interval {
	return stitch.Interval{
		ID:          li.ID,
		EncounterID: li.EncounterID,
		Start:       li.Start,
		End:         li.End,
		Category:    string(li.Category),
	}
}

// RunStatus is the lifecycle state of one derivation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunError is one entry in a run's error manifest: a per-encounter failure
// that was isolated rather than aborting the run.
type RunError struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	Stage       string    `json:"stage"`
	Message     string    `json:"message"`
}

// Run is the record of one derivation run. Derived rows are recomputed in
// full; the run row carries audit metadata and the error manifest.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total_encounters"`
	Included   int        `json:"included_encounters"`
	Derived    int        `json:"derived_encounters"`
	Errors     []RunError `json:"errors,omitempty"`
}
