package cohort

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinpipe/clinpipe/internal/domain/attrition"
	"github.com/clinpipe/clinpipe/internal/domain/dose"
	"github.com/clinpipe/clinpipe/internal/domain/episode"
	"github.com/clinpipe/clinpipe/internal/domain/score"
	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

// Repository is the boundary to the upstream record store. Source streams
// arrive already typed and time-ordered with missingness normalized; derived
// rows are replaced wholesale per encounter on every run.
type Repository interface {
	// Source records
	ListEncounters(ctx context.Context) ([]*Encounter, error)
	PatientInfo(ctx context.Context, encounterID uuid.UUID) (*PatientInfo, error)
	LocationIntervals(ctx context.Context, encounterID uuid.UUID) ([]LocationInterval, error)
	DeviceObservations(ctx context.Context, encounterID uuid.UUID) ([]episode.Observation, error)
	DoseRecords(ctx context.Context, encounterID uuid.UUID) ([]dose.Record, error)
	Observations(ctx context.Context, encounterID uuid.UUID) ([]score.Observation, error)

	// Runs
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	SaveAttrition(ctx context.Context, runID uuid.UUID, steps []attrition.Step) error
	AttritionLog(ctx context.Context, runID uuid.UUID) ([]attrition.Step, error)

	// Derived rows
	ReplaceStays(ctx context.Context, encounterID uuid.UUID, stays []stitch.Stitched) error
	ReplaceEpisodes(ctx context.Context, encounterID uuid.UUID, episodes []episode.Episode) error
	ReplaceDoses(ctx context.Context, encounterID uuid.UUID, doses []dose.Equivalent) error
	ReplaceScores(ctx context.Context, encounterID uuid.UUID, scores []score.WindowScore) error

	StaysByEncounter(ctx context.Context, encounterID uuid.UUID) ([]stitch.Stitched, error)
	EpisodesByEncounter(ctx context.Context, encounterID uuid.UUID) ([]episode.Episode, error)
	DosesByEncounter(ctx context.Context, encounterID uuid.UUID) ([]dose.Equivalent, error)
	ScoresByEncounter(ctx context.Context, encounterID uuid.UUID) ([]score.WindowScore, error)
}
