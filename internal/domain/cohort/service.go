package cohort

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinpipe/clinpipe/internal/domain/attrition"
	"github.com/clinpipe/clinpipe/internal/domain/dose"
	"github.com/clinpipe/clinpipe/internal/domain/episode"
	"github.com/clinpipe/clinpipe/internal/domain/score"
	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

// Config carries every threshold the pipeline uses. Thresholds travel
// explicitly with the service; nothing reads ambient global state, so
// per-encounter workers share nothing mutable.
type Config struct {
	StayGap     time.Duration // stay stitching gap threshold
	Liberation  time.Duration // episode liberation threshold
	DoseBucket  time.Duration // dose bucketing resolution
	ScoreWindow time.Duration // severity scoring window
	Workers     int           // parallel per-encounter workers
	MinAgeYears int           // adult inclusion filter
	MinICUStay  time.Duration // minimum stitched icu stay duration
}

// DefaultConfig returns the domain defaults.
func DefaultConfig() Config {
	return Config{
		StayGap:     6 * time.Hour,
		Liberation:  episode.DefaultLiberationThreshold,
		DoseBucket:  dose.DefaultBucket,
		ScoreWindow: score.DefaultWindow,
		Workers:     4,
		MinAgeYears: 18,
		MinICUStay:  6 * time.Hour,
	}
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

// Service orchestrates one derivation run end to end: cohort filters with an
// attrition ledger, then data-parallel per-encounter derivation.
type Service struct {
	repo Repository
	cfg  Config
	log  zerolog.Logger
}

func NewService(repo Repository, cfg Config, log zerolog.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// candidate is one encounter that survived the sequential filters, together
// with everything its derivation workers need.
type candidate struct {
	enc    *Encounter
	info   *PatientInfo
	origin time.Time // scoring window alignment: first qualifying icu stay start
	end    time.Time
}

// ExecuteRun performs a full derivation run under the caller-supplied id, so
// the run is addressable before it finishes. Per-encounter failures are
// isolated into the run's error manifest and the run completes with partial
// results; only repository-level failures fail the run itself.
func (s *Service) ExecuteRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{ID: id, Status: RunRunning, StartedAt: time.Now().UTC()}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	included, err := s.filterCohort(ctx, run)
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, err
	}
	run.Included = len(included)

	s.deriveAll(ctx, run, included)

	now := time.Now().UTC()
	run.Status = RunCompleted
	run.FinishedAt = &now
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}

	s.log.Info().
		Str("run_id", run.ID.String()).
		Int("total", run.Total).
		Int("included", run.Included).
		Int("derived", run.Derived).
		Int("errors", len(run.Errors)).
		Msg("derivation run completed")
	return run, nil
}

// filterCohort applies the sequential inclusion filters, recording the
// population count after each step in the attrition ledger. Stays are
// stitched here because the icu filter depends on them.
func (s *Service) filterCohort(ctx context.Context, run *Run) ([]candidate, error) {
	encounters, err := s.repo.ListEncounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	run.Total = len(encounters)

	tracker := attrition.NewTracker()
	mustRecord := func(label, predicate string, count int) {
		// The tracker is only finalized below; an append cannot fail here.
		if err := tracker.RecordStep(label, predicate, count); err != nil {
			panic(err)
		}
	}
	mustRecord("all encounters", "source encounter rows", len(encounters))

	// Adults at admission.
	type withInfo struct {
		enc  *Encounter
		info *PatientInfo
	}
	var adults []withInfo
	for _, enc := range encounters {
		info, err := s.repo.PatientInfo(ctx, enc.ID)
		if err != nil {
			run.Errors = append(run.Errors, RunError{EncounterID: enc.ID, Stage: "patient_info", Message: err.Error()})
			continue
		}
		if info.AgeAtAdmission >= s.cfg.MinAgeYears {
			adults = append(adults, withInfo{enc: enc, info: info})
		}
	}
	mustRecord("adults", fmt.Sprintf("age >= %d at admission", s.cfg.MinAgeYears), len(adults))

	// Known discharge time.
	var discharged []withInfo
	for _, wi := range adults {
		if wi.enc.End != nil {
			discharged = append(discharged, wi)
		}
	}
	mustRecord("known discharge", "encounter end present", len(discharged))

	// Stitched icu stay of minimum duration. Stays are derived and
	// persisted for every candidate; ordering faults skip the encounter.
	var included []candidate
	for _, wi := range discharged {
		stay, ok := s.stitchStays(ctx, run, wi.enc)
		if !ok {
			continue
		}
		if stay != nil {
			included = append(included, candidate{
				enc:    wi.enc,
				info:   wi.info,
				origin: stay.Start,
				end:    stay.End,
			})
		}
	}
	mustRecord("icu stays", fmt.Sprintf("stitched icu stay >= %s", s.cfg.MinICUStay), len(included))

	if err := s.repo.SaveAttrition(ctx, run.ID, tracker.Finalize()); err != nil {
		return nil, fmt.Errorf("save attrition log: %w", err)
	}
	return included, nil
}

// stitchStays derives and persists stitched stays for one encounter and
// returns the first icu stay meeting the minimum duration, or nil when the
// encounter has none. The bool result is false when the encounter failed
// and was added to the manifest.
func (s *Service) stitchStays(ctx context.Context, run *Run, enc *Encounter) (*stitch.Stitched, bool) {
	intervals, err := s.repo.LocationIntervals(ctx, enc.ID)
	if err != nil {
		run.Errors = append(run.Errors, RunError{EncounterID: enc.ID, Stage: "locations", Message: err.Error()})
		return nil, false
	}

	raw := make([]stitch.Interval, 0, len(intervals))
	for _, li := range intervals {
		if !li.Category.Known() {
			run.Errors = append(run.Errors, RunError{
				EncounterID: enc.ID,
				Stage:       "locations",
				Message:     fmt.Sprintf("unmapped location category %q", li.Category),
			})
			return nil, false
		}
		raw = append(raw, li.AsInterval())
	}

	stays, err := stitch.Stitch(raw, stitch.Config{GapThreshold: s.cfg.StayGap, Kind: "stay"})
	if err != nil {
		run.Errors = append(run.Errors, RunError{EncounterID: enc.ID, Stage: "stitch", Message: err.Error()})
		s.log.Warn().Str("encounter_id", enc.ID.String()).Err(err).Msg("encounter skipped: interval ordering fault")
		return nil, false
	}
	if err := s.repo.ReplaceStays(ctx, enc.ID, stays); err != nil {
		run.Errors = append(run.Errors, RunError{EncounterID: enc.ID, Stage: "stitch", Message: err.Error()})
		return nil, false
	}

	for i := range stays {
		st := &stays[i]
		if st.Category == string(LocationICU) && st.End.Sub(st.Start) >= s.cfg.MinICUStay {
			return st, true
		}
	}
	return nil, true
}

// deriveAll fans the included encounters out over a bounded worker pool.
// Each worker touches only its own encounter's records; the manifest and
// derived counter are the only shared state and sit behind one mutex.
func (s *Service) deriveAll(ctx context.Context, run *Run, included []candidate) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan candidate)
	)

	for i := 0; i < s.cfg.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range work {
				if derr := s.deriveOne(ctx, cand); derr != nil {
					mu.Lock()
					run.Errors = append(run.Errors, *derr)
					mu.Unlock()
					continue
				}
				mu.Lock()
				run.Derived++
				mu.Unlock()
			}
		}()
	}

	for _, cand := range included {
		work <- cand
	}
	close(work)
	wg.Wait()
}

// deriveOne runs the episode, dose, and score derivations for a single
// encounter. The first failing stage aborts the encounter; its remaining
// output is skipped, not partially written.
func (s *Service) deriveOne(ctx context.Context, cand candidate) *RunError {
	encID := cand.enc.ID

	deviceObs, err := s.repo.DeviceObservations(ctx, encID)
	if err != nil {
		return &RunError{EncounterID: encID, Stage: "episodes", Message: err.Error()}
	}
	episodes, err := episode.Detect(deviceObs, episode.Config{LiberationThreshold: s.cfg.Liberation})
	if err != nil {
		return &RunError{EncounterID: encID, Stage: "episodes", Message: err.Error()}
	}
	if err := s.repo.ReplaceEpisodes(ctx, encID, episodes); err != nil {
		return &RunError{EncounterID: encID, Stage: "episodes", Message: err.Error()}
	}

	doseRecords, err := s.repo.DoseRecords(ctx, encID)
	if err != nil {
		return &RunError{EncounterID: encID, Stage: "doses", Message: err.Error()}
	}
	equivalents, err := dose.Normalize(doseRecords, dose.Config{
		Bucket:        s.cfg.DoseBucket,
		PatientMassKg: cand.info.MassKg,
	})
	if err != nil {
		return &RunError{EncounterID: encID, Stage: "doses", Message: err.Error()}
	}
	if err := s.repo.ReplaceDoses(ctx, encID, equivalents); err != nil {
		return &RunError{EncounterID: encID, Stage: "doses", Message: err.Error()}
	}

	observations, err := s.repo.Observations(ctx, encID)
	if err != nil {
		return &RunError{EncounterID: encID, Stage: "scores", Message: err.Error()}
	}
	// The normalized dose series feeds the cardiovascular subsystem as its
	// own stream alongside the raw observations.
	for _, eq := range equivalents {
		observations = append(observations, score.Observation{
			EncounterID: encID,
			Time:        eq.BucketStart,
			Source:      score.SourceNorepiEquiv,
			Value:       eq.Value,
		})
	}
	scores, err := score.Aggregate(observations, score.Config{
		EncounterID: encID,
		Window:      s.cfg.ScoreWindow,
		Origin:      cand.origin,
		End:         cand.end,
	})
	if err != nil {
		return &RunError{EncounterID: encID, Stage: "scores", Message: err.Error()}
	}
	if err := s.repo.ReplaceScores(ctx, encID, scores); err != nil {
		return &RunError{EncounterID: encID, Stage: "scores", Message: err.Error()}
	}
	return nil
}

func (s *Service) failRun(ctx context.Context, run *Run, cause error) {
	now := time.Now().UTC()
	run.Status = RunFailed
	run.FinishedAt = &now
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to mark run as failed")
	}
	s.log.Error().Err(cause).Str("run_id", run.ID.String()).Msg("derivation run failed")
}

// GetRun returns one run with its error manifest.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return s.repo.GetRun(ctx, id)
}

// AttritionLog returns a run's ordered attrition ledger.
func (s *Service) AttritionLog(ctx context.Context, runID uuid.UUID) ([]attrition.Step, error) {
	return s.repo.AttritionLog(ctx, runID)
}

// Stays returns the stitched stays derived for one encounter.
func (s *Service) Stays(ctx context.Context, encounterID uuid.UUID) ([]stitch.Stitched, error) {
	return s.repo.StaysByEncounter(ctx, encounterID)
}

// Episodes returns the device episodes derived for one encounter.
func (s *Service) Episodes(ctx context.Context, encounterID uuid.UUID) ([]episode.Episode, error) {
	return s.repo.EpisodesByEncounter(ctx, encounterID)
}

// Doses returns the equivalent-dose series derived for one encounter.
func (s *Service) Doses(ctx context.Context, encounterID uuid.UUID) ([]dose.Equivalent, error) {
	return s.repo.DosesByEncounter(ctx, encounterID)
}

// Scores returns the per-window severity rows derived for one encounter.
func (s *Service) Scores(ctx context.Context, encounterID uuid.UUID) ([]score.WindowScore, error) {
	return s.repo.ScoresByEncounter(ctx, encounterID)
}
