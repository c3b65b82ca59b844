package cohort

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinpipe/clinpipe/internal/domain/attrition"
	"github.com/clinpipe/clinpipe/internal/domain/dose"
	"github.com/clinpipe/clinpipe/internal/domain/episode"
	"github.com/clinpipe/clinpipe/internal/domain/score"
	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepo returns the PostgreSQL-backed repository.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// -- Source records --

func (r *repoPG) ListEncounters(ctx context.Context) ([]*Encounter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, start_time, end_time
		FROM encounter ORDER BY start_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Encounter
	for rows.Next() {
		var enc Encounter
		if err := rows.Scan(&enc.ID, &enc.PatientID, &enc.Start, &enc.End); err != nil {
			return nil, err
		}
		out = append(out, &enc)
	}
	return out, rows.Err()
}

func (r *repoPG) PatientInfo(ctx context.Context, encounterID uuid.UUID) (*PatientInfo, error) {
	var info PatientInfo
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.age_at_admission, p.mass_kg
		FROM patient p
		JOIN encounter e ON e.patient_id = p.id
		WHERE e.id = $1`, encounterID).
		Scan(&info.PatientID, &info.AgeAtAdmission, &info.MassKg)
	if err != nil {
		return nil, fmt.Errorf("patient info for encounter %s: %w", encounterID, err)
	}
	return &info, nil
}

func (r *repoPG) LocationIntervals(ctx context.Context, encounterID uuid.UUID) ([]LocationInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, start_time, end_time, category
		FROM location_interval WHERE encounter_id = $1
		ORDER BY start_time, id`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LocationInterval
	for rows.Next() {
		var li LocationInterval
		if err := rows.Scan(&li.ID, &li.EncounterID, &li.Start, &li.End, &li.Category); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (r *repoPG) DeviceObservations(ctx context.Context, encounterID uuid.UUID) ([]episode.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT encounter_id, obs_time, device, active
		FROM device_observation WHERE encounter_id = $1
		ORDER BY obs_time`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []episode.Observation
	for rows.Next() {
		var obs episode.Observation
		if err := rows.Scan(&obs.EncounterID, &obs.Time, &obs.Device, &obs.Active); err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

func (r *repoPG) DoseRecords(ctx context.Context, encounterID uuid.UUID) ([]dose.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT encounter_id, rec_time, agent, rate
		FROM dose_record WHERE encounter_id = $1
		ORDER BY rec_time`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dose.Record
	for rows.Next() {
		var rec dose.Record
		if err := rows.Scan(&rec.EncounterID, &rec.Time, &rec.Agent, &rec.Rate); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repoPG) Observations(ctx context.Context, encounterID uuid.UUID) ([]score.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT encounter_id, obs_time, source, value
		FROM observation WHERE encounter_id = $1
		ORDER BY obs_time`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.Observation
	for rows.Next() {
		var obs score.Observation
		if err := rows.Scan(&obs.EncounterID, &obs.Time, &obs.Source, &obs.Value); err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// -- Runs --

func (r *repoPG) CreateRun(ctx context.Context, run *Run) error {
	errsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO derivation_run (id, status, started_at, finished_at, total, included, derived, errors)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		run.ID, run.Status, run.StartedAt, run.FinishedAt, run.Total, run.Included, run.Derived, errsJSON)
	return err
}

func (r *repoPG) UpdateRun(ctx context.Context, run *Run) error {
	errsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE derivation_run
		SET status=$2, finished_at=$3, total=$4, included=$5, derived=$6, errors=$7
		WHERE id = $1`,
		run.ID, run.Status, run.FinishedAt, run.Total, run.Included, run.Derived, errsJSON)
	return err
}

func (r *repoPG) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run      Run
		errsJSON []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, status, started_at, finished_at, total, included, derived, errors
		FROM derivation_run WHERE id = $1`, id).
		Scan(&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Included, &run.Derived, &errsJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(errsJSON, &run.Errors); err != nil {
		return nil, fmt.Errorf("decode error manifest: %w", err)
	}
	return &run, nil
}

func (r *repoPG) SaveAttrition(ctx context.Context, runID uuid.UUID, steps []attrition.Step) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM attrition_step WHERE run_id = $1`, runID); err != nil {
			return err
		}
		for _, step := range steps {
			if _, err := tx.Exec(ctx, `
				INSERT INTO attrition_step (run_id, seq, label, predicate, count)
				VALUES ($1,$2,$3,$4,$5)`,
				runID, step.Seq, step.Label, step.Predicate, step.Count); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) AttritionLog(ctx context.Context, runID uuid.UUID) ([]attrition.Step, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, label, predicate, count
		FROM attrition_step WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attrition.Step
	for rows.Next() {
		var step attrition.Step
		if err := rows.Scan(&step.Seq, &step.Label, &step.Predicate, &step.Count); err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

// -- Derived rows --

func (r *repoPG) ReplaceStays(ctx context.Context, encounterID uuid.UUID, stays []stitch.Stitched) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM derived_stay WHERE encounter_id = $1`, encounterID); err != nil {
			return err
		}
		for _, st := range stays {
			members, err := json.Marshal(st.MemberIDs)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO derived_stay (id, encounter_id, start_time, end_time, category, member_ids)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				st.ID, st.EncounterID, st.Start, st.End, st.Category, members); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) ReplaceEpisodes(ctx context.Context, encounterID uuid.UUID, episodes []episode.Episode) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM derived_episode WHERE encounter_id = $1`, encounterID); err != nil {
			return err
		}
		for _, ep := range episodes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO derived_episode (id, encounter_id, device, start_time, end_time, open)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				ep.ID, ep.EncounterID, ep.Device, ep.Start, ep.End, ep.Open); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) ReplaceDoses(ctx context.Context, encounterID uuid.UUID, doses []dose.Equivalent) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM derived_dose WHERE encounter_id = $1`, encounterID); err != nil {
			return err
		}
		for _, eq := range doses {
			if _, err := tx.Exec(ctx, `
				INSERT INTO derived_dose (encounter_id, bucket_start, value)
				VALUES ($1,$2,$3)`,
				eq.EncounterID, eq.BucketStart, eq.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) ReplaceScores(ctx context.Context, encounterID uuid.UUID, scores []score.WindowScore) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM derived_score WHERE encounter_id = $1`, encounterID); err != nil {
			return err
		}
		for _, ws := range scores {
			subs, err := json.Marshal(ws.Subscores)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO derived_score (encounter_id, window_start, window_end, subscores, total, complete)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				ws.EncounterID, ws.WindowStart, ws.WindowEnd, subs, ws.Total, ws.Complete); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) StaysByEncounter(ctx context.Context, encounterID uuid.UUID) ([]stitch.Stitched, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, start_time, end_time, category, member_ids
		FROM derived_stay WHERE encounter_id = $1 ORDER BY start_time`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stitch.Stitched
	for rows.Next() {
		var (
			st      stitch.Stitched
			members []byte
		)
		if err := rows.Scan(&st.ID, &st.EncounterID, &st.Start, &st.End, &st.Category, &members); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(members, &st.MemberIDs); err != nil {
			return nil, fmt.Errorf("decode stay members: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *repoPG) EpisodesByEncounter(ctx context.Context, encounterID uuid.UUID) ([]episode.Episode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, device, start_time, end_time, open
		FROM derived_episode WHERE encounter_id = $1 ORDER BY device, start_time`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []episode.Episode
	for rows.Next() {
		var ep episode.Episode
		if err := rows.Scan(&ep.ID, &ep.EncounterID, &ep.Device, &ep.Start, &ep.End, &ep.Open); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (r *repoPG) DosesByEncounter(ctx context.Context, encounterID uuid.UUID) ([]dose.Equivalent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT encounter_id, bucket_start, value
		FROM derived_dose WHERE encounter_id = $1 ORDER BY bucket_start`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dose.Equivalent
	for rows.Next() {
		var eq dose.Equivalent
		if err := rows.Scan(&eq.EncounterID, &eq.BucketStart, &eq.Value); err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	return out, rows.Err()
}

func (r *repoPG) ScoresByEncounter(ctx context.Context, encounterID uuid.UUID) ([]score.WindowScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT encounter_id, window_start, window_end, subscores, total, complete
		FROM derived_score WHERE encounter_id = $1 ORDER BY window_start`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.WindowScore
	for rows.Next() {
		var (
			ws   score.WindowScore
			subs []byte
		)
		if err := rows.Scan(&ws.EncounterID, &ws.WindowStart, &ws.WindowEnd, &subs, &ws.Total, &ws.Complete); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(subs, &ws.Subscores); err != nil {
			return nil, fmt.Errorf("decode subscores: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}
