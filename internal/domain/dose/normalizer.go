package dose

import (
	"fmt"
	"sort"
	"time"

	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

// DefaultBucket is the default time-bucketing resolution.
const DefaultBucket = time.Hour

// DefaultWeights is the norepinephrine-equivalence table: each agent's rate
// is scaled into the dose contributed by the same rate of norepinephrine.
var DefaultWeights = map[Agent]float64{
	AgentNorepinephrine: 1.0,
	AgentEpinephrine:    1.0,
	AgentDopamine:       0.01,
	AgentVasopressin:    2.5,
	AgentPhenylephrine:  0.1,
}

// defaultPerKilogram marks agents whose recorded rate is a total rate that
// must be divided by patient mass before weighting.
var defaultPerKilogram = map[Agent]bool{
	AgentVasopressin: true,
}

// Config parameterizes one normalization pass. Weight tables are passed
// explicitly; there is no package-level mutable state.
type Config struct {
	// Bucket is the time resolution; defaults to DefaultBucket when zero.
	Bucket time.Duration

	// Weights maps each agent to its linear equivalence weight. Defaults
	// to DefaultWeights when nil.
	Weights map[Agent]float64

	// PerKilogram marks agents requiring division by patient mass.
	// Defaults to defaultPerKilogram when nil.
	PerKilogram map[Agent]bool

	// PatientMassKg is the patient's mass at admission; nil when unknown.
	PatientMassKg *float64
}

func (c Config) bucket() time.Duration {
	if c.Bucket <= 0 {
		return DefaultBucket
	}
	return c.Bucket
}

func (c Config) weights() map[Agent]float64 {
	if c.Weights == nil {
		return DefaultWeights
	}
	return c.Weights
}

func (c Config) perKilogram() map[Agent]bool {
	if c.PerKilogram == nil {
		return defaultPerKilogram
	}
	return c.PerKilogram
}

// Normalize collapses concurrent weighted infusions into one equivalent
// scalar per time bucket. Within a bucket, the most recent record per agent
// is the one that counts; agents absent from a bucket contribute zero.
// Buckets with no records at all produce no output row.
func Normalize(records []Record, cfg Config) ([]Equivalent, error) {
	if len(records) == 0 {
		return nil, nil
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	bucket := cfg.bucket()
	weights := cfg.weights()
	perKg := cfg.perKilogram()
	encID := sorted[0].EncounterID

	for _, rec := range sorted {
		if rec.Time.IsZero() {
			return nil, &stitch.OrderingError{EncounterID: rec.EncounterID, Reason: "dose record with null timestamp"}
		}
		if !rec.Agent.Known() {
			return nil, fmt.Errorf("dose record with unmapped agent %q", rec.Agent)
		}
		if _, ok := weights[rec.Agent]; !ok {
			return nil, fmt.Errorf("no equivalence weight configured for agent %q", rec.Agent)
		}
	}

	// Latest record per agent per bucket; chronological walk means a later
	// record simply overwrites an earlier one.
	type bucketDoses map[Agent]float64
	latest := make(map[time.Time]bucketDoses)
	var starts []time.Time

	for _, rec := range sorted {
		rate := rec.Rate
		if perKg[rec.Agent] {
			if cfg.PatientMassKg == nil || *cfg.PatientMassKg <= 0 {
				return nil, &MissingConversionInputError{EncounterID: rec.EncounterID, Agent: rec.Agent}
			}
			rate /= *cfg.PatientMassKg
		}

		start := rec.Time.Truncate(bucket)
		if _, seen := latest[start]; !seen {
			latest[start] = make(bucketDoses)
			starts = append(starts, start)
		}
		latest[start][rec.Agent] = rate
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]Equivalent, 0, len(starts))
	for _, start := range starts {
		var total float64
		for agent, rate := range latest[start] {
			total += weights[agent] * rate
		}
		out = append(out, Equivalent{EncounterID: encID, BucketStart: start, Value: total})
	}
	return out, nil
}
