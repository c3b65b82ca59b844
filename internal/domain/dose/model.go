package dose

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Agent is a closed vasoactive-agent category.
type Agent string

const (
	AgentNorepinephrine Agent = "norepinephrine"
	AgentEpinephrine    Agent = "epinephrine"
	AgentDopamine       Agent = "dopamine"
	AgentVasopressin    Agent = "vasopressin"
	AgentPhenylephrine  Agent = "phenylephrine"
)

// Known reports whether a is one of the closed agent categories.
func (a Agent) Known() bool {
	switch a {
	case AgentNorepinephrine, AgentEpinephrine, AgentDopamine, AgentVasopressin, AgentPhenylephrine:
		return true
	}
	return false
}

// Record is one timestamped administered-dose entry. Rate carries the
// agent's native unit; weight-based agents are normalized per kilogram
// during equivalence conversion.
type Record struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	Time        time.Time `json:"time"`
	Agent       Agent     `json:"agent"`
	Rate        float64   `json:"rate"`
}

// Equivalent is the derived norepinephrine-equivalent scalar for one time
// bucket. Buckets with no dose records produce no row at all; zero dose and
// no data are distinct states.
type Equivalent struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	BucketStart time.Time `json:"bucket_start"`
	Value       float64   `json:"value"`
}

// MissingConversionInputError reports a weight-based conversion that could
// not run because the patient's mass is unknown. Fatal for the encounter,
// not the run.
type MissingConversionInputError struct {
	EncounterID uuid.UUID
	Agent       Agent
}

func (e *MissingConversionInputError) Error() string {
	return fmt.Sprintf("dose conversion for %s on encounter %s requires patient mass, which is unavailable", e.Agent, e.EncounterID)
}
