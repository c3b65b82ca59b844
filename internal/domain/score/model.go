package score

import (
	"time"

	"github.com/google/uuid"
)

// Subsystem is a closed organ-subsystem category. Each contributes one
// ordinal subscore per window.
type Subsystem string

const (
	Respiration    Subsystem = "respiration"
	Coagulation    Subsystem = "coagulation"
	Liver          Subsystem = "liver"
	Cardiovascular Subsystem = "cardiovascular"
	Neurologic     Subsystem = "neurologic"
	Renal          Subsystem = "renal"
)

// Subsystems returns the closed subsystem set in reporting order.
func Subsystems() []Subsystem {
	return []Subsystem{Respiration, Coagulation, Liver, Cardiovascular, Neurologic, Renal}
}

// Source is a closed physiological source-stream category. A subsystem may
// be fed by more than one source; disagreement resolves to the worse score.
type Source string

const (
	SourcePaO2FiO2    Source = "pao2_fio2"    // mmHg ratio
	SourcePlatelets   Source = "platelets"    // 10^3/uL
	SourceBilirubin   Source = "bilirubin"    // mg/dL
	SourceMAP         Source = "map"          // mmHg
	SourceNorepiEquiv Source = "norepi_equiv" // ug/kg/min equivalent
	SourceGCS         Source = "gcs"          // 3-15
	SourceCreatinine  Source = "creatinine"   // mg/dL
)

// MaxSubscore is the per-subsystem ordinal ceiling; MaxComposite bounds the
// composite score.
const (
	MaxSubscore  = 4
	MaxComposite = MaxSubscore * 6
)

// Observation is one timestamped value from a physiological source stream.
// Missingness is normalized upstream; every Observation carries a real value.
type Observation struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	Time        time.Time `json:"time"`
	Source      Source    `json:"source"`
	Value       float64   `json:"value"`
}

// State distinguishes how a window's subscore was obtained. A missing
// subscore is a first-class state, never coerced to zero: an absent
// observation must not read as a normal one.
type State string

const (
	StateKnown          State = "known"           // observed inside the window
	StateCarriedForward State = "carried_forward" // last prior observation reused
	StateMissing        State = "missing"         // never observed for this encounter
)

// Subscore is one subsystem's ordinal severity for one window. Value is
// meaningful only when the state is not missing.
type Subscore struct {
	Subsystem Subsystem `json:"subsystem"`
	State     State     `json:"state"`
	Value     int       `json:"value"`
}

// WindowScore is the composite result for one window. Total is the sum of
// subscores and is valid only when Complete; callers must check the flag
// rather than treat a partial sum as a score.
type WindowScore struct {
	EncounterID uuid.UUID  `json:"encounter_id"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	Subscores   []Subscore `json:"subscores"`
	Total       int        `json:"total"`
	Complete    bool       `json:"complete"`
}

// SubscoreFor returns the subscore for one subsystem, or false when the
// window does not carry it.
func (w WindowScore) SubscoreFor(sub Subsystem) (Subscore, bool) {
	for _, s := range w.Subscores {
		if s.Subsystem == sub {
			return s, true
		}
	}
	return Subscore{}, false
}
