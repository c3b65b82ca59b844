package episode

import (
	"time"

	"github.com/google/uuid"
)

// Device is a closed device category. Detect rejects observations carrying a
// category outside this set; nothing is silently scored.
type Device string

const (
	DeviceInvasiveVent    Device = "invasive_vent"
	DeviceNonInvasiveVent Device = "noninvasive_vent"
	DeviceHighFlowOxygen  Device = "high_flow_oxygen"
	DeviceRenalReplace    Device = "renal_replacement"
)

// Known reports whether d is one of the closed device categories.
func (d Device) Known() bool {
	switch d {
	case DeviceInvasiveVent, DeviceNonInvasiveVent, DeviceHighFlowOxygen, DeviceRenalReplace:
		return true
	}
	return false
}

// Observation is one timestamped device-state record for an encounter.
// Streams arrive time-ordered per the upstream contract; the detector
// re-sorts defensively and surfaces corrupt timestamps.
type Observation struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	Time        time.Time `json:"time"`
	Device      Device    `json:"device"`
	Active      bool      `json:"active"`
}

// Episode is a maximal run of device activity, bridged across inactive gaps
// shorter than the liberation threshold. Episodes for one encounter are
// disjoint and time-ordered.
type Episode struct {
	ID          uuid.UUID `json:"id"`
	EncounterID uuid.UUID `json:"encounter_id"`
	Device      Device    `json:"device"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`

	// Open marks an episode still active at the end of the stream; End
	// then holds the last observation time, not a true liberation time.
	Open bool `json:"open"`
}

// Duration returns the episode length.
func (e Episode) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
