package episode

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

// DefaultLiberationThreshold is the minimum inactive gap that ends an
// episode rather than being bridged.
const DefaultLiberationThreshold = 24 * time.Hour

// Config parameterizes episode detection for one encounter.
type Config struct {
	// LiberationThreshold splits two active runs into separate episodes
	// when the inactive gap between them is at or above this duration.
	// Defaults to DefaultLiberationThreshold when zero.
	LiberationThreshold time.Duration
}

func (c Config) threshold() time.Duration {
	if c.LiberationThreshold <= 0 {
		return DefaultLiberationThreshold
	}
	return c.LiberationThreshold
}

// Detect derives device episodes from a state-observation stream. The stream
// may interleave several device categories; episodes are detected per device
// and returned ordered by device then start time. A stream with no active
// observations yields zero episodes.
func Detect(observations []Observation, cfg Config) ([]Episode, error) {
	byDevice := make(map[Device][]Observation)
	var devices []Device
	for _, obs := range observations {
		if !obs.Device.Known() {
			return nil, fmt.Errorf("device observation with unmapped category %q", obs.Device)
		}
		if _, seen := byDevice[obs.Device]; !seen {
			devices = append(devices, obs.Device)
		}
		byDevice[obs.Device] = append(byDevice[obs.Device], obs)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })

	var out []Episode
	for _, dev := range devices {
		episodes, err := detectOne(dev, byDevice[dev], cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, episodes...)
	}
	return out, nil
}

// detectOne pairs each transition to the active state with the next inactive
// observation (or the stream end), then stitches the resulting runs across
// sub-threshold gaps.
func detectOne(dev Device, stream []Observation, cfg Config) ([]Episode, error) {
	sorted := make([]Observation, len(stream))
	copy(sorted, stream)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	for _, obs := range sorted {
		if obs.Time.IsZero() {
			return nil, &stitch.OrderingError{EncounterID: obs.EncounterID, Reason: "device observation with null timestamp"}
		}
	}

	var (
		runs     []stitch.Interval
		openRuns = make(map[uuid.UUID]bool)
		active   bool
		runStart time.Time
	)
	encID := sorted[0].EncounterID

	flush := func(end time.Time, open bool) {
		iv := stitch.Interval{
			ID:          stitch.DeriveID(encID, "run/"+string(dev), len(runs)),
			EncounterID: encID,
			Start:       runStart,
			End:         end,
			Category:    string(dev),
		}
		runs = append(runs, iv)
		openRuns[iv.ID] = open
	}

	for _, obs := range sorted {
		switch {
		case obs.Active && !active:
			active = true
			runStart = obs.Time
		case !obs.Active && active:
			active = false
			flush(obs.Time, false)
		}
	}
	if active {
		flush(sorted[len(sorted)-1].Time, true)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	stitched, err := stitch.Stitch(runs, stitch.Config{
		GapThreshold: cfg.threshold(),
		StrictGap:    true,
		Kind:         "episode/" + string(dev),
	})
	if err != nil {
		return nil, err
	}

	episodes := make([]Episode, 0, len(stitched))
	for _, s := range stitched {
		last := s.MemberIDs[len(s.MemberIDs)-1]
		episodes = append(episodes, Episode{
			ID:          s.ID,
			EncounterID: s.EncounterID,
			Device:      dev,
			Start:       s.Start,
			End:         s.End,
			Open:        openRuns[last],
		})
	}
	return episodes, nil
}
