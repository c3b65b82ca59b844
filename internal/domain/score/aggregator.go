package score

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinpipe/clinpipe/internal/domain/stitch"
)

// DefaultWindow is the default scoring window size.
const DefaultWindow = time.Hour

// Config parameterizes one aggregation pass over a single encounter.
type Config struct {
	EncounterID uuid.UUID

	// Window defaults to DefaultWindow when zero.
	Window time.Duration

	// Origin aligns the first window; conventionally the stay start.
	Origin time.Time

	// End bounds the last window; conventionally the stay end.
	End time.Time
}

func (c Config) window() time.Duration {
	if c.Window <= 0 {
		return DefaultWindow
	}
	return c.Window
}

// cursor walks one source stream monotonically across windows. last holds
// the most recent observation at or before the current window end.
type cursor struct {
	stream []Observation
	next   int
	last   *Observation
}

func (c *cursor) advance(windowEnd time.Time) {
	for c.next < len(c.stream) && !c.stream[c.next].Time.After(windowEnd) {
		c.last = &c.stream[c.next]
		c.next++
	}
}

// Aggregate computes one composite severity row per window. For each
// subsystem the most recent qualifying observation at or before the window
// end is banded into an ordinal subscore; a subsystem with no new
// observation carries its last value forward, and a subsystem never observed
// stays missing, which marks the whole window incomplete. When two sources
// feed one subsystem the worse band wins. O(n) over the observation count:
// each stream is consumed once by a monotonic cursor, never re-scanned.
func Aggregate(observations []Observation, cfg Config) ([]WindowScore, error) {
	if cfg.Origin.IsZero() || cfg.End.IsZero() {
		return nil, fmt.Errorf("aggregation window alignment requires origin and end")
	}
	if cfg.End.Before(cfg.Origin) {
		return nil, &stitch.OrderingError{EncounterID: cfg.EncounterID, Reason: "window end precedes origin"}
	}

	cursors := make(map[Source]*cursor)
	for _, obs := range observations {
		if obs.Time.IsZero() {
			return nil, &stitch.OrderingError{EncounterID: obs.EncounterID, Reason: "observation with null timestamp"}
		}
		if _, ok := SubsystemOf(obs.Source); !ok {
			return nil, fmt.Errorf("unmapped observation source %q", obs.Source)
		}
		c, ok := cursors[obs.Source]
		if !ok {
			c = &cursor{}
			cursors[obs.Source] = c
		}
		c.stream = append(c.stream, obs)
	}
	for _, c := range cursors {
		sort.SliceStable(c.stream, func(i, j int) bool { return c.stream[i].Time.Before(c.stream[j].Time) })
	}

	window := cfg.window()
	var out []WindowScore

	for start := cfg.Origin; start.Before(cfg.End); start = start.Add(window) {
		end := start.Add(window)
		for _, c := range cursors {
			c.advance(end)
		}

		ws := WindowScore{
			EncounterID: cfg.EncounterID,
			WindowStart: start,
			WindowEnd:   end,
			Complete:    true,
		}

		for _, sub := range Subsystems() {
			ss := combine(sub, cursors, start)
			if ss.State == StateMissing {
				ws.Complete = false
			} else {
				ws.Total += ss.Value
			}
			ws.Subscores = append(ws.Subscores, ss)
		}
		if !ws.Complete {
			// A partial sum is not a score.
			ws.Total = 0
		}
		out = append(out, ws)
	}
	return out, nil
}

// combine resolves one subsystem's subscore for the window starting at
// start. Among the subsystem's sources that have ever been observed, the
// worse band wins; the state is Known if any contributing source produced a
// fresh observation inside the window, CarriedForward otherwise.
func combine(sub Subsystem, cursors map[Source]*cursor, start time.Time) Subscore {
	ss := Subscore{Subsystem: sub, State: StateMissing}

	for _, src := range SourcesFor(sub) {
		c, ok := cursors[src]
		if !ok || c.last == nil {
			continue
		}
		// advance already bounded c.last at the window end, so a fresh
		// observation is one at or after the window start.
		state := StateCarriedForward
		if !c.last.Time.Before(start) {
			state = StateKnown
		}

		band := Band(src, c.last.Value)
		if ss.State == StateMissing || band > ss.Value {
			ss.Value = band
		}
		if ss.State != StateKnown {
			ss.State = state
		}
	}
	return ss
}
