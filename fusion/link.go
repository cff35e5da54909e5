package fusion

import (
	"time"

	"presence-go/detect"
	"presence-go/timeutil"
)

const (
	// LinkLocal is the fusing node's own detection stream.
	LinkLocal = 0
	// LinkCount is the fixed link table size: local plus two remotes.
	LinkCount = 3
	// LinkTimeout ages out a link that has stopped reporting.
	LinkTimeout = 3000 * time.Millisecond
)

// Link is one node's detection stream as seen by the fusing node.
type Link struct {
	Active     bool
	Room       bool
	Motion     bool
	Wander     float64
	Jitter     float64
	RSSI       int8
	LastUpdate time.Time

	Sensitivity detect.Sensitivity
}

// Registry tracks the three link states and their liveness. It is owned by
// the master event loop and must not be shared across goroutines.
type Registry struct {
	clock timeutil.Clock
	links [LinkCount]Link
}

// NewRegistry returns a registry with every link inactive and carrying the
// given default sensitivities.
func NewRegistry(clock timeutil.Clock, defaults detect.Sensitivity) *Registry {
	r := &Registry{clock: clock}
	for i := range r.links {
		r.links[i].Sensitivity = defaults
	}
	return r
}

// UpdateLocal stores the fusing node's own smoothed statistics. Room and
// motion for the local link are re-derived at fusion time so sensitivity
// changes apply immediately.
func (r *Registry) UpdateLocal(wander, jitter float64) {
	l := &r.links[LinkLocal]
	l.Active = true
	l.Wander = wander
	l.Jitter = jitter
	l.LastUpdate = r.clock.Now()
}

// UpdateRemote copies a received report into the link table. Remote nodes
// classify against their own calibration, so their verdicts are trusted
// as-is. Node ids outside 1..LinkCount-1 are ignored.
func (r *Registry) UpdateRemote(nodeID int, room, motion bool, wander, jitter float64, rssi int8) {
	if nodeID < 1 || nodeID >= LinkCount {
		return
	}
	l := &r.links[nodeID]
	l.Active = true
	l.Room = room
	l.Motion = motion
	l.Wander = wander
	l.Jitter = jitter
	l.RSSI = rssi
	l.LastUpdate = r.clock.Now()
}

// SetLocalStatus overwrites the local link's verdict after re-classification.
func (r *Registry) SetLocalStatus(res detect.Result) {
	r.links[LinkLocal].Room = res.Room
	r.links[LinkLocal].Motion = res.Motion
}

// SetSensitivity updates one link's sensitivity pair. Values outside the
// accepted range leave the corresponding field unchanged. It reports whether
// at least one field was applied.
func (r *Registry) SetSensitivity(idx int, wander, jitter float64) bool {
	if idx < 0 || idx >= LinkCount {
		return false
	}
	applied := false
	if detect.ValidSensitivity(wander) {
		r.links[idx].Sensitivity.Wander = wander
		applied = true
	}
	if detect.ValidSensitivity(jitter) {
		r.links[idx].Sensitivity.Jitter = jitter
		applied = true
	}
	return applied
}

// Sensitivity returns one link's sensitivity pair.
func (r *Registry) Sensitivity(idx int) detect.Sensitivity {
	return r.links[idx].Sensitivity
}

// Expire marks links inactive once they have gone quiet for LinkTimeout.
// Liveness is purely time based; there is no disconnect message.
func (r *Registry) Expire() {
	now := r.clock.Now()
	for i := range r.links {
		l := &r.links[i]
		if l.Active && now.Sub(l.LastUpdate) >= LinkTimeout {
			l.Active = false
		}
	}
}

// Links returns a copy of the link table.
func (r *Registry) Links() [LinkCount]Link {
	return r.links
}
