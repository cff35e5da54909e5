// Package node runs the master and slave event loops. Each role owns its
// detection state inside a single goroutine fed by sample, packet and
// command channels; the only state shared with other goroutines is the
// published status snapshot, guarded by a mutex.
package node

import (
	"presence-go/detect"
	"presence-go/fusion"
)

// LinkSnapshot is one link's state as exposed to the presentation layer.
type LinkSnapshot struct {
	Active     bool    `json:"active"`
	Room       bool    `json:"room"`
	Motion     bool    `json:"move"`
	Wander     float64 `json:"wander"`
	Jitter     float64 `json:"jitter"`
	WanderSens float64 `json:"w_sens"`
	JitterSens float64 `json:"j_sens"`
}

// Snapshot is the read-only status consumed by the web layer and the status
// indicator. Field names mirror the wire payload pushed to clients.
type Snapshot struct {
	Room            bool                           `json:"room"`
	Motion          bool                           `json:"moving"`
	Calibrating     bool                           `json:"calibrating"`
	CalibRemaining  int                            `json:"calib_remaining"`
	WanderThreshold float64                        `json:"wander_th"`
	JitterThreshold float64                        `json:"jitter_th"`
	Links           [fusion.LinkCount]LinkSnapshot `json:"links"`
}

func linkSnapshots(links [fusion.LinkCount]fusion.Link) [fusion.LinkCount]LinkSnapshot {
	var out [fusion.LinkCount]LinkSnapshot
	for i, l := range links {
		out[i] = LinkSnapshot{
			Active:     l.Active,
			Room:       l.Room,
			Motion:     l.Motion,
			Wander:     l.Wander,
			Jitter:     l.Jitter,
			WanderSens: l.Sensitivity.Wander,
			JitterSens: l.Sensitivity.Jitter,
		}
	}
	return out
}

// Settings is the persistence collaborator. Missing keys keep built-in
// defaults; write failures are logged and otherwise ignored.
type Settings interface {
	PutFloat(key string, v float64) error
	GetFloat(key string) (float64, bool)
}

// Broadcaster sends one protocol datagram, fire-and-forget.
type Broadcaster interface {
	Send(payload []byte) error
}

// Indicator mirrors detection state on a local status light.
type Indicator interface {
	Update(room, motion, calibrating bool)
}

// Built-in defaults, overridden by persisted settings on boot.
const (
	DefaultWanderSensitivity = 0.15
	DefaultJitterSensitivity = 0.20

	// The master starts uncalibrated for presence but with a small
	// motion threshold so movement shows up before first calibration.
	DefaultMasterJitterThreshold = 0.0003

	// Slaves carry non-zero defaults so a factory-fresh node never
	// reports constant presence.
	DefaultSlaveWanderThreshold = 0.01
	DefaultSlaveJitterThreshold = 0.001
)

func defaultSensitivity() detect.Sensitivity {
	return detect.Sensitivity{
		Wander: DefaultWanderSensitivity,
		Jitter: DefaultJitterSensitivity,
	}
}
