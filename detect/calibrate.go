package detect

import (
	"time"

	"presence-go/timeutil"
)

// DefaultCalibrationDuration is how long the fusing node trains before
// auto-stopping.
const DefaultCalibrationDuration = 30 * time.Second

// Trainer accumulates ambient samples during calibration and emits detection
// thresholds when training stops.
type Trainer interface {
	Start()
	Feed(wander, jitter float64)
	// Stop ends training and returns the derived thresholds.
	Stop() (wanderThreshold, jitterThreshold float64)
}

// Calibrator is the per-node training state machine: Idle -> Training -> Idle.
type Calibrator struct {
	clock     timeutil.Clock
	trainer   Trainer
	active    bool
	startedAt time.Time
	duration  time.Duration
}

// NewCalibrator wires a trainer to a clock.
func NewCalibrator(trainer Trainer, clock timeutil.Clock) *Calibrator {
	return &Calibrator{clock: clock, trainer: trainer}
}

// Active reports whether training is in progress.
func (c *Calibrator) Active() bool { return c.active }

// Start begins training. A zero duration disables the countdown; the
// controller then stops only on an explicit Stop. Starting while already
// training restarts the countdown.
func (c *Calibrator) Start(duration time.Duration) {
	c.active = true
	c.startedAt = c.clock.Now()
	c.duration = duration
	c.trainer.Start()
}

// Feed forwards a raw sample to the trainer while training.
func (c *Calibrator) Feed(wander, jitter float64) {
	if c.active {
		c.trainer.Feed(wander, jitter)
	}
}

// Stop ends training and returns the trained thresholds. The second return
// is false when the calibrator was idle.
func (c *Calibrator) Stop() (Calibration, bool) {
	if !c.active {
		return Calibration{}, false
	}
	c.active = false
	w, j := c.trainer.Stop()
	return Calibration{WanderThreshold: w, JitterThreshold: j}, true
}

// Expired reports whether the countdown has run out. Checked periodically by
// the master's control tick; never true for a zero duration.
func (c *Calibrator) Expired() bool {
	if !c.active || c.duration <= 0 {
		return false
	}
	return c.clock.Since(c.startedAt) >= c.duration
}

// Remaining returns the time left on the countdown, at least zero.
func (c *Calibrator) Remaining() time.Duration {
	if !c.active || c.duration <= 0 {
		return 0
	}
	left := c.duration - c.clock.Since(c.startedAt)
	if left < 0 {
		return 0
	}
	return left
}
