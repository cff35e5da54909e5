package detect

// Detection thresholds and scaling limits. A wander threshold at or below
// ThresholdEpsilon means the node has never calibrated; in that state
// presence is never reported.
const (
	ThresholdEpsilon = 0.0001

	SensitivityMin = 0.001
	SensitivityMax = 5.0

	// Motion voting over the most recent raw jitter samples.
	motionVoteWindow = 5
	motionVoteMin    = 2
	motionFloor      = 0.0002
)

// Calibration holds the trained detection thresholds.
type Calibration struct {
	WanderThreshold float64
	JitterThreshold float64
}

// Valid reports whether presence detection is allowed at all.
func (c Calibration) Valid() bool {
	return c.WanderThreshold > ThresholdEpsilon
}

// Sensitivity scales a raw statistic before it is compared to its threshold.
// Higher values trigger on smaller signal changes.
type Sensitivity struct {
	Wander float64
	Jitter float64
}

// ValidSensitivity reports whether v is inside the accepted range.
// Out-of-range values are rejected by callers, not clamped.
func ValidSensitivity(v float64) bool {
	return v >= SensitivityMin && v <= SensitivityMax
}

// Result is a single node's classification outcome.
type Result struct {
	Room   bool
	Motion bool
}

// Classify applies the fusing node's local rule: each smoothed statistic is
// scaled by its sensitivity and compared against its threshold.
func Classify(wanderSmoothed, jitterSmoothed float64, cal Calibration, sens Sensitivity) Result {
	var r Result
	if cal.Valid() {
		r.Room = wanderSmoothed*sens.Wander > cal.WanderThreshold
	}
	if cal.JitterThreshold > 0 {
		r.Motion = jitterSmoothed*sens.Jitter > cal.JitterThreshold
	}
	return r
}

// ClassifyVoting applies the standalone node rule. Presence compares the
// smoothed wander once, same as Classify. Motion votes over the last
// motionVoteWindow raw jitter samples: a sample counts when its scaled value
// exceeds the threshold, or exceeds the jitter median while the raw value is
// above the noise floor. Two or more votes mean motion.
func ClassifyVoting(w *Window, cal Calibration, sens Sensitivity) Result {
	var r Result
	wanderSmoothed := w.WanderTrimMean()
	jitterMedian := w.JitterMedian()

	if cal.Valid() {
		r.Room = wanderSmoothed*sens.Wander > cal.WanderThreshold
	}

	if cal.JitterThreshold > ThresholdEpsilon {
		votes := 0
		for _, j := range w.RecentJitter(motionVoteWindow) {
			scaled := j * sens.Jitter
			if scaled > cal.JitterThreshold || (scaled > jitterMedian && j > motionFloor) {
				votes++
			}
		}
		r.Motion = votes >= motionVoteMin
	}
	return r
}
