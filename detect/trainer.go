package detect

import "gonum.org/v1/gonum/stat"

// ambientSigma scales the spread added on top of the ambient mean when
// deriving a threshold.
const ambientSigma = 2.0

// AmbientTrainer derives thresholds from samples collected while the room is
// empty: threshold = mean + ambientSigma*stddev of the training window.
type AmbientTrainer struct {
	wander []float64
	jitter []float64
}

// NewAmbientTrainer returns an idle trainer.
func NewAmbientTrainer() *AmbientTrainer {
	return &AmbientTrainer{}
}

// Start discards any previous training window.
func (t *AmbientTrainer) Start() {
	t.wander = t.wander[:0]
	t.jitter = t.jitter[:0]
}

// Feed records one ambient sample.
func (t *AmbientTrainer) Feed(wander, jitter float64) {
	t.wander = append(t.wander, wander)
	t.jitter = append(t.jitter, jitter)
}

// Stop returns the derived thresholds. With no samples both thresholds are
// zero, which downstream treats as uncalibrated.
func (t *AmbientTrainer) Stop() (wanderThreshold, jitterThreshold float64) {
	return ambientThreshold(t.wander), ambientThreshold(t.jitter)
}

func ambientThreshold(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean, std := stat.MeanStdDev(samples, nil)
	if len(samples) < 2 {
		std = 0
	}
	return mean + ambientSigma*std
}
