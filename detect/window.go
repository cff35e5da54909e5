package detect

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// WindowCap is the ring buffer capacity per statistic.
	WindowCap = 25
	// WarmupMin is the number of samples required before the window
	// produces smoothed output.
	WarmupMin = 5
	// TrimPercent is the total fraction of sorted samples discarded by
	// the trimmed mean (half from each end).
	TrimPercent = 0.5
)

// Window holds the last WindowCap (wander, jitter) samples. Smoothing runs
// over the whole backing array, so slots not yet written contribute zeros
// until the ring has filled once.
type Window struct {
	wander [WindowCap]float64
	jitter [WindowCap]float64
	count  uint32
}

// Push overwrites the slot at count mod WindowCap and advances the count.
func (w *Window) Push(wander, jitter float64) {
	i := w.count % WindowCap
	w.wander[i] = wander
	w.jitter[i] = jitter
	w.count++
}

// Count returns the total number of samples pushed.
func (w *Window) Count() uint32 { return w.count }

// Ready reports whether the warm-up threshold has been reached.
func (w *Window) Ready() bool { return w.count >= WarmupMin }

// WanderTrimMean returns the trimmed mean of the wander buffer.
func (w *Window) WanderTrimMean() float64 {
	return TrimMean(w.wander[:], TrimPercent)
}

// JitterMedian returns the median of the jitter buffer.
func (w *Window) JitterMedian() float64 {
	return Median(w.jitter[:])
}

// RecentJitter returns up to n raw jitter samples, newest first.
func (w *Window) RecentJitter(n int) []float64 {
	if uint32(n) > w.count {
		n = int(w.count)
	}
	if n > WindowCap {
		n = WindowCap
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := (w.count - 1 - uint32(i)) % WindowCap
		out[i] = w.jitter[idx]
	}
	return out
}

// TrimMean sorts a copy of values, drops floor(len*percent/2) samples from
// each end and averages the rest.
func TrimMean(values []float64, percent float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	trim := int(float64(len(sorted)) * percent / 2)
	kept := sorted[trim : len(sorted)-trim]
	if len(kept) == 0 {
		return 0
	}
	return stat.Mean(kept, nil)
}

// Median sorts a copy of values and returns the middle element, or the mean
// of the two middle elements for even lengths.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
