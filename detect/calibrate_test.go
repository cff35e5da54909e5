package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presence-go/timeutil"
)

func TestCalibratorLifecycle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	trainer := NewAmbientTrainer()
	c := NewCalibrator(trainer, clock)

	assert.False(t, c.Active())
	_, ok := c.Stop()
	assert.False(t, ok)

	c.Start(DefaultCalibrationDuration)
	assert.True(t, c.Active())
	c.Feed(0.1, 0.01)
	c.Feed(0.1, 0.01)

	cal, ok := c.Stop()
	assert.True(t, ok)
	assert.False(t, c.Active())
	// Identical samples train threshold = mean with zero spread.
	assert.InDelta(t, 0.1, cal.WanderThreshold, 1e-9)
	assert.InDelta(t, 0.01, cal.JitterThreshold, 1e-9)
}

func TestCalibratorFeedIgnoredWhileIdle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	trainer := NewAmbientTrainer()
	c := NewCalibrator(trainer, clock)

	c.Feed(100, 100)
	c.Start(DefaultCalibrationDuration)
	c.Feed(0.2, 0.02)
	cal, ok := c.Stop()
	assert.True(t, ok)
	// Only the sample fed while active counts.
	assert.InDelta(t, 0.2, cal.WanderThreshold, 1e-9)
}

func TestCalibratorAutoStopTiming(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	c := NewCalibrator(NewAmbientTrainer(), clock)
	c.Start(30 * time.Second)

	clock.Advance(29999 * time.Millisecond)
	assert.False(t, c.Expired())
	assert.Equal(t, time.Millisecond, c.Remaining())

	clock.Advance(time.Millisecond)
	assert.True(t, c.Expired())
	assert.Equal(t, time.Duration(0), c.Remaining())

	// Well past the deadline it stays expired until stopped.
	clock.Advance(time.Hour)
	assert.True(t, c.Expired())
	_, ok := c.Stop()
	assert.True(t, ok)
	assert.False(t, c.Expired())
}

func TestCalibratorZeroDurationNeverExpires(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	c := NewCalibrator(NewAmbientTrainer(), clock)
	c.Start(0)

	clock.Advance(24 * time.Hour)
	assert.False(t, c.Expired())
	assert.Equal(t, time.Duration(0), c.Remaining())
	assert.True(t, c.Active())
}

func TestCalibratorRestartResetsCountdown(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	c := NewCalibrator(NewAmbientTrainer(), clock)
	c.Start(30 * time.Second)
	clock.Advance(20 * time.Second)

	c.Start(30 * time.Second)
	clock.Advance(20 * time.Second)
	assert.False(t, c.Expired())
	assert.Equal(t, 10*time.Second, c.Remaining())
}

func TestAmbientTrainerThresholds(t *testing.T) {
	tr := NewAmbientTrainer()
	tr.Start()

	// No samples: zero thresholds, treated as uncalibrated downstream.
	w, j := tr.Stop()
	assert.Equal(t, 0.0, w)
	assert.Equal(t, 0.0, j)

	tr.Start()
	tr.Feed(1, 10)
	tr.Feed(3, 10)
	w, j = tr.Stop()
	// mean 2, sample stddev sqrt(2): threshold mean + 2*stddev.
	assert.InDelta(t, 2+2*1.4142135623730951, w, 1e-9)
	assert.InDelta(t, 10.0, j, 1e-9)

	// Start discards the previous window.
	tr.Start()
	tr.Feed(5, 5)
	w, j = tr.Stop()
	assert.InDelta(t, 5.0, w, 1e-9)
	assert.InDelta(t, 5.0, j, 1e-9)
}
