package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-go/detect"
	"presence-go/radio"
	"presence-go/sensing"
	"presence-go/timeutil"
)

func newTestSlave(t *testing.T, clock timeutil.Clock, r Broadcaster, settings Settings) *Slave {
	t.Helper()
	return NewSlave(SlaveOptions{
		NodeID:   1,
		Log:      quietLog(),
		Clock:    clock,
		Settings: settings,
		Radio:    r,
	})
}

func TestSlaveReportsAfterWarmup(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := &fakeRadio{}
	s := newTestSlave(t, clock, r, newFakeSettings())

	// Below warm-up nothing goes out.
	for i := 0; i < detect.WarmupMin-1; i++ {
		s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.0005, RSSI: -55})
		clock.Advance(time.Second)
	}
	assert.Empty(t, r.sent)

	s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.0005, RSSI: -55})
	require.Len(t, r.sent, 1)

	msg, err := radio.Decode(r.sent[0])
	require.NoError(t, err)
	rep, ok := msg.(*radio.DetectionReport)
	require.True(t, ok)
	assert.Equal(t, uint8(1), rep.NodeID)
	assert.Equal(t, int8(-55), rep.RSSI)
	assert.Equal(t, uint32(clock.Now().UnixMilli()), rep.Timestamp)
}

func TestSlaveReportThrottle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := &fakeRadio{}
	s := newTestSlave(t, clock, r, newFakeSettings())

	for i := 0; i < detect.WarmupMin; i++ {
		s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.0005})
	}
	require.Len(t, r.sent, 1)

	// Samples inside the throttle window classify but do not report.
	clock.Advance(50 * time.Millisecond)
	s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.0005})
	assert.Len(t, r.sent, 1)

	clock.Advance(50 * time.Millisecond)
	s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.0005})
	assert.Len(t, r.sent, 2)
}

func TestSlaveVerdictUsesOwnCalibration(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := &fakeRadio{}
	s := newTestSlave(t, clock, r, newFakeSettings())

	// Factory defaults: wander_th 0.01, sens 0.15. 0.1*0.15 = 0.015 > 0.01.
	for i := 0; i < detect.WindowCap; i++ {
		s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0})
		clock.Advance(200 * time.Millisecond)
	}
	assert.True(t, s.Status().Room)

	last := r.sent[len(r.sent)-1]
	msg, err := radio.Decode(last)
	require.NoError(t, err)
	rep := msg.(*radio.DetectionReport)
	assert.True(t, rep.Room)
	assert.InDelta(t, 0.1, float64(rep.Wander), 1e-6)
}

func TestSlaveCalibrationCycle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := &fakeRadio{}
	settings := newFakeSettings()
	s := NewSlave(SlaveOptions{
		NodeID:   1,
		Log:      quietLog(),
		Clock:    clock,
		Trainer:  &fixedTrainer{wander: 0.04, jitter: 0.004},
		Settings: settings,
		Radio:    r,
	})

	s.handlePacket(radio.CalibrationStart{}.Encode())

	// While training: status shows calibrating and no reports leave the
	// node, so the master sees this link age out.
	for i := 0; i < detect.WindowCap; i++ {
		s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.001})
		clock.Advance(200 * time.Millisecond)
	}
	assert.True(t, s.Status().Calibrating)
	assert.Empty(t, r.sent)

	// Slaves have no countdown; only an explicit stop ends training.
	clock.Advance(time.Hour)
	s.handleSample(sensing.Sample{Wander: 0.1, Jitter: 0.001})
	assert.True(t, s.Status().Calibrating)

	s.handlePacket(radio.CalibrationStop{}.Encode())
	assert.Equal(t, 0.04, s.cal.WanderThreshold)
	assert.Equal(t, 0.004, s.cal.JitterThreshold)
	v, ok := settings.GetFloat("wander_th")
	assert.True(t, ok)
	assert.Equal(t, 0.04, v)

	// A stop without a matching start changes nothing.
	s.handlePacket(radio.CalibrationStop{}.Encode())
	assert.Equal(t, 0.04, s.cal.WanderThreshold)
}

func TestSlaveSetThresholdsApplied(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	settings := newFakeSettings()
	s := newTestSlave(t, clock, &fakeRadio{}, settings)

	msg := radio.SetThresholds{Wander: 0.07, Jitter: 0.007}
	s.handlePacket(msg.Encode())
	assert.InDelta(t, 0.07, s.cal.WanderThreshold, 1e-7)
	assert.InDelta(t, 0.007, s.cal.JitterThreshold, 1e-7)

	// Direct overrides are session-only, never persisted.
	_, ok := settings.GetFloat("wander_th")
	assert.False(t, ok)
}

func TestSlaveSensitivityTargetFilter(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	settings := newFakeSettings()
	s := newTestSlave(t, clock, &fakeRadio{}, settings)

	// Addressed to another node: ignored.
	other := radio.SetSensitivity{TargetNode: 2, Wander: 0.9, Jitter: 0.9}
	s.handlePacket(other.Encode())
	assert.Equal(t, DefaultWanderSensitivity, s.sens.Wander)

	// Addressed to us: applied and persisted.
	mine := radio.SetSensitivity{TargetNode: 1, Wander: 0.9, Jitter: 0.8}
	s.handlePacket(mine.Encode())
	assert.InDelta(t, 0.9, s.sens.Wander, 1e-7)
	assert.InDelta(t, 0.8, s.sens.Jitter, 1e-7)
	v, ok := settings.GetFloat("wander_sens")
	assert.True(t, ok)
	assert.InDelta(t, 0.9, v, 1e-7)
}

func TestSlaveSensitivityRejectsPerField(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s := newTestSlave(t, clock, &fakeRadio{}, newFakeSettings())

	// One good field applies, the bad one keeps its old value.
	msg := radio.SetSensitivity{TargetNode: 1, Wander: 42, Jitter: 0.8}
	s.handlePacket(msg.Encode())
	assert.Equal(t, DefaultWanderSensitivity, s.sens.Wander)
	assert.InDelta(t, 0.8, s.sens.Jitter, 1e-7)

	// Both bad: rejected outright.
	msg = radio.SetSensitivity{TargetNode: 1, Wander: 42, Jitter: -1}
	s.handlePacket(msg.Encode())
	assert.Equal(t, DefaultWanderSensitivity, s.sens.Wander)
	assert.InDelta(t, 0.8, s.sens.Jitter, 1e-7)
}

func TestSlaveIgnoresForeignTraffic(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	s := newTestSlave(t, clock, &fakeRadio{}, newFakeSettings())

	s.handlePacket([]byte{0x42, 1, 2, 3})
	s.handlePacket(nil)
	// Another slave's report is not a command and is dropped.
	rep := radio.DetectionReport{NodeID: 2, Room: true}
	s.handlePacket(rep.Encode())
	assert.False(t, s.Status().Calibrating)
	assert.False(t, s.Status().Room)
}

func TestSlaveRestoresPersistedSettings(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	settings := newFakeSettings()
	settings.PutFloat("wander_th", 0.03)
	settings.PutFloat("jitter_sens", 0.5)

	s := newTestSlave(t, clock, &fakeRadio{}, settings)
	assert.Equal(t, 0.03, s.cal.WanderThreshold)
	assert.Equal(t, DefaultSlaveJitterThreshold, s.cal.JitterThreshold)
	assert.Equal(t, 0.5, s.sens.Jitter)
	assert.Equal(t, DefaultWanderSensitivity, s.sens.Wander)
}
