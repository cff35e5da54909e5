package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presence-go/detect"
	"presence-go/timeutil"
)

func testSensitivity() detect.Sensitivity {
	return detect.Sensitivity{Wander: 0.15, Jitter: 0.20}
}

func TestRegistryDefaults(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := NewRegistry(clock, testSensitivity())

	links := r.Links()
	for i := range links {
		assert.False(t, links[i].Active)
		assert.Equal(t, testSensitivity(), links[i].Sensitivity)
	}
}

func TestRegistryUpdateAndExpire(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := NewRegistry(clock, testSensitivity())

	r.UpdateLocal(0.1, 0.01)
	r.UpdateRemote(1, true, false, 0.2, 0.02, -40)

	links := r.Links()
	assert.True(t, links[LinkLocal].Active)
	assert.True(t, links[1].Active)
	assert.True(t, links[1].Room)
	assert.Equal(t, int8(-40), links[1].RSSI)
	assert.False(t, links[2].Active)

	// Just under the timeout both links stay live.
	clock.Advance(LinkTimeout - time.Millisecond)
	r.Expire()
	links = r.Links()
	assert.True(t, links[LinkLocal].Active)
	assert.True(t, links[1].Active)

	// A fresh report from link 1 restarts its clock; the local link ages out.
	r.UpdateRemote(1, false, false, 0.2, 0.02, -40)
	clock.Advance(time.Millisecond)
	r.Expire()
	links = r.Links()
	assert.False(t, links[LinkLocal].Active)
	assert.True(t, links[1].Active)

	clock.Advance(LinkTimeout)
	r.Expire()
	assert.False(t, r.Links()[1].Active)
}

func TestRegistryIgnoresBadRemoteID(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := NewRegistry(clock, testSensitivity())

	// The local slot is never written by a remote report.
	r.UpdateRemote(0, true, true, 1, 1, 0)
	r.UpdateRemote(3, true, true, 1, 1, 0)
	r.UpdateRemote(-1, true, true, 1, 1, 0)
	for _, l := range r.Links() {
		assert.False(t, l.Active)
	}
}

func TestRegistrySetLocalStatus(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := NewRegistry(clock, testSensitivity())

	r.UpdateLocal(0.1, 0.01)
	r.SetLocalStatus(detect.Result{Room: true, Motion: true})
	l := r.Links()[LinkLocal]
	assert.True(t, l.Room)
	assert.True(t, l.Motion)
}

func TestRegistrySetSensitivityRejectsOutOfRange(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	r := NewRegistry(clock, testSensitivity())

	assert.True(t, r.SetSensitivity(1, 0.5, 0.6))
	assert.Equal(t, detect.Sensitivity{Wander: 0.5, Jitter: 0.6}, r.Sensitivity(1))

	// Out-of-range values are rejected per field, not clamped.
	assert.True(t, r.SetSensitivity(1, 9.9, 0.7))
	assert.Equal(t, detect.Sensitivity{Wander: 0.5, Jitter: 0.7}, r.Sensitivity(1))

	assert.False(t, r.SetSensitivity(1, 0, -3))
	assert.Equal(t, detect.Sensitivity{Wander: 0.5, Jitter: 0.7}, r.Sensitivity(1))

	// Bad link index changes nothing.
	assert.False(t, r.SetSensitivity(3, 0.5, 0.5))
	assert.False(t, r.SetSensitivity(-1, 0.5, 0.5))
}
