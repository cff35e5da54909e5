package node

import (
	"io"

	"github.com/sirupsen/logrus"
)

// fakeRadio records every datagram handed to Send.
type fakeRadio struct {
	sent [][]byte
}

func (f *fakeRadio) Send(payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.sent = append(f.sent, buf)
	return nil
}

// fakeSettings is an in-memory Settings implementation.
type fakeSettings struct {
	values map[string]float64
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]float64{}}
}

func (f *fakeSettings) PutFloat(key string, v float64) error {
	f.values[key] = v
	return nil
}

func (f *fakeSettings) GetFloat(key string) (float64, bool) {
	v, ok := f.values[key]
	return v, ok
}

// fixedTrainer hands back preset thresholds regardless of input.
type fixedTrainer struct {
	wander, jitter float64
	fed            int
}

func (t *fixedTrainer) Start()            { t.fed = 0 }
func (t *fixedTrainer) Feed(_, _ float64) { t.fed++ }

func (t *fixedTrainer) Stop() (float64, float64) { return t.wander, t.jitter }

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
