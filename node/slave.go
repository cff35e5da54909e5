package node

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"presence-go/detect"
	"presence-go/radio"
	"presence-go/sensing"
	"presence-go/store"
	"presence-go/timeutil"
)

// reportInterval throttles detection reports to the master.
const reportInterval = 100 * time.Millisecond

// SlaveOptions configures a remote sensing node.
type SlaveOptions struct {
	NodeID    uint8
	Log       *logrus.Logger
	Clock     timeutil.Clock
	Trainer   detect.Trainer
	Settings  Settings
	Radio     Broadcaster
	Indicator Indicator
}

// SlaveStatus is the slave's own verdict, published for its indicator and
// diagnostics.
type SlaveStatus struct {
	Room        bool `json:"room"`
	Motion      bool `json:"move"`
	Calibrating bool `json:"calibrating"`
}

// Slave classifies its own stream and reports the verdict to the master.
// It never fuses; calibration is driven entirely by received commands.
type Slave struct {
	id        uint8
	log       *logrus.Logger
	clock     timeutil.Clock
	window    *detect.Window
	calib     *detect.Calibrator
	cal       detect.Calibration
	sens      detect.Sensitivity
	settings  Settings
	radio     Broadcaster
	indicator Indicator

	packets  chan []byte
	lastSend time.Time

	mu     sync.RWMutex
	status SlaveStatus
}

// NewSlave builds a slave node and restores persisted settings.
func NewSlave(opts SlaveOptions) *Slave {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Trainer == nil {
		opts.Trainer = detect.NewAmbientTrainer()
	}

	s := &Slave{
		id:     opts.NodeID,
		log:    opts.Log,
		clock:  opts.Clock,
		window: &detect.Window{},
		calib:  detect.NewCalibrator(opts.Trainer, opts.Clock),
		cal: detect.Calibration{
			WanderThreshold: DefaultSlaveWanderThreshold,
			JitterThreshold: DefaultSlaveJitterThreshold,
		},
		sens:      defaultSensitivity(),
		settings:  opts.Settings,
		radio:     opts.Radio,
		indicator: opts.Indicator,
		packets:   make(chan []byte, 64),
	}
	s.loadSettings()
	return s
}

// Run consumes events until ctx is cancelled.
func (s *Slave) Run(ctx context.Context, samples <-chan sensing.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case smp, ok := <-samples:
			if !ok {
				return
			}
			s.handleSample(smp)
		case data := <-s.packets:
			s.handlePacket(data)
		}
	}
}

// HandleDatagram queues one received datagram for the event loop.
func (s *Slave) HandleDatagram(data []byte) {
	select {
	case s.packets <- data:
	default:
	}
}

// Status returns the last published verdict.
func (s *Slave) Status() SlaveStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Slave) handleSample(smp sensing.Sample) {
	s.window.Push(smp.Wander, smp.Jitter)
	s.calib.Feed(smp.Wander, smp.Jitter)
	if !s.window.Ready() {
		return
	}

	if s.calib.Active() {
		// No classification and no reports while training; the master
		// sees this link age out until training ends.
		s.publish(SlaveStatus{Calibrating: true})
		return
	}

	res := detect.ClassifyVoting(s.window, s.cal, s.sens)
	s.publish(SlaveStatus{Room: res.Room, Motion: res.Motion})

	now := s.clock.Now()
	if now.Sub(s.lastSend) < reportInterval {
		return
	}
	s.lastSend = now

	rep := radio.DetectionReport{
		NodeID:    s.id,
		Room:      res.Room,
		Motion:    res.Motion,
		Wander:    float32(s.window.WanderTrimMean()),
		Jitter:    float32(s.window.JitterMedian()),
		RSSI:      smp.RSSI,
		Timestamp: uint32(now.UnixMilli()),
	}
	s.send(rep.Encode())
}

func (s *Slave) handlePacket(data []byte) {
	msg, err := radio.Decode(data)
	if err != nil {
		// Sensing traffic and malformed datagrams share the medium;
		// both are dropped without comment.
		return
	}

	switch msg := msg.(type) {
	case radio.CalibrationStart:
		s.log.Info("starting calibration")
		// No countdown: a lost stop command leaves the node training
		// until the next explicit stop arrives.
		s.calib.Start(0)
	case radio.CalibrationStop:
		cal, ok := s.calib.Stop()
		if !ok {
			return
		}
		s.cal = cal
		s.log.Infof("calibration done: wander_th=%.6f jitter_th=%.6f",
			cal.WanderThreshold, cal.JitterThreshold)
		s.putFloat(store.KeyWanderThreshold, cal.WanderThreshold)
		s.putFloat(store.KeyJitterThreshold, cal.JitterThreshold)
	case *radio.SetThresholds:
		s.cal.WanderThreshold = float64(msg.Wander)
		s.cal.JitterThreshold = float64(msg.Jitter)
		s.log.Infof("thresholds set: wander_th=%.6f jitter_th=%.6f",
			s.cal.WanderThreshold, s.cal.JitterThreshold)
	case *radio.SetSensitivity:
		if msg.TargetNode != s.id {
			s.log.Debugf("sensitivity for node %d ignored", msg.TargetNode)
			return
		}
		s.applySensitivity(float64(msg.Wander), float64(msg.Jitter))
	}
}

func (s *Slave) applySensitivity(wander, jitter float64) {
	applied := false
	if detect.ValidSensitivity(wander) {
		s.sens.Wander = wander
		applied = true
	}
	if detect.ValidSensitivity(jitter) {
		s.sens.Jitter = jitter
		applied = true
	}
	if !applied {
		s.log.Warnf("rejected sensitivity: wander=%.3f jitter=%.3f", wander, jitter)
		return
	}
	s.log.Infof("sensitivity set: wander=%.3f jitter=%.3f", s.sens.Wander, s.sens.Jitter)
	s.putFloat(store.KeyWanderSens, s.sens.Wander)
	s.putFloat(store.KeyJitterSens, s.sens.Jitter)
}

func (s *Slave) publish(status SlaveStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if s.indicator != nil {
		s.indicator.Update(status.Room, status.Motion, status.Calibrating)
	}
}

func (s *Slave) send(payload []byte) {
	if s.radio == nil {
		return
	}
	if err := s.radio.Send(payload); err != nil {
		s.log.Warnf("report send failed: %v", err)
	}
}

func (s *Slave) putFloat(key string, v float64) {
	if s.settings == nil {
		return
	}
	if err := s.settings.PutFloat(key, v); err != nil {
		s.log.Warnf("persist %s: %v", key, err)
	}
}

func (s *Slave) loadSettings() {
	if s.settings == nil {
		return
	}
	if v, ok := s.settings.GetFloat(store.KeyWanderThreshold); ok {
		s.cal.WanderThreshold = v
	}
	if v, ok := s.settings.GetFloat(store.KeyJitterThreshold); ok {
		s.cal.JitterThreshold = v
	}
	if v, ok := s.settings.GetFloat(store.KeyWanderSens); ok {
		s.sens.Wander = v
	}
	if v, ok := s.settings.GetFloat(store.KeyJitterSens); ok {
		s.sens.Jitter = v
	}
	s.log.Infof("settings loaded: wander_th=%.6f jitter_th=%.6f w_sens=%.2f j_sens=%.2f",
		s.cal.WanderThreshold, s.cal.JitterThreshold, s.sens.Wander, s.sens.Jitter)
}
