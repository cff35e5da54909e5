package node

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"presence-go/detect"
	"presence-go/fusion"
	"presence-go/radio"
	"presence-go/sensing"
	"presence-go/store"
	"presence-go/timeutil"
)

const (
	// masterTick drives the control loop: calibration auto-stop checks and
	// status pushes to the presentation layer.
	masterTick = 250 * time.Millisecond

	// statusLogEvery spaces out the periodic status line.
	statusLogEvery = 5 * time.Second
)

// MasterOptions configures a fusing node. Zero-value collaborators fall back
// to working defaults; Settings, Radio and Indicator may be nil.
type MasterOptions struct {
	Log       *logrus.Logger
	Clock     timeutil.Clock
	Trainer   detect.Trainer
	Settings  Settings
	Radio     Broadcaster
	Indicator Indicator

	CalibrationDuration time.Duration

	// OnStatus receives the published snapshot on every control tick.
	OnStatus func(Snapshot)
}

// Master fuses the local detection stream with up to two remote reports.
type Master struct {
	log       *logrus.Logger
	clock     timeutil.Clock
	window    *detect.Window
	calib     *detect.Calibrator
	registry  *fusion.Registry
	cal       detect.Calibration
	settings  Settings
	radio     Broadcaster
	indicator Indicator
	calibDur  time.Duration
	onStatus  func(Snapshot)

	packets  chan []byte
	commands chan func()

	lastStatusLog time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewMaster builds a master node and restores persisted settings.
func NewMaster(opts MasterOptions) *Master {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Trainer == nil {
		opts.Trainer = detect.NewAmbientTrainer()
	}
	if opts.CalibrationDuration == 0 {
		opts.CalibrationDuration = detect.DefaultCalibrationDuration
	}

	m := &Master{
		log:       opts.Log,
		clock:     opts.Clock,
		window:    &detect.Window{},
		calib:     detect.NewCalibrator(opts.Trainer, opts.Clock),
		registry:  fusion.NewRegistry(opts.Clock, defaultSensitivity()),
		cal:       detect.Calibration{JitterThreshold: DefaultMasterJitterThreshold},
		settings:  opts.Settings,
		radio:     opts.Radio,
		indicator: opts.Indicator,
		calibDur:  opts.CalibrationDuration,
		onStatus:  opts.OnStatus,
		packets:   make(chan []byte, 64),
		commands:  make(chan func(), 8),
	}
	m.loadSettings()
	m.publish(fusion.Status{})
	return m
}

// Run consumes events until ctx is cancelled. It is the single owner of all
// detection state; collaborators interact only through the sample channel,
// HandleDatagram, the control methods and Status.
func (m *Master) Run(ctx context.Context, samples <-chan sensing.Sample) {
	ticker := time.NewTicker(masterTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			m.handleSample(s)
		case data := <-m.packets:
			m.handlePacket(data)
		case fn := <-m.commands:
			fn()
		case <-ticker.C:
			m.tick()
		}
	}
}

// HandleDatagram queues one received datagram for the event loop. Datagrams
// are dropped when the queue is full; the medium is lossy anyway.
func (m *Master) HandleDatagram(data []byte) {
	select {
	case m.packets <- data:
	default:
	}
}

// StartCalibration begins a training run and commands all slaves to do the
// same.
func (m *Master) StartCalibration() { m.do(m.startCalibration) }

// StopCalibration ends a training run early.
func (m *Master) StopCalibration() { m.do(m.finishCalibration) }

// SetSensitivity updates one link's sensitivity pair. Out-of-range values
// leave the current setting unchanged.
func (m *Master) SetSensitivity(link int, wander, jitter float64) {
	m.do(func() { m.applySensitivity(link, wander, jitter) })
}

// Status returns the last published snapshot.
func (m *Master) Status() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

func (m *Master) do(fn func()) {
	select {
	case m.commands <- fn:
	default:
		m.log.Warn("control queue full, command dropped")
	}
}

func (m *Master) handleSample(s sensing.Sample) {
	m.window.Push(s.Wander, s.Jitter)
	m.calib.Feed(s.Wander, s.Jitter)
	if !m.window.Ready() {
		return
	}
	m.registry.UpdateLocal(m.window.WanderTrimMean(), m.window.JitterMedian())
	m.fuse()
}

func (m *Master) handlePacket(data []byte) {
	msg, err := radio.Decode(data)
	if err != nil {
		// Malformed or foreign traffic is dropped without comment.
		return
	}
	rep, ok := msg.(*radio.DetectionReport)
	if !ok {
		// The master is the only command sender; command traffic seen
		// here is our own broadcast echoing back.
		return
	}
	if rep.NodeID < 1 || rep.NodeID >= fusion.LinkCount {
		return
	}
	m.registry.UpdateRemote(int(rep.NodeID), rep.Room, rep.Motion,
		float64(rep.Wander), float64(rep.Jitter), rep.RSSI)
	m.log.Debugf("link %d: room=%v move=%v wander=%.6f jitter=%.6f",
		rep.NodeID, rep.Room, rep.Motion, rep.Wander, rep.Jitter)
	m.fuse()
}

func (m *Master) tick() {
	if m.calib.Expired() {
		m.finishCalibration()
	}
	m.fuse()
	if m.onStatus != nil {
		m.onStatus(m.Status())
	}
	if m.clock.Since(m.lastStatusLog) >= statusLogEvery {
		m.lastStatusLog = m.clock.Now()
		snap := m.Status()
		m.log.Infof("status: room=%v moving=%v links=[%v %v %v]",
			snap.Room, snap.Motion,
			snap.Links[0].Active, snap.Links[1].Active, snap.Links[2].Active)
	}
}

// fuse refreshes link liveness, re-derives the local verdict with the
// current calibration and sensitivity, votes, and publishes the result.
func (m *Master) fuse() {
	m.registry.Expire()

	var local detect.Result
	if !m.calib.Active() {
		links := m.registry.Links()
		l := links[fusion.LinkLocal]
		if l.Active {
			local = detect.Classify(l.Wander, l.Jitter, m.cal,
				m.registry.Sensitivity(fusion.LinkLocal))
		}
	}
	m.registry.SetLocalStatus(local)

	m.publish(fusion.Fuse(m.registry.Links()))
}

func (m *Master) publish(status fusion.Status) {
	snap := Snapshot{
		Room:            status.Room,
		Motion:          status.Motion,
		Calibrating:     m.calib.Active(),
		CalibRemaining:  int(m.calib.Remaining() / time.Second),
		WanderThreshold: m.cal.WanderThreshold,
		JitterThreshold: m.cal.JitterThreshold,
		Links:           linkSnapshots(m.registry.Links()),
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()

	if m.indicator != nil {
		m.indicator.Update(snap.Room, snap.Motion, snap.Calibrating)
	}
}

func (m *Master) startCalibration() {
	if m.calib.Active() {
		return
	}
	m.log.Infof("starting calibration (%s)", m.calibDur)
	m.calib.Start(m.calibDur)
	m.broadcast(radio.CalibrationStart{}.Encode())
	m.publish(fusion.Status{})
}

func (m *Master) finishCalibration() {
	cal, ok := m.calib.Stop()
	if !ok {
		return
	}
	m.cal = cal
	m.log.Infof("calibration done: wander_th=%.6f jitter_th=%.6f",
		cal.WanderThreshold, cal.JitterThreshold)

	// Each slave trains against its own noise floor; only the stop
	// command goes out, never our thresholds.
	m.broadcast(radio.CalibrationStop{}.Encode())

	m.putFloat(store.KeyWanderThreshold, m.cal.WanderThreshold)
	m.putFloat(store.KeyJitterThreshold, m.cal.JitterThreshold)
	m.fuse()
}

func (m *Master) applySensitivity(link int, wander, jitter float64) {
	if !m.registry.SetSensitivity(link, wander, jitter) {
		m.log.Warnf("rejected sensitivity for link %d: wander=%.3f jitter=%.3f",
			link, wander, jitter)
		return
	}
	sens := m.registry.Sensitivity(link)
	m.log.Infof("link %d sensitivity: wander=%.3f jitter=%.3f",
		link, sens.Wander, sens.Jitter)

	if link != fusion.LinkLocal {
		msg := radio.SetSensitivity{
			TargetNode: uint8(link),
			Wander:     float32(sens.Wander),
			Jitter:     float32(sens.Jitter),
		}
		m.broadcast(msg.Encode())
	}

	wKey, jKey := store.LinkSensKeys(link)
	m.putFloat(wKey, sens.Wander)
	m.putFloat(jKey, sens.Jitter)
	m.fuse()
}

func (m *Master) broadcast(payload []byte) {
	if m.radio == nil {
		return
	}
	if err := m.radio.Send(payload); err != nil {
		m.log.Warnf("broadcast failed: %v", err)
	}
}

func (m *Master) putFloat(key string, v float64) {
	if m.settings == nil {
		return
	}
	if err := m.settings.PutFloat(key, v); err != nil {
		m.log.Warnf("persist %s: %v", key, err)
	}
}

func (m *Master) loadSettings() {
	if m.settings == nil {
		return
	}
	if v, ok := m.settings.GetFloat(store.KeyWanderThreshold); ok {
		m.cal.WanderThreshold = v
	}
	if v, ok := m.settings.GetFloat(store.KeyJitterThreshold); ok {
		m.cal.JitterThreshold = v
	}
	for i := 0; i < fusion.LinkCount; i++ {
		wKey, jKey := store.LinkSensKeys(i)
		sens := m.registry.Sensitivity(i)
		if v, ok := m.settings.GetFloat(wKey); ok {
			sens.Wander = v
		}
		if v, ok := m.settings.GetFloat(jKey); ok {
			sens.Jitter = v
		}
		m.registry.SetSensitivity(i, sens.Wander, sens.Jitter)
	}
	m.log.Infof("settings loaded: wander_th=%.6f jitter_th=%.6f",
		m.cal.WanderThreshold, m.cal.JitterThreshold)
}
