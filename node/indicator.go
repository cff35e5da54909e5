package node

import "github.com/sirupsen/logrus"

// LogIndicator stands in for the status LED: it logs state transitions
// instead of driving hardware.
type LogIndicator struct {
	log  *logrus.Logger
	last [3]bool
	set  bool
}

// NewLogIndicator returns an indicator writing transitions to log.
func NewLogIndicator(log *logrus.Logger) *LogIndicator {
	return &LogIndicator{log: log}
}

// Update logs the new state when it differs from the previous one.
func (i *LogIndicator) Update(room, motion, calibrating bool) {
	state := [3]bool{room, motion, calibrating}
	if i.set && state == i.last {
		return
	}
	i.last = state
	i.set = true

	switch {
	case calibrating:
		i.log.Debug("indicator: calibrating")
	case motion:
		i.log.Debug("indicator: motion")
	case room:
		i.log.Debug("indicator: presence")
	default:
		i.log.Debug("indicator: clear")
	}
}
