// Package notify pushes occupancy transitions to downstream consumers (home
// automation bridges, loggers) as a plaintext line protocol over TCP or UDP.
package notify

import (
	"fmt"
	"time"
)

// Event is one occupancy transition.
type Event struct {
	Time        time.Time
	Room        bool
	Motion      bool
	Calibrating bool
}

// Changed reports whether cur is worth notifying after prev.
func Changed(prev, cur Event) bool {
	return prev.Room != cur.Room ||
		prev.Motion != cur.Motion ||
		prev.Calibrating != cur.Calibrating
}

// FormatEvent renders one line of the notification protocol:
//
//	presence,<RFC3339 millis>,room=<0|1>,move=<0|1>,calibrating=<0|1>
func FormatEvent(e Event) []byte {
	line := fmt.Sprintf("presence,%s,room=%d,move=%d,calibrating=%d\r\n",
		e.Time.Format("2006-01-02T15:04:05.000Z07:00"),
		boolInt(e.Room), boolInt(e.Motion), boolInt(e.Calibrating))
	return []byte(line)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
