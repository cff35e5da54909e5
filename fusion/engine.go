// Package fusion combines per-link detection verdicts into a single room
// occupancy decision using adaptive quorum voting.
package fusion

// Status is the fused occupancy decision published by the master.
type Status struct {
	Room   bool
	Motion bool
}

// Fuse votes across the active links. With two or more active links a quorum
// of two is required; an isolated node decides alone. A link counts toward
// detection when it sees presence or motion. Motion can only be reported for
// an occupied room, so Motion implies Room.
func Fuse(links [LinkCount]Link) Status {
	activeCount := 0
	detectionCount := 0
	motionCount := 0

	for i := range links {
		if !links[i].Active {
			continue
		}
		activeCount++
		if links[i].Room || links[i].Motion {
			detectionCount++
		}
		if links[i].Motion {
			motionCount++
		}
	}

	quorum := 1
	if activeCount >= 2 {
		quorum = 2
	}

	var s Status
	s.Room = detectionCount >= quorum
	s.Motion = s.Room && motionCount >= quorum
	return s
}
