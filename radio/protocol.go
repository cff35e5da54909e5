// Package radio implements the binary command/report protocol shared by
// master and slave nodes, and the UDP broadcast transport carrying it.
package radio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Opcodes. Commands occupy 0x10-0x1F so receivers can separate them from the
// sensing library's raw traffic sharing the same medium.
const (
	OpDetectionReport  = 0x01
	OpCalibrationStart = 0x10
	OpCalibrationStop  = 0x11
	OpSetThresholds    = 0x12
	OpSetSensitivity   = 0x13

	cmdRangeLow  = 0x10
	cmdRangeHigh = 0x1F

	DetectionReportLen = 17
	SetThresholdsLen   = 9
	SetSensitivityLen  = 10
)

// All multi-byte fields are little endian on the wire; both ends must agree,
// there is no negotiation.

// DetectionReport carries one node's verdict and raw statistics.
type DetectionReport struct {
	NodeID    uint8
	Room      bool
	Motion    bool
	Wander    float32
	Jitter    float32
	RSSI      int8
	Timestamp uint32
}

// CalibrationStart tells receivers to begin training.
type CalibrationStart struct{}

// CalibrationStop tells receivers to end training and adopt their own
// trained thresholds.
type CalibrationStop struct{}

// SetThresholds overrides a node's thresholds directly. Decodable but no
// component currently sends it; kept as a protocol extension point.
type SetThresholds struct {
	Wander float32
	Jitter float32
}

// SetSensitivity updates one node's sensitivity pair. Receivers apply it
// only when TargetNode matches their own id.
type SetSensitivity struct {
	TargetNode uint8
	Wander     float32
	Jitter     float32
}

func (r *DetectionReport) Encode() []byte {
	buf := make([]byte, DetectionReportLen)
	buf[0] = OpDetectionReport
	buf[1] = r.NodeID
	buf[2] = boolByte(r.Room)
	buf[3] = boolByte(r.Motion)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(r.Wander))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(r.Jitter))
	buf[12] = byte(r.RSSI)
	binary.LittleEndian.PutUint32(buf[13:17], r.Timestamp)
	return buf
}

func (CalibrationStart) Encode() []byte { return []byte{OpCalibrationStart} }
func (CalibrationStop) Encode() []byte  { return []byte{OpCalibrationStop} }

func (m *SetThresholds) Encode() []byte {
	buf := make([]byte, SetThresholdsLen)
	buf[0] = OpSetThresholds
	binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(m.Wander))
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(m.Jitter))
	return buf
}

func (m *SetSensitivity) Encode() []byte {
	buf := make([]byte, SetSensitivityLen)
	buf[0] = OpSetSensitivity
	buf[1] = m.TargetNode
	binary.LittleEndian.PutUint32(buf[2:6], math.Float32bits(m.Wander))
	binary.LittleEndian.PutUint32(buf[6:10], math.Float32bits(m.Jitter))
	return buf
}

// ErrNotProtocol marks traffic whose leading byte belongs to neither a report
// nor the command range. Receivers drop it without logging.
var ErrNotProtocol = fmt.Errorf("not protocol traffic")

// IsCommand reports whether b is in the reserved command opcode range.
func IsCommand(b byte) bool {
	return b >= cmdRangeLow && b <= cmdRangeHigh
}

// Decode parses one datagram into its message type. Undersized payloads and
// unknown commands return an error; callers drop them silently.
func Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, ErrNotProtocol
	}
	op := data[0]
	switch {
	case op == OpDetectionReport:
		return decodeDetectionReport(data)
	case !IsCommand(op):
		return nil, ErrNotProtocol
	}

	switch op {
	case OpCalibrationStart:
		return CalibrationStart{}, nil
	case OpCalibrationStop:
		return CalibrationStop{}, nil
	case OpSetThresholds:
		if len(data) < SetThresholdsLen {
			return nil, fmt.Errorf("set thresholds truncated: %d bytes", len(data))
		}
		return &SetThresholds{
			Wander: math.Float32frombits(binary.LittleEndian.Uint32(data[1:5])),
			Jitter: math.Float32frombits(binary.LittleEndian.Uint32(data[5:9])),
		}, nil
	case OpSetSensitivity:
		if len(data) < SetSensitivityLen {
			return nil, fmt.Errorf("set sensitivity truncated: %d bytes", len(data))
		}
		return &SetSensitivity{
			TargetNode: data[1],
			Wander:     math.Float32frombits(binary.LittleEndian.Uint32(data[2:6])),
			Jitter:     math.Float32frombits(binary.LittleEndian.Uint32(data[6:10])),
		}, nil
	default:
		return nil, fmt.Errorf("unknown command 0x%02x", op)
	}
}

func decodeDetectionReport(data []byte) (*DetectionReport, error) {
	if len(data) < DetectionReportLen {
		return nil, fmt.Errorf("detection report truncated: %d bytes", len(data))
	}
	return &DetectionReport{
		NodeID:    data[1],
		Room:      data[2] != 0,
		Motion:    data[3] != 0,
		Wander:    math.Float32frombits(binary.LittleEndian.Uint32(data[4:8])),
		Jitter:    math.Float32frombits(binary.LittleEndian.Uint32(data[8:12])),
		RSSI:      int8(data[12]),
		Timestamp: binary.LittleEndian.Uint32(data[13:17]),
	}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
