// Package sensing is the boundary to the upstream signal-acquisition
// library, which is outside this system. The library extracts a slow
// (wander) and fast (jitter) channel statistic per received waveform and
// feeds them to the node over a local datagram socket.
package sensing

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/sirupsen/logrus"
)

// DefaultFeedPort is where the acquisition library delivers samples.
const DefaultFeedPort = 44001

// Sample is one (wander, jitter) statistic pair with the link's signal
// strength when the feed provides it.
type Sample struct {
	Wander float64
	Jitter float64
	RSSI   int8
}

// Source delivers samples until closed.
type Source interface {
	Samples() <-chan Sample
	Close() error
}

// DecodeSample parses one feed datagram: wander f32, jitter f32, little
// endian, optionally followed by a signed RSSI byte. The second return is
// false for undersized datagrams.
func DecodeSample(data []byte) (Sample, bool) {
	if len(data) < 8 {
		return Sample{}, false
	}
	smp := Sample{
		Wander: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))),
		Jitter: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))),
	}
	if len(data) >= 9 {
		smp.RSSI = int8(data[8])
	}
	return smp, true
}

// EncodeSample renders s in the feed datagram format, RSSI byte included.
func EncodeSample(s Sample) []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(s.Wander)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(s.Jitter)))
	buf[8] = byte(s.RSSI)
	return buf
}

// UDPSource reads 8-byte (wander f32, jitter f32, little endian) datagrams,
// optionally followed by a ninth signed RSSI byte. Shorter datagrams are
// dropped silently.
type UDPSource struct {
	conn *net.UDPConn
	out  chan Sample
	log  *logrus.Logger
}

// NewUDPSource binds the feed port and starts the read loop.
func NewUDPSource(port int, log *logrus.Logger) (*UDPSource, error) {
	if port == 0 {
		port = DefaultFeedPort
	}
	if port < 0 {
		// Ephemeral port, used by tests.
		port = 0
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind sample feed %d: %w", port, err)
	}
	s := &UDPSource{
		conn: conn,
		out:  make(chan Sample, 64),
		log:  log,
	}
	go s.readLoop()
	return s, nil
}

// Samples returns the sample channel. It closes when the source closes.
func (s *UDPSource) Samples() <-chan Sample { return s.out }

// Close shuts the socket and the sample channel.
func (s *UDPSource) Close() error { return s.conn.Close() }

func (s *UDPSource) readLoop() {
	defer close(s.out)
	buf := make([]byte, 16)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		smp, ok := DecodeSample(buf[:n])
		if !ok {
			continue
		}
		select {
		case s.out <- smp:
		default:
			// Drop when the node falls behind; the stream is lossy anyway.
		}
	}
}
