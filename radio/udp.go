package radio

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort is the shared control/report port on every node.
	DefaultPort = 44000

	maxDatagramSize = 512
)

// Transport is the broadcast datagram link between nodes. Sends are
// fire-and-forget; there is no acknowledgement or retry. Receivers get every
// datagram on the port, including the sensing library's own traffic, and are
// expected to filter by leading byte.
type Transport struct {
	conn *net.UDPConn
	log  *logrus.Logger

	mu   sync.Mutex
	peer *net.UDPAddr // destination; defaults to broadcast

	running atomic.Bool
}

// NewTransport binds the shared port and targets the broadcast address.
func NewTransport(port int, log *logrus.Logger) (*Transport, error) {
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 {
		// Ephemeral port, used by tests.
		port = 0
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind udp %d: %w", port, err)
	}
	conn.SetReadBuffer(256 * 1024)

	return &Transport{
		conn: conn,
		log:  log,
		peer: &net.UDPAddr{IP: net.IPv4bcast, Port: port},
	}, nil
}

// SetPeer pins the destination to a single address instead of broadcast.
// Slaves use this when a master address has been registered.
func (t *Transport) SetPeer(addr *net.UDPAddr) {
	t.mu.Lock()
	t.peer = addr
	t.mu.Unlock()
}

// Send transmits one datagram to the current destination. Errors are
// returned for logging only; the protocol converges through the next
// successful send.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	peer := t.peer
	t.mu.Unlock()

	_, err := t.conn.WriteToUDP(payload, peer)
	return err
}

// Start reads datagrams until Stop and hands each to handler. Every
// datagram is copied before delivery.
func (t *Transport) Start(handler func(data []byte, addr *net.UDPAddr)) {
	t.running.Store(true)
	buf := make([]byte, maxDatagramSize)
	t.log.Infof("radio listening on %s", t.conn.LocalAddr())

	for t.running.Load() {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if t.running.Load() {
				t.log.Warnf("radio read: %v", err)
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		handler(data, addr)
	}
}

// Stop ends the read loop and closes the socket.
func (t *Transport) Stop() {
	t.running.Store(false)
	t.conn.Close()
}

// LocalAddr returns the bound address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }
