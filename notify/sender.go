package notify

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	tcpQueueLen    = 256
	dialTimeout    = 2 * time.Second
	writeTimeout   = 5 * time.Second
	redialBackoff  = 500 * time.Millisecond
	rewriteBackoff = 100 * time.Millisecond
)

type udpTarget struct {
	addr *net.UDPAddr
}

type tcpTarget struct {
	addr  string
	log   *logrus.Logger
	queue chan []byte
	wg    sync.WaitGroup
}

// Sender fans occupancy transitions out to the configured targets. UDP sends
// are fire-and-forget; each TCP target gets its own queue and reconnect loop
// so one slow consumer cannot stall the rest.
type Sender struct {
	log  *logrus.Logger
	udp  []*udpTarget
	tcp  []*tcpTarget
	conn *net.UDPConn

	running atomic.Bool
	last    Event
	primed  bool
}

// NewSender returns a sender with no targets.
func NewSender(log *logrus.Logger) *Sender {
	return &Sender{log: log}
}

// AddUDPTarget registers a datagram consumer.
func (s *Sender) AddUDPTarget(addr string) error {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	s.udp = append(s.udp, &udpTarget{addr: uaddr})
	return nil
}

// AddTCPTarget registers a stream consumer.
func (s *Sender) AddTCPTarget(addr string) {
	s.tcp = append(s.tcp, &tcpTarget{
		addr:  addr,
		log:   s.log,
		queue: make(chan []byte, tcpQueueLen),
	})
}

// Targets reports how many consumers are registered.
func (s *Sender) Targets() int { return len(s.udp) + len(s.tcp) }

// Start opens the shared UDP socket and the TCP client loops.
func (s *Sender) Start() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	s.conn = conn
	s.running.Store(true)
	for _, t := range s.tcp {
		t.start()
	}
	return nil
}

// Stop closes all targets. Queued TCP lines are abandoned.
func (s *Sender) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.conn.Close()
	for _, t := range s.tcp {
		t.stop()
	}
}

// Publish sends e to every target if it differs from the previous event.
// The first event after Start is always sent.
func (s *Sender) Publish(e Event) {
	if !s.running.Load() {
		return
	}
	if s.primed && !Changed(s.last, e) {
		return
	}
	s.last = e
	s.primed = true
	s.send(FormatEvent(e))
}

func (s *Sender) send(line []byte) {
	for _, t := range s.udp {
		if _, err := s.conn.WriteToUDP(line, t.addr); err != nil {
			s.log.Debugf("notify %s: %v", t.addr, err)
		}
	}
	for _, t := range s.tcp {
		select {
		case t.queue <- line:
		default:
			// Full queue means the consumer is gone or wedged.
		}
	}
}

func (t *tcpTarget) start() {
	t.wg.Add(1)
	go t.loop()
}

func (t *tcpTarget) stop() {
	close(t.queue)
	t.wg.Wait()
}

func (t *tcpTarget) loop() {
	defer t.wg.Done()
	var conn net.Conn

	connect := func() bool {
		if conn != nil {
			return true
		}
		c, err := net.DialTimeout("tcp", t.addr, dialTimeout)
		if err != nil {
			return false
		}
		conn = c
		return true
	}

	for line := range t.queue {
		if !connect() {
			time.Sleep(redialBackoff)
			if !connect() {
				continue
			}
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(line); err != nil {
			t.log.Warnf("notify %s: %v", t.addr, err)
			conn.Close()
			conn = nil
			time.Sleep(rewriteBackoff)
		}
	}
	if conn != nil {
		conn.Close()
	}
}
