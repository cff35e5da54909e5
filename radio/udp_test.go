package radio

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestTransportSendReceive(t *testing.T) {
	a, err := NewTransport(-1, quietLog())
	require.NoError(t, err)
	defer a.Stop()
	b, err := NewTransport(-1, quietLog())
	require.NoError(t, err)
	defer b.Stop()

	// Point a at b over loopback; broadcast does not apply on ephemeral
	// test ports.
	bPort := b.LocalAddr().(*net.UDPAddr).Port
	a.SetPeer(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: bPort})

	got := make(chan []byte, 4)
	go b.Start(func(data []byte, _ *net.UDPAddr) {
		got <- data
	})

	rep := DetectionReport{NodeID: 1, Room: true}
	require.NoError(t, a.Send(rep.Encode()))

	select {
	case data := <-got:
		msg, err := Decode(data)
		require.NoError(t, err)
		out := msg.(*DetectionReport)
		assert.Equal(t, uint8(1), out.NodeID)
		assert.True(t, out.Room)
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not delivered")
	}
}

func TestTransportStopEndsReadLoop(t *testing.T) {
	tr, err := NewTransport(-1, quietLog())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tr.Start(func([]byte, *net.UDPAddr) {})
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	tr.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
}
