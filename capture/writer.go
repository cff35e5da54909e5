// Package capture records and replays the raw sample feed as pcap files, so
// a site survey can be captured once and rerun against different thresholds.
package capture

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"
)

const (
	pcapMagic     = 0xA1B2C3D4
	pcapGlobalLen = 24
	pcapRecordLen = 16

	// LinkTypeUser0, the payload is one raw feed datagram.
	linkType = 147
)

// Writer appends feed datagrams to a pcap file.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewWriter creates path and writes the global header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := newWriter(f)
	if err := w.writeGlobalHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(out io.Writer) *Writer {
	return &Writer{w: out, buf: make([]byte, pcapRecordLen)}
}

func (w *Writer) writeGlobalHeader() error {
	b := make([]byte, pcapGlobalLen)
	binary.LittleEndian.PutUint32(b[0:], pcapMagic)
	binary.LittleEndian.PutUint16(b[4:], 2)
	binary.LittleEndian.PutUint16(b[6:], 4)
	binary.LittleEndian.PutUint32(b[16:], 65535)
	binary.LittleEndian.PutUint32(b[20:], linkType)
	_, err := w.w.Write(b)
	return err
}

// WriteRecord appends one datagram stamped with ts.
func (w *Writer) WriteRecord(ts time.Time, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	binary.LittleEndian.PutUint32(w.buf[0:], uint32(ts.Unix()))
	binary.LittleEndian.PutUint32(w.buf[4:], uint32(ts.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(w.buf[8:], uint32(len(data)))
	binary.LittleEndian.PutUint32(w.buf[12:], uint32(len(data)))
	if _, err := w.w.Write(w.buf[:pcapRecordLen]); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
