package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// maxRecordLen rejects corrupt length fields before allocating.
const maxRecordLen = 65535

// Record is one captured feed datagram.
type Record struct {
	Time time.Time
	Data []byte
}

// Reader iterates the records of a capture file.
type Reader struct {
	r io.Reader
	c io.Closer

	hdr [pcapRecordLen]byte
}

// Open opens a capture file and validates its global header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.c = f
	return r, nil
}

func newReader(in io.Reader) (*Reader, error) {
	hdr := make([]byte, pcapGlobalLen)
	if _, err := io.ReadFull(in, hdr); err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != pcapMagic {
		return nil, fmt.Errorf("not a capture file")
	}
	return &Reader{r: in}, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return Record{}, err
	}
	sec := binary.LittleEndian.Uint32(r.hdr[0:4])
	usec := binary.LittleEndian.Uint32(r.hdr[4:8])
	n := binary.LittleEndian.Uint32(r.hdr[8:12])
	if n > maxRecordLen {
		return Record{}, fmt.Errorf("record length %d too large", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return Record{}, fmt.Errorf("truncated record: %w", err)
	}
	return Record{
		Time: time.Unix(int64(sec), int64(usec)*1000),
		Data: data,
	}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
