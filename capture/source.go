// Package capture supplies packet sources for the extraction engine: an
// in-memory source for tests and callers with their own capture stack, and
// a pcap/pcapng file source. Live interface capture is out of scope; this
// package only consumes already-captured UDP payloads.
package capture

import (
	"io"
	"time"
)

// Record is one captured UDP payload handed to the engine.
type Record struct {
	Index     int
	Payload   []byte
	Timestamp time.Time
}

// Source is an ordered pull interface over captured packets. Next returns
// io.EOF once the source is exhausted.
type Source interface {
	Next() (Record, error)
}

// SliceSource serves an in-memory payload list.
type SliceSource struct {
	payloads [][]byte
	pos      int
}

// NewSliceSource wraps payloads as a Source.
func NewSliceSource(payloads ...[]byte) *SliceSource {
	return &SliceSource{payloads: payloads}
}

// Next implements Source.
func (s *SliceSource) Next() (Record, error) {
	if s.pos >= len(s.payloads) {
		return Record{}, io.EOF
	}
	rec := Record{Index: s.pos, Payload: s.payloads[s.pos]}
	s.pos++
	return rec, nil
}
