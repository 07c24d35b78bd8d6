package stream

import (
	"sort"
	"time"

	"github.com/zsiec/refract/rtp"
)

// State holds the running statistics for one SSRC. It is created on first
// sight and owned by its Tracker for the duration of an extraction run.
// Resolved is recomputed from the override table on every arrival; it never
// rewrites statistics already tallied.
type State struct {
	SSRC        uint32
	PayloadType uint8
	Resolved    Type

	PacketCount    uint64
	FirstSeq       uint16
	LastSeq        uint16
	FirstTimestamp uint32
	LastTimestamp  uint32
	Lost           uint64
	OutOfOrder     uint64
	PayloadBytes   uint64

	// DroppedStale is filled in by the reorder stage after ingest.
	DroppedStale uint64

	FirstArrival time.Time
	LastArrival  time.Time

	expectedSeq uint16

	// Extended (wrap-unwrapped) media timestamp tracking. tsExt follows
	// LastTimestamp through 32-bit wraps; the min/max pair gives the span.
	tsExt    int64
	tsExtMin int64
	tsExtMax int64
}

// LossRate is the fraction of expected packets presumed dropped.
func (s *State) LossRate() float64 {
	total := s.PacketCount + s.Lost
	if total == 0 {
		return 0
	}
	return float64(s.Lost) / float64(total)
}

// TimestampSpan is the media-clock span of the stream in clock ticks,
// tolerant of 32-bit timestamp wraparound. Duration is span divided by the
// stream's clock rate, which this package does not know.
func (s *State) TimestampSpan() int64 {
	return s.tsExtMax - s.tsExtMin
}

// Tracker owns one extraction run's per-SSRC states. It is not safe for
// concurrent use; the ingest pass is single-threaded by design.
type Tracker struct {
	overrides Overrides
	streams   map[uint32]*State
}

// NewTracker creates a tracker bound to an override table.
func NewTracker(overrides Overrides) *Tracker {
	return &Tracker{
		overrides: overrides,
		streams:   make(map[uint32]*State),
	}
}

// Observe folds one packet into its stream's state, creating the state on
// first sight.
//
// Sequence accounting is wraparound-aware: a packet ahead of the expected
// sequence number records the gap as presumed loss and advances; a packet
// behind it counts as out-of-order and does not move the expectation.
func (t *Tracker) Observe(p *rtp.Packet, arrival time.Time) *State {
	st, ok := t.streams[p.SSRC]
	if !ok {
		st = &State{
			SSRC:           p.SSRC,
			PayloadType:    p.PayloadType,
			Resolved:       t.overrides.Resolve(p.SSRC, p.PayloadType),
			PacketCount:    1,
			FirstSeq:       p.SequenceNumber,
			LastSeq:        p.SequenceNumber,
			FirstTimestamp: p.Timestamp,
			LastTimestamp:  p.Timestamp,
			PayloadBytes:   uint64(len(p.Payload)),
			FirstArrival:   arrival,
			LastArrival:    arrival,
			expectedSeq:    p.SequenceNumber + 1,
		}
		t.streams[p.SSRC] = st
		return st
	}

	st.PacketCount++
	st.PayloadBytes += uint64(len(p.Payload))
	st.LastArrival = arrival
	st.Resolved = t.overrides.Resolve(p.SSRC, p.PayloadType)

	switch d := int16(p.SequenceNumber - st.expectedSeq); {
	case d == 0:
		st.LastSeq = p.SequenceNumber
		st.expectedSeq = p.SequenceNumber + 1
	case d > 0:
		st.Lost += uint64(d)
		st.LastSeq = p.SequenceNumber
		st.expectedSeq = p.SequenceNumber + 1
	default:
		st.OutOfOrder++
	}

	// Signed 32-bit delta keeps the extended timestamp monotonic across
	// wraps and tolerant of per-frame repeats and small regressions.
	st.tsExt += int64(int32(p.Timestamp - st.LastTimestamp))
	st.LastTimestamp = p.Timestamp
	if st.tsExt < st.tsExtMin {
		st.tsExtMin = st.tsExt
	}
	if st.tsExt > st.tsExtMax {
		st.tsExtMax = st.tsExt
	}

	return st
}

// Get returns the state for an SSRC, or nil if the stream was never seen.
func (t *Tracker) Get(ssrc uint32) *State {
	return t.streams[ssrc]
}

// States returns all stream states sorted by SSRC.
func (t *Tracker) States() []*State {
	out := make([]*State, 0, len(t.streams))
	for _, st := range t.streams {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SSRC < out[j].SSRC })
	return out
}

// Len returns the number of distinct streams seen.
func (t *Tracker) Len() int {
	return len(t.streams)
}
