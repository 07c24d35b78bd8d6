package stream

import "github.com/zsiec/refract/rtp"

// DefaultReorderWindow bounds how many packets a Reorder holds before the
// oldest is forced out. Captures are mostly ordered; a few dozen packets
// absorb the bursts that do arrive swapped.
const DefaultReorderWindow = 32

// Reorder restores non-decreasing sequence order for one stream's packets.
// Packets that arrive behind the emission floor (duplicates or excessively
// late arrivals) are dropped and counted rather than waited for, so the
// buffer can never stall the run.
type Reorder struct {
	window  int
	pending []*rtp.Packet // sorted ascending, wraparound-aware
	floor   uint16        // sequence number of the last emitted packet
	started bool

	// DroppedStale counts packets discarded for arriving behind the floor.
	DroppedStale uint64
}

// NewReorder creates a reorder buffer with the given window size; values
// below 1 use DefaultReorderWindow.
func NewReorder(window int) *Reorder {
	if window < 1 {
		window = DefaultReorderWindow
	}
	return &Reorder{window: window}
}

// seqBefore reports whether a precedes b under wraparound-aware signed
// comparison.
func seqBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

// Push accepts one packet in arrival order and returns any packets whose
// order is now settled, oldest first. A packet equal to the floor is kept
// (emission order is non-decreasing); only packets strictly behind it drop.
func (r *Reorder) Push(p *rtp.Packet) []*rtp.Packet {
	if r.started && seqBefore(p.SequenceNumber, r.floor) {
		r.DroppedStale++
		return nil
	}

	// Insert in sorted position, scanning from the tail: in-order arrival
	// is the common case.
	i := len(r.pending)
	for i > 0 && seqBefore(p.SequenceNumber, r.pending[i-1].SequenceNumber) {
		i--
	}
	r.pending = append(r.pending, nil)
	copy(r.pending[i+1:], r.pending[i:])
	r.pending[i] = p

	if len(r.pending) <= r.window {
		return nil
	}

	n := len(r.pending) - r.window
	out := make([]*rtp.Packet, n)
	copy(out, r.pending[:n])
	r.pending = append(r.pending[:0], r.pending[n:]...)
	r.floor = out[n-1].SequenceNumber
	r.started = true
	return out
}

// Flush drains everything still pending, in order. The buffer is reusable
// afterwards but its floor carries over.
func (r *Reorder) Flush() []*rtp.Packet {
	if len(r.pending) == 0 {
		return nil
	}
	out := r.pending
	r.pending = nil
	r.floor = out[len(out)-1].SequenceNumber
	r.started = true
	return out
}
