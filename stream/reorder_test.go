package stream

import (
	"testing"

	"github.com/zsiec/refract/rtp"
)

func seqs(packets []*rtp.Packet) []uint16 {
	out := make([]uint16, len(packets))
	for i, p := range packets {
		out[i] = p.SequenceNumber
	}
	return out
}

func pushAll(r *Reorder, order ...uint16) []uint16 {
	var emitted []uint16
	for _, s := range order {
		emitted = append(emitted, seqs(r.Push(&rtp.Packet{SequenceNumber: s}))...)
	}
	emitted = append(emitted, seqs(r.Flush())...)
	return emitted
}

func TestReorder_RestoresOrder(t *testing.T) {
	t.Parallel()
	got := pushAll(NewReorder(4), 1, 3, 2, 5, 4, 6)
	want := []uint16{1, 2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

func TestReorder_Wraparound(t *testing.T) {
	t.Parallel()
	got := pushAll(NewReorder(4), 65534, 0, 65535, 1)
	want := []uint16{65534, 65535, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

func TestReorder_WindowForcesEmission(t *testing.T) {
	t.Parallel()
	r := NewReorder(2)
	if out := r.Push(&rtp.Packet{SequenceNumber: 10}); out != nil {
		t.Fatal("nothing should emit under the window")
	}
	if out := r.Push(&rtp.Packet{SequenceNumber: 12}); out != nil {
		t.Fatal("nothing should emit at the window")
	}
	out := r.Push(&rtp.Packet{SequenceNumber: 13})
	if len(out) != 1 || out[0].SequenceNumber != 10 {
		t.Fatalf("overflow should emit oldest, got %v", seqs(out))
	}
}

func TestReorder_StaleDropped(t *testing.T) {
	t.Parallel()
	r := NewReorder(2)
	for _, s := range []uint16{10, 11, 12} {
		r.Push(&rtp.Packet{SequenceNumber: s}) // emits 10, floor=10
	}
	if out := r.Push(&rtp.Packet{SequenceNumber: 5}); out != nil {
		t.Fatal("stale packet must not be emitted")
	}
	if r.DroppedStale != 1 {
		t.Errorf("DroppedStale = %d, want 1", r.DroppedStale)
	}

	// A duplicate of the floor is non-decreasing and allowed through.
	r.Push(&rtp.Packet{SequenceNumber: 10})
	if r.DroppedStale != 1 {
		t.Errorf("floor duplicate should not count stale, DroppedStale = %d", r.DroppedStale)
	}
}

func TestReorder_FlushEmpty(t *testing.T) {
	t.Parallel()
	if out := NewReorder(0).Flush(); out != nil {
		t.Errorf("Flush on empty buffer = %v, want nil", seqs(out))
	}
}
