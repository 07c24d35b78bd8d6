package anc

import (
	"testing"
)

// bitWriter packs bit fields MSB-first, mirroring the reader.
type bitWriter struct {
	data   []byte
	bitPos int
}

func (w *bitWriter) put(n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		byteIdx := w.bitPos / 8
		for byteIdx >= len(w.data) {
			w.data = append(w.data, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.data[byteIdx] |= 1 << uint(7-(w.bitPos%8))
		}
		w.bitPos++
	}
}

func (w *bitWriter) align32() {
	if rem := w.bitPos % 32; rem != 0 {
		w.put(32-rem, 0)
	}
}

// protect adds the b8/b9 protection bits to an 8-bit value.
func protect(v byte) uint32 {
	var p uint32
	for i := 0; i < 8; i++ {
		p ^= uint32(v>>uint(i)) & 1
	}
	return uint32(v) | p<<8 | (p^1)<<9
}

// buildPayload assembles an ST 2110-40 payload holding the given records.
type ancRecord struct {
	line, hoff uint16
	did, sdid  uint8
	udw        []byte
	breakSum   bool // corrupt the checksum word
}

func buildPayload(records ...ancRecord) []byte {
	w := &bitWriter{}
	// Payload header: ext seq, length (unused by decoder), count, F+reserved.
	w.put(16, 0)
	w.put(16, 0)
	w.put(8, uint32(len(records)))
	w.put(24, 0)

	for _, rec := range records {
		w.put(1, 0) // C
		w.put(11, uint32(rec.line))
		w.put(12, uint32(rec.hoff))
		w.put(1, 1) // S
		w.put(7, 0) // stream num

		did := protect(rec.did)
		sdid := protect(rec.sdid)
		dc := protect(byte(len(rec.udw)))
		sum := (did + sdid + dc) & 0x1FF
		w.put(10, did)
		w.put(10, sdid)
		w.put(10, dc)
		for _, b := range rec.udw {
			word := protect(b)
			sum = (sum + word) & 0x1FF
			w.put(10, word)
		}
		if rec.breakSum {
			sum = (sum + 1) & 0x1FF
		}
		w.put(10, sum|(^sum>>8&1)<<9)
		w.align32()
	}
	return w.data
}

func TestDecodePayload_Caption608(t *testing.T) {
	t.Parallel()
	pairs := []byte{0x94, 0x2C, 0x43, 0x43} // control pair + "CC"
	events, err := DecodePayload(buildPayload(ancRecord{
		line: 9, hoff: 0, did: 0x61, sdid: 0x02, udw: pairs,
	}), 90000)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	ev := events[0]
	if ev.Kind != KindCaption || ev.CaptionStandard != CEA608 {
		t.Errorf("kind = %v/%v, want caption/CEA-608", ev.Kind, ev.CaptionStandard)
	}
	if ev.Line != 9 {
		t.Errorf("Line = %d, want 9", ev.Line)
	}
	if ev.Timestamp != 90000 {
		t.Errorf("Timestamp = %d, want 90000", ev.Timestamp)
	}
	if ev.ChecksumMismatch {
		t.Error("valid checksum flagged as mismatch")
	}
	if ev.ParityErrors != 0 {
		t.Errorf("ParityErrors = %d, want 0", ev.ParityErrors)
	}
	if string(ev.Data) != string(pairs) {
		t.Errorf("Data = % X, want % X", ev.Data, pairs)
	}
	if ev.TypeName() != "CEA-608 Closed Captions" {
		t.Errorf("TypeName = %q", ev.TypeName())
	}
}

func TestDecodePayload_ChecksumMismatchKept(t *testing.T) {
	t.Parallel()
	events, err := DecodePayload(buildPayload(ancRecord{
		did: 0x61, sdid: 0x02, udw: []byte{0x20, 0x20}, breakSum: true,
	}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatal("corrupted record must still be emitted")
	}
	if !events[0].ChecksumMismatch {
		t.Error("checksum mismatch not flagged")
	}
	if events[0].Kind != KindCaption {
		t.Error("corrupted record should still classify")
	}
}

func TestDecodePayload_Timecode(t *testing.T) {
	t.Parallel()
	// 01:02:03;24 drop-frame, one BCD digit per word high nibble.
	udw := []byte{
		0x40,        // frames units 4
		0x20 | 0x40, // frames tens 2, drop-frame bit
		0x30,        // seconds units 3
		0x00,        // seconds tens 0
		0x20,        // minutes units 2
		0x00,        // minutes tens 0
		0x10,        // hours units 1
		0x00,        // hours tens 0
	}
	events, err := DecodePayload(buildPayload(ancRecord{did: 0x60, sdid: 0x60, udw: udw}), 0)
	if err != nil {
		t.Fatal(err)
	}

	ev := events[0]
	if ev.Kind != KindTimecode {
		t.Fatalf("kind = %v, want timecode", ev.Kind)
	}
	tc := ev.Timecode
	if tc == nil {
		t.Fatal("timecode not decoded")
	}
	if tc.Hours != 1 || tc.Minutes != 2 || tc.Seconds != 3 || tc.Frames != 24 {
		t.Errorf("timecode = %+v", *tc)
	}
	if !tc.DropFrame {
		t.Error("drop-frame flag lost")
	}
	if got := tc.String(); got != "01:02:03;24" {
		t.Errorf("String() = %q", got)
	}
}

func TestDecodePayload_MultipleRecordsAndDispatch(t *testing.T) {
	t.Parallel()
	events, err := DecodePayload(buildPayload(
		ancRecord{did: 0x41, sdid: 0x05, udw: []byte{0x08}},
		ancRecord{did: 0x41, sdid: 0x07, udw: []byte{0xFF, 0xFF, 0x01}},
		ancRecord{did: 0x43, sdid: 0x02, udw: []byte{0x10, 0x02}},
		ancRecord{did: 0x50, sdid: 0x01, udw: []byte{0xAB}},
	), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	wantKinds := []EventKind{KindAFDBar, KindSCTE104, KindTeletext, KindOther}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Errorf("record %d kind = %v, want %v", i, events[i].Kind, want)
		}
	}
	if events[3].TypeName() != "Unknown (50/01)" {
		t.Errorf("TypeName = %q", events[3].TypeName())
	}
}

func TestDecodePayload_Truncated(t *testing.T) {
	t.Parallel()
	payload := buildPayload(ancRecord{did: 0x61, sdid: 0x02, udw: make([]byte, 40)})
	events, err := DecodePayload(payload[:16], 0)
	if err == nil {
		t.Fatal("truncated payload should error")
	}
	if len(events) != 0 {
		t.Errorf("got %d events from truncated record", len(events))
	}

	if _, err := DecodePayload([]byte{0, 0, 0}, 0); err == nil {
		t.Error("short payload header should error")
	}
}

func TestParity(t *testing.T) {
	t.Parallel()
	for v := 0; v < 256; v++ {
		if !parityOK(protect(byte(v))) {
			t.Fatalf("protect(%#02x) fails its own parity check", v)
		}
	}
	if parityOK(0x3FF) {
		t.Error("all-ones word has invalid protection bits")
	}
}

func TestParseCDP(t *testing.T) {
	t.Parallel()
	// 7-byte header: id(2) length(1) rate(1) flags(1) sequence(2), then a
	// cc_data section with two triplets and the footer marker.
	cdp := []byte{
		0x96, 0x69,
		16,
		0x4F, 0x43,
		0x00, 0x01,
		0x72, 0xE0 | 0x2,
		0xFC, 0x43, 0x43, // valid, type 0 (608 field 1)
		0xFF, 0x12, 0x34, // valid, type 3 (DTVCC start)
		0x74,
	}

	ccs, err := ParseCDP(cdp)
	if err != nil {
		t.Fatal(err)
	}
	if len(ccs) != 2 {
		t.Fatalf("got %d triplets, want 2", len(ccs))
	}
	if !ccs[0].Valid || ccs[0].Type != 0 || ccs[0].B1 != 0x43 {
		t.Errorf("triplet 0 = %+v", ccs[0])
	}
	if ccs[1].Type != 3 || ccs[1].B1 != 0x12 {
		t.Errorf("triplet 1 = %+v", ccs[1])
	}

	if _, err := ParseCDP([]byte{0x12, 0x34, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Error("bad identifier should error")
	}
}
