// Package anc decodes SMPTE ST 291 ancillary data packets carried in
// ST 2110-40 RTP payloads (RFC 8331): captions, timecode, AFD/bar data,
// SCTE-104 triggers, and OP-47 teletext.
//
// Records with a failed checksum are kept and flagged, never dropped: QA
// workflows need to see malformed ANC data, not lose it silently.
package anc

import (
	"fmt"
)

// EventKind tags what a decoded ANC record carries.
type EventKind int

const (
	KindOther EventKind = iota
	KindCaption
	KindTimecode
	KindAFDBar
	KindSCTE104
	KindTeletext
)

func (k EventKind) String() string {
	switch k {
	case KindCaption:
		return "caption"
	case KindTimecode:
		return "timecode"
	case KindAFDBar:
		return "afd-bar"
	case KindSCTE104:
		return "scte-104"
	case KindTeletext:
		return "teletext"
	}
	return "other"
}

// CaptionStandard distinguishes the two caption encodings ANC can carry.
type CaptionStandard int

const (
	CEA608 CaptionStandard = iota + 1
	CEA708 // CDP-wrapped cc_data
)

func (s CaptionStandard) String() string {
	if s == CEA708 {
		return "CEA-708"
	}
	return "CEA-608"
}

// Timecode is one SMPTE 12M address as carried by ATC ancillary packets.
type Timecode struct {
	Hours     int
	Minutes   int
	Seconds   int
	Frames    int
	DropFrame bool
}

// String renders HH:MM:SS:FF, with ";" before the frame count for
// drop-frame timecode, per convention.
func (tc Timecode) String() string {
	sep := ":"
	if tc.DropFrame {
		sep = ";"
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", tc.Hours, tc.Minutes, tc.Seconds, sep, tc.Frames)
}

// Event is one decoded ANC record. Data always holds the 8-bit user data
// words (parity bits stripped); Kind-specific decodes are attached when the
// DID/SDID pair is recognized.
type Event struct {
	DID         uint8
	SDID        uint8
	Line        uint16
	HorizOffset uint16
	StreamNum   uint8
	Timestamp   uint32 // RTP timestamp of the carrying packet

	ChecksumMismatch bool
	ParityErrors     int

	Kind            EventKind
	Data            []byte
	CaptionStandard CaptionStandard // set for KindCaption
	Timecode        *Timecode       // set for KindTimecode
}

// ancTypeNames labels the DID/SDID pairs this decoder recognizes plus a few
// that commonly appear in broadcast captures.
var ancTypeNames = map[[2]uint8]string{
	{0x60, 0x60}: "SMPTE 12M Timecode",
	{0x61, 0x01}: "CEA-708 Closed Captions",
	{0x61, 0x02}: "CEA-608 Closed Captions",
	{0x41, 0x05}: "AFD/Bar Data",
	{0x41, 0x07}: "SCTE-104 Messages",
	{0x43, 0x02}: "OP-47 Teletext (VITC)",
	{0x43, 0x03}: "OP-47 Teletext (WSS)",
	{0x51, 0x51}: "MPEG Recoding Data",
	{0x64, 0x64}: "LTC (Linear Timecode)",
	{0x64, 0x7F}: "VITC (Vertical Interval Timecode)",
}

// TypeName returns a friendly label for the event's DID/SDID pair.
func (e *Event) TypeName() string {
	if name, ok := ancTypeNames[[2]uint8{e.DID, e.SDID}]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%02X/%02X)", e.DID, e.SDID)
}

// DecodePayload parses one ST 2110-40 RTP payload into its ANC events.
// A truncated payload returns the events parsed so far along with the error.
func DecodePayload(payload []byte, rtpTimestamp uint32) ([]*Event, error) {
	// RFC 8331 payload header: extended sequence number (16), length (16),
	// ANC_Count (8), F (2) + reserved (22).
	if len(payload) < 8 {
		return nil, fmt.Errorf("anc: payload header needs 8 bytes, have %d", len(payload))
	}
	count := int(payload[4])

	r := newBitReader(payload[8:])
	events := make([]*Event, 0, count)
	for i := 0; i < count; i++ {
		ev, err := decodeRecord(r, rtpTimestamp)
		if err != nil {
			return events, fmt.Errorf("anc: record %d of %d: %w", i+1, count, err)
		}
		events = append(events, ev)
		r.align32()
	}
	return events, nil
}

// decodeRecord parses one SMPTE 291 record: a 32-bit location header, then
// DID/SDID/DC, the user data words, and the checksum word, all 10 bits wide.
func decodeRecord(r *bitReader, rtpTimestamp uint32) (*Event, error) {
	r.readBit() // C: color-difference channel flag, unused here
	line := uint16(r.read(11))
	hoff := uint16(r.read(12))
	r.readBit() // S: stream number valid
	streamNum := uint8(r.read(7))

	did := r.read(10)
	sdid := r.read(10)
	dc := r.read(10)

	ev := &Event{
		DID:         uint8(did),
		SDID:        uint8(sdid),
		Line:        line,
		HorizOffset: hoff,
		StreamNum:   streamNum,
		Timestamp:   rtpTimestamp,
	}
	for _, w := range []uint32{did, sdid, dc} {
		if !parityOK(w) {
			ev.ParityErrors++
		}
	}

	n := int(dc & 0xFF)
	if r.bitsLeft() < (n+1)*10 {
		return nil, fmt.Errorf("data count %d exceeds payload", n)
	}

	// The checksum is the 9-bit sum of DID, SDID, DC, and every user data
	// word, protection bits excluded.
	sum := (did + sdid + dc) & 0x1FF
	ev.Data = make([]byte, n)
	for i := 0; i < n; i++ {
		w := r.read(10)
		if !parityOK(w) {
			ev.ParityErrors++
		}
		sum = (sum + w) & 0x1FF
		ev.Data[i] = byte(w)
	}
	checksum := r.read(10)
	if r.overflow {
		return nil, fmt.Errorf("truncated record")
	}
	ev.ChecksumMismatch = checksum&0x1FF != sum

	dispatch(ev)
	return ev, nil
}

// dispatch classifies a record by DID/SDID and attaches typed decodes.
func dispatch(ev *Event) {
	switch {
	case ev.DID == 0x61 && ev.SDID == 0x01:
		ev.Kind = KindCaption
		ev.CaptionStandard = CEA708
	case ev.DID == 0x61 && ev.SDID == 0x02:
		ev.Kind = KindCaption
		ev.CaptionStandard = CEA608
	case ev.DID == 0x60:
		ev.Kind = KindTimecode
		ev.Timecode = decodeTimecode(ev.Data)
	case ev.DID == 0x41 && ev.SDID == 0x05:
		ev.Kind = KindAFDBar
	case ev.DID == 0x41 && ev.SDID == 0x07:
		ev.Kind = KindSCTE104
	case ev.DID == 0x43 && (ev.SDID == 0x02 || ev.SDID == 0x03):
		ev.Kind = KindTeletext
	default:
		ev.Kind = KindOther
	}
}

// decodeTimecode unpacks an 8-word SMPTE 12M ATC payload. Each word carries
// one BCD digit in its high nibble; the drop-frame flag rides bit 6 of the
// frames-tens word.
func decodeTimecode(udw []byte) *Timecode {
	if len(udw) < 8 {
		return nil
	}
	digit := func(i int) int { return int(udw[i] >> 4) }
	return &Timecode{
		Frames:    (digit(1)&0x3)*10 + digit(0),
		Seconds:   (digit(3)&0x7)*10 + digit(2),
		Minutes:   (digit(5)&0x7)*10 + digit(4),
		Hours:     (digit(7)&0x3)*10 + digit(6),
		DropFrame: udw[1]>>6&1 == 1,
	}
}
