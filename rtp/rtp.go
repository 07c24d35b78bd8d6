// Package rtp parses RTP (RFC 3550) fixed headers out of raw UDP payloads.
//
// This parser is deliberately standalone: capture layers frequently fail to
// recognize ST 2110 flows as RTP (dynamic payload types on arbitrary ports),
// so the engine runs every UDP payload through Parse and classifies the
// failures instead of trusting upstream framing.
package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// fixedHeaderSize is the RTP header length before CSRC entries and extensions.
const fixedHeaderSize = 12

// Parse failure classes. Callers match with errors.Is to count rejected
// payloads by cause; none of these terminates an extraction run.
var (
	ErrTooShort   = errors.New("rtp: payload shorter than fixed header")
	ErrBadVersion = errors.New("rtp: version field is not 2")
	ErrTruncated  = errors.New("rtp: header fields extend past end of payload")
	ErrBadPadding = errors.New("rtp: invalid padding count")
)

// Packet is one parsed RTP packet. Payload holds only the media bytes:
// header, CSRC list, extension, and trailing padding are all excluded.
// Packets are immutable once returned by Parse.
type Packet struct {
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	PayloadType    uint8
	Marker         bool
	CSRCCount      uint8
	HasExtension   bool
	HasPadding     bool
	Payload        []byte
}

// Parse validates buf as an RTP packet and extracts its header fields and
// payload. It never panics on arbitrary input; malformed packets are
// rejected with one of the classified errors above. The returned payload is
// a copy, so callers may reuse buf.
func Parse(buf []byte) (*Packet, error) {
	if len(buf) < fixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(buf))
	}
	if v := version(buf[0]); v != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBadVersion, v)
	}

	p := &Packet{
		HasPadding:     hasPadding(buf[0]),
		HasExtension:   hasExtension(buf[0]),
		CSRCCount:      csrcCount(buf[0]),
		Marker:         marker(buf[1]),
		PayloadType:    payloadType(buf[1]),
		SequenceNumber: binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:      binary.BigEndian.Uint32(buf[4:8]),
		SSRC:           binary.BigEndian.Uint32(buf[8:12]),
	}

	headerLen := fixedHeaderSize + 4*int(p.CSRCCount)
	if len(buf) < headerLen {
		return nil, fmt.Errorf("%w: CSRC list needs %d bytes, have %d", ErrTruncated, headerLen, len(buf))
	}

	if p.HasExtension {
		if len(buf) < headerLen+4 {
			return nil, fmt.Errorf("%w: extension header at offset %d", ErrTruncated, headerLen)
		}
		// Profile-specific ID (2 bytes) is skipped; length is in 32-bit
		// words and excludes the 4-byte extension header itself.
		extWords := int(binary.BigEndian.Uint16(buf[headerLen+2 : headerLen+4]))
		headerLen += 4 + 4*extWords
		if len(buf) < headerLen {
			return nil, fmt.Errorf("%w: extension body of %d words", ErrTruncated, extWords)
		}
	}

	end := len(buf)
	if p.HasPadding {
		pad := int(buf[end-1])
		if pad == 0 || pad > end-headerLen {
			return nil, fmt.Errorf("%w: %d with %d payload bytes", ErrBadPadding, pad, end-headerLen)
		}
		end -= pad
	}

	p.Payload = make([]byte, end-headerLen)
	copy(p.Payload, buf[headerLen:end])
	return p, nil
}
