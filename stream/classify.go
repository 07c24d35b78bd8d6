package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidOverrideFormat is returned for a malformed override entry
// (missing separator, bad key). Like ErrInvalidStreamType it is fatal at
// configuration time, never per-packet.
var ErrInvalidOverrideFormat = errors.New("stream: invalid override format")

// Overrides is the immutable per-run override table. An SSRC entry beats a
// payload-type entry, which beats the static default table: SSRC is the
// more specific identity, and ST 2110 dynamic payload types collide across
// vendors, so the PT mapping is only a default.
type Overrides struct {
	PT   map[uint8]Type
	SSRC map[uint32]Type
}

// Resolve classifies one stream. Pure and deterministic: the result
// depends only on (ssrc, pt, overrides).
func (o Overrides) Resolve(ssrc uint32, pt uint8) Type {
	if t, ok := o.SSRC[ssrc]; ok {
		return t
	}
	if t, ok := o.PT[pt]; ok {
		return t
	}
	return defaultType(pt)
}

// defaultType is the static payload-type table. 96/97/98/100 follow common
// ST 2110 practice; the low ranges are the IANA static assignments for
// legacy audio and video codecs.
func defaultType(pt uint8) Type {
	switch {
	case pt == 96:
		return Video
	case pt == 97, pt == 100:
		return Audio
	case pt == 98:
		return Meta
	case pt == 0, pt >= 3 && pt <= 11, pt == 14:
		return Audio
	case pt == 26, pt >= 31 && pt <= 34:
		return Video
	}
	return Unknown
}

// payloadTypeNames labels the payload types this engine expects plus the
// static assignments that show up in mixed captures.
var payloadTypeNames = map[uint8]string{
	0:   "PCMU",
	8:   "PCMA",
	10:  "L16 Stereo",
	11:  "L16 Mono",
	14:  "MPA",
	26:  "JPEG",
	31:  "H261",
	32:  "MPV",
	33:  "MP2T",
	34:  "H263",
	96:  "ST2110-20 Video",
	97:  "ST2110-30 Audio",
	98:  "ST2110-40 Ancillary",
	100: "ST2110-31 Audio",
}

// PayloadTypeName returns a friendly label for a payload type.
func PayloadTypeName(pt uint8) string {
	if name, ok := payloadTypeNames[pt]; ok {
		return name
	}
	return fmt.Sprintf("Unregistered (PT %d)", pt)
}

// ParsePTOverride parses a payload-type override entry of the form
// "PT=type" with PT decimal 0-127.
func ParsePTOverride(entry string) (uint8, Type, error) {
	key, val, ok := strings.Cut(entry, "=")
	if !ok {
		return 0, Unknown, fmt.Errorf("%w: %q (want PT=type)", ErrInvalidOverrideFormat, entry)
	}
	pt, err := strconv.ParseUint(key, 10, 8)
	if err != nil || pt > 127 {
		return 0, Unknown, fmt.Errorf("%w: payload type %q", ErrInvalidOverrideFormat, key)
	}
	t, err := ParseType(val)
	if err != nil {
		return 0, Unknown, err
	}
	return uint8(pt), t, nil
}

// ParseSSRCOverride parses an SSRC override entry of the form "SSRC=type"
// with SSRC in hex ("0x...") or decimal.
func ParseSSRCOverride(entry string) (uint32, Type, error) {
	key, val, ok := strings.Cut(entry, "=")
	if !ok {
		return 0, Unknown, fmt.Errorf("%w: %q (want SSRC=type)", ErrInvalidOverrideFormat, entry)
	}
	ssrc, err := ParseSSRC(key)
	if err != nil {
		return 0, Unknown, err
	}
	t, err := ParseType(val)
	if err != nil {
		return 0, Unknown, err
	}
	return ssrc, t, nil
}

// ParseSSRC parses an SSRC written in hex ("0x...") or decimal.
func ParseSSRC(s string) (uint32, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: SSRC %q", ErrInvalidOverrideFormat, s)
	}
	return uint32(v), nil
}
