// Package stream classifies and tracks RTP streams by SSRC: stream-type
// resolution under operator overrides, per-stream continuity statistics,
// and sequence-order restoration ahead of the media decoders.
package stream

import (
	"errors"
	"fmt"
)

// Type is the semantic classification of an RTP stream.
type Type int

const (
	Unknown Type = iota
	Audio
	Video
	Meta
)

// ErrInvalidStreamType is returned when an override names a type outside
// audio/video/meta/unknown. It is a configuration error: reported before
// any packet is processed.
var ErrInvalidStreamType = errors.New("stream: invalid stream type")

func (t Type) String() string {
	switch t {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Meta:
		return "meta"
	default:
		return "unknown"
	}
}

// ParseType converts an override type string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "audio":
		return Audio, nil
	case "video":
		return Video, nil
	case "meta":
		return Meta, nil
	case "unknown":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrInvalidStreamType, s)
}
