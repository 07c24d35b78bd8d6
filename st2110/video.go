// Package st2110 decodes SMPTE ST 2110-20 (uncompressed video) and
// ST 2110-30/31 (PCM audio) RTP payloads into media buffers. Ancillary
// ST 2110-40 payloads are handled by the anc package.
package st2110

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zsiec/refract/rtp"
)

// PixelFormat tags the sample packing of a decoded frame buffer.
type PixelFormat int

const (
	UYVY PixelFormat = iota
	YUY2
	I420
)

func (f PixelFormat) String() string {
	switch f {
	case UYVY:
		return "uyvy"
	case YUY2:
		return "yuy2"
	case I420:
		return "i420"
	}
	return "invalid"
}

// ParsePixelFormat converts a format name ("uyvy", "yuy2", "i420").
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "uyvy":
		return UYVY, nil
	case "yuy2":
		return YUY2, nil
	case "i420":
		return I420, nil
	}
	return UYVY, fmt.Errorf("st2110: unknown pixel format %q", s)
}

// bytesForPixels converts a horizontal pixel count to packed bytes.
// UYVY/YUY2 are 4:2:2 at 2 bytes per pixel; I420 averages 12 bits.
func (f PixelFormat) bytesForPixels(px int) int {
	if f == I420 {
		return px * 3 / 2
	}
	return px * 2
}

// VideoParams describes a video stream's geometry. ST 2110-20 payload
// bytes do not self-describe a full frame geometry, so this comes from the
// caller's stream description.
type VideoParams struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	Interlaced  bool
}

// VideoFrame is one reassembled frame. Incomplete marks frames with
// pixel-level gaps from packet loss; such frames are still emitted so that
// degraded captures stay visible downstream.
type VideoFrame struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	Interlaced  bool
	Index       int
	Timestamp   uint32
	Incomplete  bool
	Data        []byte
}

// ErrLineHeader reports a malformed RFC 4175 line header inside a video
// payload. The carrying packet is skipped; the frame continues best-effort.
var ErrLineHeader = errors.New("st2110: malformed line header")

// lineHeader is one RFC 4175 sample-row header: length in bytes, field bit
// for interlace, scan line number, and the pixel offset the segment
// continues at.
type lineHeader struct {
	length int
	field  int
	line   int
	offset int
}

// VideoDecoder reassembles ST 2110-20 scan-line segments into frames.
// Packets must arrive in non-decreasing sequence order (the reorder buffer
// guarantees this); the marker bit closes a frame.
type VideoDecoder struct {
	params VideoParams
	stride int

	cur       []byte
	written   []bool // per-byte coverage; duplicates must not count twice
	covered   int
	curTS     uint32
	curActive bool
	truncated bool
	index     int
}

// NewVideoDecoder creates a decoder for one video stream.
func NewVideoDecoder(params VideoParams) *VideoDecoder {
	return &VideoDecoder{
		params: params,
		stride: params.PixelFormat.bytesForPixels(params.Width),
	}
}

// Decode consumes one ordered packet. It returns the completed frame when
// the packet's marker bit closes one, otherwise nil. A header-level parse
// error skips the packet's samples but keeps the frame open.
func (d *VideoDecoder) Decode(p *rtp.Packet) (*VideoFrame, error) {
	if !d.curActive {
		d.begin(p.Timestamp)
	}

	if err := d.placePayload(p.Payload); err != nil {
		d.truncated = true
		if p.Marker {
			return d.finish(), err
		}
		return nil, err
	}

	if p.Marker {
		return d.finish(), nil
	}
	return nil, nil
}

// Flush emits a trailing frame that never saw its marker packet, if any.
func (d *VideoDecoder) Flush() *VideoFrame {
	if !d.curActive {
		return nil
	}
	d.truncated = true
	return d.finish()
}

func (d *VideoDecoder) begin(ts uint32) {
	d.cur = make([]byte, d.stride*d.params.Height)
	d.written = make([]bool, len(d.cur))
	d.covered = 0
	d.curTS = ts
	d.curActive = true
	d.truncated = false
}

func (d *VideoDecoder) finish() *VideoFrame {
	frame := &VideoFrame{
		Width:       d.params.Width,
		Height:      d.params.Height,
		PixelFormat: d.params.PixelFormat,
		Interlaced:  d.params.Interlaced,
		Index:       d.index,
		Timestamp:   d.curTS,
		Incomplete:  d.truncated || d.covered < len(d.cur),
		Data:        d.cur,
	}
	d.index++
	d.cur = nil
	d.written = nil
	d.curActive = false
	return frame
}

// placePayload parses the RFC 4175 payload header (extended sequence
// number, then one or more line headers) and copies each sample segment
// into the frame buffer.
func (d *VideoDecoder) placePayload(payload []byte) error {
	// 2 bytes of extended sequence number precede the line headers.
	off := 2
	if len(payload) < off {
		return fmt.Errorf("%w: payload of %d bytes", ErrLineHeader, len(payload))
	}

	var headers []lineHeader
	for {
		if off+6 > len(payload) {
			return fmt.Errorf("%w: header at offset %d", ErrLineHeader, off)
		}
		length := int(binary.BigEndian.Uint16(payload[off : off+2]))
		fl := binary.BigEndian.Uint16(payload[off+2 : off+4])
		co := binary.BigEndian.Uint16(payload[off+4 : off+6])
		headers = append(headers, lineHeader{
			length: length,
			field:  int(fl >> 15),
			line:   int(fl & 0x7FFF),
			offset: int(co & 0x7FFF),
		})
		off += 6
		if co&0x8000 == 0 { // continuation clear: last header
			break
		}
	}

	for _, h := range headers {
		if off+h.length > len(payload) {
			return fmt.Errorf("%w: segment of %d bytes at offset %d", ErrLineHeader, h.length, off)
		}
		d.placeSegment(h, payload[off:off+h.length])
		off += h.length
	}
	return nil
}

// placeSegment copies one scan-line segment into the frame. Segments that
// land outside the declared geometry are clipped and leave the frame marked
// incomplete instead of failing the packet.
func (d *VideoDecoder) placeSegment(h lineHeader, samples []byte) {
	row := h.line
	if d.params.Interlaced {
		row = h.line*2 + h.field
	}
	if row < 0 || row >= d.params.Height {
		d.truncated = true
		return
	}

	pos := row*d.stride + d.params.PixelFormat.bytesForPixels(h.offset)
	end := pos + len(samples)
	if end > (row+1)*d.stride || end > len(d.cur) {
		d.truncated = true
		if max := (row + 1) * d.stride; end > max {
			end = max
		}
		if end > len(d.cur) {
			end = len(d.cur)
		}
		if end <= pos {
			return
		}
		samples = samples[:end-pos]
	}
	copy(d.cur[pos:end], samples)
	for i := pos; i < end; i++ {
		if !d.written[i] {
			d.written[i] = true
			d.covered++
		}
	}
}
