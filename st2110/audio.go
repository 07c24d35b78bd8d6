package st2110

import (
	"bytes"
	"fmt"

	"github.com/zsiec/refract/rtp"
)

// AudioParams describes an ST 2110-30/31 PCM stream. Zero-value fields are
// inferred: the timestamp cadence between packets gives samples per packet,
// payload size divided by that gives the channel/depth frame size.
type AudioParams struct {
	SampleRate int
	BitDepth   int // 16 or 24
	Channels   int
}

// Audio defaults when a stream is too short or too irregular to infer from:
// professional ST 2110-30 is overwhelmingly 48 kHz 24-bit stereo.
const (
	defaultSampleRate = 48000
	defaultBitDepth   = 24
	defaultChannels   = 2
)

// maxGapFillSeconds bounds the silence inserted for one timestamp jump.
// A jump past this is a clock discontinuity (corrupt or rebased timestamp),
// not loss: materializing it would allocate gigabytes from a single bad
// packet. The timeline resyncs instead and the jump is counted.
const maxGapFillSeconds = 10

// AudioBlock is one stream's contiguous decoded PCM timeline. Samples are
// interleaved, big-endian as carried on the wire. Gaps from detected loss
// are zero-filled so downstream export keeps timeline alignment;
// SilentSamples counts the inserted sample frames.
type AudioBlock struct {
	SampleRate      int
	BitDepth        int
	Channels        int
	FirstTimestamp  uint32
	Samples         int // sample frames across all channels
	SilentSamples   int
	Discontinuities int // timestamp jumps too large to fill
	PCM             []byte
}

// Duration returns the block length in seconds.
func (b *AudioBlock) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Samples) / float64(b.SampleRate)
}

// AudioDecoder concatenates ordered ST 2110-30/31 payloads into one PCM
// buffer, zero-filling timestamp gaps left by lost packets.
type AudioDecoder struct {
	params   AudioParams
	inferred bool

	buf     bytes.Buffer
	pending *rtp.Packet // first packet held back until params are known
	firstTS uint32
	nextTS  uint32 // expected timestamp of the next packet
	started bool
	silent  int
	jumps   int
}

// NewAudioDecoder creates a decoder. Explicit params always win; zero
// fields are inferred from the first two packets.
func NewAudioDecoder(params AudioParams) *AudioDecoder {
	d := &AudioDecoder{params: params}
	d.inferred = params.SampleRate != 0 && params.BitDepth != 0 && params.Channels != 0
	return d
}

// frameSize is the byte count of one sample frame across all channels.
func (d *AudioDecoder) frameSize() int {
	return d.params.Channels * d.params.BitDepth / 8
}

// Decode consumes one ordered packet.
func (d *AudioDecoder) Decode(p *rtp.Packet) error {
	if !d.inferred {
		if d.pending == nil {
			d.pending = p
			return nil
		}
		tsDelta := int(int32(p.Timestamp - d.pending.Timestamp))
		d.params = InferAudioParams(d.params, len(d.pending.Payload), tsDelta)
		d.inferred = true
		if err := d.append(d.pending); err != nil {
			return err
		}
		d.pending = nil
	}
	return d.append(p)
}

func (d *AudioDecoder) append(p *rtp.Packet) error {
	fs := d.frameSize()
	if fs <= 0 {
		return fmt.Errorf("st2110: audio frame size %d", fs)
	}
	if len(p.Payload)%fs != 0 {
		return fmt.Errorf("st2110: audio payload %d bytes not a multiple of frame size %d", len(p.Payload), fs)
	}

	if !d.started {
		d.firstTS = p.Timestamp
		d.nextTS = p.Timestamp
		d.started = true
	}

	// Loss shows up as the timestamp running ahead of the accumulated
	// sample count. Fill with silence to keep the timeline aligned, unless
	// the jump is too large to be loss.
	if gap := int(int32(p.Timestamp - d.nextTS)); gap > 0 {
		if gap > maxGapFillSeconds*d.params.SampleRate {
			d.jumps++
			d.nextTS = p.Timestamp
		} else {
			d.buf.Write(make([]byte, gap*fs))
			d.silent += gap
			d.nextTS += uint32(gap)
		}
	}

	d.buf.Write(p.Payload)
	d.nextTS += uint32(len(p.Payload) / fs)
	return nil
}

// Block finalizes the stream and returns its decoded PCM timeline, or nil
// if no payload was ever decodable.
func (d *AudioDecoder) Block() *AudioBlock {
	if d.pending != nil {
		// Single-packet stream: nothing to infer cadence from.
		d.params = InferAudioParams(d.params, len(d.pending.Payload), 0)
		d.inferred = true
		if err := d.append(d.pending); err == nil {
			d.pending = nil
		}
	}
	if !d.started {
		return nil
	}
	pcm := d.buf.Bytes()
	return &AudioBlock{
		SampleRate:      d.params.SampleRate,
		BitDepth:        d.params.BitDepth,
		Channels:        d.params.Channels,
		FirstTimestamp:  d.firstTS,
		Samples:         len(pcm) / d.frameSize(),
		SilentSamples:   d.silent,
		Discontinuities: d.jumps,
		PCM:             pcm,
	}
}

// InferAudioParams fills the zero fields of params. tsDelta is the RTP
// timestamp advance between consecutive packets, which for linear PCM is
// the sample-frame count per packet; payloadLen/tsDelta then yields bytes
// per frame. Ambiguous splits prefer 24-bit and fewer channels, the common
// professional configuration. Unresolvable inputs fall back to 48 kHz
// 24-bit stereo.
func InferAudioParams(params AudioParams, payloadLen, tsDelta int) AudioParams {
	if params.SampleRate == 0 {
		params.SampleRate = defaultSampleRate
	}
	if params.BitDepth != 0 && params.Channels != 0 {
		return params
	}

	frameBytes := 0
	if tsDelta > 0 && payloadLen > 0 && payloadLen%tsDelta == 0 {
		frameBytes = payloadLen / tsDelta
	}

	if frameBytes == 0 {
		if params.BitDepth == 0 {
			params.BitDepth = defaultBitDepth
		}
		if params.Channels == 0 {
			params.Channels = defaultChannels
		}
		return params
	}

	depths := []int{24, 16}
	if params.BitDepth != 0 {
		depths = []int{params.BitDepth}
	}
	for _, depth := range depths {
		bps := depth / 8
		if frameBytes%bps != 0 {
			continue
		}
		ch := frameBytes / bps
		if params.Channels != 0 && params.Channels != ch {
			continue
		}
		params.BitDepth = depth
		params.Channels = ch
		return params
	}

	if params.BitDepth == 0 {
		params.BitDepth = defaultBitDepth
	}
	if params.Channels == 0 {
		params.Channels = defaultChannels
	}
	return params
}
