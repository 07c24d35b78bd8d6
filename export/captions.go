// Package export turns decoded streams into files: PCM to WAV, caption
// events to SRT/VTT text, ancillary events to JSON/CSV, frames to raw
// video.
package export

import (
	"time"

	"github.com/zsiec/ccx"

	"github.com/zsiec/refract/anc"
)

// Cue is one recovered caption with its display window on the stream's
// media timeline.
type Cue struct {
	Start   time.Duration
	End     time.Duration
	Channel int
	Text    string
}

// defaultCueHold keeps the last cue of a stream on screen for a bounded
// time instead of leaving it open-ended.
const defaultCueHold = 3 * time.Second

// metaClockRate is the RTP clock of ST 2110-40 streams (SMPTE ST 2110-10).
const metaClockRate = 90000

// CaptionExtractor recovers caption text from ancillary caption events. It
// runs stateful CEA-608 decoders per channel and CEA-708 service decoders
// fed from reassembled DTVCC packets.
type CaptionExtractor struct {
	cea608 map[int]*ccx.CEA608Decoder
	cea708 map[int]*ccx.CEA708Service

	dtvccBuf []byte

	firstTS uint32
	started bool
	cues    []Cue
}

// NewCaptionExtractor creates an extractor with decoders for the four
// CEA-608 channels and CEA-708 services 1 through 6.
func NewCaptionExtractor() *CaptionExtractor {
	ce := &CaptionExtractor{
		cea608: make(map[int]*ccx.CEA608Decoder, 4),
		cea708: make(map[int]*ccx.CEA708Service, 6),
	}
	for ch := 1; ch <= 4; ch++ {
		ce.cea608[ch] = ccx.NewCEA608Decoder()
	}
	for svc := 1; svc <= 6; svc++ {
		ce.cea708[svc] = ccx.NewCEA708Service()
	}
	return ce
}

// Feed consumes one ancillary event. Non-caption events are ignored, so
// the full event list of a metadata stream can be passed through.
func (ce *CaptionExtractor) Feed(ev *anc.Event) {
	if ev.Kind != anc.KindCaption {
		return
	}
	if !ce.started {
		ce.firstTS = ev.Timestamp
		ce.started = true
	}
	at := ce.eventTime(ev.Timestamp)

	switch ev.CaptionStandard {
	case anc.CEA708:
		ce.feedCDP(ev.Data, at)
	case anc.CEA608:
		// SMPTE 334-1 raw 608: one byte of line/field info, then the pair.
		if len(ev.Data) >= 3 {
			field := 1
			if ev.Data[0]&0x80 == 0 {
				field = 2
			}
			ce.feed608(field, ev.Data[1], ev.Data[2], at)
		}
	}
}

// Cues closes out any buffered DTVCC packet and returns the recovered
// cues in timeline order.
func (ce *CaptionExtractor) Cues() []Cue {
	ce.drainDTVCC(ce.lastTime())
	ce.closeCues()
	return ce.cues
}

func (ce *CaptionExtractor) eventTime(ts uint32) time.Duration {
	ticks := int64(int32(ts - ce.firstTS))
	return time.Duration(ticks) * time.Second / metaClockRate
}

func (ce *CaptionExtractor) lastTime() time.Duration {
	if n := len(ce.cues); n > 0 {
		return ce.cues[n-1].Start + defaultCueHold
	}
	return 0
}

func (ce *CaptionExtractor) feedCDP(udw []byte, at time.Duration) {
	triplets, err := anc.ParseCDP(udw)
	if err != nil {
		return
	}
	for _, t := range triplets {
		if !t.Valid {
			continue
		}
		switch t.Type {
		case 0, 1:
			ce.feed608(int(t.Type)+1, t.B1, t.B2, at)
		case 3: // DTVCC packet start
			ce.drainDTVCC(at)
			ce.dtvccBuf = append(ce.dtvccBuf[:0], t.B1, t.B2)
		case 2: // DTVCC packet continuation
			ce.dtvccBuf = append(ce.dtvccBuf, t.B1, t.B2)
		}
	}
}

func (ce *CaptionExtractor) feed608(channel int, b1, b2 byte, at time.Duration) {
	dec := ce.cea608[channel]
	if dec == nil {
		return
	}
	if text := dec.Decode(b1, b2); text != "" {
		ce.emit(channel, text, at)
	}
}

func (ce *CaptionExtractor) drainDTVCC(at time.Duration) {
	if len(ce.dtvccBuf) < 1 {
		return
	}
	packetSize := ccx.DTVCCPacketSize(ce.dtvccBuf[0])
	if len(ce.dtvccBuf) < packetSize {
		return
	}
	for _, block := range ccx.ParseDTVCCPacket(ce.dtvccBuf[:packetSize]) {
		svc := ce.cea708[block.ServiceNum]
		if svc == nil {
			continue
		}
		if svc.ProcessBlock(block.Data) {
			if text := svc.DisplayText(); text != "" {
				// 708 services report on channels above the 608 range.
				ce.emit(block.ServiceNum+6, text, at)
			}
		}
	}
	ce.dtvccBuf = ce.dtvccBuf[packetSize:]
}

func (ce *CaptionExtractor) emit(channel int, text string, at time.Duration) {
	ce.cues = append(ce.cues, Cue{Start: at, Channel: channel, Text: text})
}

// closeCues assigns end times: a cue holds until the next cue on the same
// channel, capped at defaultCueHold.
func (ce *CaptionExtractor) closeCues() {
	next := make(map[int]time.Duration)
	for i := len(ce.cues) - 1; i >= 0; i-- {
		c := &ce.cues[i]
		end := c.Start + defaultCueHold
		if n, ok := next[c.Channel]; ok && n < end {
			end = n
		}
		if end <= c.Start {
			end = c.Start + time.Second
		}
		c.End = end
		next[c.Channel] = c.Start
	}
}
