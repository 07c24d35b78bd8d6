// Package extract runs one pass over a packet source and turns it into
// per-stream summaries and decoded media: RTP parse, per-SSRC tracking and
// classification, order restoration, then type-specific decode.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/refract/anc"
	"github.com/zsiec/refract/capture"
	"github.com/zsiec/refract/rtp"
	"github.com/zsiec/refract/st2110"
	"github.com/zsiec/refract/stream"
)

// Options configures one extraction run. Zero values are usable: no
// overrides, default reorder window, inferred audio parameters, 1080p UYVY
// video geometry.
type Options struct {
	Overrides     stream.Overrides
	ReorderWindow int
	Video         st2110.VideoParams
	Audio         st2110.AudioParams
	Log           *slog.Logger
}

// Extractor owns one run's classifier table, tracker, and decoder
// instances. Separate Extractors may run concurrently over different
// sources; a single Extractor is single-use per Run.
type Extractor struct {
	opts Options
	log  *slog.Logger
}

// StreamResult is one stream's decoded output. Exactly one of Frames,
// Audio, or Events is populated, matching the resolved type; unknown
// streams carry only their summary.
type StreamResult struct {
	Summary Summary
	Frames  []*st2110.VideoFrame
	Audio   *st2110.AudioBlock
	Events  []*anc.Event
}

// Result is the output of one extraction run.
type Result struct {
	Streams []*StreamResult // sorted by SSRC

	// Packets counts accepted RTP packets; NonRTP counts UDP payloads the
	// parser rejected.
	Packets int
	NonRTP  int
}

// New creates an extractor.
func New(opts Options) *Extractor {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.ReorderWindow < 1 {
		opts.ReorderWindow = stream.DefaultReorderWindow
	}
	if opts.Video.Width == 0 || opts.Video.Height == 0 {
		opts.Video.Width, opts.Video.Height = 1920, 1080
	}
	return &Extractor{
		opts: opts,
		log:  log.With("component", "extractor"),
	}
}

// Run performs the extraction pass. Per-packet RTP parse failures are
// counted and skipped; a source read failure or context cancellation aborts
// the run, discarding partial results.
func (e *Extractor) Run(ctx context.Context, src capture.Source) (*Result, error) {
	tracker := stream.NewTracker(e.opts.Overrides)
	buckets := make(map[uint32][]*rtp.Packet)
	res := &Result{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract: packet source: %w", err)
		}

		pkt, perr := rtp.Parse(rec.Payload)
		if perr != nil {
			res.NonRTP++
			e.log.Debug("skipping non-RTP payload", "index", rec.Index, "error", perr)
			continue
		}

		tracker.Observe(pkt, rec.Timestamp)
		buckets[pkt.SSRC] = append(buckets[pkt.SSRC], pkt)
		res.Packets++
	}

	states := tracker.States()
	res.Streams = make([]*StreamResult, len(states))

	// Streams are independent: decode them in parallel. Each goroutine
	// touches only its own state and bucket.
	g, ctx := errgroup.WithContext(ctx)
	for i, st := range states {
		g.Go(func() error {
			sr, err := e.decodeStream(ctx, st, buckets[st.SSRC])
			if err != nil {
				return err
			}
			res.Streams[i] = sr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.log.Info("extraction complete",
		"streams", len(res.Streams),
		"packets", res.Packets,
		"non_rtp", res.NonRTP,
	)
	return res, nil
}

// decodeStream restores order and decodes one stream's packets according to
// its resolved type.
func (e *Extractor) decodeStream(ctx context.Context, st *stream.State, packets []*rtp.Packet) (*StreamResult, error) {
	rb := stream.NewReorder(e.opts.ReorderWindow)
	ordered := make([]*rtp.Packet, 0, len(packets))
	for _, p := range packets {
		ordered = append(ordered, rb.Push(p)...)
	}
	ordered = append(ordered, rb.Flush()...)
	st.DroppedStale = rb.DroppedStale

	log := e.log.With("ssrc", fmt.Sprintf("%#010x", st.SSRC), "type", st.Resolved.String())
	sr := &StreamResult{}

	switch st.Resolved {
	case stream.Video:
		dec := st2110.NewVideoDecoder(e.opts.Video)
		for _, p := range ordered {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			frame, err := dec.Decode(p)
			if err != nil {
				log.Debug("video payload error", "seq", p.SequenceNumber, "error", err)
			}
			if frame != nil {
				sr.Frames = append(sr.Frames, frame)
			}
		}
		if frame := dec.Flush(); frame != nil {
			sr.Frames = append(sr.Frames, frame)
		}

	case stream.Audio:
		dec := st2110.NewAudioDecoder(e.opts.Audio)
		for _, p := range ordered {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := dec.Decode(p); err != nil {
				log.Debug("audio payload error", "seq", p.SequenceNumber, "error", err)
			}
		}
		sr.Audio = dec.Block()

	case stream.Meta:
		for _, p := range ordered {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			events, err := anc.DecodePayload(p.Payload, p.Timestamp)
			if err != nil {
				log.Debug("ancillary payload error", "seq", p.SequenceNumber, "error", err)
			}
			sr.Events = append(sr.Events, events...)
		}
	}

	sr.Summary = newSummary(st)
	return sr, nil
}
