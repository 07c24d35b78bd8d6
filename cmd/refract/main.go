// Command refract extracts and decodes SMPTE ST 2110 streams from packet
// captures: list the RTP streams in a pcap, then export audio as WAV,
// captions as SRT/VTT, ancillary events as JSON/CSV, and video as raw
// frames.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/zsiec/refract/anc"
	"github.com/zsiec/refract/capture"
	"github.com/zsiec/refract/export"
	"github.com/zsiec/refract/extract"
	"github.com/zsiec/refract/st2110"
	"github.com/zsiec/refract/stream"
)

var version = "dev"

type config struct {
	pcapPath string
	ssrc     uint32
	ssrcSet  bool

	overrides stream.Overrides

	audioOut    string
	captionsOut string
	eventsOut   string
	videoOut    string

	video st2110.VideoParams
	audio st2110.AudioParams
}

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, aborting", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*config, error) {
	cfg := &config{
		overrides: stream.Overrides{
			PT:   make(map[uint8]stream.Type),
			SSRC: make(map[uint32]stream.Type),
		},
		audio: st2110.AudioParams{},
	}

	fs := flag.NewFlagSet("refract", flag.ContinueOnError)
	fs.StringVar(&cfg.pcapPath, "in", "", "pcap or pcapng capture to read (required)")

	fs.Func("ssrc", "only export the stream with this SSRC (hex 0x... or decimal)", func(s string) error {
		v, err := stream.ParseSSRC(s)
		if err != nil {
			return err
		}
		cfg.ssrc, cfg.ssrcSet = v, true
		return nil
	})
	fs.Func("map-pt", "payload type override, PT=audio|video|meta|unknown (repeatable)", func(s string) error {
		pt, typ, err := stream.ParsePTOverride(s)
		if err != nil {
			return err
		}
		cfg.overrides.PT[pt] = typ
		return nil
	})
	fs.Func("map-ssrc", "SSRC override, SSRC=audio|video|meta|unknown (repeatable)", func(s string) error {
		ssrc, typ, err := stream.ParseSSRCOverride(s)
		if err != nil {
			return err
		}
		cfg.overrides.SSRC[ssrc] = typ
		return nil
	})

	fs.StringVar(&cfg.audioOut, "export-audio", "", "write decoded audio streams as WAV to this path prefix")
	fs.StringVar(&cfg.captionsOut, "export-captions", "", "write recovered captions to this path (.srt or .vtt)")
	fs.StringVar(&cfg.eventsOut, "export-anc", "", "write ancillary events to this path (.json or .csv)")
	fs.StringVar(&cfg.videoOut, "export-video", "", "write reassembled video as raw frames to this path prefix")

	fs.IntVar(&cfg.video.Width, "width", 1920, "video frame width")
	fs.IntVar(&cfg.video.Height, "height", 1080, "video frame height")
	fs.BoolVar(&cfg.video.Interlaced, "interlaced", false, "treat video as interlaced fields")
	fs.Func("pixfmt", "video pixel format: uyvy, yuy2, i420 (default uyvy)", func(s string) error {
		pf, err := st2110.ParsePixelFormat(s)
		if err != nil {
			return err
		}
		cfg.video.PixelFormat = pf
		return nil
	})

	fs.IntVar(&cfg.audio.SampleRate, "sample-rate", 0, "audio sample rate (0 = infer)")
	fs.IntVar(&cfg.audio.BitDepth, "bit-depth", 0, "audio bit depth (0 = infer)")
	fs.IntVar(&cfg.audio.Channels, "channels", 0, "audio channel count (0 = infer)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.pcapPath == "" {
		return nil, fmt.Errorf("-in is required")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config) error {
	src, err := capture.OpenPcap(cfg.pcapPath)
	if err != nil {
		return err
	}
	defer src.Close()

	ex := extract.New(extract.Options{
		Overrides: cfg.overrides,
		Video:     cfg.video,
		Audio:     cfg.audio,
		Log:       slog.Default(),
	})
	res, err := ex.Run(ctx, src)
	if err != nil {
		return err
	}

	printSummary(res, src.SkippedFrames)

	for _, sr := range res.Streams {
		if cfg.ssrcSet && sr.Summary.SSRC != fmt.Sprintf("%#010x", cfg.ssrc) {
			continue
		}
		if err := exportStream(cfg, sr); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(res *extract.Result, skippedFrames int) {
	fmt.Printf("refract %s: %d RTP packets, %d non-RTP payloads, %d skipped frames, %d streams\n\n",
		version, res.Packets, res.NonRTP, skippedFrames, len(res.Streams))

	for _, sr := range res.Streams {
		s := sr.Summary
		fmt.Printf("%s  %-5s  pt=%d (%s)\n", s.SSRC, s.Type, s.PayloadType, s.PayloadTypeName)
		fmt.Printf("  packets=%d bytes=%d seq=%d..%d lost=%d ooo=%d stale=%d loss=%.2f%%\n",
			s.PacketCount, s.PayloadBytes, s.FirstSeq, s.LastSeq,
			s.Lost, s.OutOfOrder, s.DroppedStale, s.LossRate*100)
		switch {
		case sr.Audio != nil:
			fmt.Printf("  audio: %d Hz, %d-bit, %d ch, %.3fs (%d silent samples)\n",
				sr.Audio.SampleRate, sr.Audio.BitDepth, sr.Audio.Channels,
				sr.Audio.Duration(), sr.Audio.SilentSamples)
			if sr.Audio.Discontinuities > 0 {
				fmt.Printf("  audio: %d timestamp discontinuities not filled\n",
					sr.Audio.Discontinuities)
			}
		case len(sr.Frames) > 0:
			incomplete := 0
			for _, f := range sr.Frames {
				if f.Incomplete {
					incomplete++
				}
			}
			fmt.Printf("  video: %d frames (%d incomplete), %dx%d %s\n",
				len(sr.Frames), incomplete,
				sr.Frames[0].Width, sr.Frames[0].Height, sr.Frames[0].PixelFormat)
		case len(sr.Events) > 0:
			fmt.Printf("  anc: %d events\n", len(sr.Events))
			for did, n := range countEventTypes(sr.Events) {
				fmt.Printf("    %s: %d\n", did, n)
			}
		}
		fmt.Println()
	}
}

func countEventTypes(events []*anc.Event) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.TypeName()]++
	}
	return counts
}

func exportStream(cfg *config, sr *extract.StreamResult) error {
	tag := strings.TrimPrefix(sr.Summary.SSRC, "0x")

	if cfg.audioOut != "" && sr.Audio != nil {
		path := fmt.Sprintf("%s_%s.wav", cfg.audioOut, tag)
		if err := writeFile(path, func(f *os.File) error {
			return export.WriteWAV(f, sr.Audio)
		}); err != nil {
			return err
		}
		slog.Info("wrote audio", "path", path, "duration_s", sr.Audio.Duration())
	}

	if cfg.videoOut != "" && len(sr.Frames) > 0 {
		path := fmt.Sprintf("%s_%s.raw", cfg.videoOut, tag)
		if err := writeFile(path, func(f *os.File) error {
			return export.WriteRawVideo(f, sr.Frames)
		}); err != nil {
			return err
		}
		slog.Info("wrote video", "path", path, "frames", len(sr.Frames))
	}

	if len(sr.Events) == 0 {
		return nil
	}

	if cfg.captionsOut != "" {
		ce := export.NewCaptionExtractor()
		for _, ev := range sr.Events {
			ce.Feed(ev)
		}
		if cues := ce.Cues(); len(cues) > 0 {
			path := perStreamPath(cfg.captionsOut, tag)
			if err := writeFile(path, func(f *os.File) error {
				if strings.HasSuffix(cfg.captionsOut, ".vtt") {
					return export.WriteVTT(f, cues)
				}
				return export.WriteSRT(f, cues)
			}); err != nil {
				return err
			}
			slog.Info("wrote captions", "path", path, "cues", len(cues))
		}
	}

	if cfg.eventsOut != "" {
		path := perStreamPath(cfg.eventsOut, tag)
		if err := writeFile(path, func(f *os.File) error {
			if strings.HasSuffix(cfg.eventsOut, ".csv") {
				return export.WriteEventsCSV(f, sr.Events)
			}
			return export.WriteEventsJSON(f, sr.Events)
		}); err != nil {
			return err
		}
		slog.Info("wrote ancillary events", "path", path, "events", len(sr.Events))
	}
	return nil
}

// perStreamPath tags an output path with the stream's SSRC ahead of the
// extension, so multiple metadata streams never clobber one file.
func perStreamPath(path, tag string) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(path, ext), tag, ext)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
