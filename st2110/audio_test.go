package st2110

import (
	"testing"

	"github.com/zsiec/refract/rtp"
)

func audioPacket(seq uint16, ts uint32, payload []byte) *rtp.Packet {
	return &rtp.Packet{SequenceNumber: seq, Timestamp: ts, PayloadType: 97, Payload: payload}
}

func TestAudioDecoder_Concatenates(t *testing.T) {
	t.Parallel()
	// 24-bit stereo: 6 bytes per sample frame, 48 frames per packet.
	d := NewAudioDecoder(AudioParams{SampleRate: 48000, BitDepth: 24, Channels: 2})
	const frames = 48
	payload := make([]byte, frames*6)

	for i := 0; i < 10; i++ {
		if err := d.Decode(audioPacket(uint16(i), uint32(i*frames), payload)); err != nil {
			t.Fatal(err)
		}
	}

	block := d.Block()
	if block == nil {
		t.Fatal("no block decoded")
	}
	if block.Samples != 10*frames {
		t.Errorf("Samples = %d, want %d", block.Samples, 10*frames)
	}
	if len(block.PCM) != 10*frames*6 {
		t.Errorf("PCM bytes = %d, want %d", len(block.PCM), 10*frames*6)
	}
	if block.SilentSamples != 0 {
		t.Errorf("SilentSamples = %d, want 0", block.SilentSamples)
	}
}

func TestAudioDecoder_GapFilledWithSilence(t *testing.T) {
	t.Parallel()
	d := NewAudioDecoder(AudioParams{SampleRate: 48000, BitDepth: 16, Channels: 1})
	payload := []byte{0x7F, 0xFF, 0x7F, 0xFF} // 2 samples of 16-bit mono

	if err := d.Decode(audioPacket(0, 0, payload)); err != nil {
		t.Fatal(err)
	}
	// Next packet jumps 6 ticks instead of 2: 4 samples went missing.
	if err := d.Decode(audioPacket(2, 6, payload)); err != nil {
		t.Fatal(err)
	}

	block := d.Block()
	if block.Samples != 8 {
		t.Fatalf("Samples = %d, want 8", block.Samples)
	}
	if block.SilentSamples != 4 {
		t.Errorf("SilentSamples = %d, want 4", block.SilentSamples)
	}
	for i := 4; i < 12; i++ {
		if block.PCM[i] != 0 {
			t.Fatalf("gap byte %d = %#02x, want silence", i, block.PCM[i])
		}
	}
	if block.PCM[12] != 0x7F {
		t.Error("post-gap payload misplaced")
	}
}

func TestAudioDecoder_TimestampJumpNotMaterialized(t *testing.T) {
	t.Parallel()
	d := NewAudioDecoder(AudioParams{SampleRate: 48000, BitDepth: 24, Channels: 2})
	payload := make([]byte, 2*6) // 2 sample frames

	if err := d.Decode(audioPacket(1, 1000, payload)); err != nil {
		t.Fatal(err)
	}
	// Consecutive sequence number, corrupt timestamp: a 48M-tick jump would
	// be ~288 MB of silence. Resync instead of filling.
	if err := d.Decode(audioPacket(2, 1000+48_000_000, payload)); err != nil {
		t.Fatal(err)
	}
	// The timeline continues from the resynced point; a real small gap
	// after the jump still fills.
	if err := d.Decode(audioPacket(3, 1000+48_000_000+4, payload)); err != nil {
		t.Fatal(err)
	}

	block := d.Block()
	if block.Discontinuities != 1 {
		t.Errorf("Discontinuities = %d, want 1", block.Discontinuities)
	}
	if block.SilentSamples != 2 {
		t.Errorf("SilentSamples = %d, want 2", block.SilentSamples)
	}
	if want := 3*len(payload) + 2*6; len(block.PCM) != want {
		t.Errorf("PCM bytes = %d, want %d", len(block.PCM), want)
	}
}

func TestAudioDecoder_InfersParams(t *testing.T) {
	t.Parallel()
	// 48 ticks per packet, 288 bytes -> 6 bytes per frame -> 24-bit stereo.
	d := NewAudioDecoder(AudioParams{})
	payload := make([]byte, 288)

	for i := 0; i < 4; i++ {
		if err := d.Decode(audioPacket(uint16(i), uint32(i*48), payload)); err != nil {
			t.Fatal(err)
		}
	}

	block := d.Block()
	if block.BitDepth != 24 || block.Channels != 2 || block.SampleRate != 48000 {
		t.Errorf("inferred %d-bit %dch @%d", block.BitDepth, block.Channels, block.SampleRate)
	}
	if block.Samples != 4*48 {
		t.Errorf("Samples = %d, want %d", block.Samples, 4*48)
	}
}

func TestAudioDecoder_SinglePacketFallsBack(t *testing.T) {
	t.Parallel()
	d := NewAudioDecoder(AudioParams{})
	if err := d.Decode(audioPacket(0, 0, make([]byte, 288))); err != nil {
		t.Fatal(err)
	}

	block := d.Block()
	if block == nil {
		t.Fatal("single-packet stream should still decode")
	}
	if block.BitDepth != 24 || block.Channels != 2 {
		t.Errorf("fallback params = %d-bit %dch", block.BitDepth, block.Channels)
	}
	if block.Samples != 48 {
		t.Errorf("Samples = %d, want 48", block.Samples)
	}
}

func TestInferAudioParams(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		in          AudioParams
		payload, dt int
		wantDepth   int
		wantCh      int
	}{
		{"24-bit stereo", AudioParams{}, 288, 48, 24, 2},
		{"16-bit mono", AudioParams{BitDepth: 16}, 96, 48, 16, 1},
		{"16-bit 8ch", AudioParams{Channels: 8}, 768, 48, 16, 8},
		{"no cadence", AudioParams{}, 288, 0, 24, 2},
		{"explicit wins", AudioParams{SampleRate: 96000, BitDepth: 16, Channels: 4}, 288, 48, 16, 4},
	}
	for _, tc := range cases {
		got := InferAudioParams(tc.in, tc.payload, tc.dt)
		if got.BitDepth != tc.wantDepth || got.Channels != tc.wantCh {
			t.Errorf("%s: got %d-bit %dch", tc.name, got.BitDepth, got.Channels)
		}
		if got.SampleRate == 0 {
			t.Errorf("%s: sample rate not defaulted", tc.name)
		}
	}
}

func TestAudioBlockDuration(t *testing.T) {
	t.Parallel()
	b := &AudioBlock{SampleRate: 48000, Samples: 24000}
	if b.Duration() != 0.5 {
		t.Errorf("Duration = %v, want 0.5", b.Duration())
	}
}
