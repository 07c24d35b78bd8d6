package capture

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// packetReader is the common surface of pcapgo's classic and ng readers.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PcapSource reads a pcap or pcapng capture file and yields the UDP
// payloads it contains, skipping non-UDP frames. It decapsulates down to
// UDP itself; whether a payload is RTP is the engine's decision.
type PcapSource struct {
	f     *os.File
	r     packetReader
	index int

	// SkippedFrames counts captured frames without a UDP layer.
	SkippedFrames int
}

// OpenPcap opens a capture file, trying the classic pcap format first and
// falling back to pcapng.
func OpenPcap(path string) (*PcapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	if r, err := pcapgo.NewReader(f); err == nil {
		return &PcapSource{f: f, r: r}, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: %w", err)
	}
	r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: %s: not a pcap or pcapng file: %w", path, err)
	}
	return &PcapSource{f: f, r: r}, nil
}

// Next implements Source, returning the next UDP payload in the file.
func (s *PcapSource) Next() (Record, error) {
	for {
		data, ci, err := s.r.ReadPacketData()
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, fmt.Errorf("capture: reading frame %d: %w", s.index, err)
		}

		pkt := gopacket.NewPacket(data, s.r.LinkType(), gopacket.Default)
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			s.SkippedFrames++
			continue
		}

		rec := Record{
			Index:     s.index,
			Payload:   udpLayer.(*layers.UDP).Payload,
			Timestamp: ci.Timestamp,
		}
		s.index++
		return rec, nil
	}
}

// Close releases the underlying file.
func (s *PcapSource) Close() error {
	return s.f.Close()
}
