package export

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zsiec/refract/st2110"
)

// WriteWAV writes a decoded audio block as a PCM WAV file. The block's
// network-order samples are swapped to the little-endian order WAV wants.
func WriteWAV(w io.Writer, block *st2110.AudioBlock) error {
	if block == nil || len(block.PCM) == 0 {
		return fmt.Errorf("export: wav: empty audio block")
	}
	bytesPerSample := block.BitDepth / 8
	if bytesPerSample < 1 || bytesPerSample > 4 {
		return fmt.Errorf("export: wav: unsupported bit depth %d", block.BitDepth)
	}

	data := swapEndian(block.PCM, bytesPerSample)
	blockAlign := block.Channels * bytesPerSample

	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(data)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(block.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(block.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(block.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(block.BitDepth))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(data)))

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("export: wav: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("export: wav: %w", err)
	}
	return nil
}

// swapEndian reverses the byte order of every n-byte sample. Odd trailing
// bytes are dropped. n == 1 returns the input unchanged.
func swapEndian(pcm []byte, n int) []byte {
	if n == 1 {
		return pcm
	}
	out := make([]byte, len(pcm)/n*n)
	for i := 0; i+n <= len(pcm); i += n {
		for j := 0; j < n; j++ {
			out[i+j] = pcm[i+n-1-j]
		}
	}
	return out
}
