package anc

// bitReader reads bit fields MSB-first from a byte slice. Reads past the
// end set the overflow flag instead of panicking; callers check it once per
// record.
type bitReader struct {
	data     []byte
	bitPos   int
	overflow bool
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) read(n int) uint32 {
	var val uint32
	for i := 0; i < n; i++ {
		val <<= 1
		if r.bitPos >= len(r.data)*8 {
			r.overflow = true
			continue
		}
		byteIdx := r.bitPos / 8
		bitIdx := 7 - (r.bitPos % 8)
		if (r.data[byteIdx]>>uint(bitIdx))&1 == 1 {
			val |= 1
		}
		r.bitPos++
	}
	return val
}

func (r *bitReader) readBit() bool {
	return r.read(1) == 1
}

// align32 advances to the next 32-bit boundary; ANC data packets are
// word-aligned within the ST 2110-40 payload.
func (r *bitReader) align32() {
	if rem := r.bitPos % 32; rem != 0 {
		r.bitPos += 32 - rem
	}
}

func (r *bitReader) bitsLeft() int {
	total := len(r.data) * 8
	if r.bitPos > total {
		return 0
	}
	return total - r.bitPos
}

// parityOK checks the protection bits of a 10-bit ANC word: b8 is even
// parity over b0-b7 and b9 is its inverse.
func parityOK(w uint32) bool {
	var p uint32
	for i := 0; i < 8; i++ {
		p ^= (w >> uint(i)) & 1
	}
	return (w>>8)&1 == p && (w>>9)&1 == p^1
}
