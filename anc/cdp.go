package anc

import "fmt"

// CCData is one cc_data triplet from a CEA-708 caption distribution packet.
// Type 0/1 are CEA-608 field 1/2 pairs; type 2/3 are DTVCC channel data,
// with type 3 starting a new DTVCC packet.
type CCData struct {
	Valid bool
	Type  uint8
	B1    byte
	B2    byte
}

const (
	cdpIDHigh = 0x96
	cdpIDLow  = 0x69

	sectionCCData = 0x72
)

// ParseCDP extracts the cc_data triplets from a CEA-708 CDP as carried in
// the user data words of a DID 0x61 / SDID 0x01 ANC record.
func ParseCDP(udw []byte) ([]CCData, error) {
	if len(udw) < 8 {
		return nil, fmt.Errorf("anc: CDP of %d bytes", len(udw))
	}
	if udw[0] != cdpIDHigh || udw[1] != cdpIDLow {
		return nil, fmt.Errorf("anc: bad CDP identifier %02X%02X", udw[0], udw[1])
	}
	length := int(udw[2])
	if length > len(udw) {
		length = len(udw)
	}

	// Fixed header: id (2), length (1), frame rate/flags (2), sequence (2).
	off := 7
	for off < length {
		switch udw[off] {
		case sectionCCData:
			if off+1 >= length {
				return nil, fmt.Errorf("anc: truncated cc_data section")
			}
			count := int(udw[off+1] & 0x1F)
			off += 2
			if off+count*3 > length {
				return nil, fmt.Errorf("anc: cc_data count %d exceeds CDP", count)
			}
			out := make([]CCData, 0, count)
			for i := 0; i < count; i++ {
				b := udw[off+i*3]
				out = append(out, CCData{
					Valid: b&0x04 != 0,
					Type:  b & 0x03,
					B1:    udw[off+i*3+1],
					B2:    udw[off+i*3+2],
				})
			}
			return out, nil
		case 0x71: // timecode section, fixed 5 bytes
			off += 5
		case 0x74: // footer ends the CDP
			return nil, nil
		default:
			off++
		}
	}
	return nil, nil
}
