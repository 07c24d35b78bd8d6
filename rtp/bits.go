package rtp

// First header octet: V(2) P(1) X(1) CC(4).

func version(b byte) uint8 { return b >> 6 }

func hasPadding(b byte) bool { return b&0x20 != 0 }

func hasExtension(b byte) bool { return b&0x10 != 0 }

func csrcCount(b byte) uint8 { return b & 0x0F }

// Second header octet: M(1) PT(7).

func marker(b byte) bool { return b&0x80 != 0 }

func payloadType(b byte) uint8 { return b & 0x7F }
