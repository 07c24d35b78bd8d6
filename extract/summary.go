package extract

import (
	"fmt"

	"github.com/zsiec/refract/stream"
)

// Summary is the reporting view of one stream's tracker state, shaped for
// JSON output.
type Summary struct {
	SSRC            string  `json:"ssrc"`
	PayloadType     uint8   `json:"payload_type"`
	PayloadTypeName string  `json:"payload_type_name"`
	Type            string  `json:"type"`
	PacketCount     uint64  `json:"packet_count"`
	PayloadBytes    uint64  `json:"payload_bytes"`
	FirstSeq        uint16  `json:"first_seq"`
	LastSeq         uint16  `json:"last_seq"`
	Lost            uint64  `json:"lost_count"`
	OutOfOrder      uint64  `json:"out_of_order_count"`
	DroppedStale    uint64  `json:"dropped_stale"`
	LossRate        float64 `json:"loss_rate"`
	FirstTimestamp  uint32  `json:"first_timestamp"`
	LastTimestamp   uint32  `json:"last_timestamp"`
	TimestampSpan   int64   `json:"timestamp_span"`
}

func newSummary(st *stream.State) Summary {
	return Summary{
		SSRC:            fmt.Sprintf("%#010x", st.SSRC),
		PayloadType:     st.PayloadType,
		PayloadTypeName: stream.PayloadTypeName(st.PayloadType),
		Type:            st.Resolved.String(),
		PacketCount:     st.PacketCount,
		PayloadBytes:    st.PayloadBytes,
		FirstSeq:        st.FirstSeq,
		LastSeq:         st.LastSeq,
		Lost:            st.Lost,
		OutOfOrder:      st.OutOfOrder,
		DroppedStale:    st.DroppedStale,
		LossRate:        st.LossRate(),
		FirstTimestamp:  st.FirstTimestamp,
		LastTimestamp:   st.LastTimestamp,
		TimestampSpan:   st.TimestampSpan(),
	}
}
