package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/zsiec/refract/anc"
)

// eventRecord is the flat serialization view of one ancillary event.
type eventRecord struct {
	Timestamp   uint32 `json:"rtp_timestamp"`
	DID         string `json:"did"`
	SDID        string `json:"sdid"`
	Type        string `json:"type"`
	Kind        string `json:"kind"`
	Line        uint16 `json:"line"`
	HorizOffset uint16 `json:"horizontal_offset"`
	StreamNum   uint8  `json:"stream_num"`
	DataLen     int    `json:"data_len"`
	Checksum    bool   `json:"checksum_ok"`
	Parity      int    `json:"parity_errors"`
	Timecode    string `json:"timecode,omitempty"`
}

func newEventRecord(ev *anc.Event) eventRecord {
	r := eventRecord{
		Timestamp:   ev.Timestamp,
		DID:         fmt.Sprintf("0x%02x", ev.DID),
		SDID:        fmt.Sprintf("0x%02x", ev.SDID),
		Type:        ev.TypeName(),
		Kind:        ev.Kind.String(),
		Line:        ev.Line,
		HorizOffset: ev.HorizOffset,
		StreamNum:   ev.StreamNum,
		DataLen:     len(ev.Data),
		Checksum:    !ev.ChecksumMismatch,
		Parity:      ev.ParityErrors,
	}
	if ev.Timecode != nil {
		r.Timecode = ev.Timecode.String()
	}
	return r
}

// WriteEventsJSON writes ancillary events as a JSON array.
func WriteEventsJSON(w io.Writer, events []*anc.Event) error {
	records := make([]eventRecord, len(events))
	for i, ev := range events {
		records[i] = newEventRecord(ev)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export: events json: %w", err)
	}
	return nil
}

// WriteEventsCSV writes ancillary events as CSV with a header row.
func WriteEventsCSV(w io.Writer, events []*anc.Event) error {
	cw := csv.NewWriter(w)
	header := []string{
		"rtp_timestamp", "did", "sdid", "type", "kind", "line",
		"horizontal_offset", "stream_num", "data_len", "checksum_ok",
		"parity_errors", "timecode",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: events csv: %w", err)
	}
	for _, ev := range events {
		r := newEventRecord(ev)
		row := []string{
			strconv.FormatUint(uint64(r.Timestamp), 10),
			r.DID,
			r.SDID,
			r.Type,
			r.Kind,
			strconv.Itoa(int(r.Line)),
			strconv.Itoa(int(r.HorizOffset)),
			strconv.Itoa(int(r.StreamNum)),
			strconv.Itoa(r.DataLen),
			strconv.FormatBool(r.Checksum),
			strconv.Itoa(r.Parity),
			r.Timecode,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: events csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: events csv: %w", err)
	}
	return nil
}
