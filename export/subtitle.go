package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// WriteSRT renders cues as SubRip text.
func WriteSRT(w io.Writer, cues []Cue) error {
	for i, c := range cues {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTime(c.Start), srtTime(c.End), strings.TrimRight(c.Text, "\n"))
		if err != nil {
			return fmt.Errorf("export: srt: %w", err)
		}
	}
	return nil
}

// WriteVTT renders cues as WebVTT.
func WriteVTT(w io.Writer, cues []Cue) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return fmt.Errorf("export: vtt: %w", err)
	}
	for _, c := range cues {
		_, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n",
			vttTime(c.Start), vttTime(c.End), strings.TrimRight(c.Text, "\n"))
		if err != nil {
			return fmt.Errorf("export: vtt: %w", err)
		}
	}
	return nil
}

func srtTime(d time.Duration) string {
	h, m, s, ms := splitTime(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func vttTime(d time.Duration) string {
	h, m, s, ms := splitTime(d)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTime(d time.Duration) (h, m, s, ms int) {
	if d < 0 {
		d = 0
	}
	h = int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m = int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s = int(d / time.Second)
	d -= time.Duration(s) * time.Second
	ms = int(d / time.Millisecond)
	return h, m, s, ms
}
