package export

import (
	"fmt"
	"io"

	"github.com/zsiec/refract/st2110"
)

// WriteRawVideo concatenates reassembled frames into a raw planar/packed
// video file, the shape tools like ffmpeg's rawvideo demuxer expect.
// Incomplete frames are written too; skipping them would shift the
// timeline of everything after.
func WriteRawVideo(w io.Writer, frames []*st2110.VideoFrame) error {
	if len(frames) == 0 {
		return fmt.Errorf("export: raw video: no frames")
	}
	for _, f := range frames {
		if _, err := w.Write(f.Data); err != nil {
			return fmt.Errorf("export: raw video: frame %d: %w", f.Index, err)
		}
	}
	return nil
}
