package camera

import "time"

// BytesPerPixel is fixed by the forced BGR8 packed pixel format.
const BytesPerPixel = 3

// FrameSize returns the buffer size needed for a width x height frame.
func FrameSize(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return width * height * BytesPerPixel
}

// Frame is one captured image: packed BGR, row-major, no row padding.
//
// Data must not be modified once the frame is handed out. Frames from
// PullFrame alias the caller's buffer and are only valid until the next pull.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	FrameNum  uint32
	Timestamp time.Time
}

// Stride returns the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * BytesPerPixel
}

// Valid reports whether the frame has positive dimensions and enough data.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) >= f.Stride()*f.Height
}

// Clone returns a copy that does not alias the original buffer.
func (f Frame) Clone() Frame {
	c := f
	c.Data = make([]byte, len(f.Data))
	copy(c.Data, f.Data)
	return c
}
