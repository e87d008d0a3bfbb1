package camera

import (
	"sync"
	"time"

	"github.com/teslashibe/go-mvcam/pkg/mvsdk"
)

// LatestStats counts push-delivered frames.
type LatestStats struct {
	// Delivered is the total number of frames the driver pushed.
	Delivered uint64 `json:"delivered"`

	// Overwritten is how many frames were replaced before anyone read them.
	Overwritten uint64 `json:"overwritten"`
}

// latestFrame is a one-slot mailbox written from the driver's thread.
// A new frame always replaces the old one; there is no queue.
type latestFrame struct {
	mu       sync.Mutex
	frame    Frame
	has      bool
	consumed bool
	stats    LatestStats
	now      func() time.Time
}

func newLatestFrame() *latestFrame {
	return &latestFrame{now: time.Now}
}

// store copies the driver buffer, which is only valid during the callback.
func (l *latestFrame) store(data []byte, info mvsdk.FrameInfo) {
	n := FrameSize(info.Width, info.Height)
	if n > len(data) {
		n = len(data)
	}
	frame := Frame{
		Data:      make([]byte, n),
		Width:     info.Width,
		Height:    info.Height,
		FrameNum:  info.FrameNum,
		Timestamp: l.now(),
	}
	copy(frame.Data, data[:n])

	l.mu.Lock()
	if l.has && !l.consumed {
		l.stats.Overwritten++
	}
	l.stats.Delivered++
	l.frame = frame
	l.has = true
	l.consumed = false
	l.mu.Unlock()
}

// load returns the cached frame if one exists and is no older than maxAge.
// maxAge <= 0 disables the age check.
func (l *latestFrame) load(maxAge time.Duration) (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.has {
		return Frame{}, false
	}
	if maxAge > 0 && l.now().Sub(l.frame.Timestamp) > maxAge {
		return Frame{}, false
	}
	l.consumed = true
	return l.frame, true
}

func (l *latestFrame) reset() {
	l.mu.Lock()
	l.frame = Frame{}
	l.has = false
	l.consumed = false
	l.mu.Unlock()
}

func (l *latestFrame) snapshot() LatestStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
