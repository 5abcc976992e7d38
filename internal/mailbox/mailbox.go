// Package mailbox holds the most recent captured frame.
//
// A Mailbox is a capacity-one, last-write-wins slot shared between the
// capture loop (single producer) and any number of readers. Set never
// blocks: a write over a frame nobody has read yet counts as a drop.
// The capture loop never waits for a slow consumer.
//
// Frames are shared, not copied. Producers must not modify an image after
// handing it to Set.
package mailbox

import (
	"image"
	"sync"
	"time"
)

// Frame is an immutable captured image.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
}

// Snapshot is the result of Latest.
type Snapshot struct {
	Seq    uint64
	Frame  *Frame
	Width  int
	Height int
}

type Mailbox struct {
	mu       sync.Mutex
	frame    *Frame
	seq      uint64
	dropped  uint64
	consumed bool
	width    int
	height   int
}

func New() *Mailbox {
	return &Mailbox{consumed: true}
}

// Set stores f as the latest frame. If the previous frame was never read,
// the drop counter is incremented.
func (m *Mailbox) Set(f *Frame) {
	b := f.Image.Bounds()

	m.mu.Lock()
	if !m.consumed {
		m.dropped++
	}
	m.frame = f
	m.seq++
	m.consumed = false
	m.width, m.height = b.Dx(), b.Dy()
	m.mu.Unlock()
}

// Latest returns the buffered frame and marks it read. ok is false when no
// frame has ever been written.
func (m *Mailbox) Latest() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return Snapshot{}, false
	}
	m.consumed = true
	return Snapshot{Seq: m.seq, Frame: m.frame, Width: m.width, Height: m.height}, true
}

// Seq returns the sequence number of the latest write, 0 if none.
func (m *Mailbox) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Size returns the dimensions of the last written frame.
func (m *Mailbox) Size() (width, height int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height, m.frame != nil
}
