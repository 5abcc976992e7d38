package camera

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// PatternBackend produces a moving synthetic test card. It needs no
// hardware and is the default for development.
type PatternBackend struct {
	Devices int
	Width   int
	Height  int
	FPS     int
}

func NewPatternBackend(devices, width, height int) *PatternBackend {
	return &PatternBackend{Devices: devices, Width: width, Height: height, FPS: 30}
}

func (b *PatternBackend) List() ([]DeviceInfo, error) {
	infos := make([]DeviceInfo, 0, b.Devices)
	for i := 0; i < b.Devices; i++ {
		infos = append(infos, DeviceInfo{Index: i, Name: fmt.Sprintf("pattern-%d", i)})
	}
	return infos, nil
}

func (b *PatternBackend) Open(index int) (Device, error) {
	if index < 0 || index >= b.Devices {
		return nil, errNoDevice(index)
	}
	interval := time.Second / 30
	if b.FPS > 0 {
		interval = time.Second / time.Duration(b.FPS)
	}
	return &patternDevice{
		index:    index,
		width:    b.Width,
		height:   b.Height,
		interval: interval,
		next:     time.Now(),
	}, nil
}

type patternDevice struct {
	mu       sync.Mutex
	index    int
	width    int
	height   int
	frame    int
	interval time.Duration
	next     time.Time
	closed   bool
}

func (d *patternDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("pattern device %d is closed", d.index)
	}
	if wait := time.Until(d.next); wait > 0 {
		time.Sleep(wait)
	}
	d.next = time.Now().Add(d.interval)
	d.frame++

	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	shift := d.frame * 4
	for y := 0; y < d.height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < d.width; x++ {
			c := color.RGBA{
				R: uint8((x + shift) % 256),
				G: uint8((y + d.index*60) % 256),
				B: uint8(((x/16 + y/16) % 2) * 200),
				A: 255,
			}
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = c.R, c.G, c.B, c.A
		}
	}
	return img, nil
}

func (d *patternDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
