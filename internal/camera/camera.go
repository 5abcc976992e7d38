// Package camera abstracts the capture device. Backends open devices by
// index and deliver decoded frames from a blocking Read.
package camera

import (
	"errors"
	"fmt"
	"image"
)

// ErrNoDevice is returned by Open for an index the backend does not have.
var ErrNoDevice = errors.New("no camera device at index")

type DeviceInfo struct {
	Index int
	Name  string
}

// Device is an open camera. Read blocks until a frame is available or the
// device fails. Close unblocks a pending Read where the backend allows it.
type Device interface {
	Read() (image.Image, error)
	Close() error
}

type Backend interface {
	Open(index int) (Device, error)
	List() ([]DeviceInfo, error)
}

func errNoDevice(index int) error {
	return fmt.Errorf("%w %d", ErrNoDevice, index)
}
