package photostore

import (
	"context"
	"errors"
	"image"
	"io"
)

// ErrNotFound is returned when a key has no file behind it.
var ErrNotFound = errors.New("photo not found")

// PhotoStore stores image files under keys relative to a root directory.
type PhotoStore interface {
	Save(ctx context.Context, key string, r io.Reader) (path string, err error)
	SaveImage(ctx context.Context, key string, img image.Image) (path string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	Path(key string) (string, error)
}
