package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// MJPEGBackend reads network cameras that publish a
// multipart/x-mixed-replace JPEG stream. Device index i maps to URLs[i].
type MJPEGBackend struct {
	URLs   []string
	Client *http.Client
}

func NewMJPEGBackend(urls []string) *MJPEGBackend {
	return &MJPEGBackend{
		URLs: urls,
		// No overall timeout: the response body is a never-ending stream.
		Client: &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 10 * time.Second}},
	}
}

func (b *MJPEGBackend) List() ([]DeviceInfo, error) {
	infos := make([]DeviceInfo, 0, len(b.URLs))
	for i, u := range b.URLs {
		infos = append(infos, DeviceInfo{Index: i, Name: u})
	}
	return infos, nil
}

func (b *MJPEGBackend) Open(index int) (Device, error) {
	if index < 0 || index >= len(b.URLs) {
		return nil, errNoDevice(index)
	}
	url := b.URLs[index]

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := b.Client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera %s returned %s", url, resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera %s: unexpected content type %q", url, resp.Header.Get("Content-Type"))
	}

	return &mjpegDevice{
		body:   resp.Body,
		cancel: cancel,
		reader: multipart.NewReader(resp.Body, strings.TrimPrefix(params["boundary"], "--")),
	}, nil
}

type mjpegDevice struct {
	mu     sync.Mutex
	body   io.ReadCloser
	cancel context.CancelFunc
	reader *multipart.Reader
	buf    bytes.Buffer
}

// Read decodes the next JPEG part. Parts that fail to decode are reported
// as errors; the stream stays usable.
func (d *mjpegDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	part, err := d.reader.NextPart()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream part: %w", err)
	}
	d.buf.Reset()
	_, err = io.Copy(&d.buf, part)
	_ = part.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame data: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(d.buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame (%d bytes): %w", d.buf.Len(), err)
	}
	return img, nil
}

// Close cancels the request, which unblocks a Read waiting on the network.
func (d *mjpegDevice) Close() error {
	d.cancel()
	return d.body.Close()
}
