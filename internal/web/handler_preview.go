package web

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/vbonduro/shelfshot/internal/preview"
)

const (
	streamBoundary = "frame"
	jpegQuality    = 80
)

// RenderFrame draws the overlay on img and publishes it as the live frame.
func (s *Server) RenderFrame(img image.Image, overlay string) error {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	preview.Overlay(rgba, overlay)

	data, err := encodeJPEG(rgba)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("preview server closed")
	}
	s.live = data
	s.liveSeq++
	close(s.changed)
	s.changed = make(chan struct{})
	return nil
}

// RenderImage publishes img as the static image.
func (s *Server) RenderImage(img image.Image) error {
	data, err := encodeJPEG(img)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.still = data
	s.mu.Unlock()
	return nil
}

// CloseImage clears the static image.
func (s *Server) CloseImage() {
	s.mu.Lock()
	s.still = nil
	s.mu.Unlock()
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// nextFrame returns the live frame if it is newer than after, its sequence,
// and a channel closed when the next frame arrives.
func (s *Server) nextFrame(after uint64) ([]byte, uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveSeq > after {
		return s.live, s.liveSeq, s.changed
	}
	return nil, after, s.changed
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Error("unable to write healthcheck", "error", err)
	}
}

func (s *Server) handleLiveFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := s.live
	s.mu.Unlock()
	s.writeJPEG(w, r, data)
}

func (s *Server) handleStill(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := s.still
	s.mu.Unlock()
	s.writeJPEG(w, r, data)
}

func (s *Server) writeJPEG(w http.ResponseWriter, r *http.Request, data []byte) {
	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write frame failed", "path", r.URL.Path, "error", err)
	}
}

// handleStream pushes every new live frame as one part of a
// multipart/x-mixed-replace response until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("failed to clear stream write deadline", "error", err)
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(streamBoundary); err != nil {
		http.Error(w, "stream setup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Debug("stream flush failed", "error", err)
		return
	}

	var seq uint64
	for {
		data, next, changed := s.nextFrame(seq)
		if data != nil {
			seq = next
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(data))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(data); err != nil {
				s.logger.Debug("stream client gone", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				s.logger.Debug("stream flush failed", "error", err)
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			closeWithLog(mw, "stream writer", s.logger)
			return
		case <-changed:
		}
	}
}
