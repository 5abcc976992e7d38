// Package preview renders the live camera feed and still images onto a
// display surface chosen once at startup.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"time"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/mailbox"
)

// ErrUnavailable is returned by Backend.Open when there is no surface to
// render on.
var ErrUnavailable = errors.New("no preview surface available")

const defaultPoll = 30 * time.Millisecond

// Backend is a display surface. It owns a live frame surface and a still
// image surface.
type Backend interface {
	Open() error
	RenderFrame(img image.Image, overlay string) error
	RenderImage(img image.Image) error
	CloseImage()
}

// NoneBackend is the backend for headless runs.
type NoneBackend struct{}

func (NoneBackend) Open() error                           { return ErrUnavailable }
func (NoneBackend) RenderFrame(image.Image, string) error { return ErrUnavailable }
func (NoneBackend) RenderImage(image.Image) error         { return ErrUnavailable }
func (NoneBackend) CloseImage()                           {}

type Worker struct {
	backend Backend
	box     *mailbox.Mailbox
	cmds    *bus.Queue[bus.PreviewCommand]
	events  bus.Emitter
	logger  *slog.Logger
	width   int
	poll    time.Duration

	available bool
	enabled   bool
	liveOK    bool
	imageOK   bool
	lastSeq   uint64
}

func NewWorker(
	backend Backend,
	box *mailbox.Mailbox,
	cmds *bus.Queue[bus.PreviewCommand],
	events bus.Emitter,
	width int,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		backend: backend,
		box:     box,
		cmds:    cmds,
		events:  events,
		logger:  logger,
		width:   width,
		poll:    defaultPoll,
	}
}

// Run polls the mailbox until Shutdown or ctx is done. Without a surface
// it keeps draining commands so senders are never stuck.
func (w *Worker) Run(ctx context.Context) {
	if err := w.backend.Open(); err != nil {
		w.logger.Warn("preview unavailable", "error", err)
		w.events.Emit(bus.PreviewUnavailable{Message: err.Error()})
	} else {
		w.available = true
		w.liveOK = true
		w.imageOK = true
	}
	w.logger.Info("preview worker started", "available", w.available, "width", w.width)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		if w.drainCommands() {
			break
		}
		if w.available && w.enabled && w.liveOK {
			w.renderLatest()
		}
		select {
		case <-ctx.Done():
			w.logger.Info("preview worker stopped")
			return
		case <-ticker.C:
		}
	}
	w.backend.CloseImage()
	w.logger.Info("preview worker stopped")
}

func (w *Worker) drainCommands() bool {
	for {
		cmd, ok := w.cmds.TryPop()
		if !ok {
			return false
		}
		switch c := cmd.(type) {
		case bus.Shutdown:
			return true
		case bus.SetPreviewEnabled:
			w.enabled = c.Enabled
			if c.Enabled {
				w.liveOK = w.available
				w.imageOK = w.available
			}
		case bus.ShowImage:
			w.showImage(c.Path)
		default:
			w.logger.Warn("unhandled preview command", "command", fmt.Sprintf("%T", cmd))
		}
	}
}

// renderLatest draws the mailbox frame if it is newer than the last one
// drawn.
func (w *Worker) renderLatest() {
	if w.box.Seq() == w.lastSeq {
		return
	}
	snap, ok := w.box.Latest()
	if !ok || snap.Seq == w.lastSeq {
		return
	}
	w.lastSeq = snap.Seq

	frame := Scale(snap.Frame.Image, w.width)
	overlay := OverlayText(snap.Seq, snap.Width, snap.Height, w.box.Dropped())
	if err := w.backend.RenderFrame(frame, overlay); err != nil {
		w.liveOK = false
		w.fail(fmt.Errorf("render frame: %w", err))
	}
}

func (w *Worker) showImage(path string) {
	if !w.available {
		return
	}
	if path == "" {
		w.backend.CloseImage()
		return
	}
	if !w.imageOK {
		return
	}
	img, err := loadImage(path)
	if err != nil {
		w.fail(err)
		return
	}
	if err := w.backend.RenderImage(Scale(img, w.width)); err != nil {
		w.imageOK = false
		w.fail(fmt.Errorf("render image: %w", err))
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func (w *Worker) fail(err error) {
	w.logger.Error("preview error", "error", err)
	w.events.Emit(bus.PreviewError{Message: err.Error()})
}
