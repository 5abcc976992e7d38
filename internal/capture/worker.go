// Package capture runs the camera loop. It pulls frames from the active
// device into the frame mailbox and saves single captures and bursts into
// the current session's frame directory.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/camera"
	"github.com/vbonduro/shelfshot/internal/mailbox"
	"github.com/vbonduro/shelfshot/internal/photostore"
	"github.com/vbonduro/shelfshot/internal/photostore/local"
	"github.com/vbonduro/shelfshot/internal/sharpness"
)

var (
	ErrNoOutputDir = errors.New("no active session (set output dir first)")
	ErrNoFrame     = errors.New("no frame available")
)

const (
	defaultStatusEvery = 500 * time.Millisecond
	defaultReadBackoff = 20 * time.Millisecond
	defaultIdleSleep   = 10 * time.Millisecond
	stampLayout        = "20060102_150405"
)

type Worker struct {
	backend camera.Backend
	box     *mailbox.Mailbox
	cmds    *bus.Queue[bus.CaptureCommand]
	events  bus.Emitter
	logger  *slog.Logger
	now     func() time.Time

	statusEvery time.Duration
	readBackoff time.Duration
	idleSleep   time.Duration

	device      camera.Device
	index       int
	streaming   bool
	outputDir   string
	files       photostore.PhotoStore
	readFailing bool

	fpsFrames  int
	fpsStart   time.Time
	lastStatus time.Time
}

func NewWorker(
	backend camera.Backend,
	box *mailbox.Mailbox,
	cmds *bus.Queue[bus.CaptureCommand],
	events bus.Emitter,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		backend:     backend,
		box:         box,
		cmds:        cmds,
		events:      events,
		logger:      logger,
		now:         time.Now,
		statusEvery: defaultStatusEvery,
		readBackoff: defaultReadBackoff,
		idleSleep:   defaultIdleSleep,
	}
}

// SetDeviceIndex selects the device opened by the first StartStream.
func (w *Worker) SetDeviceIndex(index int) {
	w.index = max(index, 0)
}

// Run loops until Shutdown or ctx is done. Commands are drained before
// every read, so they always preempt the next frame.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("capture worker started", "device_index", w.index)
	defer w.closeDevice()

	w.fpsStart = w.now()
	w.lastStatus = w.fpsStart
	for {
		if w.drainCommands(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if w.streaming && w.device != nil {
			w.readOnce()
		} else {
			time.Sleep(w.idleSleep)
		}

		if w.now().Sub(w.lastStatus) >= w.statusEvery {
			w.emitStatus()
		}
	}
	w.logger.Info("capture worker stopped")
}

// drainCommands applies every queued command. It reports true on Shutdown.
func (w *Worker) drainCommands(ctx context.Context) bool {
	for {
		cmd, ok := w.cmds.TryPop()
		if !ok {
			return false
		}
		switch c := cmd.(type) {
		case bus.Shutdown:
			return true
		case bus.StartStream:
			w.startStream()
		case bus.StopStream:
			w.streaming = false
		case bus.SetDevice:
			w.setDevice(c.Index)
		case bus.SetOutputDir:
			w.setOutputDir(c.Dir)
		case bus.ClearOutputDir:
			w.outputDir = ""
			w.files = nil
		case bus.CaptureOne:
			w.captureOne(ctx)
		case bus.CaptureBurst:
			w.captureBurst(ctx, c.N)
		default:
			w.logger.Warn("unhandled capture command", "command", fmt.Sprintf("%T", cmd))
		}
	}
}

func (w *Worker) startStream() {
	if w.device == nil {
		if err := w.openDevice(); err != nil {
			w.streaming = false
			return
		}
	}
	w.streaming = true
	w.readFailing = false
}

func (w *Worker) setDevice(index int) {
	w.index = max(index, 0)
	if !w.streaming {
		w.closeDevice()
		return
	}
	w.closeDevice()
	if err := w.openDevice(); err != nil {
		w.streaming = false
	}
}

func (w *Worker) openDevice() error {
	dev, err := w.backend.Open(w.index)
	if err != nil {
		w.fail(fmt.Errorf("open device %d: %w", w.index, err))
		return err
	}
	w.device = dev
	w.logger.Info("camera opened", "device_index", w.index)
	return nil
}

func (w *Worker) closeDevice() {
	if w.device == nil {
		return
	}
	if err := w.device.Close(); err != nil {
		w.logger.Warn("failed to close camera", "device_index", w.index, "error", err)
	}
	w.device = nil
}

func (w *Worker) setOutputDir(dir string) {
	files, err := local.NewLocalPhotoStore(dir)
	if err != nil {
		w.outputDir = ""
		w.files = nil
		w.fail(err)
		return
	}
	w.outputDir = dir
	w.files = files
}

// readOnce pulls one frame into the mailbox. Only the first failure of a
// run of failed reads is reported.
func (w *Worker) readOnce() {
	img, err := w.device.Read()
	if err != nil {
		if !w.readFailing {
			w.fail(fmt.Errorf("read frame: %w", err))
		}
		w.readFailing = true
		time.Sleep(w.readBackoff)
		return
	}
	w.readFailing = false
	w.box.Set(&mailbox.Frame{Image: img, CapturedAt: w.now()})
	w.fpsFrames++
}

func (w *Worker) emitStatus() {
	now := w.now()
	elapsed := now.Sub(w.fpsStart).Seconds()
	if elapsed < 0.001 {
		elapsed = 0.001
	}
	width, height, _ := w.box.Size()
	w.events.Emit(bus.CaptureStatusChanged{Status: bus.CaptureStatus{
		Streaming:     w.streaming,
		DeviceIndex:   w.index,
		FPS:           float64(w.fpsFrames) / elapsed,
		DroppedFrames: w.box.Dropped(),
		Width:         width,
		Height:        height,
	}})
	w.fpsFrames = 0
	w.fpsStart = now
	w.lastStatus = now
}

// captureOne saves the buffered frame, or a freshly read one when nothing
// has been buffered yet.
func (w *Worker) captureOne(ctx context.Context) {
	if w.files == nil {
		w.fail(ErrNoOutputDir)
		return
	}

	var img image.Image
	if snap, ok := w.box.Latest(); ok {
		img = snap.Frame.Image
	} else {
		if w.device == nil {
			if err := w.openDevice(); err != nil {
				return
			}
		}
		read, err := w.device.Read()
		if err != nil {
			w.fail(fmt.Errorf("read frame: %w", err))
			return
		}
		img = read
	}

	createdAt := w.now()
	path, err := w.save(ctx, "capture_"+stamp(createdAt), img)
	if err != nil {
		w.fail(err)
		return
	}
	score := sharpness.Score(img)
	w.logger.Info("frame captured", "path", path, "sharpness", score)
	w.events.Emit(bus.CaptureCompleted{Path: path, CreatedAt: createdAt, Sharpness: score})
}

// captureBurst reads n frames, saves and scores each one, and reports the
// sharpest. A failed read reuses the last buffered frame.
func (w *Worker) captureBurst(ctx context.Context, n int) {
	if w.files == nil {
		w.fail(ErrNoOutputDir)
		return
	}
	n = max(n, 1)
	if w.device == nil {
		// Without a device every read falls back to the buffer.
		_ = w.openDevice()
	}

	burstStamp := stamp(w.now())
	var frames []bus.BurstFrame
	var scores []float64
	for i := 1; i <= n; i++ {
		img, err := w.burstFrame()
		if err != nil {
			w.logger.Warn("skipping burst frame", "index", i, "error", err)
			continue
		}
		createdAt := w.now()
		path, err := w.save(ctx, fmt.Sprintf("burst_%s_%02d", burstStamp, i), img)
		if err != nil {
			w.logger.Warn("failed to save burst frame", "index", i, "error", err)
			continue
		}
		score := sharpness.Score(img)
		frames = append(frames, bus.BurstFrame{Path: path, CreatedAt: createdAt, Sharpness: score})
		scores = append(scores, score)
	}

	if len(frames) == 0 {
		w.fail(fmt.Errorf("burst captured no frames"))
		return
	}
	best := frames[sharpness.Best(scores)].Path
	w.logger.Info("burst captured", "frames", len(frames), "best", best)
	w.events.Emit(bus.BurstCompleted{Frames: frames, BestPath: best})
}

func (w *Worker) burstFrame() (image.Image, error) {
	if w.device != nil {
		img, err := w.device.Read()
		if err == nil {
			w.box.Set(&mailbox.Frame{Image: img, CapturedAt: w.now()})
			return img, nil
		}
		w.logger.Debug("burst read failed, using buffered frame", "error", err)
	}
	if snap, ok := w.box.Latest(); ok {
		return snap.Frame.Image, nil
	}
	return nil, ErrNoFrame
}

// save writes img as a JPEG named base in the output directory. An
// existing file with the same name gets a numeric suffix instead.
func (w *Worker) save(ctx context.Context, base string, img image.Image) (string, error) {
	key := base + ".jpg"
	for i := 2; ; i++ {
		p, err := w.files.Path(key)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			break
		}
		key = fmt.Sprintf("%s_%d.jpg", base, i)
	}
	path, err := w.files.SaveImage(ctx, key, img)
	if err != nil {
		return "", fmt.Errorf("failed to save frame: %w", err)
	}
	return path, nil
}

func (w *Worker) fail(err error) {
	w.logger.Error("capture error", "error", err)
	w.events.Emit(bus.CaptureError{Message: err.Error()})
}

// stamp formats t as YYYYMMDD_HHMMSS_mmm.
func stamp(t time.Time) string {
	return t.Format(stampLayout) + "_" + strings.TrimPrefix(t.Format(".000"), ".")
}
