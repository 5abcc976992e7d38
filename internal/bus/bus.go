// Package bus connects the controller and the workers. Each worker owns one
// unbounded command queue; every worker publishes into the shared event
// queue that the controller drains.
package bus

import "log/slog"

type Bus struct {
	Capture *Queue[CaptureCommand]
	Preview *Queue[PreviewCommand]
	Storage *Queue[StorageCommand]
	Upload  *Queue[UploadCommand]
	Events  *Queue[Event]
}

func New() *Bus {
	return &Bus{
		Capture: NewQueue[CaptureCommand](),
		Preview: NewQueue[PreviewCommand](),
		Storage: NewQueue[StorageCommand](),
		Upload:  NewQueue[UploadCommand](),
		Events:  NewQueue[Event](),
	}
}

// Send routes cmd to the queue of the worker it targets. Shutdown goes to
// every worker.
func (b *Bus) Send(cmd Command) {
	switch c := cmd.(type) {
	case Shutdown:
		b.Capture.Push(c)
		b.Preview.Push(c)
		b.Storage.Push(c)
		b.Upload.Push(c)
	case CaptureCommand:
		b.Capture.Push(c)
	case PreviewCommand:
		b.Preview.Push(c)
	case StorageCommand:
		b.Storage.Push(c)
	case UploadCommand:
		b.Upload.Push(c)
	default:
		slog.Warn("dropping command with no worker", "command", cmd)
	}
}

// SendAll sends cmds in order.
func (b *Bus) SendAll(cmds []Command) {
	for _, c := range cmds {
		b.Send(c)
	}
}

// Emit publishes a worker event.
func (b *Bus) Emit(e Event) {
	b.Events.Push(e)
}

// Emitter is the narrow view of the bus a worker needs to publish events.
type Emitter interface {
	Emit(e Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }
