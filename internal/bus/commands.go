package bus

import (
	"encoding/json"
	"time"

	"github.com/vbonduro/shelfshot/internal/domain"
)

// Command is anything the controller can send to a worker. Each concrete
// command also implements the marker interface of the worker it targets.
type Command interface {
	command()
}

type CaptureCommand interface {
	Command
	captureCommand()
}

type PreviewCommand interface {
	Command
	previewCommand()
}

type StorageCommand interface {
	Command
	storageCommand()
}

type UploadCommand interface {
	Command
	uploadCommand()
}

// Shutdown stops every worker at its next command check.
type Shutdown struct{}

func (Shutdown) command()        {}
func (Shutdown) captureCommand() {}
func (Shutdown) previewCommand() {}
func (Shutdown) storageCommand() {}
func (Shutdown) uploadCommand()  {}

// Capture commands.
type (
	StartStream    struct{}
	StopStream     struct{}
	SetDevice      struct{ Index int }
	SetOutputDir   struct{ Dir string }
	ClearOutputDir struct{}
	CaptureOne     struct{}
	CaptureBurst   struct{ N int }
)

func (StartStream) command()           {}
func (StartStream) captureCommand()    {}
func (StopStream) command()            {}
func (StopStream) captureCommand()     {}
func (SetDevice) command()             {}
func (SetDevice) captureCommand()      {}
func (SetOutputDir) command()          {}
func (SetOutputDir) captureCommand()   {}
func (ClearOutputDir) command()        {}
func (ClearOutputDir) captureCommand() {}
func (CaptureOne) command()            {}
func (CaptureOne) captureCommand()     {}
func (CaptureBurst) command()          {}
func (CaptureBurst) captureCommand()   {}

// Preview commands.
type (
	SetPreviewEnabled struct{ Enabled bool }
	// ShowImage renders a still image; an empty Path tears the surface down.
	ShowImage struct{ Path string }
)

func (SetPreviewEnabled) command()        {}
func (SetPreviewEnabled) previewCommand() {}
func (ShowImage) command()                {}
func (ShowImage) previewCommand()         {}

// Storage commands.
type (
	CreateProductAndSession struct{}
	ListProducts            struct{}
	StartSessionForProduct  struct{ ProductID string }
	DeleteProduct           struct{ ProductID string }
	SetProductContext       struct {
		ProductID string
		Text      string
	}
	SetProductStructure struct {
		ProductID string
		Structure json.RawMessage
	}
	SetProductListings struct {
		ProductID string
		Listings  map[string]domain.Listing
	}
	AbandonSession     struct{ SessionID string }
	CommitSession      struct{ SessionID string }
	AppendSessionFrame struct {
		SessionID string
		RelPath   string
		CreatedAt time.Time
		Sharpness *float64
	}
	ToggleSessionFrameSelection struct {
		SessionID string
		RelPath   string
	}
	DeleteSessionFrame struct {
		SessionID string
		RelPath   string
	}
	DeleteProductImage struct {
		ProductID string
		RelPath   string
	}
	RecordImageUpload struct {
		ProductID string
		RelPath   string
		URL       string
		MediaID   string
	}
	GenerateStructure struct{ ProductID string }
	SyncProduct       struct{ ProductID string }
	PushProduct       struct{ ProductID string }
	SaveSettings      struct{ Settings domain.Settings }
)

func (CreateProductAndSession) command()            {}
func (CreateProductAndSession) storageCommand()     {}
func (ListProducts) command()                       {}
func (ListProducts) storageCommand()                {}
func (StartSessionForProduct) command()             {}
func (StartSessionForProduct) storageCommand()      {}
func (DeleteProduct) command()                      {}
func (DeleteProduct) storageCommand()               {}
func (SetProductContext) command()                  {}
func (SetProductContext) storageCommand()           {}
func (SetProductStructure) command()                {}
func (SetProductStructure) storageCommand()         {}
func (SetProductListings) command()                 {}
func (SetProductListings) storageCommand()          {}
func (AbandonSession) command()                     {}
func (AbandonSession) storageCommand()              {}
func (CommitSession) command()                      {}
func (CommitSession) storageCommand()               {}
func (AppendSessionFrame) command()                 {}
func (AppendSessionFrame) storageCommand()          {}
func (ToggleSessionFrameSelection) command()        {}
func (ToggleSessionFrameSelection) storageCommand() {}
func (DeleteSessionFrame) command()                 {}
func (DeleteSessionFrame) storageCommand()          {}
func (DeleteProductImage) command()                 {}
func (DeleteProductImage) storageCommand()          {}
func (RecordImageUpload) command()                  {}
func (RecordImageUpload) storageCommand()           {}
func (GenerateStructure) command()                  {}
func (GenerateStructure) storageCommand()           {}
func (SyncProduct) command()                        {}
func (SyncProduct) storageCommand()                 {}
func (PushProduct) command()                        {}
func (PushProduct) storageCommand()                 {}
func (SaveSettings) command()                       {}
func (SaveSettings) storageCommand()                {}

// Upload commands.
type UploadProduct struct{ ProductID string }

func (UploadProduct) command()       {}
func (UploadProduct) uploadCommand() {}
