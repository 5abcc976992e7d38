package bus

import (
	"time"

	"github.com/vbonduro/shelfshot/internal/domain"
)

// Event is a worker result delivered to the controller.
type Event interface {
	event()
}

type CaptureStatus struct {
	Streaming     bool
	DeviceIndex   int
	FPS           float64
	DroppedFrames uint64
	Width         int
	Height        int
}

type BurstFrame struct {
	Path      string
	CreatedAt time.Time
	Sharpness float64
}

// Capture events.
type (
	CaptureStatusChanged struct{ Status CaptureStatus }
	CaptureError         struct{ Message string }
	CaptureCompleted     struct {
		Path      string
		CreatedAt time.Time
		Sharpness float64
	}
	BurstCompleted struct {
		Frames   []BurstFrame
		BestPath string
	}
)

// Preview events.
type (
	PreviewUnavailable struct{ Message string }
	PreviewError       struct{ Message string }
)

// Storage events.
type (
	ProductsListed  struct{ Products []domain.ProductSummary }
	ProductSelected struct{ Product *domain.ProductManifest }
	SessionStarted  struct{ Session *domain.SessionManifest }
	SessionUpdated  struct{ Session *domain.SessionManifest }
	CommitCompleted struct {
		Product *domain.ProductManifest
		Session *domain.SessionManifest
		Count   int
	}
	ProductDeleted struct {
		ProductID       string
		RemovedSessions int
	}
	SessionAbandoned struct {
		SessionID string
		MovedTo   string
	}
	StorageError  struct{ Message string }
	SettingsSaved struct{ Settings domain.Settings }
)

// Upload events.
type (
	UploadJobUpdated struct{ Job domain.UploadJob }
	UploadCompleted  struct {
		ProductID string
		RelPath   string
		URL       string
		MediaID   string
	}
	UploadFinished struct{ ProductID string }
)

// ActivityLogged is a line for the activity log from any worker.
type ActivityLogged struct{ Entry domain.ActivityEntry }

func (CaptureStatusChanged) event() {}
func (CaptureError) event()         {}
func (CaptureCompleted) event()     {}
func (BurstCompleted) event()       {}
func (PreviewUnavailable) event()   {}
func (PreviewError) event()         {}
func (ProductsListed) event()       {}
func (ProductSelected) event()      {}
func (SessionStarted) event()       {}
func (SessionUpdated) event()       {}
func (CommitCompleted) event()      {}
func (ProductDeleted) event()       {}
func (SessionAbandoned) event()     {}
func (StorageError) event()         {}
func (SettingsSaved) event()        {}
func (UploadJobUpdated) event()     {}
func (UploadCompleted) event()      {}
func (UploadFinished) event()       {}
func (ActivityLogged) event()       {}

// Activity builds an ActivityLogged event stamped now.
func Activity(sev domain.Severity, msg string) ActivityLogged {
	return ActivityLogged{Entry: domain.ActivityEntry{At: time.Now(), Severity: sev, Message: msg}}
}
