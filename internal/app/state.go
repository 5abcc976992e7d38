// Package app is the controller. State is a single-threaded state machine:
// keys and worker events go in, commands for the workers come out through
// DrainPending. It never touches a device or the filesystem itself.
package app

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/config"
	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/manifest"
)

const (
	toastTTL         = 3 * time.Second
	deleteConfirmTTL = 6 * time.Second
	activityCap      = 200
	gridColumns      = 3
	defaultBurst     = 10
)

type Tab int

const (
	TabHome Tab = iota
	TabProducts
	TabActivity
	TabSettings
)

var tabNames = [...]string{"Home", "Products", "Activity", "Settings"}

func (t Tab) String() string { return tabNames[t] }

type ProductsMode int

const (
	ModeGrid ProductsMode = iota
	ModeWorkspace
)

type SubTab int

const (
	SubTabContext SubTab = iota
	SubTabStructure
	SubTabListings
)

var subTabNames = [...]string{"Context", "Structure", "Listings"}

func (t SubTab) String() string { return subTabNames[t] }

type Focus int

const (
	FocusImages Focus = iota
	FocusText
)

type Toast struct {
	Message   string
	Severity  domain.Severity
	ExpiresAt time.Time
}

type State struct {
	now         func() time.Time
	layout      manifest.Layout
	onlineReady bool
	burstCount  int

	Quit   bool
	Tab    Tab
	Mode   ProductsMode
	SubTab SubTab
	Focus  Focus
	Modal  Modal

	Status          bus.CaptureStatus
	CameraConnected bool
	PreviewEnabled  bool
	DeviceIndex     int

	Product      *domain.ProductManifest
	Session      *domain.SessionManifest
	Products     []domain.ProductSummary
	GridSelected int

	FrameSelected        int
	StructureSelected    int
	ListingSelected      int
	ListingFieldSelected int
	SettingsSelected     int

	Settings    domain.Settings
	Uploads     []domain.UploadJob
	Activity    []domain.ActivityEntry
	Toast       *Toast
	LastError   string
	LastCapture string
	LastCommit  string

	pending []bus.Command
}

type Option func(*State)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

func WithBurstCount(n int) Option {
	return func(s *State) {
		if n > 0 {
			s.burstCount = n
		}
	}
}

// WithOnlineReady queues an upload after every non-empty commit.
func WithOnlineReady(ready bool) Option {
	return func(s *State) { s.onlineReady = ready }
}

// WithStartupWarnings seeds the activity log.
func WithStartupWarnings(warnings []string) Option {
	return func(s *State) {
		for _, w := range warnings {
			s.log(domain.SeverityWarning, w)
		}
	}
}

func New(layout manifest.Layout, settings domain.Settings, opts ...Option) *State {
	s := &State{
		now:        time.Now,
		layout:     layout,
		burstCount: defaultBurst,
		Settings:   settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DrainPending returns the commands queued since the last call.
func (s *State) DrainPending() []bus.Command {
	out := s.pending
	s.pending = nil
	return out
}

// Prune expires the toast and a stale delete confirmation.
func (s *State) Prune(now time.Time) {
	if s.Toast != nil && !now.Before(s.Toast.ExpiresAt) {
		s.Toast = nil
	}
	if c, ok := s.Modal.(*DeleteConfirm); ok && c.expired(now) {
		s.Modal = nil
	}
}

func (s *State) send(cmd bus.Command) {
	s.pending = append(s.pending, cmd)
}

func (s *State) toast(sev domain.Severity, msg string) {
	s.Toast = &Toast{Message: msg, Severity: sev, ExpiresAt: s.now().Add(toastTTL)}
}

func (s *State) toastf(sev domain.Severity, format string, args ...any) {
	s.toast(sev, fmt.Sprintf(format, args...))
}

func (s *State) log(sev domain.Severity, msg string) {
	s.appendActivity(domain.ActivityEntry{At: s.now(), Severity: sev, Message: msg})
}

func (s *State) appendActivity(e domain.ActivityEntry) {
	s.Activity = append(s.Activity, e)
	if n := len(s.Activity); n > activityCap {
		s.Activity = append([]domain.ActivityEntry(nil), s.Activity[n-activityCap:]...)
	}
}

func (s *State) nextTab() { s.Tab = (s.Tab + 1) % 4 }
func (s *State) prevTab() { s.Tab = (s.Tab + 3) % 4 }

// imagesFromSession reports whether the context pane lists session frames
// rather than committed product images.
// sessionCommitted reports whether the active session is already committed
// and so read-only.
func (s *State) sessionCommitted() bool {
	return s.Session != nil && s.Session.Committed()
}

func (s *State) imagesFromSession() bool {
	return s.Session != nil && len(s.Session.Frames) > 0
}

func (s *State) imageCount() int {
	switch {
	case s.imagesFromSession():
		return len(s.Session.Frames)
	case s.Product != nil:
		return len(s.Product.Images)
	}
	return 0
}

// previewPath is the file shown in the static preview, or "" when nothing
// should be shown.
func (s *State) previewPath() string {
	if s.Mode != ModeWorkspace || s.SubTab != SubTabContext || s.Focus != FocusImages {
		return ""
	}
	if s.imagesFromSession() {
		if s.FrameSelected >= len(s.Session.Frames) {
			return ""
		}
		return s.layout.SessionRel(s.Session.SessionID, s.Session.Frames[s.FrameSelected].RelPath)
	}
	if s.Product == nil || s.FrameSelected >= len(s.Product.Images) {
		return ""
	}
	return s.layout.ProductRel(s.Product.ProductID, s.Product.Images[s.FrameSelected].RelPath)
}

func (s *State) queuePreview() {
	s.send(bus.ShowImage{Path: s.previewPath()})
}

// sessionRel converts a saved frame path to one relative to the session
// directory, falling back to frames/<name> for paths outside it.
func (s *State) sessionRel(sess *domain.SessionManifest, path string) string {
	rel, err := filepath.Rel(s.layout.SessionDir(sess.SessionID), path)
	if err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) {
		return filepath.ToSlash(rel)
	}
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		name = "frame.jpg"
	}
	return "frames/" + name
}

// ListingKeys are the marketplaces of the active product, sorted, or the
// configured default marketplace when it has none.
func (s *State) ListingKeys() []string {
	var keys []string
	if s.Product != nil {
		for k := range s.Product.Listings {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		keys = append(keys, s.defaultMarketplace())
	}
	slices.Sort(keys)
	return keys
}

func (s *State) selectedListingKey() string {
	keys := s.ListingKeys()
	return keys[min(s.ListingSelected, len(keys)-1)]
}

func (s *State) defaultMarketplace() string {
	if m := strings.TrimSpace(s.Settings.Marketplace); m != "" {
		return strings.ToUpper(m)
	}
	return config.DefaultMarketplace
}
