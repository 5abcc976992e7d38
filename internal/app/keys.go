package app

import (
	"encoding/json"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/domain"
)

const sessionCommittedMsg = "Session already committed."

type KeyCode int

const (
	KeyRune KeyCode = iota
	KeyEnter
	KeyEsc
	KeyTab
	KeyBackTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyBackspace
	KeyDelete
)

// Key is one keypress. Rune is only meaningful for KeyRune.
type Key struct {
	Code KeyCode
	Rune rune
}

func Rune(r rune) Key { return Key{Code: KeyRune, Rune: r} }

func (k Key) Is(r rune) bool { return k.Code == KeyRune && k.Rune == r }

// HandleKey routes one keypress. Open edit modals see every key first, then
// the global keys, then any other modal, then the current tab.
func (s *State) HandleKey(k Key) {
	switch s.Modal.(type) {
	case *TextEdit, *StructureEdit, *StructureFieldEdit, *ListingEdit, *ListingFieldEdit, *SettingsEdit:
		s.Modal, _ = s.Modal.handleKey(s, k)
		return
	}

	if k.Is('q') {
		s.Quit = true
		s.send(bus.Shutdown{})
		return
	}
	if k.Is('?') {
		if _, open := s.Modal.(*Help); open {
			s.Modal = nil
		} else {
			s.Modal = &Help{}
		}
		return
	}

	if s.Modal != nil {
		var handled bool
		s.Modal, handled = s.Modal.handleKey(s, k)
		if handled {
			return
		}
	}

	if s.handleTabKey(k) {
		return
	}

	prev := s.Tab
	switch {
	case k.Is('l') || (k.Code == KeyRight && s.Tab != TabProducts):
		s.nextTab()
	case k.Is('h') || (k.Code == KeyLeft && s.Tab != TabProducts):
		s.prevTab()
	}
	if s.Tab == TabProducts && prev != TabProducts {
		s.Mode = ModeGrid
		if s.Product != nil {
			s.Mode = ModeWorkspace
		}
		s.send(bus.ListProducts{})
	}
}

func (s *State) handleTabKey(k Key) bool {
	switch s.Tab {
	case TabProducts:
		if s.Mode == ModeGrid {
			return s.handleGridKey(k)
		}
		return s.handleWorkspaceKey(k)
	case TabSettings:
		return s.handleSettingsKey(k)
	}
	return false
}

func (s *State) handleGridKey(k Key) bool {
	n := len(s.Products)
	switch {
	case k.Code == KeyLeft:
		if n > 0 && s.GridSelected%gridColumns > 0 {
			s.GridSelected--
		}
	case k.Code == KeyRight:
		if s.GridSelected+1 < n && (s.GridSelected+1)%gridColumns != 0 {
			s.GridSelected++
		}
	case k.Code == KeyUp:
		if s.GridSelected >= gridColumns {
			s.GridSelected -= gridColumns
		}
	case k.Code == KeyDown:
		if s.GridSelected+gridColumns < n {
			s.GridSelected += gridColumns
		}
	case k.Is('n'):
		s.send(bus.CreateProductAndSession{})
	case k.Is('/'):
		s.Modal = &ProductPicker{}
	case k.Is('d') || k.Code == KeyDelete || k.Code == KeyBackspace:
		s.confirmDelete()
	case k.Code == KeyEnter:
		if s.GridSelected < n {
			s.send(bus.StartSessionForProduct{ProductID: s.Products[s.GridSelected].ProductID})
		}
	default:
		return false
	}
	return true
}

func (s *State) confirmDelete() {
	if s.GridSelected >= len(s.Products) {
		s.toast(domain.SeverityWarning, "No products available.")
		return
	}
	p := s.Products[s.GridSelected]
	if s.Session != nil && !s.Session.Committed() && s.Session.ProductID == p.ProductID {
		s.toast(domain.SeverityWarning, "Finish or abandon the active session before deleting.")
		return
	}
	s.Modal = &DeleteConfirm{ProductID: p.ProductID, SKUAlias: p.SKUAlias, ExpiresAt: s.now().Add(deleteConfirmTTL)}
	s.toastf(domain.SeverityWarning, "Delete %s? Press y to confirm, n to cancel.", p.SKUAlias)
}

func (s *State) handleWorkspaceKey(k Key) bool {
	handled := true
	switch {
	case k.Code == KeyTab:
		s.SubTab = (s.SubTab + 1) % 3
		s.queuePreview()
	case k.Code == KeyBackTab:
		s.SubTab = (s.SubTab + 2) % 3
		s.queuePreview()
	case k.Code == KeyLeft && s.SubTab == SubTabContext:
		s.Focus = FocusImages
		s.queuePreview()
	case k.Code == KeyRight && s.SubTab == SubTabContext:
		s.Focus = FocusText
		s.queuePreview()
	case k.Code == KeyLeft && s.SubTab == SubTabListings:
		s.ListingSelected = max(s.ListingSelected-1, 0)
		s.ListingFieldSelected = 0
	case k.Code == KeyRight && s.SubTab == SubTabListings:
		if s.ListingSelected+1 < len(s.ListingKeys()) {
			s.ListingSelected++
			s.ListingFieldSelected = 0
		}
	case k.Is('g'):
		s.Mode = ModeGrid
		s.send(bus.ListProducts{})
		s.queuePreview()
		return true
	default:
		handled = false
	}
	if handled {
		return true
	}

	switch s.SubTab {
	case SubTabContext:
		if s.Focus == FocusText && (k.Code == KeyEnter || k.Is('e')) {
			s.openTextEdit()
			return true
		}
		return s.handleContextKey(k)
	case SubTabStructure:
		return s.handleStructureKey(k)
	}
	return s.handleListingsKey(k)
}

func (s *State) handleContextKey(k Key) bool {
	count := s.imageCount()
	switch {
	case k.Code == KeyUp:
		if s.FrameSelected > 0 {
			s.FrameSelected--
			s.queuePreview()
		}
	case k.Code == KeyDown:
		if s.FrameSelected+1 < count {
			s.FrameSelected++
			s.queuePreview()
		}
	case k.Code == KeyEnter || k.Is(' '):
		if s.imagesFromSession() && s.FrameSelected < count {
			if s.sessionCommitted() {
				s.toast(domain.SeverityWarning, sessionCommittedMsg)
				break
			}
			s.send(bus.ToggleSessionFrameSelection{
				SessionID: s.Session.SessionID,
				RelPath:   s.Session.Frames[s.FrameSelected].RelPath,
			})
		}
	case k.Is('s'):
		s.PreviewEnabled = !s.Status.Streaming
		if s.Status.Streaming {
			s.send(bus.StopStream{})
		} else {
			s.send(bus.StartStream{})
		}
		s.send(bus.SetPreviewEnabled{Enabled: s.PreviewEnabled})
	case k.Is('d'):
		s.DeviceIndex++
		s.send(bus.SetDevice{Index: s.DeviceIndex})
	case k.Is('D'):
		s.DeviceIndex = max(s.DeviceIndex-1, 0)
		s.send(bus.SetDevice{Index: s.DeviceIndex})
	case k.Is('c'):
		s.send(bus.CaptureOne{})
	case k.Is('b'):
		s.send(bus.CaptureBurst{N: s.burstCount})
	case k.Code == KeyBackspace || k.Code == KeyDelete:
		s.deleteSelectedImage()
	case k.Is('n'):
		s.send(bus.CreateProductAndSession{})
	case k.Is('x'):
		s.commit()
	case k.Code == KeyEsc:
		switch {
		case s.sessionCommitted():
			s.toast(domain.SeverityWarning, sessionCommittedMsg)
		case s.Session != nil:
			s.send(bus.AbandonSession{SessionID: s.Session.SessionID})
		}
	default:
		return false
	}
	return true
}

func (s *State) deleteSelectedImage() {
	switch {
	case s.imagesFromSession() && s.sessionCommitted():
		s.toast(domain.SeverityWarning, sessionCommittedMsg)
	case s.imagesFromSession() && s.FrameSelected < len(s.Session.Frames):
		s.send(bus.DeleteSessionFrame{
			SessionID: s.Session.SessionID,
			RelPath:   s.Session.Frames[s.FrameSelected].RelPath,
		})
	case !s.imagesFromSession() && s.Product != nil && s.FrameSelected < len(s.Product.Images):
		s.send(bus.DeleteProductImage{
			ProductID: s.Product.ProductID,
			RelPath:   s.Product.Images[s.FrameSelected].RelPath,
		})
	default:
		s.toast(domain.SeverityWarning, "No image selected.")
	}
}

func (s *State) commit() {
	switch {
	case s.Session == nil:
		s.toast(domain.SeverityWarning, "No active session to commit.")
	case s.Session.Picks.Empty():
		s.toast(domain.SeverityWarning, "Select images (Enter) before committing.")
	default:
		s.send(bus.CommitSession{SessionID: s.Session.SessionID})
	}
}

func (s *State) openTextEdit() {
	if s.Product == nil {
		s.toast(domain.SeverityWarning, "No active product selected.")
		return
	}
	s.Modal = &TextEdit{editBuffer: editBuffer{Buffer: s.Product.ContextText}, ProductID: s.Product.ProductID}
	s.toast(domain.SeverityInfo, "Editing text (Esc to save).")
}

func (s *State) handleStructureKey(k Key) bool {
	switch {
	case k.Code == KeyUp:
		s.StructureSelected = max(s.StructureSelected-1, 0)
	case k.Code == KeyDown:
		if s.Product != nil && s.StructureSelected+1 < len(StructureEntries(s.Product.StructureJSON)) {
			s.StructureSelected++
		}
	case k.Code == KeyEnter || k.Is('e'):
		s.openStructureFieldEdit()
	case k.Is('E'):
		s.openStructureEdit()
	case k.Is('r'):
		if s.Product == nil {
			s.toast(domain.SeverityWarning, "No active product selected.")
			return true
		}
		s.send(bus.GenerateStructure{ProductID: s.Product.ProductID})
		s.toast(domain.SeverityInfo, "Generating structure...")
	default:
		return false
	}
	return true
}

func (s *State) openStructureEdit() {
	if s.Product == nil {
		s.toast(domain.SeverityWarning, "No active product selected.")
		return
	}
	buffer := "{\n}"
	if doc := parseStructure(s.Product.StructureJSON); len(doc) > 0 {
		if data, err := json.MarshalIndent(doc, "", "  "); err == nil {
			buffer = string(data)
		}
	}
	s.Modal = &StructureEdit{editBuffer: editBuffer{Buffer: buffer}, ProductID: s.Product.ProductID}
	s.toast(domain.SeverityInfo, "Editing structure (Esc to save).")
}

func (s *State) openStructureFieldEdit() {
	if s.Product == nil {
		s.toast(domain.SeverityWarning, "No active product selected.")
		return
	}
	entries := StructureEntries(s.Product.StructureJSON)
	if len(entries) == 0 {
		s.toast(domain.SeverityWarning, "No structure fields available.")
		return
	}
	e := entries[min(s.StructureSelected, len(entries)-1)]
	s.Modal = &StructureFieldEdit{
		editBuffer: editBuffer{Buffer: structureBuffer(e.Value)},
		ProductID:  s.Product.ProductID,
		Path:       e.Path,
		Kind:       structureKind(e.Value),
		Structure:  s.Product.StructureJSON,
	}
	s.toastf(domain.SeverityInfo, "Editing %s (Esc to save).", e.Path)
}

func (s *State) handleListingsKey(k Key) bool {
	switch {
	case k.Code == KeyUp:
		s.ListingFieldSelected = max(s.ListingFieldSelected-1, 0)
	case k.Code == KeyDown:
		if s.ListingFieldSelected+1 < len(listingFields) {
			s.ListingFieldSelected++
		}
	case k.Code == KeyEnter || k.Is('e'):
		s.openListingFieldEdit()
	case k.Is('E'):
		s.openListingEdit()
	case k.Is('r'), k.Is('p'), k.Is('u'):
		if s.Product == nil {
			s.toast(domain.SeverityWarning, "No active product selected.")
			return true
		}
		id := s.Product.ProductID
		switch k.Rune {
		case 'r':
			s.send(bus.SyncProduct{ProductID: id})
			s.toast(domain.SeverityInfo, "Syncing product...")
		case 'p':
			s.send(bus.PushProduct{ProductID: id})
			s.toast(domain.SeverityInfo, "Pushing product...")
		default:
			s.send(bus.UploadProduct{ProductID: id})
			s.toast(domain.SeverityInfo, "Upload queued.")
		}
	default:
		return false
	}
	return true
}

func (s *State) openListingEdit() {
	if s.Product == nil {
		s.toast(domain.SeverityWarning, "No active product selected.")
		return
	}
	key := s.selectedListingKey()
	listing := s.ListingFor(key)
	data, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	s.Modal = &ListingEdit{editBuffer: editBuffer{Buffer: string(data)}, ProductID: s.Product.ProductID, Marketplace: key}
	s.toast(domain.SeverityInfo, "Editing listing (Esc to save).")
}

func (s *State) openListingFieldEdit() {
	if s.Product == nil {
		s.toast(domain.SeverityWarning, "No active product selected.")
		return
	}
	if len(listingFields) == 0 {
		s.toast(domain.SeverityWarning, "No listing fields available.")
		return
	}
	key := s.selectedListingKey()
	listing := s.ListingFor(key)
	field := listingFields[min(s.ListingFieldSelected, len(listingFields)-1)]
	s.Modal = &ListingFieldEdit{
		editBuffer:  editBuffer{Buffer: field.get(&listing)},
		ProductID:   s.Product.ProductID,
		Marketplace: key,
		Field:       field,
	}
	s.toastf(domain.SeverityInfo, "Editing %s (Esc to save).", field.Label)
}

func (s *State) handleSettingsKey(k Key) bool {
	switch {
	case k.Code == KeyUp:
		s.SettingsSelected = max(s.SettingsSelected-1, 0)
	case k.Code == KeyDown:
		if s.SettingsSelected+1 < len(settingsFields) {
			s.SettingsSelected++
		}
	case k.Code == KeyEnter || k.Is('e') || k.Is('E'):
		s.Modal = &SettingsEdit{editBuffer: editBuffer{Buffer: s.SettingsValue(s.SettingsSelected)}, Field: s.SettingsSelected}
		s.toastf(domain.SeverityInfo, "Editing %s (Enter to save, Esc to cancel).", settingsFields[s.SettingsSelected].Label)
	default:
		return false
	}
	return true
}
