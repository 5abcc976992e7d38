package app

import (
	"fmt"
	"slices"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/domain"
)

// Apply folds one worker event into the state, queueing any follow-up
// commands.
func (s *State) Apply(e bus.Event) {
	switch ev := e.(type) {
	case bus.CaptureStatusChanged:
		s.Status = ev.Status
		s.DeviceIndex = ev.Status.DeviceIndex
		s.CameraConnected = ev.Status.Streaming || (ev.Status.Width > 0 && ev.Status.Height > 0)
	case bus.CaptureError:
		s.LastError = ev.Message
		s.log(domain.SeverityError, ev.Message)
	case bus.CaptureCompleted:
		s.captured(ev)
	case bus.BurstCompleted:
		s.burstCaptured(ev)
	case bus.PreviewUnavailable:
		s.PreviewEnabled = false
		s.toast(domain.SeverityWarning, ev.Message)
	case bus.PreviewError:
		s.PreviewEnabled = false
		s.toast(domain.SeverityWarning, ev.Message)
	case bus.ProductsListed:
		s.productsListed(ev.Products)
	case bus.ProductSelected:
		s.Product = ev.Product
		s.Modal = nil
		s.Focus = FocusImages
		s.FrameSelected = 0
		s.StructureSelected = 0
		s.ListingSelected = 0
		s.ListingFieldSelected = 0
	case bus.SessionStarted:
		s.sessionStarted(ev.Session)
	case bus.SessionUpdated:
		s.Session = ev.Session
		if n := s.imageCount(); s.FrameSelected >= n {
			s.FrameSelected = max(n-1, 0)
		}
		s.queuePreview()
	case bus.CommitCompleted:
		s.commitCompleted(ev)
	case bus.ProductDeleted:
		s.productDeleted(ev)
	case bus.SessionAbandoned:
		if s.Session != nil && s.Session.SessionID == ev.SessionID {
			s.Session = nil
		}
		s.Mode = ModeGrid
		s.FrameSelected = 0
		s.send(bus.ClearOutputDir{})
		s.queuePreview()
		s.toastf(domain.SeverityWarning, "Session abandoned -> %s", ev.MovedTo)
	case bus.StorageError:
		s.LastError = ev.Message
		s.toast(domain.SeverityError, ev.Message)
	case bus.SettingsSaved:
		s.Settings = ev.Settings
		s.toast(domain.SeveritySuccess, "Settings saved.")
	case bus.UploadJobUpdated:
		s.uploadJobUpdated(ev.Job)
	case bus.UploadCompleted:
		s.send(bus.RecordImageUpload{ProductID: ev.ProductID, RelPath: ev.RelPath, URL: ev.URL, MediaID: ev.MediaID})
	case bus.UploadFinished:
		if s.Product != nil && s.Product.ProductID == ev.ProductID {
			s.toastf(domain.SeverityInfo, "Uploads finished for %s.", s.Product.SKUAlias)
		}
	case bus.ActivityLogged:
		s.appendActivity(ev.Entry)
	}
}

func (s *State) captured(ev bus.CaptureCompleted) {
	if s.Session == nil {
		s.toast(domain.SeverityWarning, "Captured frame but no active session.")
		return
	}
	rel := s.sessionRel(s.Session, ev.Path)
	s.LastCapture = rel
	s.log(domain.SeveritySuccess, "Captured "+rel)
	sharpness := ev.Sharpness
	s.send(bus.AppendSessionFrame{
		SessionID: s.Session.SessionID,
		RelPath:   rel,
		CreatedAt: ev.CreatedAt,
		Sharpness: &sharpness,
	})
}

func (s *State) burstCaptured(ev bus.BurstCompleted) {
	if s.Session == nil {
		s.toast(domain.SeverityWarning, "Burst captured but no active session.")
		return
	}
	for _, f := range ev.Frames {
		sharpness := f.Sharpness
		s.send(bus.AppendSessionFrame{
			SessionID: s.Session.SessionID,
			RelPath:   s.sessionRel(s.Session, f.Path),
			CreatedAt: f.CreatedAt,
			Sharpness: &sharpness,
		})
	}
	if ev.BestPath != "" {
		s.LastCapture = s.sessionRel(s.Session, ev.BestPath)
		s.log(domain.SeveritySuccess, fmt.Sprintf("Burst of %d, best %s", len(ev.Frames), s.LastCapture))
	}
	s.toast(domain.SeveritySuccess, "Burst saved.")
}

func (s *State) productsListed(products []domain.ProductSummary) {
	s.Products = products
	if p, ok := s.Modal.(*ProductPicker); ok {
		p.Selected = 0
	}
	s.GridSelected = 0
	if s.Product != nil {
		if i := slices.IndexFunc(products, func(p domain.ProductSummary) bool {
			return p.ProductID == s.Product.ProductID
		}); i >= 0 {
			s.GridSelected = i
		}
	}
}

// sessionStarted points capture at the new session, starts the stream, and
// opens the product workspace.
func (s *State) sessionStarted(sess *domain.SessionManifest) {
	s.send(bus.SetOutputDir{Dir: s.layout.FramesDir(sess.SessionID)})
	s.send(bus.StartStream{})
	s.send(bus.SetPreviewEnabled{Enabled: true})
	s.PreviewEnabled = true
	s.Session = sess
	s.FrameSelected = 0
	s.Focus = FocusImages
	s.Tab = TabProducts
	s.Mode = ModeWorkspace
	s.SubTab = SubTabContext
	s.queuePreview()
}

func (s *State) commitCompleted(ev bus.CommitCompleted) {
	s.Product = ev.Product
	s.Session = ev.Session
	s.FrameSelected = 0
	msg := fmt.Sprintf("Committed %d image(s) to %s", ev.Count, ev.Product.SKUAlias)
	if ev.Count > 0 {
		s.SubTab = SubTabListings
		if s.onlineReady {
			s.send(bus.UploadProduct{ProductID: ev.Product.ProductID})
			msg += " (upload queued)"
		} else {
			msg += " (upload ready via 'u')"
		}
	}
	s.LastCommit = msg
	s.toast(domain.SeveritySuccess, msg)
	s.send(bus.ClearOutputDir{})
}

func (s *State) productDeleted(ev bus.ProductDeleted) {
	if s.Product != nil && s.Product.ProductID == ev.ProductID {
		s.Product = nil
	}
	if s.Session != nil && s.Session.ProductID == ev.ProductID {
		s.Session = nil
		s.send(bus.ClearOutputDir{})
	}
	s.Products = slices.DeleteFunc(s.Products, func(p domain.ProductSummary) bool {
		return p.ProductID == ev.ProductID
	})
	s.GridSelected = min(s.GridSelected, max(len(s.Products)-1, 0))
	s.Mode = ModeGrid
	s.SubTab = SubTabContext
	s.Focus = FocusImages
	s.Modal = nil
	s.FrameSelected = 0
	s.StructureSelected = 0
	s.ListingSelected = 0
	s.ListingFieldSelected = 0
	s.queuePreview()

	msg := "Product deleted."
	if ev.RemovedSessions > 0 {
		msg += fmt.Sprintf(" (%d session(s) removed)", ev.RemovedSessions)
	}
	s.toast(domain.SeveritySuccess, msg)
}

func (s *State) uploadJobUpdated(job domain.UploadJob) {
	if i := slices.IndexFunc(s.Uploads, func(j domain.UploadJob) bool { return j.ID == job.ID }); i >= 0 {
		s.Uploads[i] = job
	} else {
		s.Uploads = append(s.Uploads, job)
	}
	switch job.Status {
	case domain.JobCompleted:
		s.toast(domain.SeveritySuccess, "Upload completed.")
	case domain.JobFailed:
		s.LastError = job.LastError
	}
}
