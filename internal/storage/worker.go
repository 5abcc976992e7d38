// Package storage runs the single writer for products and sessions. Every
// manifest mutation goes through one command queue, so no two mutations
// ever interleave.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/config"
	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/service"
)

// activityLog is the subset of store.ActivityStore the worker requires.
type activityLog interface {
	Append(ctx context.Context, e domain.ActivityEntry) error
}

type Worker struct {
	svc          *service.CatalogService
	activity     activityLog
	settingsPath string
	cmds         *bus.Queue[bus.StorageCommand]
	events       bus.Emitter
	logger       *slog.Logger
}

func NewWorker(
	svc *service.CatalogService,
	activity activityLog,
	settingsPath string,
	cmds *bus.Queue[bus.StorageCommand],
	events bus.Emitter,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		svc:          svc,
		activity:     activity,
		settingsPath: settingsPath,
		cmds:         cmds,
		events:       events,
		logger:       logger,
	}
}

// Run processes commands in order until Shutdown or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("storage worker started")
	for {
		cmd, ok := w.cmds.Pop()
		if !ok {
			break
		}
		if _, stop := cmd.(bus.Shutdown); stop {
			break
		}
		w.handle(ctx, cmd)
	}
	w.logger.Info("storage worker stopped")
}

func (w *Worker) handle(ctx context.Context, cmd bus.StorageCommand) {
	w.logger.Debug("storage command", "command", fmt.Sprintf("%T", cmd))

	switch c := cmd.(type) {
	case bus.CreateProductAndSession:
		p, sess, err := w.svc.CreateProductAndSession(ctx)
		if err != nil {
			w.fail(ctx, "Create product", err)
			return
		}
		w.events.Emit(bus.ProductSelected{Product: p})
		w.events.Emit(bus.SessionStarted{Session: sess})
		w.record(ctx, domain.SeveritySuccess, fmt.Sprintf("Created product %s", p.SKUAlias))

	case bus.ListProducts:
		products, err := w.svc.ListProducts(ctx)
		if err != nil {
			w.fail(ctx, "List products", err)
			return
		}
		w.events.Emit(bus.ProductsListed{Products: products})

	case bus.StartSessionForProduct:
		p, sess, err := w.svc.StartSession(ctx, c.ProductID)
		if err != nil {
			w.fail(ctx, "Start session", err)
			return
		}
		w.events.Emit(bus.ProductSelected{Product: p})
		w.events.Emit(bus.SessionStarted{Session: sess})
		w.record(ctx, domain.SeverityInfo, fmt.Sprintf("Started session for %s", p.SKUAlias))

	case bus.DeleteProduct:
		removed, err := w.svc.DeleteProduct(ctx, c.ProductID)
		if err != nil {
			w.fail(ctx, "Delete product", err)
			return
		}
		w.events.Emit(bus.ProductDeleted{ProductID: c.ProductID, RemovedSessions: removed})
		w.record(ctx, domain.SeverityWarning, fmt.Sprintf("Deleted product %s (%d session(s) removed)", service.SKUAlias(c.ProductID), removed))

	case bus.SetProductContext:
		w.product(ctx, "Save context")(w.svc.SetContext(ctx, c.ProductID, c.Text))

	case bus.SetProductStructure:
		w.product(ctx, "Save structure")(w.svc.SetStructure(ctx, c.ProductID, c.Structure))

	case bus.SetProductListings:
		w.product(ctx, "Save listings")(w.svc.SetListings(ctx, c.ProductID, c.Listings))

	case bus.AbandonSession:
		movedTo, err := w.svc.AbandonSession(ctx, c.SessionID)
		if err != nil {
			w.fail(ctx, "Abandon session", err)
			return
		}
		w.events.Emit(bus.SessionAbandoned{SessionID: c.SessionID, MovedTo: movedTo})
		w.record(ctx, domain.SeverityWarning, fmt.Sprintf("Session abandoned, moved to %s", movedTo))

	case bus.CommitSession:
		p, sess, count, err := w.svc.CommitSession(ctx, c.SessionID)
		if err != nil {
			w.fail(ctx, "Commit", err)
			return
		}
		w.events.Emit(bus.CommitCompleted{Product: p, Session: sess, Count: count})
		w.record(ctx, domain.SeveritySuccess, fmt.Sprintf("Committed %d image(s) to %s", count, p.SKUAlias))

	case bus.AppendSessionFrame:
		w.session(ctx, "Append frame")(w.svc.AppendFrame(ctx, c.SessionID, c.RelPath, c.CreatedAt, c.Sharpness))

	case bus.ToggleSessionFrameSelection:
		w.session(ctx, "Toggle selection")(w.svc.ToggleSelection(ctx, c.SessionID, c.RelPath))

	case bus.DeleteSessionFrame:
		w.session(ctx, "Delete frame")(w.svc.DeleteFrame(ctx, c.SessionID, c.RelPath))

	case bus.DeleteProductImage:
		w.product(ctx, "Delete image")(w.svc.DeleteProductImage(ctx, c.ProductID, c.RelPath))

	case bus.RecordImageUpload:
		w.product(ctx, "Record upload")(w.svc.RecordImageUpload(ctx, c.ProductID, c.RelPath, c.URL, c.MediaID))

	case bus.GenerateStructure:
		p, err := w.svc.GenerateStructure(ctx, c.ProductID)
		if err != nil {
			w.fail(ctx, "Generate structure", err)
			return
		}
		w.events.Emit(bus.ProductSelected{Product: p})
		w.record(ctx, domain.SeveritySuccess, fmt.Sprintf("Structure generated for %s", p.SKUAlias))

	case bus.SyncProduct:
		p, err := w.svc.SyncProduct(ctx, c.ProductID)
		if err != nil {
			w.fail(ctx, "Sync", err)
			return
		}
		w.events.Emit(bus.ProductSelected{Product: p})
		w.record(ctx, domain.SeverityInfo, fmt.Sprintf("Synced %s from remote catalog", p.SKUAlias))

	case bus.PushProduct:
		p, err := w.svc.PushProduct(ctx, c.ProductID)
		if err != nil {
			w.fail(ctx, "Push", err)
			return
		}
		w.events.Emit(bus.ProductSelected{Product: p})
		w.record(ctx, domain.SeveritySuccess, fmt.Sprintf("Pushed %s to remote catalog", p.SKUAlias))

	case bus.SaveSettings:
		if err := config.SaveSettings(w.settingsPath, c.Settings); err != nil {
			w.fail(ctx, "Save settings", err)
			return
		}
		w.events.Emit(bus.SettingsSaved{Settings: c.Settings})
		w.record(ctx, domain.SeverityInfo, "Settings saved")

	default:
		w.logger.Warn("unhandled storage command", "command", fmt.Sprintf("%T", cmd))
	}
}

// product returns a handler that emits ProductSelected or a StorageError.
func (w *Worker) product(ctx context.Context, op string) func(*domain.ProductManifest, error) {
	return func(p *domain.ProductManifest, err error) {
		if err != nil {
			w.fail(ctx, op, err)
			return
		}
		w.events.Emit(bus.ProductSelected{Product: p})
	}
}

// session returns a handler that emits SessionUpdated or a StorageError.
func (w *Worker) session(ctx context.Context, op string) func(*domain.SessionManifest, error) {
	return func(s *domain.SessionManifest, err error) {
		if err != nil {
			w.fail(ctx, op, err)
			return
		}
		w.events.Emit(bus.SessionUpdated{Session: s})
	}
}

func (w *Worker) fail(ctx context.Context, op string, err error) {
	msg := fmt.Sprintf("%s failed: %v", op, err)
	w.logger.Error("storage command failed", "op", op, "error", err)
	w.events.Emit(bus.StorageError{Message: msg})
	w.record(ctx, domain.SeverityError, msg)
}

// record publishes an activity entry and persists it. Persistence is best
// effort.
func (w *Worker) record(ctx context.Context, sev domain.Severity, msg string) {
	ev := bus.Activity(sev, msg)
	w.events.Emit(ev)
	if w.activity == nil {
		return
	}
	if err := w.activity.Append(ctx, ev.Entry); err != nil {
		w.logger.Warn("failed to persist activity", "error", err)
	}
}
