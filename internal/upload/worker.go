// Package upload pushes committed product images to object storage. The
// worker only reads manifests; uploaded URLs are reported as events and
// written back by the storage worker.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/manifest"
)

// Uploader stores one local file and returns where it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, productID, absPath string) (url, mediaID string, err error)
}

type Worker struct {
	layout   manifest.Layout
	uploader Uploader
	cmds     *bus.Queue[bus.UploadCommand]
	events   bus.Emitter
	logger   *slog.Logger
}

// NewWorker creates an upload worker. A nil uploader runs offline and skips
// every request with a warning.
func NewWorker(layout manifest.Layout, uploader Uploader, cmds *bus.Queue[bus.UploadCommand], events bus.Emitter, logger *slog.Logger) *Worker {
	return &Worker{
		layout:   layout,
		uploader: uploader,
		cmds:     cmds,
		events:   events,
		logger:   logger,
	}
}

func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("upload worker started", "online", w.uploader != nil)
	for {
		cmd, ok := w.cmds.Pop()
		if !ok {
			break
		}
		switch c := cmd.(type) {
		case bus.Shutdown:
			w.logger.Info("upload worker stopped")
			return
		case bus.UploadProduct:
			w.uploadProduct(ctx, c.ProductID)
		default:
			w.logger.Warn("unhandled upload command", "command", fmt.Sprintf("%T", cmd))
		}
	}
	w.logger.Info("upload worker stopped")
}

func (w *Worker) uploadProduct(ctx context.Context, productID string) {
	if w.uploader == nil {
		w.activity(domain.SeverityWarning, "Uploader not configured; upload skipped (offline mode).")
		return
	}

	p, err := w.layout.ReadProduct(productID)
	if err != nil {
		w.logger.Error("failed to load product for upload", "product_id", productID, "error", err)
		w.activity(domain.SeverityError, fmt.Sprintf("Load product failed: %v", err))
		return
	}

	targets := Targets(p)
	if len(targets) == 0 {
		w.activity(domain.SeverityInfo, "Nothing to upload (all URLs present).")
		return
	}

	for _, rel := range targets {
		abs := w.layout.ProductRel(productID, rel)
		if _, err := os.Stat(abs); err != nil {
			w.activity(domain.SeverityWarning, fmt.Sprintf("Missing file: %s", abs))
			continue
		}
		w.uploadOne(ctx, productID, rel, abs)
	}
	w.events.Emit(bus.UploadFinished{ProductID: productID})
}

func (w *Worker) uploadOne(ctx context.Context, productID, rel, abs string) {
	job := domain.UploadJob{
		ID:        JobID(productID, rel),
		ProductID: productID,
		RelPath:   rel,
		Status:    domain.JobInProgress,
	}
	w.events.Emit(bus.UploadJobUpdated{Job: job})

	url, mediaID, err := w.uploader.Upload(ctx, productID, abs)
	if err != nil {
		w.logger.Error("upload failed", "product_id", productID, "rel_path", rel, "error", err)
		job.Status = domain.JobFailed
		job.LastError = err.Error()
		w.events.Emit(bus.UploadJobUpdated{Job: job})
		w.activity(domain.SeverityError, fmt.Sprintf("Upload failed for %s: %v", rel, err))
		return
	}

	w.logger.Info("upload completed", "product_id", productID, "rel_path", rel, "url", url)
	job.Status = domain.JobCompleted
	w.events.Emit(bus.UploadJobUpdated{Job: job})
	w.events.Emit(bus.UploadCompleted{ProductID: productID, RelPath: rel, URL: url, MediaID: mediaID})
	w.activity(domain.SeveritySuccess, fmt.Sprintf("Uploaded %s -> %s", filepath.Base(rel), url))
}

func (w *Worker) activity(sev domain.Severity, msg string) {
	w.events.Emit(bus.Activity(sev, msg))
}

// Targets lists the product files still missing an uploaded URL: the hero
// first, then images in manifest order.
func Targets(p *domain.ProductManifest) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(rel string) {
		if rel == "" || seen[rel] {
			return
		}
		seen[rel] = true
		out = append(out, rel)
	}
	if p.HeroUploadedURL == "" {
		add(p.HeroRelPath)
	}
	for _, img := range p.Images {
		if img.UploadedURL == "" {
			add(img.RelPath)
		}
	}
	return out
}

// JobID names the upload job for one product file.
func JobID(productID, rel string) string {
	short := productID
	if len(short) > 8 {
		short = short[:8]
	}
	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, filepath.Base(rel))
	return fmt.Sprintf("upl-%s-%s", short, name)
}
