package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/shelfshot/internal/app"
	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/camera"
	"github.com/vbonduro/shelfshot/internal/capture"
	"github.com/vbonduro/shelfshot/internal/config"
	"github.com/vbonduro/shelfshot/internal/db"
	"github.com/vbonduro/shelfshot/internal/enrich"
	claudeenrich "github.com/vbonduro/shelfshot/internal/enrich/claude"
	ollamaenrich "github.com/vbonduro/shelfshot/internal/enrich/ollama"
	"github.com/vbonduro/shelfshot/internal/logging"
	"github.com/vbonduro/shelfshot/internal/mailbox"
	"github.com/vbonduro/shelfshot/internal/manifest"
	"github.com/vbonduro/shelfshot/internal/photostore/local"
	"github.com/vbonduro/shelfshot/internal/preview"
	"github.com/vbonduro/shelfshot/internal/remote"
	"github.com/vbonduro/shelfshot/internal/service"
	"github.com/vbonduro/shelfshot/internal/storage"
	"github.com/vbonduro/shelfshot/internal/store"
	"github.com/vbonduro/shelfshot/internal/ui"
	"github.com/vbonduro/shelfshot/internal/upload"
	"github.com/vbonduro/shelfshot/internal/upload/s3"
	"github.com/vbonduro/shelfshot/internal/web"
)

const webShutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the capture workstation",
		Long: `Starts the capture, preview, storage and upload workers and reads
keys from stdin, one key or key name per token (q quits, ? shows help).

The live preview is served over HTTP at PREVIEW_ADDR when
PREVIEW_BACKEND=web.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkstation(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// catalog is everything a command needs to work with products on disk.
type catalog struct {
	cfg      *config.Config
	logger   *slog.Logger
	layout   manifest.Layout
	files    *local.LocalPhotoStore
	index    *store.ProductIndex
	activity *store.ActivityStore
	svc      *service.CatalogService
	close    func()
}

// openCatalog resolves the captures root, opens the sqlite index and builds
// the catalog service. Callers must call close.
func openCatalog(cfg *config.Config, logger *slog.Logger) (*catalog, error) {
	captures, err := filepath.Abs(cfg.CapturesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve captures dir: %w", err)
	}
	layout := manifest.NewLayout(captures)
	if err := layout.EnsureRoot(); err != nil {
		return nil, fmt.Errorf("failed to create captures dir: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	files, err := local.NewLocalPhotoStore(captures)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize photo store: %w", err)
	}

	index := store.NewProductIndex(database)
	var opts []service.Option
	if e := newEnricher(cfg, logger); e != nil {
		opts = append(opts, service.WithEnricher(e))
	}
	if cfg.RemoteBaseURL != "" {
		logger.Info("using remote catalog", "base_url", cfg.RemoteBaseURL)
		opts = append(opts, service.WithRemote(remote.NewHTTPCatalog(cfg.RemoteBaseURL, cfg.RemoteAPIKey)))
	}

	return &catalog{
		cfg:      cfg,
		logger:   logger,
		layout:   layout,
		files:    files,
		index:    index,
		activity: store.NewActivityStore(database),
		svc:      service.NewCatalogService(layout, files, index, logging.Component(logger, "storage"), opts...),
		close: func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		},
	}, nil
}

func newEnricher(cfg *config.Config, logger *slog.Logger) enrich.Enricher {
	switch cfg.EnrichBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			cfg.Warnings = append(cfg.Warnings, "CLAUDE_API_KEY is required when ENRICH_BACKEND=claude; structure drafting disabled")
			return nil
		}
		logger.Info("using Claude enrich backend", "model", cfg.ClaudeModel)
		return claudeenrich.NewClaudeEnricher(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	case "ollama":
		logger.Info("using Ollama enrich backend", "model", cfg.OllamaModel)
		return ollamaenrich.NewOllamaEnricher(cfg.OllamaHost, cfg.OllamaModel)
	}
	return nil
}

func newCameraBackend(cfg *config.Config, width, height int, logger *slog.Logger) camera.Backend {
	if cfg.CameraBackend == "mjpeg" {
		if len(cfg.CameraURLs) > 0 {
			logger.Info("using MJPEG camera backend", "devices", len(cfg.CameraURLs))
			return camera.NewMJPEGBackend(cfg.CameraURLs)
		}
		cfg.Warnings = append(cfg.Warnings, "CAMERA_BACKEND=mjpeg needs CAMERA_URLS; using the test pattern")
	}
	logger.Info("using test pattern camera backend", "devices", cfg.CameraDevices, "width", width, "height", height)
	return camera.NewPatternBackend(cfg.CameraDevices, width, height)
}

// newUploader returns nil when uploads are not configured or the bucket
// cannot be reached; the upload worker then runs offline.
func newUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger) upload.Uploader {
	if !cfg.OnlineReady() {
		logger.Info("uploads disabled, S3 is not configured")
		return nil
	}
	u, err := s3.New(cfg)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("S3 uploader unavailable: %v", err))
		return nil
	}
	if err := u.EnsureBucket(ctx); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("S3 bucket unavailable: %v", err))
		return nil
	}
	logger.Info("using S3 uploader", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	return u
}

func runWorkstation(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg := config.Load()

	logger, cleanup, err := logging.NewFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	cat, err := openCatalog(cfg, logger)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		return err
	}
	defer cat.close()

	if n, err := cat.svc.Reindex(ctx); err != nil {
		logger.Warn("failed to rebuild product index", "error", err)
	} else {
		logger.Info("product index rebuilt", "count", n)
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("settings file unreadable, using defaults: %v", err))
		settings = config.DefaultSettings()
	}

	width, height := cfg.Resolution()
	backend := newCameraBackend(cfg, width, height, logger)
	uploader := newUploader(ctx, cfg, logger)

	var previewBackend preview.Backend = preview.NoneBackend{}
	var webServer *web.Server
	if cfg.PreviewBackend == "web" {
		webServer = web.NewServer(cfg.PreviewAddr, cat.layout, cat.index, cat.files, logging.Component(logger, "web"))
		previewBackend = webServer
	}

	b := bus.New()
	box := mailbox.New()

	captureWorker := capture.NewWorker(backend, box, b.Capture, b, logging.Component(logger, "capture"))
	previewWorker := preview.NewWorker(previewBackend, box, b.Preview, b, cfg.PreviewWidth, logging.Component(logger, "preview"))
	storageWorker := storage.NewWorker(cat.svc, cat.activity, cfg.SettingsFile, b.Storage, b, logging.Component(logger, "storage"))
	uploadWorker := upload.NewWorker(cat.layout, uploader, b.Upload, b, logging.Component(logger, "upload"))

	var wg sync.WaitGroup
	wg.Go(func() { captureWorker.Run(ctx) })
	wg.Go(func() { previewWorker.Run(ctx) })
	wg.Go(func() { storageWorker.Run(ctx) })
	wg.Go(func() { uploadWorker.Run(ctx) })

	state := app.New(cat.layout, settings,
		app.WithBurstCount(cfg.BurstCount),
		app.WithOnlineReady(uploader != nil),
		app.WithStartupWarnings(cfg.Warnings),
	)
	b.Send(bus.ListProducts{})
	if webServer != nil {
		fmt.Fprintf(out, "preview: http://%s/preview/stream\n", cfg.PreviewAddr)
	}

	runErr := ui.Run(ctx, state, b, ui.NewLineKeys(in), out, logging.Component(logger, "controller"))
	wg.Wait()

	if webServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), webShutdownTimeout)
		defer cancel()
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down preview server", "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
