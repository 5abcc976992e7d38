package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfshot/internal/bus"
	"github.com/vbonduro/shelfshot/internal/config"
	"github.com/vbonduro/shelfshot/internal/db"
	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/manifest"
	"github.com/vbonduro/shelfshot/internal/photostore/local"
	"github.com/vbonduro/shelfshot/internal/service"
	"github.com/vbonduro/shelfshot/internal/store"
)

type harness struct {
	worker   *Worker
	bus      *bus.Bus
	svc      *service.CatalogService
	layout   manifest.Layout
	activity *store.ActivityStore
	settings string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	files, err := local.NewLocalPhotoStore(base)
	require.NoError(t, err)
	layout := manifest.NewLayout(base)
	svc := service.NewCatalogService(layout, files, store.NewProductIndex(d), slog.Default())

	b := bus.New()
	activity := store.NewActivityStore(d)
	settings := filepath.Join(base, "settings.yaml")
	return &harness{
		worker:   NewWorker(svc, activity, settings, b.Storage, b, slog.Default()),
		bus:      b,
		svc:      svc,
		layout:   layout,
		activity: activity,
		settings: settings,
	}
}

// run sends cmds followed by Shutdown, runs the worker to completion and
// returns every event it emitted.
func (h *harness) run(t *testing.T, cmds ...bus.Command) []bus.Event {
	t.Helper()
	h.bus.SendAll(cmds)
	h.bus.Send(bus.Shutdown{})
	h.worker.Run(context.Background())
	return h.bus.Events.Drain()
}

func eventsOf[T bus.Event](events []bus.Event) []T {
	var out []T
	for _, e := range events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (h *harness) newSession(t *testing.T) *domain.SessionManifest {
	t.Helper()
	_, sess, err := h.svc.CreateProductAndSession(context.Background())
	require.NoError(t, err)
	return sess
}

func (h *harness) writeFrame(t *testing.T, sessionID, rel string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.layout.SessionRel(sessionID, rel), []byte(rel), 0644))
}

func TestCreateProductAndSessionEmitsSelectionAndStart(t *testing.T) {
	h := newHarness(t)

	events := h.run(t, bus.CreateProductAndSession{})

	selected := eventsOf[bus.ProductSelected](events)
	started := eventsOf[bus.SessionStarted](events)
	require.Len(t, selected, 1)
	require.Len(t, started, 1)
	assert.Equal(t, selected[0].Product.ProductID, started[0].Session.ProductID)

	// ProductSelected precedes SessionStarted.
	var order []string
	for _, e := range events {
		switch e.(type) {
		case bus.ProductSelected:
			order = append(order, "product")
		case bus.SessionStarted:
			order = append(order, "session")
		}
	}
	assert.Equal(t, []string{"product", "session"}, order)
}

func TestCommitFlowThroughWorker(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession(t)
	for i := 1; i <= 3; i++ {
		h.writeFrame(t, sess.SessionID, fmt.Sprintf("frames/f%d.jpg", i))
	}

	cmds := []bus.Command{}
	for i := 1; i <= 3; i++ {
		cmds = append(cmds, bus.AppendSessionFrame{SessionID: sess.SessionID, RelPath: fmt.Sprintf("frames/f%d.jpg", i), CreatedAt: time.Now()})
	}
	cmds = append(cmds,
		bus.ToggleSessionFrameSelection{SessionID: sess.SessionID, RelPath: "frames/f2.jpg"},
		bus.CommitSession{SessionID: sess.SessionID},
	)
	events := h.run(t, cmds...)

	assert.Len(t, eventsOf[bus.SessionUpdated](events), 4)
	assert.Empty(t, eventsOf[bus.StorageError](events))
	commits := eventsOf[bus.CommitCompleted](events)
	require.Len(t, commits, 1)
	assert.Equal(t, 1, commits[0].Count)
	assert.Len(t, commits[0].Product.Images, 1)
	assert.True(t, commits[0].Session.Committed())
}

func TestStorageErrorsAreEventsAndWorkerContinues(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession(t)

	events := h.run(t,
		bus.CommitSession{SessionID: sess.SessionID},
		bus.ToggleSessionFrameSelection{SessionID: sess.SessionID, RelPath: "frames/missing.jpg"},
		bus.ListProducts{},
	)

	errs := eventsOf[bus.StorageError](events)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "Commit failed")
	assert.Contains(t, errs[1].Message, "frame not found")
	assert.Len(t, eventsOf[bus.ProductsListed](events), 1)

	recent, err := h.activity.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.SeverityError, recent[0].Severity)
}

func TestConcurrentCommandsForTwoSessions(t *testing.T) {
	h := newHarness(t)
	a := h.newSession(t)
	b := h.newSession(t)

	const perSession = 20
	done := make(chan struct{})
	go func() {
		h.worker.Run(context.Background())
		close(done)
	}()

	var wg sync.WaitGroup
	for _, sess := range []*domain.SessionManifest{a, b} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				h.bus.Send(bus.AppendSessionFrame{
					SessionID: id,
					RelPath:   fmt.Sprintf("frames/%s_%02d.jpg", id[:8], i),
					CreatedAt: time.Now(),
				})
			}
		}(sess.SessionID)
	}
	wg.Wait()
	h.bus.Send(bus.Shutdown{})
	<-done

	assert.Empty(t, eventsOf[bus.StorageError](h.bus.Events.Drain()))
	for _, sess := range []*domain.SessionManifest{a, b} {
		got, err := h.layout.ReadSession(sess.SessionID)
		require.NoError(t, err)
		require.Len(t, got.Frames, perSession)
		for i, f := range got.Frames {
			assert.Equal(t, fmt.Sprintf("frames/%s_%02d.jpg", sess.SessionID[:8], i), f.RelPath)
		}
	}
}

func TestAbandonAndDeleteThroughWorker(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession(t)
	other := h.newSession(t)

	events := h.run(t,
		bus.AbandonSession{SessionID: sess.SessionID},
		bus.DeleteProduct{ProductID: other.ProductID},
	)

	abandoned := eventsOf[bus.SessionAbandoned](events)
	require.Len(t, abandoned, 1)
	assert.DirExists(t, abandoned[0].MovedTo)

	deleted := eventsOf[bus.ProductDeleted](events)
	require.Len(t, deleted, 1)
	assert.Equal(t, 1, deleted[0].RemovedSessions)
}

func TestSaveSettings(t *testing.T) {
	h := newHarness(t)
	want := domain.Settings{Marketplace: "EBAY_GB", ReturnPolicyID: "ret-1"}

	events := h.run(t, bus.SaveSettings{Settings: want})

	saved := eventsOf[bus.SettingsSaved](events)
	require.Len(t, saved, 1)
	got, err := config.LoadSettings(h.settings)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGenerateWithoutEnricherReportsError(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession(t)

	events := h.run(t, bus.GenerateStructure{ProductID: sess.ProductID})

	errs := eventsOf[bus.StorageError](events)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, service.ErrNoEnricher.Error())
}
