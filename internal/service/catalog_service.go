package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/enrich"
	"github.com/vbonduro/shelfshot/internal/manifest"
	"github.com/vbonduro/shelfshot/internal/photostore"
	"github.com/vbonduro/shelfshot/internal/remote"
)

var (
	ErrEmptySelection   = errors.New("no images selected, use Enter to select frames before committing")
	ErrFrameNotFound    = errors.New("frame not found in session")
	ErrImageNotFound    = errors.New("image not found in product")
	ErrSessionCommitted = errors.New("session is already committed")
	ErrNoEnricher       = errors.New("no enrichment backend configured")
	ErrNoRemote         = errors.New("no remote catalog configured")
	ErrNoImages         = errors.New("product has no images")
)

const (
	// HeroRelPath is where a promoted hero image lives inside a product.
	HeroRelPath = "curated/hero.jpg"

	heroPickName    = "hero.jpg"
	stampLayout     = "20060102_150405"
	maxEnrichImages = 4
	defaultImageExt = "jpg"
	skuAliasPrefix  = "H-"
)

// productIndex is the subset of store.ProductIndex that CatalogService requires.
type productIndex interface {
	Upsert(ctx context.Context, p domain.ProductSummary) error
	List(ctx context.Context) ([]domain.ProductSummary, error)
	Delete(ctx context.Context, id string) error
	Replace(ctx context.Context, products []domain.ProductSummary) error
}

// CatalogService performs every product and session mutation. It is not
// safe for concurrent use; the storage worker is its only caller.
type CatalogService struct {
	layout   manifest.Layout
	files    photostore.PhotoStore
	index    productIndex
	enricher enrich.Enricher
	catalog  remote.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*CatalogService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *CatalogService) { s.now = now }
}

// WithEnricher enables GenerateStructure.
func WithEnricher(e enrich.Enricher) Option {
	return func(s *CatalogService) { s.enricher = e }
}

// WithRemote enables SyncProduct and PushProduct.
func WithRemote(c remote.Catalog) Option {
	return func(s *CatalogService) { s.catalog = c }
}

// NewCatalogService builds a service over layout. files must be rooted at
// layout.Base.
func NewCatalogService(
	layout manifest.Layout,
	files photostore.PhotoStore,
	index productIndex,
	logger *slog.Logger,
	opts ...Option,
) *CatalogService {
	s := &CatalogService{
		layout: layout,
		files:  files,
		index:  index,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CatalogService) Layout() manifest.Layout {
	return s.layout
}

// SKUAlias derives the short human handle for a product id.
func SKUAlias(productID string) string {
	short, _, _ := strings.Cut(productID, "-")
	return skuAliasPrefix + strings.ToUpper(short)
}

func productKey(productID, rel string) string {
	return path.Join("products", productID, filepath.ToSlash(rel))
}

func sessionKey(sessionID, rel string) string {
	return path.Join("sessions", sessionID, filepath.ToSlash(rel))
}

func (s *CatalogService) CreateProduct(ctx context.Context) (*domain.ProductManifest, error) {
	if err := s.layout.EnsureRoot(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := s.now()
	p := &domain.ProductManifest{
		ProductID: id,
		SKUAlias:  SKUAlias(id),
		Listings:  map[string]domain.Listing{},
		Images:    []domain.ImageEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, dir := range []string{s.layout.ImagesDir(id), s.layout.CuratedDir(id)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create product directory: %w", err)
		}
	}
	if err := s.writeProduct(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created", "product_id", id, "sku_alias", p.SKUAlias)
	return p, nil
}

// StartSession opens a new capture session bound to an existing product.
func (s *CatalogService) StartSession(ctx context.Context, productID string) (*domain.ProductManifest, *domain.SessionManifest, error) {
	p, err := s.layout.ReadProduct(productID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load product: %w", err)
	}
	sess, err := s.createSession(productID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

func (s *CatalogService) CreateProductAndSession(ctx context.Context) (*domain.ProductManifest, *domain.SessionManifest, error) {
	p, err := s.CreateProduct(ctx)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.createSession(p.ProductID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}

func (s *CatalogService) createSession(productID string) (*domain.SessionManifest, error) {
	if err := s.layout.EnsureRoot(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	sess := &domain.SessionManifest{
		SessionID: id,
		ProductID: productID,
		CreatedAt: s.now(),
		Frames:    []domain.FrameEntry{},
		Picks:     domain.Picks{SelectedRelPaths: []string{}, AngleRelPaths: []string{}},
	}
	for _, dir := range []string{s.layout.FramesDir(id), s.layout.PicksDir(id)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	if err := s.layout.WriteSession(sess); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}
	s.logger.Info("session created", "session_id", id, "product_id", productID)
	return sess, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.ProductManifest, error) {
	return s.layout.ReadProduct(productID)
}

func (s *CatalogService) GetSession(ctx context.Context, sessionID string) (*domain.SessionManifest, error) {
	return s.layout.ReadSession(sessionID)
}

// ListProducts returns the product index, newest first.
func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.ProductSummary, error) {
	products, err := s.index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Reindex rebuilds the product index from the manifests on disk.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	ids, err := s.layout.ProductIDs()
	if err != nil {
		return 0, err
	}
	summaries := make([]domain.ProductSummary, 0, len(ids))
	for _, id := range ids {
		p, err := s.layout.ReadProduct(id)
		if err != nil {
			s.logger.Warn("skipping unreadable product manifest", "product_id", id, "error", err)
			continue
		}
		summaries = append(summaries, p.Summary())
	}
	if err := s.index.Replace(ctx, summaries); err != nil {
		return 0, fmt.Errorf("failed to rebuild product index: %w", err)
	}
	s.logger.Info("product index rebuilt", "products", len(summaries))
	return len(summaries), nil
}

// DeleteProduct removes the product directory and every live session that
// belongs to it. It returns the number of sessions removed.
func (s *CatalogService) DeleteProduct(ctx context.Context, productID string) (int, error) {
	if err := os.RemoveAll(s.layout.ProductDir(productID)); err != nil {
		return 0, fmt.Errorf("failed to remove product: %w", err)
	}

	ids, err := s.layout.SessionIDs()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		sess, err := s.layout.ReadSession(id)
		if err != nil {
			return removed, fmt.Errorf("failed to read session %s: %w", id, err)
		}
		if sess.ProductID != productID {
			continue
		}
		if err := os.RemoveAll(s.layout.SessionDir(id)); err != nil {
			return removed, fmt.Errorf("failed to remove session %s: %w", id, err)
		}
		removed++
	}

	if err := s.index.Delete(ctx, productID); err != nil {
		s.logger.Error("failed to remove product from index", "product_id", productID, "error", err)
	}
	s.logger.Info("product deleted", "product_id", productID, "removed_sessions", removed)
	return removed, nil
}

// SetContext stores the seller notes. Blank text clears them.
func (s *CatalogService) SetContext(ctx context.Context, productID, text string) (*domain.ProductManifest, error) {
	return s.updateProduct(ctx, productID, func(p *domain.ProductManifest) error {
		if strings.TrimSpace(text) == "" {
			p.ContextText = ""
		} else {
			p.ContextText = text
		}
		return nil
	})
}

// SetStructure replaces the structured attributes. An empty or null
// document clears them.
func (s *CatalogService) SetStructure(ctx context.Context, productID string, structure json.RawMessage) (*domain.ProductManifest, error) {
	if len(structure) > 0 && !json.Valid(structure) {
		return nil, fmt.Errorf("structure is not valid JSON")
	}
	return s.updateProduct(ctx, productID, func(p *domain.ProductManifest) error {
		if isNullJSON(structure) {
			p.StructureJSON = nil
		} else {
			p.StructureJSON = structure
		}
		return nil
	})
}

func (s *CatalogService) SetListings(ctx context.Context, productID string, listings map[string]domain.Listing) (*domain.ProductManifest, error) {
	return s.updateProduct(ctx, productID, func(p *domain.ProductManifest) error {
		if listings == nil {
			listings = map[string]domain.Listing{}
		}
		p.Listings = listings
		return nil
	})
}

func (s *CatalogService) AppendFrame(ctx context.Context, sessionID, relPath string, createdAt time.Time, sharpness *float64) (*domain.SessionManifest, error) {
	return s.updateSession(sessionID, func(sess *domain.SessionManifest) error {
		sess.Frames = append(sess.Frames, domain.FrameEntry{
			RelPath:        relPath,
			CreatedAt:      createdAt,
			SharpnessScore: sharpness,
		})
		return nil
	})
}

// ToggleSelection adds relPath to the selection set, or removes it when
// already selected.
func (s *CatalogService) ToggleSelection(ctx context.Context, sessionID, relPath string) (*domain.SessionManifest, error) {
	return s.updateSession(sessionID, func(sess *domain.SessionManifest) error {
		if sess.FrameIndex(relPath) < 0 {
			return ErrFrameNotFound
		}
		for i, p := range sess.Picks.SelectedRelPaths {
			if p == relPath {
				sess.Picks.SelectedRelPaths = append(sess.Picks.SelectedRelPaths[:i], sess.Picks.SelectedRelPaths[i+1:]...)
				return nil
			}
		}
		sess.Picks.SelectedRelPaths = append(sess.Picks.SelectedRelPaths, relPath)
		return nil
	})
}

// DeleteFrame removes the frame file, its entry and any pick of it.
func (s *CatalogService) DeleteFrame(ctx context.Context, sessionID, relPath string) (*domain.SessionManifest, error) {
	return s.updateSession(sessionID, func(sess *domain.SessionManifest) error {
		if err := s.files.Delete(ctx, sessionKey(sessionID, relPath)); err != nil && !errors.Is(err, photostore.ErrNotFound) {
			return fmt.Errorf("failed to delete frame: %w", err)
		}
		frames := sess.Frames[:0]
		for _, f := range sess.Frames {
			if f.RelPath != relPath {
				frames = append(frames, f)
			}
		}
		sess.Frames = frames
		sess.Picks.SelectedRelPaths = without(sess.Picks.SelectedRelPaths, relPath)
		sess.Picks.AngleRelPaths = without(sess.Picks.AngleRelPaths, relPath)
		if sess.Picks.HeroRelPath == relPath {
			sess.Picks.HeroRelPath = ""
		}
		return nil
	})
}

// DeleteProductImage removes a committed image file and its entry.
func (s *CatalogService) DeleteProductImage(ctx context.Context, productID, relPath string) (*domain.ProductManifest, error) {
	p, err := s.layout.ReadProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	idx := p.ImageIndex(relPath)
	if idx < 0 && p.HeroRelPath != relPath {
		return nil, ErrImageNotFound
	}
	if err := s.files.Delete(ctx, productKey(productID, relPath)); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		return nil, fmt.Errorf("failed to delete image: %w", err)
	}
	if idx >= 0 {
		p.Images = append(p.Images[:idx], p.Images[idx+1:]...)
	}
	if p.HeroRelPath == relPath {
		p.HeroRelPath = ""
		p.HeroUploadedURL = ""
		p.HeroMediaID = ""
	}
	if err := s.writeProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordImageUpload stores the remote URL of an uploaded image. relPath may
// name the hero or a committed image.
func (s *CatalogService) RecordImageUpload(ctx context.Context, productID, relPath, url, mediaID string) (*domain.ProductManifest, error) {
	return s.updateProduct(ctx, productID, func(p *domain.ProductManifest) error {
		matched := false
		if p.HeroRelPath != "" && p.HeroRelPath == relPath {
			p.HeroUploadedURL = url
			p.HeroMediaID = mediaID
			matched = true
		}
		if idx := p.ImageIndex(relPath); idx >= 0 {
			p.Images[idx].UploadedURL = url
			p.Images[idx].UploadedMediaID = mediaID
			matched = true
		}
		if !matched {
			return ErrImageNotFound
		}
		return nil
	})
}

// commitSources returns the session-relative frames a commit promotes. A
// non-empty selection set wins over the hero and angle picks.
func commitSources(sess *domain.SessionManifest) []string {
	if len(sess.Picks.SelectedRelPaths) > 0 {
		var out []string
		for _, f := range sess.Frames {
			if sess.Picks.IsSelected(f.RelPath) {
				out = append(out, f.RelPath)
			}
		}
		return out
	}
	var out []string
	if sess.Picks.HeroRelPath != "" {
		out = append(out, sess.Picks.HeroRelPath)
	}
	return append(out, sess.Picks.AngleRelPaths...)
}

// CommitSession copies the picked frames into the owning product and marks
// the session committed. Committing an already committed session returns
// the current state and a count of zero.
func (s *CatalogService) CommitSession(ctx context.Context, sessionID string) (*domain.ProductManifest, *domain.SessionManifest, int, error) {
	sess, err := s.layout.ReadSession(sessionID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load session: %w", err)
	}
	p, err := s.layout.ReadProduct(sess.ProductID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load product: %w", err)
	}
	if sess.Committed() {
		return p, sess, 0, nil
	}

	sources := commitSources(sess)
	if len(sources) == 0 {
		return nil, nil, 0, ErrEmptySelection
	}

	now := s.now()
	stamp := now.Format(stampLayout)
	copied := 0
	for _, rel := range sources {
		ext := strings.TrimPrefix(filepath.Ext(rel), ".")
		if ext == "" {
			ext = defaultImageExt
		}
		dstRel := path.Join("images", fmt.Sprintf("img_%03d_%s.%s", len(p.Images)+1, stamp, ext))
		if err := s.files.Copy(ctx, sessionKey(sessionID, rel), productKey(p.ProductID, dstRel)); err != nil {
			s.logger.Warn("skipping frame during commit", "session_id", sessionID, "frame", rel, "error", err)
			continue
		}
		entry := domain.ImageEntry{RelPath: dstRel, CreatedAt: now}
		if i := sess.FrameIndex(rel); i >= 0 {
			entry.SharpnessScore = sess.Frames[i].SharpnessScore
		}
		p.Images = append(p.Images, entry)
		copied++
	}

	if sess.Picks.HeroRelPath != "" {
		dst := productKey(p.ProductID, HeroRelPath)
		err := s.files.Copy(ctx, sessionKey(sessionID, path.Join("picks", heroPickName)), dst)
		if errors.Is(err, photostore.ErrNotFound) {
			err = s.files.Copy(ctx, sessionKey(sessionID, sess.Picks.HeroRelPath), dst)
		}
		if err != nil {
			s.logger.Warn("failed to promote hero image", "session_id", sessionID, "error", err)
		} else {
			p.HeroRelPath = HeroRelPath
			p.HeroUploadedURL = ""
			p.HeroMediaID = ""
		}
	}

	p.UpdatedAt = now
	committedAt := now
	sess.CommittedAt = &committedAt

	if err := s.writeProductAt(ctx, p); err != nil {
		return nil, nil, 0, err
	}
	if err := s.layout.WriteSession(sess); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to write session: %w", err)
	}
	s.logger.Info("commit session completed", "session_id", sessionID, "product_id", p.ProductID, "count", copied)
	return p, sess, copied, nil
}

// AbandonSession moves the session directory into the trash and returns
// its new location. The manifest is kept as is. Committed sessions stay
// where they are.
func (s *CatalogService) AbandonSession(ctx context.Context, sessionID string) (string, error) {
	src := s.layout.SessionDir(sessionID)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("failed to find session %s: %w", sessionID, err)
	}
	sess, err := s.layout.ReadSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Committed() {
		return "", ErrSessionCommitted
	}
	if err := os.MkdirAll(s.layout.TrashDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create trash: %w", err)
	}
	dst := filepath.Join(s.layout.TrashDir(), sessionID+"_"+s.now().Format(stampLayout))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to move session to trash: %w", err)
	}
	s.logger.Info("session abandoned", "session_id", sessionID, "moved_to", dst)
	return dst, nil
}

// GenerateStructure drafts the structured attributes from the product's
// images and context text.
func (s *CatalogService) GenerateStructure(ctx context.Context, productID string) (*domain.ProductManifest, error) {
	if s.enricher == nil {
		return nil, ErrNoEnricher
	}
	p, err := s.layout.ReadProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	images, err := s.enrichImages(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	s.logger.Info("structure generation started", "product_id", productID, "images", len(images))
	structure, err := s.enricher.DraftStructure(ctx, images, p.ContextText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate structure: %w", err)
	}
	p.StructureJSON = structure
	if p.DisplayName == "" {
		p.DisplayName = structureName(structure)
	}
	if err := s.writeProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) enrichImages(ctx context.Context, p *domain.ProductManifest) ([]enrich.Image, error) {
	var rels []string
	if p.HeroRelPath != "" {
		rels = append(rels, p.HeroRelPath)
	}
	for _, img := range p.Images {
		rels = append(rels, img.RelPath)
	}

	var out []enrich.Image
	for _, rel := range rels {
		if len(out) == maxEnrichImages {
			break
		}
		rc, mimeType, err := s.files.Get(ctx, productKey(p.ProductID, rel))
		if err != nil {
			if errors.Is(err, photostore.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		out = append(out, enrich.Image{Data: data, MimeType: mimeType})
	}
	return out, nil
}

// SyncProduct pulls context, structure and listings from the remote
// catalog. Fields the remote leaves unset keep their local value.
func (s *CatalogService) SyncProduct(ctx context.Context, productID string) (*domain.ProductManifest, error) {
	if s.catalog == nil {
		return nil, ErrNoRemote
	}
	rp, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to sync product: %w", err)
	}
	return s.updateProduct(ctx, productID, func(p *domain.ProductManifest) error {
		if rp.DisplayName != nil {
			p.DisplayName = *rp.DisplayName
		}
		if rp.ContextText != nil {
			p.ContextText = *rp.ContextText
		}
		if !isNullJSON(rp.StructureJSON) {
			p.StructureJSON = rp.StructureJSON
		}
		for marketplace, listing := range rp.Listings {
			p.Listings[marketplace] = listing
		}
		return nil
	})
}

func (s *CatalogService) PushProduct(ctx context.Context, productID string) (*domain.ProductManifest, error) {
	if s.catalog == nil {
		return nil, ErrNoRemote
	}
	p, err := s.layout.ReadProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if err := s.catalog.PushProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to push product: %w", err)
	}
	s.logger.Info("product pushed", "product_id", productID)
	return p, nil
}

func (s *CatalogService) updateProduct(ctx context.Context, productID string, mutate func(*domain.ProductManifest) error) (*domain.ProductManifest, error) {
	p, err := s.layout.ReadProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if err := mutate(p); err != nil {
		return nil, err
	}
	if err := s.writeProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) updateSession(sessionID string, mutate func(*domain.SessionManifest) error) (*domain.SessionManifest, error) {
	sess, err := s.layout.ReadSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Committed() {
		return nil, ErrSessionCommitted
	}
	if err := mutate(sess); err != nil {
		return nil, err
	}
	if err := s.layout.WriteSession(sess); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}
	return sess, nil
}

// writeProduct stamps UpdatedAt and persists p.
func (s *CatalogService) writeProduct(ctx context.Context, p *domain.ProductManifest) error {
	p.UpdatedAt = s.now()
	return s.writeProductAt(ctx, p)
}

// writeProductAt persists p and refreshes its index row. The index is a
// secondary view, so failing to update it is logged and not returned.
func (s *CatalogService) writeProductAt(ctx context.Context, p *domain.ProductManifest) error {
	if err := s.layout.WriteProduct(p); err != nil {
		return fmt.Errorf("failed to write product: %w", err)
	}
	if err := s.index.Upsert(ctx, p.Summary()); err != nil {
		s.logger.Error("failed to update product index", "product_id", p.ProductID, "error", err)
	}
	return nil
}

func without(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// structureName returns the top-level "name" of a structure document.
func structureName(structure json.RawMessage) string {
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(structure, &doc); err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Name)
}
