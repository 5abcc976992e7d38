// Package manifest owns the on-disk layout of the capture catalog and the
// atomic JSON persistence used for every product and session manifest.
//
//	base/products/<product_id>/product.json
//	base/products/<product_id>/images/
//	base/products/<product_id>/curated/
//	base/sessions/<session_id>/session.json
//	base/sessions/<session_id>/frames/
//	base/sessions/<session_id>/picks/
//	base/sessions/_trash/<session_id>_<timestamp>/
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vbonduro/shelfshot/internal/domain"
)

const (
	productFile = "product.json"
	sessionFile = "session.json"
	tmpSuffix   = ".tmp"

	// TrashDirName is skipped by every scan of the sessions directory.
	TrashDirName = "_trash"
)

// ErrNotFound is returned when a manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

type Layout struct {
	Base string
}

func NewLayout(base string) Layout {
	return Layout{Base: base}
}

func (l Layout) ProductsDir() string { return filepath.Join(l.Base, "products") }
func (l Layout) SessionsDir() string { return filepath.Join(l.Base, "sessions") }
func (l Layout) TrashDir() string    { return filepath.Join(l.SessionsDir(), TrashDirName) }

func (l Layout) ProductDir(id string) string      { return filepath.Join(l.ProductsDir(), id) }
func (l Layout) ProductPath(id string) string     { return filepath.Join(l.ProductDir(id), productFile) }
func (l Layout) ImagesDir(id string) string       { return filepath.Join(l.ProductDir(id), "images") }
func (l Layout) CuratedDir(id string) string      { return filepath.Join(l.ProductDir(id), "curated") }
func (l Layout) SessionDir(id string) string      { return filepath.Join(l.SessionsDir(), id) }
func (l Layout) SessionPath(id string) string     { return filepath.Join(l.SessionDir(id), sessionFile) }
func (l Layout) FramesDir(id string) string       { return filepath.Join(l.SessionDir(id), "frames") }
func (l Layout) PicksDir(id string) string        { return filepath.Join(l.SessionDir(id), "picks") }
func (l Layout) ProductRel(id, rel string) string { return filepath.Join(l.ProductDir(id), rel) }
func (l Layout) SessionRel(id, rel string) string { return filepath.Join(l.SessionDir(id), rel) }

// EnsureRoot creates the products, sessions and trash directories.
func (l Layout) EnsureRoot() error {
	for _, dir := range []string{l.ProductsDir(), l.SessionsDir(), l.TrashDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func (l Layout) ReadProduct(id string) (*domain.ProductManifest, error) {
	var p domain.ProductManifest
	if err := ReadJSON(l.ProductPath(id), &p); err != nil {
		return nil, err
	}
	if p.Listings == nil {
		p.Listings = map[string]domain.Listing{}
	}
	return &p, nil
}

func (l Layout) WriteProduct(p *domain.ProductManifest) error {
	return WriteJSONAtomic(l.ProductPath(p.ProductID), p)
}

func (l Layout) ReadSession(id string) (*domain.SessionManifest, error) {
	var s domain.SessionManifest
	if err := ReadJSON(l.SessionPath(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (l Layout) WriteSession(s *domain.SessionManifest) error {
	return WriteJSONAtomic(l.SessionPath(s.SessionID), s)
}

// ProductIDs lists the directories under products/ that hold a manifest.
func (l Layout) ProductIDs() ([]string, error) {
	return manifestDirs(l.ProductsDir(), productFile)
}

// SessionIDs lists live session directories. Names starting with an
// underscore (the trash) are skipped.
func (l Layout) SessionIDs() ([]string, error) {
	return manifestDirs(l.SessionsDir(), sessionFile)
}

func manifestDirs(dir, file string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '_' {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), file)); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

// ReadJSON decodes the JSON document at path into v. A missing file is
// reported as ErrNotFound.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// WriteJSONAtomic serializes v and replaces path with it. The document is
// written to a sibling temp file, synced, then renamed onto path, so a
// reader of path sees either the previous or the new document.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		if rerr := os.Remove(tmp); rerr != nil {
			slog.Error("failed to remove temp manifest", "path", tmp, "error", rerr)
		}
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// writeTemp writes data to the temp sibling of path and returns its name.
func writeTemp(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return tmp, nil
}
