package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/manifest"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []domain.ProductSummary
		err      error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		products, err = s.index.Search(r.Context(), q)
	} else {
		products, err = s.index.List(r.Context())
	}
	if err != nil {
		http.Error(w, "failed to list products", http.StatusInternalServerError)
		s.logger.Error("list products failed", "error", err)
		return
	}
	if products == nil {
		products = []domain.ProductSummary{}
	}
	s.writeJSON(w, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.layout.ReadProduct(id)
	if errors.Is(err, manifest.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to read product", http.StatusInternalServerError)
		s.logger.Error("read product failed", "product_id", id, "error", err)
		return
	}
	s.writeJSON(w, p)
}

// handleGetProductFile serves a committed image or curated file. The path
// is relative to the product directory.
func (s *Server) handleGetProductFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rel := r.PathValue("path")
	key := path.Join("products", id, rel)
	if !strings.HasPrefix(key, path.Join("products", id)+"/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	reader, mimeType, err := s.photoStore.Get(r.Context(), key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "product file", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write product file failed", "product_id", id, "path", rel, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}
