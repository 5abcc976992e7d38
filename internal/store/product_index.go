package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/shelfshot/internal/domain"
)

// ProductIndex is a queryable summary of every product manifest. The
// manifests stay authoritative; the index can be rebuilt from them at any
// time.
type ProductIndex struct {
	db *sql.DB
}

func NewProductIndex(db *sql.DB) *ProductIndex {
	return &ProductIndex{db: db}
}

func (s *ProductIndex) Upsert(ctx context.Context, p domain.ProductSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (product_id, sku_alias, display_name, image_count, hero_rel_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			sku_alias     = excluded.sku_alias,
			display_name  = excluded.display_name,
			image_count   = excluded.image_count,
			hero_rel_path = excluded.hero_rel_path,
			updated_at    = excluded.updated_at
	`, p.ProductID, p.SKUAlias, p.DisplayName, p.ImageCount, p.HeroRelPath, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *ProductIndex) GetByID(ctx context.Context, id string) (*domain.ProductSummary, error) {
	p := &domain.ProductSummary{}
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, sku_alias, display_name, image_count, hero_rel_path, created_at, updated_at
		FROM products WHERE product_id = ?
	`, id).Scan(&p.ProductID, &p.SKUAlias, &p.DisplayName, &p.ImageCount, &p.HeroRelPath, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// List returns every product, most recently updated first.
func (s *ProductIndex) List(ctx context.Context) ([]domain.ProductSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, sku_alias, display_name, image_count, hero_rel_path, created_at, updated_at
		FROM products ORDER BY updated_at DESC, product_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []domain.ProductSummary
	for rows.Next() {
		var p domain.ProductSummary
		if err := rows.Scan(&p.ProductID, &p.SKUAlias, &p.DisplayName, &p.ImageCount, &p.HeroRelPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Search matches query against the SKU alias and display name.
func (s *ProductIndex) Search(ctx context.Context, query string) ([]domain.ProductSummary, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, sku_alias, display_name, image_count, hero_rel_path, created_at, updated_at
		FROM products
		WHERE sku_alias LIKE ? COLLATE NOCASE OR display_name LIKE ? COLLATE NOCASE
		ORDER BY updated_at DESC
	`, like, like)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var products []domain.ProductSummary
	for rows.Next() {
		var p domain.ProductSummary
		if err := rows.Scan(&p.ProductID, &p.SKUAlias, &p.DisplayName, &p.ImageCount, &p.HeroRelPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *ProductIndex) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// Replace swaps the whole index for products in one transaction.
func (s *ProductIndex) Replace(ctx context.Context, products []domain.ProductSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reindex: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (product_id, sku_alias, display_name, image_count, hero_rel_path, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ProductID, p.SKUAlias, p.DisplayName, p.ImageCount, p.HeroRelPath, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to index product %s: %w", p.ProductID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reindex: %w", err)
	}
	return nil
}
