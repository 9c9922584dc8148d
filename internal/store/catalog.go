package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/alextreichler/bekasberkah/internal/models"
)

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price-asc"
	SortPriceDesc ProductSort = "price-desc"
	SortNameAsc   ProductSort = "name-asc"
	SortNameDesc  ProductSort = "name-desc"
)

var productOrder = map[ProductSort]string{
	SortNewest:    `created_at DESC, id DESC`,
	SortPriceAsc:  `price ASC, created_at DESC, id DESC`,
	SortPriceDesc: `price DESC, created_at DESC, id DESC`,
	SortNameAsc:   `name COLLATE NOCASE ASC, id ASC`,
	SortNameDesc:  `name COLLATE NOCASE DESC, id DESC`,
}

// DefaultRelatedLimit is how many related products a product page shows.
const DefaultRelatedLimit = 4

// ProductQuery filters the storefront catalog. Only active products are ever
// returned. Zero values mean "no filter" and SortNewest.
type ProductQuery struct {
	// Search matches case-insensitively against name, description and category.
	Search   string
	Category string // exact category name; "" or "all" for every category
	MinPrice *int64
	MaxPrice *int64
	Sort     ProductSort
}

// CatalogFacets describes the active catalog for building filters.
type CatalogFacets struct {
	Categories []string
	MinPrice   int64
	MaxPrice   int64
	Count      int
}

// SearchProducts returns the active products matching q.
func (s *Store) SearchProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	by := q.Sort
	if by == "" {
		by = SortNewest
	}
	order, ok := productOrder[by]
	if !ok {
		return nil, fmt.Errorf("unknown product sort %q", q.Sort)
	}

	where := []string{"status = ?"}
	args := []any{models.ProductActive}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		where = append(where, "(instr(lower(name), ?) > 0 OR instr(lower(description), ?) > 0 OR instr(lower(category), ?) > 0)")
		args = append(args, term, term, term)
	}
	if q.Category != "" && q.Category != "all" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if q.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *q.MaxPrice)
	}

	return s.selectProducts(ctx, "WHERE "+strings.Join(where, " AND ")+" ORDER BY "+order, args...)
}

// RelatedProducts returns up to limit other active products from the same
// category as product id, newest first. An unknown id yields no products.
func (s *Store) RelatedProducts(ctx context.Context, id int64, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	p, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return []models.Product{}, nil
	}
	return s.selectProducts(ctx,
		`WHERE category = ? AND id <> ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		p.Category, id, models.ProductActive, limit)
}

// GetCatalogFacets returns the distinct categories and the price bounds of
// the active catalog, read from one snapshot.
func (s *Store) GetCatalogFacets(ctx context.Context) (*CatalogFacets, error) {
	f := &CatalogFacets{Categories: []string{}}
	err := s.View(ctx, func(tx *Store) error {
		err := tx.q.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(MIN(price), 0), COALESCE(MAX(price), 0) FROM products WHERE status = ?`,
			models.ProductActive).Scan(&f.Count, &f.MinPrice, &f.MaxPrice)
		if err != nil {
			return err
		}

		rows, err := tx.q.QueryContext(ctx,
			`SELECT DISTINCT category FROM products WHERE status = ? ORDER BY category`, models.ProductActive)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return err
			}
			f.Categories = append(f.Categories, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
