package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alextreichler/bekasberkah/internal/models"
)

const productColumns = `id, name, description, price, category, image, status, created_at, updated_at`

// ProductPatch holds the fields to change; nil fields are left as they are.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *int64
	Category    *string
	Image       *string
	Status      *string
}

func validProductStatus(status string) bool {
	return status == models.ProductActive || status == models.ProductInactive
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Image, &p.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(createdAt)
	p.UpdatedAt = fromUnix(updatedAt)
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, where string, args ...any) ([]models.Product, error) {
	return s.selectProducts(ctx, where+` ORDER BY created_at DESC, id DESC`, args...)
}

// selectProducts runs a product query; tail carries WHERE, ORDER BY and LIMIT.
func (s *Store) selectProducts(ctx context.Context, tail string, args ...any) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ` + tail
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CreateProduct inserts p and sets its ID. Missing timestamps and status are filled in.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.Status == "" {
		p.Status = models.ProductActive
	}
	if !validProductStatus(p.Status) {
		return fmt.Errorf("%w: product status %q", ErrInvalidStatus, p.Status)
	}
	now := s.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	query := `
		INSERT INTO products (name, description, price, category, image, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.q.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.Category, p.Image, p.Status, toUnix(p.CreatedAt), toUnix(p.UpdatedAt))
	if err != nil {
		return mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	s.changed(ctx, TableProducts)
	return nil
}

// BulkInsertProducts inserts all products or none of them.
func (s *Store) BulkInsertProducts(ctx context.Context, products []models.Product) ([]int64, error) {
	ids := make([]int64, 0, len(products))
	err := s.WithTx(ctx, func(tx *Store) error {
		for i := range products {
			if err := tx.CreateProduct(ctx, &products[i]); err != nil {
				return fmt.Errorf("product %d: %w", i, err)
			}
			ids = append(ids, products[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetProductByID returns nil, nil when no product has the given id.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.queryProducts(ctx, "")
}

func (s *Store) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return s.queryProducts(ctx, "WHERE category = ?", category)
}

func (s *Store) ProductsByStatus(ctx context.Context, status string) ([]models.Product, error) {
	return s.queryProducts(ctx, "WHERE status = ?", status)
}

// UpdateProduct merges patch into the product and stamps updatedAt.
func (s *Store) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) error {
	if patch.Status != nil && !validProductStatus(*patch.Status) {
		return fmt.Errorf("%w: product status %q", ErrInvalidStatus, *patch.Status)
	}
	var u setter
	setIf(&u, "name", patch.Name)
	setIf(&u, "description", patch.Description)
	setIf(&u, "price", patch.Price)
	setIf(&u, "category", patch.Category)
	setIf(&u, "image", patch.Image)
	setIf(&u, "status", patch.Status)
	u.set("updated_at", toUnix(s.Now()))
	return s.updateRow(ctx, TableProducts, id, u)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, TableProducts, id)
}
