package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alextreichler/bekasberkah/internal/aggregate"
	"github.com/alextreichler/bekasberkah/internal/models"
)

const categoryColumns = `id, name, description, created_at`

type CategoryPatch struct {
	Name        *string
	Description *string
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var c models.Category
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt = fromUnix(createdAt)
	return &c, nil
}

func (s *Store) queryCategories(ctx context.Context, order string, where string, args ...any) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ` + where + ` ORDER BY ` + order
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.Now()
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)`,
		c.Name, c.Description, toUnix(c.CreatedAt))
	if err != nil {
		return mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	s.changed(ctx, TableCategories)
	return nil
}

func (s *Store) BulkInsertCategories(ctx context.Context, categories []models.Category) ([]int64, error) {
	ids := make([]int64, 0, len(categories))
	err := s.WithTx(ctx, func(tx *Store) error {
		for i := range categories {
			if err := tx.CreateCategory(ctx, &categories[i]); err != nil {
				return fmt.Errorf("category %d: %w", i, err)
			}
			ids = append(ids, categories[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// CategoryByName returns the oldest category with that exact name, or nil.
// Names are meant to be unique but the schema does not enforce it.
func (s *Store) CategoryByName(ctx context.Context, name string) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? ORDER BY created_at, id LIMIT 1`, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListCategories returns categories newest first.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.queryCategories(ctx, "created_at DESC, id DESC", "")
}

// UpdateCategory merges patch into the category. A name change is cascaded to
// every product filed under the old name in the same transaction.
func (s *Store) UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return errors.New("category name is required")
	}
	return s.WithTx(ctx, func(tx *Store) error {
		current, err := tx.GetCategoryByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%s %d: %w", TableCategories, id, ErrNotFound)
		}

		var u setter
		setIf(&u, "name", patch.Name)
		setIf(&u, "description", patch.Description)
		if err := tx.updateRow(ctx, TableCategories, id, u); err != nil {
			return err
		}

		if patch.Name != nil && *patch.Name != current.Name {
			res, err := tx.q.ExecContext(ctx,
				`UPDATE products SET category = ? WHERE category = ?`, *patch.Name, current.Name)
			if err != nil {
				return fmt.Errorf("failed to cascade category rename: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				tx.changed(ctx, TableProducts)
			}
			tx.logger.Info("Renamed category", "id", id, "from", current.Name, "to", *patch.Name)
		}
		return nil
	})
}

// RenameCategory is UpdateCategory for the name only.
func (s *Store) RenameCategory(ctx context.Context, id int64, newName string) error {
	return s.UpdateCategory(ctx, id, CategoryPatch{Name: &newName})
}

// CategoryUsageCount returns how many products reference the category name.
func (s *Store) CategoryUsageCount(ctx context.Context, name string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE category = ?`, name).Scan(&n)
	return n, err
}

// DeleteCategory removes the category unless products still reference it, in
// which case ErrCategoryInUse is returned and nothing changes. The usage check
// and the delete share one transaction, so a product cannot be filed under the
// category in between.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *Store) error {
		c, err := tx.GetCategoryByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		n, err := tx.CategoryUsageCount(ctx, c.Name)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %q has %d products", ErrCategoryInUse, c.Name, n)
		}
		return tx.deleteRow(ctx, TableCategories, id)
	})
}

// CategoriesWithUsage lists categories oldest first, each with its product count.
func (s *Store) CategoriesWithUsage(ctx context.Context) ([]models.CategoryUsage, error) {
	var categories []models.Category
	var products []models.Product
	err := s.View(ctx, func(tx *Store) error {
		var err error
		if categories, err = tx.queryCategories(ctx, "created_at, id", ""); err != nil {
			return err
		}
		products, err = tx.ListProducts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	usage := aggregate.UsageMap(products, func(p models.Product) string { return p.Category })
	out := make([]models.CategoryUsage, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.CategoryUsage{Category: c, ProductCount: usage[c.Name]})
	}
	return out, nil
}
