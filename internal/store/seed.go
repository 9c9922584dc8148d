package store

import (
	"context"
	"fmt"
)

var catalogTables = []string{TableCategories, TableProducts, TableSubmissions, TableOrders}

// SeedResult reports the outcome of a seed/clear/reset run. These utilities
// report failure here instead of returning an error.
type SeedResult struct {
	Success bool
	Message string
	Counts  map[string]int
	Error   string
}

func failed(message string, err error) SeedResult {
	return SeedResult{Success: false, Message: message, Error: err.Error()}
}

func (s *Store) counts(ctx context.Context, tables []string) (map[string]int, error) {
	counts := make(map[string]int, len(tables))
	for _, t := range tables {
		n, err := s.Count(ctx, t)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, nil
}

// SeedFixtures loads the demo dataset in one transaction. If any catalog table
// already has rows nothing is inserted, to avoid duplicates.
func (s *Store) SeedFixtures(ctx context.Context) SeedResult {
	s.logger.Info("Starting database seeding")

	existing, err := s.counts(ctx, catalogTables)
	if err != nil {
		s.logger.Error("Error seeding database", "error", err)
		return failed("Error seeding database", err)
	}
	for _, t := range catalogTables {
		if existing[t] > 0 {
			s.logger.Warn("Database already has data, skipping seeding", "counts", existing)
			return SeedResult{Success: true, Message: "Database already seeded", Counts: existing}
		}
	}

	fx := Fixtures()
	var counts map[string]int
	err = s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.BulkInsertCategories(ctx, fx.Categories); err != nil {
			return fmt.Errorf("categories: %w", err)
		}
		if _, err := tx.BulkInsertProducts(ctx, fx.Products); err != nil {
			return fmt.Errorf("products: %w", err)
		}

		// Point order item snapshots at the freshly inserted products.
		productIDs := make(map[string]int64, len(fx.Products))
		for _, p := range fx.Products {
			productIDs[p.Name] = p.ID
		}
		for i := range fx.Orders {
			for j := range fx.Orders[i].Items {
				fx.Orders[i].Items[j].ProductID = productIDs[fx.Orders[i].Items[j].ProductName]
			}
		}

		if _, err := tx.BulkInsertSubmissions(ctx, fx.Submissions); err != nil {
			return fmt.Errorf("submissions: %w", err)
		}
		if _, err := tx.BulkInsertOrders(ctx, fx.Orders); err != nil {
			return fmt.Errorf("orders: %w", err)
		}

		var err error
		counts, err = tx.counts(ctx, catalogTables)
		return err
	})
	if err != nil {
		s.logger.Error("Error seeding database", "error", err)
		return failed("Error seeding database", err)
	}

	s.logger.Info("Database seeding completed", "counts", counts)
	return SeedResult{Success: true, Message: "Database seeded successfully", Counts: counts}
}

// ClearAll empties every data table in one transaction.
func (s *Store) ClearAll(ctx context.Context) SeedResult {
	s.logger.Info("Clearing database")

	var counts map[string]int
	err := s.WithTx(ctx, func(tx *Store) error {
		for _, t := range AllTables {
			if _, err := tx.q.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("failed to clear %s: %w", t, err)
			}
		}
		tx.changed(ctx, AllTables...)
		var err error
		counts, err = tx.counts(ctx, AllTables)
		return err
	})
	if err != nil {
		s.logger.Error("Error clearing database", "error", err)
		return failed("Error clearing database", err)
	}

	s.logger.Info("Database cleared")
	return SeedResult{Success: true, Message: "Database cleared successfully", Counts: counts}
}

// ResetToFixtures clears the database and seeds it again.
func (s *Store) ResetToFixtures(ctx context.Context) SeedResult {
	if res := s.ClearAll(ctx); !res.Success {
		return res
	}
	return s.SeedFixtures(ctx)
}
