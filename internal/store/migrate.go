package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one schema version. Stmts run first, then Backfill rewrites
// existing rows, then PostStmts (typically unique indexes that only hold once
// the backfill is done). All three share one transaction.
type Migration struct {
	Version   int
	Name      string
	Stmts     []string
	Backfill  func(ctx context.Context, tx *sql.Tx, now time.Time) error
	PostStmts []string
}

// Migrate applies every migration newer than the recorded schema version, in
// version order. A failing version is rolled back entirely and aborts the run.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations := make([]Migration, len(s.migrations))
	copy(migrations, s.migrations)
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}

	for _, m := range migrations {
		applied, err := s.isApplied(ctx, m.Version)
		if err != nil {
			return err
		}
		if applied {
			s.logger.Debug("Skipping already applied migration", "version", m.Version, "name", m.Name)
			continue
		}

		s.logger.Info("Applying migration", "version", m.Version, "name", m.Name)
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	now := s.Now()
	if m.Backfill != nil {
		if err := m.Backfill(ctx, tx, now); err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
	}
	for _, stmt := range m.PostStmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Recorded in the same transaction so a version is never half applied.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, toUnix(now)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

func (s *Store) isApplied(ctx context.Context, version int) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SchemaVersion returns the highest applied migration version, 0 for a fresh database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
