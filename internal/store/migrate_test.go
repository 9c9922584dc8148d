package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAppliesEveryMigration(t *testing.T) {
	ctx := context.Background()
	st, path := newTestStore(t)

	v, err := st.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, len(Migrations()), v)
	require.NoError(t, st.Close())

	// Reopening is a no-op.
	again, err := Open(ctx, path)
	require.NoError(t, err)
	defer again.Close()

	var applied int
	require.NoError(t, again.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	require.Equal(t, len(Migrations()), applied)
}

func TestUpgradeBackfillsLegacyRows(t *testing.T) {
	ctx := context.Background()
	old, path := newTestStore(t, WithMigrations(Migrations()[:2]))

	for _, name := range []string{"Radio Philips", "Mesin Jahit Butterfly"} {
		_, err := old.DB.ExecContext(ctx,
			`INSERT INTO submissions (product_name, created_at, updated_at) VALUES (?, 1, 1)`, name)
		require.NoError(t, err)
	}
	_, err := old.DB.ExecContext(ctx,
		`INSERT INTO orders (order_number, customer_name, email, total, status, items_description, created_at, updated_at)
		VALUES ('ORD-LEGACY-1', 'Pak Harun', 'Harun@Mail.com', 5000, 'delivered', 'Setrika', 1, 1)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	st, err := Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	subs, err := st.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	codes := map[string]bool{}
	for _, sub := range subs {
		require.Regexp(t, trackingCodePattern, sub.TrackingCode)
		require.Equal(t, DerivedTrackingCode(sub.ID, 1), sub.TrackingCode)
		codes[sub.TrackingCode] = true
	}
	require.Len(t, codes, 2)

	// A second backfill pass leaves existing codes alone.
	tx, err := st.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, backfillTrackingCodes(ctx, tx, st.Now()))
	require.NoError(t, backfillCheckoutOrders(ctx, tx, st.Now()))
	require.NoError(t, tx.Commit())

	again, err := st.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Equal(t, subs, again)

	orders, err := st.OrdersByEmail(ctx, "harun@mail.com")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	require.Equal(t, "Harun@Mail.com", o.CustomerEmail)
	require.Equal(t, int64(5000), o.TotalAmount)
	require.Equal(t, "Setrika", o.ItemsDescription)
	require.NotNil(t, o.Items)
	require.Empty(t, o.Items)
}

func TestFailedMigrationRollsBackAndFailsOpen(t *testing.T) {
	ctx := context.Background()
	_, path := newTestStore(t)

	broken := append(Migrations(), Migration{
		Version: 99,
		Name:    "broken",
		Stmts: []string{
			`CREATE TABLE widgets (id INTEGER PRIMARY KEY)`,
			`INSERT INTO nowhere VALUES (1)`,
		},
	})
	_, err := Open(ctx, path, WithMigrations(broken))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to execute migration 99 (broken)")

	st, err := Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	v, err := st.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, len(Migrations()), v)

	var n int
	require.NoError(t, st.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'widgets'`).Scan(&n))
	require.Zero(t, n)
}

func TestFailedBackfillLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	old, path := newTestStore(t, WithMigrations(Migrations()[:2]))
	for _, name := range []string{"Radio Philips", "Mesin Jahit Butterfly"} {
		_, err := old.DB.ExecContext(ctx,
			`INSERT INTO submissions (product_name, created_at, updated_at) VALUES (?, 1, 1)`, name)
		require.NoError(t, err)
	}
	require.NoError(t, old.Close())

	migrations := Migrations()
	require.Equal(t, 3, migrations[2].Version)
	migrations[2].Backfill = func(ctx context.Context, tx *sql.Tx, now time.Time) error {
		if err := backfillTrackingCodes(ctx, tx, now); err != nil {
			return err
		}
		var written int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM submissions WHERE tracking_code <> ''`).Scan(&written); err != nil {
			return err
		}
		require.Equal(t, 2, written)
		return errors.New("disk full")
	}
	_, err := Open(ctx, path, WithMigrations(migrations))
	require.ErrorContains(t, err, "failed to execute migration 3 (submission_tracking_codes): backfill: disk full")

	st, err := Open(ctx, path, WithMigrations(Migrations()[:2]))
	require.NoError(t, err)
	v, err := st.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)
	var cols int
	require.NoError(t, st.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('submissions') WHERE name = 'tracking_code'`).Scan(&cols))
	require.Zero(t, cols)
	require.NoError(t, st.Close())

	// A clean retry produces the same codes a first run would have.
	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()
	subs, err := st.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	for _, sub := range subs {
		require.Equal(t, DerivedTrackingCode(sub.ID, 1), sub.TrackingCode)
	}
}

func TestDuplicateMigrationVersion(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Stmts: []string{`CREATE TABLE a (id INTEGER)`}},
		{Version: 1, Name: "b", Stmts: []string{`CREATE TABLE b (id INTEGER)`}},
	}
	_, err := Open(context.Background(), ":memory:", WithMigrations(migrations))
	require.ErrorContains(t, err, "duplicate migration version 1")
}
