package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/alextreichler/bekasberkah/internal/changefeed"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate value for unique field")
	ErrCategoryInUse     = errors.New("category is still used by products")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReadOnly          = errors.New("write attempted inside a read-only view")
)

const (
	TableProducts    = "products"
	TableCategories  = "categories"
	TableSubmissions = "submissions"
	TableOrders      = "orders"
	TableProfiles    = "profiles"
	TableSettings    = "settings"
)

// AllTables lists every data table in the order fixtures are loaded.
var AllTables = []string{TableCategories, TableProducts, TableSubmissions, TableOrders, TableProfiles, TableSettings}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readOnly is the querier handed out by View. Every write in this package
// goes through ExecContext, so refusing it there covers all accessors.
type readOnly struct {
	*sql.Tx
}

func (readOnly) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrReadOnly
}

type Store struct {
	DB *sql.DB

	q          querier
	tx         *sql.Tx
	touched    map[string]struct{}
	feed       changefeed.Feed
	now        func() time.Time
	logger     *slog.Logger
	migrations []Migration
}

type Option func(*Store)

// WithFeed sets where committed writes are announced. Defaults to an
// in-process feed.
func WithFeed(feed changefeed.Feed) Option {
	return func(s *Store) {
		s.feed = feed
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMigrations replaces the built-in schema history.
func WithMigrations(migrations []Migration) Option {
	return func(s *Store) {
		s.migrations = migrations
	}
}

// Open opens the database, applies every pending migration and returns a
// ready handle. A failed migration closes the database and is returned.
func Open(ctx context.Context, dataSourceName string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// Single writer; also keeps an in-memory database alive on one connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		DB:         db,
		q:          db,
		feed:       changefeed.NewLocal(),
		now:        time.Now,
		logger:     slog.Default(),
		migrations: Migrations(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if !strings.Contains(dataSourceName, ":memory:") && !strings.Contains(dataSourceName, "mode=memory") {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := s.Migrate(ctx); err != nil {
		s.logger.Error("Error migrating database", "error", err)
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Feed returns the feed committed writes are published on.
func (s *Store) Feed() changefeed.Feed {
	return s.feed
}

// Now returns the store clock, used to stamp createdAt/updatedAt.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// WithTx runs fn against a store bound to one transaction. Change
// notifications for writes made inside fn are published once, after commit.
// fn must only use the store it is given; the parent store shares the single
// connection and would block until the transaction ends. The transaction is
// rolled back if fn returns an error or panics.
//
// Called on a store handed out by View, fn runs inside the view and any write
// it makes fails with ErrReadOnly.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			sqlTx.Rollback()
		}
	}()

	txStore := *s
	txStore.q = sqlTx
	txStore.tx = sqlTx
	txStore.touched = make(map[string]struct{})

	if err := fn(&txStore); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	tables := make([]string, 0, len(txStore.touched))
	for t := range txStore.touched {
		tables = append(tables, t)
	}
	s.publish(ctx, tables...)
	return nil
}

// View runs fn inside a transaction that is always rolled back, giving fn a
// consistent snapshot of every table it reads. Writes through the view store
// fail with ErrReadOnly.
func (s *Store) View(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := *s
	txStore.q = readOnly{sqlTx}
	txStore.tx = sqlTx
	txStore.touched = make(map[string]struct{})
	return fn(&txStore)
}

// changed records a write to the given tables. Outside a transaction the
// change is published immediately.
func (s *Store) changed(ctx context.Context, tables ...string) {
	if s.tx != nil {
		for _, t := range tables {
			s.touched[t] = struct{}{}
		}
		return
	}
	s.publish(ctx, tables...)
}

func (s *Store) publish(ctx context.Context, tables ...string) {
	if len(tables) == 0 || s.feed == nil {
		return
	}
	tables = slices.Clone(tables)
	sort.Strings(tables)
	if err := s.feed.Publish(ctx, changefeed.Change{Tables: tables}); err != nil {
		// The write itself is committed; only the notification is lost.
		s.logger.Warn("Failed to publish table change", "tables", tables, "error", err)
	}
}

// Count returns the number of rows in one of the data tables.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if !isTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func isTable(name string) bool {
	for _, t := range AllTables {
		if t == name {
			return true
		}
	}
	return false
}

// mapConstraintErr turns SQLite unique-constraint failures into ErrDuplicate.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// Timestamps are stored as UTC unix nanoseconds so they sort numerically.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// setter collects the columns of a partial update.
type setter struct {
	cols []string
	args []any
}

func (u *setter) set(col string, v any) {
	u.cols = append(u.cols, col+" = ?")
	u.args = append(u.args, v)
}

func setIf[T any](u *setter, col string, v *T) {
	if v != nil {
		u.set(col, *v)
	}
}

// updateRow applies u to one row. A missing id yields ErrNotFound.
func (s *Store) updateRow(ctx context.Context, table string, id int64, u setter) error {
	if len(u.cols) == 0 {
		var exists int
		err := s.q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
		}
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(u.cols, ", "))
	res, err := s.q.ExecContext(ctx, query, append(u.args, id)...)
	if err != nil {
		return mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	s.changed(ctx, table)
	return nil
}

// deleteRow removes one row; deleting a missing id is not an error.
func (s *Store) deleteRow(ctx context.Context, table string, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.changed(ctx, table)
	}
	return nil
}
