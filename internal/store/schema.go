package store

import (
	"context"
	"database/sql"
	"time"
)

// Migrations returns the schema history of the database, oldest first.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "catalog",
			Stmts: []string{
				`CREATE TABLE products (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					price INTEGER NOT NULL DEFAULT 0,
					category TEXT NOT NULL DEFAULT '',
					image TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'active',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_products_name ON products(name)`,
				`CREATE INDEX idx_products_category ON products(category)`,
				`CREATE INDEX idx_products_status ON products(status)`,
				`CREATE INDEX idx_products_created_at ON products(created_at)`,
				`CREATE TABLE categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_categories_name ON categories(name)`,
				`CREATE INDEX idx_categories_created_at ON categories(created_at)`,
			},
		},
		{
			Version: 2,
			Name:    "submissions_and_orders",
			Stmts: []string{
				`CREATE TABLE submissions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					seller_name TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					phone TEXT NOT NULL DEFAULT '',
					seller_city TEXT NOT NULL DEFAULT '',
					seller_address TEXT NOT NULL DEFAULT '',
					preferred_contact TEXT NOT NULL DEFAULT '',
					product_name TEXT NOT NULL,
					product_description TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					condition TEXT NOT NULL DEFAULT 'good',
					asking_price INTEGER NOT NULL DEFAULT 0,
					product_photos TEXT NOT NULL DEFAULT '[]',
					status TEXT NOT NULL DEFAULT 'pending',
					notes TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_submissions_status ON submissions(status)`,
				`CREATE INDEX idx_submissions_email ON submissions(email)`,
				`CREATE INDEX idx_submissions_created_at ON submissions(created_at)`,
				`CREATE TABLE orders (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					order_number TEXT NOT NULL,
					customer_name TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					total INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'pending',
					items_description TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_orders_order_number ON orders(order_number)`,
				`CREATE INDEX idx_orders_status ON orders(status)`,
				`CREATE INDEX idx_orders_created_at ON orders(created_at)`,
			},
		},
		{
			Version:  3,
			Name:     "submission_tracking_codes",
			Stmts:    []string{`ALTER TABLE submissions ADD COLUMN tracking_code TEXT`},
			Backfill: backfillTrackingCodes,
			PostStmts: []string{
				`CREATE UNIQUE INDEX idx_submissions_tracking_code ON submissions(tracking_code)`,
			},
		},
		{
			Version: 4,
			Name:    "profiles_and_settings",
			Stmts: []string{
				`CREATE TABLE profiles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					email TEXT NOT NULL,
					email_lower TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					phone TEXT NOT NULL DEFAULT '',
					address TEXT NOT NULL DEFAULT '',
					member_since TEXT NOT NULL DEFAULT '',
					role TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE UNIQUE INDEX idx_profiles_email_lower ON profiles(email_lower)`,
				`CREATE TABLE settings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					email TEXT NOT NULL,
					email_lower TEXT NOT NULL,
					email_updates INTEGER NOT NULL DEFAULT 1,
					sms_updates INTEGER NOT NULL DEFAULT 0,
					marketing_tips INTEGER NOT NULL DEFAULT 1,
					dark_mode TEXT NOT NULL DEFAULT 'system',
					updated_at INTEGER NOT NULL
				)`,
				`CREATE UNIQUE INDEX idx_settings_email_lower ON settings(email_lower)`,
			},
		},
		{
			Version: 5,
			Name:    "checkout_orders",
			Stmts: []string{
				`ALTER TABLE orders ADD COLUMN customer_email TEXT`,
				`ALTER TABLE orders ADD COLUMN customer_phone TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE orders ADD COLUMN shipping_address TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE orders ADD COLUMN items TEXT NOT NULL DEFAULT '[]'`,
				`ALTER TABLE orders ADD COLUMN total_amount INTEGER`,
				`ALTER TABLE orders ADD COLUMN payment_method TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE orders ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
			},
			Backfill: backfillCheckoutOrders,
			PostStmts: []string{
				`CREATE INDEX idx_orders_customer_email ON orders(customer_email)`,
			},
		},
	}
}

// backfillTrackingCodes gives every submission without a tracking code one
// derived from its identity. Rows that already have a code are untouched, so
// running it again is a no-op.
func backfillTrackingCodes(ctx context.Context, tx *sql.Tx, _ time.Time) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, created_at FROM submissions WHERE tracking_code IS NULL OR tracking_code = ''`)
	if err != nil {
		return err
	}

	type pending struct {
		id        int64
		createdAt int64
	}
	var missing []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.createdAt); err != nil {
			rows.Close()
			return err
		}
		missing = append(missing, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range missing {
		code := DerivedTrackingCode(p.id, p.createdAt)
		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET tracking_code = ? WHERE id = ? AND (tracking_code IS NULL OR tracking_code = '')`,
			code, p.id); err != nil {
			return mapConstraintErr(err)
		}
	}
	return nil
}

// backfillCheckoutOrders copies the legacy email/total columns into their
// checkout-era counterparts where those are still empty.
func backfillCheckoutOrders(ctx context.Context, tx *sql.Tx, _ time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET customer_email = email WHERE customer_email IS NULL OR customer_email = ''`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET total_amount = total WHERE total_amount IS NULL`); err != nil {
		return err
	}
	return nil
}
