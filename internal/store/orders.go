package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alextreichler/bekasberkah/internal/models"
)

// Legacy rows only have email/total; checkout rows have both pairs. Reads
// collapse them into one canonical shape.
const orderColumns = `id, order_number, customer_name,
	COALESCE(NULLIF(customer_email, ''), email), customer_phone, shipping_address,
	items, items_description, COALESCE(total_amount, total), payment_method, notes,
	status, created_at, updated_at`

// OrderPatch covers the editable customer fields. Item snapshots and totals
// are part of the order's permanent record and cannot be patched.
type OrderPatch struct {
	CustomerName    *string
	CustomerEmail   *string
	CustomerPhone   *string
	ShippingAddress *string
	PaymentMethod   *string
	Notes           *string
}

// orderTransitions: pending -> processing -> shipped -> delivered, with
// cancellation from any state before delivery.
var orderTransitions = map[string][]string{
	models.OrderPending:    {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:    {models.OrderDelivered, models.OrderCancelled},
	models.OrderDelivered:  {},
	models.OrderCancelled:  {},
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var items string
	var createdAt, updatedAt int64
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerName,
		&o.CustomerEmail, &o.CustomerPhone, &o.ShippingAddress,
		&items, &o.ItemsDescription, &o.TotalAmount, &o.PaymentMethod, &o.Notes,
		&o.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.Items = []models.OrderItem{}
	if items != "" {
		if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
			return nil, fmt.Errorf("order %d: malformed items: %w", o.ID, err)
		}
	}
	o.CreatedAt = fromUnix(createdAt)
	o.UpdatedAt = fromUnix(updatedAt)
	return &o, nil
}

func (s *Store) queryOrders(ctx context.Context, where string, args ...any) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// CreateOrder inserts o. Items are stored as snapshots; an empty total is
// computed from them; a missing order number is generated from the clock.
// The legacy email/total columns are written alongside for older readers.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	if _, ok := orderTransitions[o.Status]; !ok {
		return fmt.Errorf("%w: order status %q", ErrInvalidStatus, o.Status)
	}
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("order item %d: quantity must be positive", i)
		}
	}
	now := s.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber(o.CreatedAt)
	}
	if o.TotalAmount == 0 {
		o.TotalAmount = o.ItemsTotal()
	}
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (order_number, customer_name, customer_email, email, customer_phone, shipping_address,
			items, items_description, total_amount, total, payment_method, notes, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.q.ExecContext(ctx, query, o.OrderNumber, o.CustomerName, o.CustomerEmail, o.CustomerEmail, o.CustomerPhone, o.ShippingAddress,
		string(items), o.ItemsDescription, o.TotalAmount, o.TotalAmount, o.PaymentMethod, o.Notes, o.Status, toUnix(o.CreatedAt), toUnix(o.UpdatedAt))
	if err != nil {
		return mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = id
	s.changed(ctx, TableOrders)
	return nil
}

func (s *Store) BulkInsertOrders(ctx context.Context, orders []models.Order) ([]int64, error) {
	ids := make([]int64, 0, len(orders))
	err := s.WithTx(ctx, func(tx *Store) error {
		for i := range orders {
			if err := tx.CreateOrder(ctx, &orders[i]); err != nil {
				return fmt.Errorf("order %d: %w", i, err)
			}
			ids = append(ids, orders[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// OrderByNumber returns the newest order with that number, or nil.
func (s *Store) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		strings.TrimSpace(number))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.queryOrders(ctx, "")
}

func (s *Store) OrdersByStatus(ctx context.Context, status string) ([]models.Order, error) {
	return s.queryOrders(ctx, "WHERE status = ?", status)
}

// OrdersByEmail matches the customer email, falling back to the legacy
// column, case-insensitively.
func (s *Store) OrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	return s.queryOrders(ctx, "WHERE LOWER(COALESCE(NULLIF(customer_email, ''), email)) = LOWER(?)", email)
}

func (s *Store) UpdateOrder(ctx context.Context, id int64, patch OrderPatch) error {
	var u setter
	setIf(&u, "customer_name", patch.CustomerName)
	if patch.CustomerEmail != nil {
		u.set("customer_email", *patch.CustomerEmail)
		u.set("email", *patch.CustomerEmail)
	}
	setIf(&u, "customer_phone", patch.CustomerPhone)
	setIf(&u, "shipping_address", patch.ShippingAddress)
	setIf(&u, "payment_method", patch.PaymentMethod)
	setIf(&u, "notes", patch.Notes)
	u.set("updated_at", toUnix(s.Now()))
	return s.updateRow(ctx, TableOrders, id, u)
}

// UpdateOrderStatus moves the order along its lifecycle and stamps updatedAt.
// Skipping a step or leaving a terminal state yields ErrInvalidTransition.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	if _, ok := orderTransitions[status]; !ok {
		return fmt.Errorf("%w: order status %q", ErrInvalidStatus, status)
	}
	return s.WithTx(ctx, func(tx *Store) error {
		current, err := tx.GetOrderByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%s %d: %w", TableOrders, id, ErrNotFound)
		}
		if current.Status != status && !allowed(orderTransitions, current.Status, status) {
			return fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, current.Status, status)
		}

		var u setter
		u.set("status", status)
		u.set("updated_at", toUnix(tx.Now()))
		return tx.updateRow(ctx, TableOrders, id, u)
	})
}

// CancelOrder is UpdateOrderStatus to cancelled.
func (s *Store) CancelOrder(ctx context.Context, id int64) error {
	return s.UpdateOrderStatus(ctx, id, models.OrderCancelled)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, TableOrders, id)
}
