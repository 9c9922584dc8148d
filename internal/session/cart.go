package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alextreichler/bekasberkah/internal/models"
	"github.com/alextreichler/bekasberkah/internal/store"
)

const CartKey = "bekasberkah-cart"

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMissingCheckout = errors.New("missing required checkout field")
)

// CartItem keeps a copy of the product as it was when added, so checkout
// snapshots the price the shopper saw.
type CartItem struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Selected bool           `json:"selected"`
}

// Cart is the shopper's basket, kept in the session storage under CartKey.
type Cart struct {
	mu      sync.Mutex
	storage Storage
	logger  *slog.Logger
}

func NewCart(storage Storage) *Cart {
	return &Cart{storage: storage, logger: slog.Default()}
}

// load returns the stored items. A malformed blob is treated as an empty cart.
func (c *Cart) load() []CartItem {
	raw, ok := c.storage.Get(CartKey)
	if !ok || raw == "" {
		return []CartItem{}
	}
	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.logger.Warn("Ignoring malformed cart", "error", err)
		return []CartItem{}
	}
	if items == nil {
		items = []CartItem{}
	}
	return items
}

func (c *Cart) save(items []CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := c.storage.Set(CartKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// update applies fn to the stored items under the cart lock.
func (c *Cart) update(fn func([]CartItem) []CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(fn(c.load()))
}

func (c *Cart) Items() []CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Add puts quantity of p in the cart, adding to the existing line if p is
// already there. New lines start unselected.
func (c *Cart) Add(p models.Product, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}
	return c.update(func(items []CartItem) []CartItem {
		for i := range items {
			if items[i].Product.ID == p.ID {
				items[i].Quantity += quantity
				return items
			}
		}
		return append(items, CartItem{Product: p, Quantity: quantity})
	})
}

func (c *Cart) Remove(productID int64) error {
	return c.update(func(items []CartItem) []CartItem {
		return filterItems(items, func(it CartItem) bool { return it.Product.ID != productID })
	})
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Cart) UpdateQuantity(productID int64, quantity int) error {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	return c.update(func(items []CartItem) []CartItem {
		for i := range items {
			if items[i].Product.ID == productID {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

func (c *Cart) ToggleSelection(productID int64) error {
	return c.update(func(items []CartItem) []CartItem {
		for i := range items {
			if items[i].Product.ID == productID {
				items[i].Selected = !items[i].Selected
			}
		}
		return items
	})
}

// ToggleSelectAll selects every line, or clears the selection when every line
// is already selected.
func (c *Cart) ToggleSelectAll() error {
	return c.update(func(items []CartItem) []CartItem {
		all := allSelected(items)
		for i := range items {
			items[i].Selected = !all
		}
		return items
	})
}

func (c *Cart) RemoveSelected() error {
	return c.update(func(items []CartItem) []CartItem {
		return filterItems(items, func(it CartItem) bool { return !it.Selected })
	})
}

func (c *Cart) Clear() error {
	return c.update(func([]CartItem) []CartItem { return []CartItem{} })
}

func (c *Cart) Contains(productID int64) bool {
	for _, it := range c.Items() {
		if it.Product.ID == productID {
			return true
		}
	}
	return false
}

// TotalItems counts units, not lines.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items() {
		n += it.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() int64 {
	return itemsTotal(c.Items())
}

func (c *Cart) SelectedItems() []CartItem {
	return filterItems(c.Items(), func(it CartItem) bool { return it.Selected })
}

func (c *Cart) SelectedTotal() int64 {
	return itemsTotal(c.SelectedItems())
}

func (c *Cart) HasSelected() bool {
	return len(c.SelectedItems()) > 0
}

func (c *Cart) AllSelected() bool {
	items := c.Items()
	return len(items) > 0 && allSelected(items)
}

func filterItems(items []CartItem, keep func(CartItem) bool) []CartItem {
	out := []CartItem{}
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func allSelected(items []CartItem) bool {
	for _, it := range items {
		if !it.Selected {
			return false
		}
	}
	return true
}

func itemsTotal(items []CartItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Product.Price * int64(it.Quantity)
	}
	return total
}

// CheckoutForm is what the shopper typed. Profile, when set, is the signed-in
// user whose contact details take precedence and fill empty fields.
type CheckoutForm struct {
	CustomerName  string
	Email         string
	Phone         string
	Address       string
	City          string
	PostalCode    string
	PaymentMethod string // "cod", "transfer" or "ewallet"; defaults to "cod"
	Notes         string
	Profile       *Profile
}

const fallbackAddress = "Alamat belum diisi"

// cityFromAddress takes the last comma-separated part of an address.
func cityFromAddress(address string) string {
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// withProfile fills the form from the profile the way the checkout page does.
func (f CheckoutForm) withProfile() CheckoutForm {
	p := f.Profile
	if p == nil {
		return f
	}
	if f.CustomerName == "" {
		f.CustomerName = p.Name
	}
	f.Email = p.Email
	f.Phone = p.Phone
	if f.Address == "" {
		f.Address = p.Address
	}
	if f.City == "" {
		f.City = cityFromAddress(p.Address)
	}
	return f
}

func (f CheckoutForm) validate() error {
	required := []struct{ name, value string }{
		{"customerName", f.CustomerName},
		{"email", f.Email},
		{"phone", f.Phone},
		{"address", f.Address},
		{"city", f.City},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingCheckout, r.name)
		}
	}
	return nil
}

func (f CheckoutForm) shippingAddress() string {
	parts := []string{}
	for _, part := range []string{f.Address, f.City, f.PostalCode} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if f.Profile != nil && f.Profile.Address != "" {
		return f.Profile.Address
	}
	return fallbackAddress
}

// Checkout turns the cart into a pending order. When some lines are selected
// only those are ordered and removed; otherwise the whole cart is ordered and
// cleared. The cart is left untouched if the order cannot be created.
func (c *Cart) Checkout(ctx context.Context, st *store.Store, form CheckoutForm) (*models.Order, error) {
	form = form.withProfile()
	if err := form.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.load()
	ordered := filterItems(items, func(it CartItem) bool { return it.Selected })
	if len(ordered) == 0 {
		ordered = items
	}
	if len(ordered) == 0 {
		return nil, ErrEmptyCart
	}

	payment := form.PaymentMethod
	if payment == "" {
		payment = "cod"
	}

	o := &models.Order{
		CustomerName:    strings.TrimSpace(form.CustomerName),
		CustomerEmail:   form.Email,
		CustomerPhone:   form.Phone,
		ShippingAddress: form.shippingAddress(),
		PaymentMethod:   payment,
		Notes:           form.Notes,
		Status:          models.OrderPending,
		Items:           make([]models.OrderItem, 0, len(ordered)),
		TotalAmount:     itemsTotal(ordered),
	}
	for _, it := range ordered {
		o.Items = append(o.Items, models.OrderItem{
			ProductID:   it.Product.ID,
			ProductName: it.Product.Name,
			Price:       it.Product.Price,
			Quantity:    it.Quantity,
		})
	}
	if err := st.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	remaining := filterItems(items, func(it CartItem) bool {
		for _, done := range ordered {
			if done.Product.ID == it.Product.ID {
				return false
			}
		}
		return true
	})
	if err := c.save(remaining); err != nil {
		// The order is committed; only the cart is stale.
		c.logger.Warn("Order created but cart not cleared", "order", o.OrderNumber, "error", err)
	}
	c.logger.Info("Order placed", "order", o.OrderNumber, "items", len(o.Items), "total", o.TotalAmount)
	return o, nil
}

// Cart returns the cart kept in the bridge's storage.
func (b *Bridge) Cart() *Cart {
	return b.cart
}

// Checkout places an order from the cart using the signed-in user's details.
func (b *Bridge) Checkout(ctx context.Context, form CheckoutForm) (*models.Order, error) {
	if form.Profile == nil && b.IsLoggedIn() {
		p := b.LoadProfile()
		form.Profile = &p
	}
	return b.cart.Checkout(ctx, b.store, form)
}
