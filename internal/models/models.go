package models

import (
	"time"
)

const (
	ProductActive   = "active"
	ProductInactive = "inactive"
)

const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

const (
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
)

const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"` // matches Category.Name, not a foreign key
	Image       string    `json:"image"`    // URL or data URI
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CategoryUsage is a category enriched with the number of products filed under its name.
type CategoryUsage struct {
	Category
	ProductCount int `json:"productCount"`
}

type Submission struct {
	ID                 int64     `json:"id"`
	SellerName         string    `json:"sellerName"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	SellerCity         string    `json:"sellerCity"`
	SellerAddress      string    `json:"sellerAddress"`
	PreferredContact   string    `json:"preferredContact"` // "whatsapp", "phone", "email"
	ProductName        string    `json:"productName"`
	ProductDescription string    `json:"productDescription"`
	Category           string    `json:"category"`
	Condition          string    `json:"condition"`
	AskingPrice        int64     `json:"askingPrice"`
	ProductPhotos      []string  `json:"productPhotos"`
	TrackingCode       string    `json:"trackingCode"` // Public "BB-..." lookup code
	Status             string    `json:"status"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// OrderItem is a snapshot of the product at checkout time. It is never
// re-resolved against the products table.
type OrderItem struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
}

type Order struct {
	ID               int64       `json:"id"`
	OrderNumber      string      `json:"orderNumber"`
	CustomerName     string      `json:"customerName"`
	CustomerEmail    string      `json:"customerEmail"`
	CustomerPhone    string      `json:"customerPhone"`
	ShippingAddress  string      `json:"shippingAddress"`
	Items            []OrderItem `json:"items"`
	ItemsDescription string      `json:"itemsDescription"` // legacy rows carry a free-text summary instead of items
	TotalAmount      int64       `json:"totalAmount"`
	PaymentMethod    string      `json:"paymentMethod"`
	Notes            string      `json:"notes"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ItemsTotal sums price*quantity over the recorded item snapshots.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

type UserProfile struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	EmailLower  string    `json:"emailLower"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	MemberSince string    `json:"memberSince"`
	Role        string    `json:"role"` // "admin", "user" or empty
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type UserSettings struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	EmailLower    string    `json:"emailLower"`
	EmailUpdates  bool      `json:"emailUpdates"`
	SMSUpdates    bool      `json:"smsUpdates"`
	MarketingTips bool      `json:"marketingTips"`
	DarkMode      string    `json:"darkMode"` // "light", "dark", "system"
	UpdatedAt     time.Time `json:"updatedAt"`
}
