package session

import (
	"context"
	"fmt"
	"time"

	"github.com/alextreichler/bekasberkah/internal/models"
	"github.com/alextreichler/bekasberkah/internal/store"
)

// EnsureDemoActivity gives a user with no history a few orders and
// submissions so the account page has something to show. Users that already
// have an order or a submission are left alone.
func (b *Bridge) EnsureDemoActivity(ctx context.Context, p Profile) error {
	orders, err := b.store.OrdersByEmail(ctx, p.Email)
	if err != nil {
		return err
	}
	subs, err := b.store.SubmissionsByEmail(ctx, p.Email)
	if err != nil {
		return err
	}
	if len(orders) > 0 || len(subs) > 0 {
		return nil
	}

	now := b.store.Now()
	ago := func(days int) time.Time { return now.Add(-time.Duration(days) * 24 * time.Hour) }

	demoOrders := []models.Order{
		{
			OrderNumber: "BB-2024-1042",
			Status:      models.OrderDelivered,
			Items: []models.OrderItem{
				{ProductName: "Kamera Mirrorless Sony A6000", Price: 4_500_000, Quantity: 1},
			},
			PaymentMethod: "transfer",
			CreatedAt:     ago(40),
		},
		{
			OrderNumber: "BB-2024-1095",
			Status:      models.OrderShipped,
			Items: []models.OrderItem{
				{ProductName: "Sepatu Nike Air Max 90", Price: 850_000, Quantity: 1},
				{ProductName: "Tas Ransel Eiger", Price: 275_000, Quantity: 1},
			},
			PaymentMethod: "cod",
			CreatedAt:     ago(6),
		},
		{
			OrderNumber: "BB-2024-1121",
			Status:      models.OrderProcessing,
			Items: []models.OrderItem{
				{ProductName: "Buku Atomic Habits", Price: 65_000, Quantity: 2},
			},
			PaymentMethod: "ewallet",
			CreatedAt:     ago(1),
		},
	}

	demoSubs := []models.Submission{
		{
			ProductName:        "Jam Tangan Casio Edifice",
			ProductDescription: "Pemakaian 1 tahun, lengkap dengan box.",
			Category:           "Aksesoris",
			Condition:          models.ConditionExcellent,
			AskingPrice:        1_200_000,
			Status:             models.SubmissionApproved,
			CreatedAt:          ago(20),
		},
		{
			ProductName:        "Speaker JBL Flip 5",
			ProductDescription: "Suara normal, ada baret halus di bodi.",
			Category:           "Elektronik",
			Condition:          models.ConditionGood,
			AskingPrice:        900_000,
			Status:             models.SubmissionPending,
			CreatedAt:          ago(3),
		},
	}

	err = b.store.WithTx(ctx, func(tx *store.Store) error {
		for i := range demoOrders {
			o := &demoOrders[i]
			o.CustomerName = p.Name
			o.CustomerEmail = p.Email
			o.CustomerPhone = p.Phone
			o.ShippingAddress = p.Address
			o.UpdatedAt = o.CreatedAt
			if err := tx.CreateOrder(ctx, o); err != nil {
				return fmt.Errorf("demo order %s: %w", o.OrderNumber, err)
			}
		}
		for i := range demoSubs {
			sub := &demoSubs[i]
			sub.SellerName = p.Name
			sub.Email = p.Email
			sub.Phone = p.Phone
			sub.SellerAddress = p.Address
			sub.PreferredContact = "whatsapp"
			sub.UpdatedAt = sub.CreatedAt
			if err := tx.CreateSubmission(ctx, sub); err != nil {
				return fmt.Errorf("demo submission %s: %w", sub.ProductName, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create demo activity: %w", err)
	}
	b.logger.Info("Created demo activity", "email", p.Email, "orders", len(demoOrders), "submissions", len(demoSubs))
	return nil
}
