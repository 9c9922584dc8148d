package store

import (
	"context"
	"time"

	"github.com/alextreichler/bekasberkah/internal/aggregate"
	"github.com/alextreichler/bekasberkah/internal/models"
)

const recentLimit = 5

type DashboardStats struct {
	TotalProducts       int
	ActiveProducts      int
	Categories          int
	PendingSubmissions  int
	OpenOrders          int
	TotalOrderValue     int64
	DeliveredRevenue    int64
	OrdersByStatus      map[string]int
	SubmissionsByStatus map[string]int
	RecentProducts      []models.Product
	RecentSubmissions   []models.Submission
	RecentOrders        []models.Order
}

// GetDashboardStats reads the four catalog tables from one snapshot and
// derives the admin dashboard numbers.
func (s *Store) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var (
		products    []models.Product
		categories  []models.Category
		submissions []models.Submission
		orders      []models.Order
	)
	err := s.View(ctx, func(tx *Store) error {
		var err error
		if products, err = tx.ListProducts(ctx); err != nil {
			return err
		}
		if categories, err = tx.ListCategories(ctx); err != nil {
			return err
		}
		if submissions, err = tx.ListSubmissions(ctx); err != nil {
			return err
		}
		orders, err = tx.ListOrders(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ComputeDashboard(products, categories, submissions, orders), nil
}

// ComputeDashboard is the pure part of GetDashboardStats.
func ComputeDashboard(products []models.Product, categories []models.Category, submissions []models.Submission, orders []models.Order) *DashboardStats {
	productStatus := func(p models.Product) string { return p.Status }
	submissionStatus := func(sub models.Submission) string { return sub.Status }
	orderStatus := func(o models.Order) string { return o.Status }
	orderTotal := func(o models.Order) int64 { return o.TotalAmount }

	return &DashboardStats{
		TotalProducts:      len(products),
		ActiveProducts:     aggregate.CountByStatus(products, productStatus, models.ProductActive),
		Categories:         len(categories),
		PendingSubmissions: aggregate.CountByStatus(submissions, submissionStatus, models.SubmissionPending),
		OpenOrders: aggregate.Count(orders, func(o models.Order) bool {
			return o.Status != models.OrderDelivered && o.Status != models.OrderCancelled
		}),
		TotalOrderValue: aggregate.SumBy(orders, orderTotal, nil),
		DeliveredRevenue: aggregate.SumBy(orders, orderTotal, func(o models.Order) bool {
			return o.Status == models.OrderDelivered
		}),
		OrdersByStatus:      aggregate.CountBy(orders, orderStatus),
		SubmissionsByStatus: aggregate.CountBy(submissions, submissionStatus),
		RecentProducts:      aggregate.MostRecent(products, recentLimit, func(p models.Product) time.Time { return p.CreatedAt }),
		RecentSubmissions:   aggregate.MostRecent(submissions, recentLimit, func(sub models.Submission) time.Time { return sub.CreatedAt }),
		RecentOrders:        aggregate.MostRecent(orders, recentLimit, func(o models.Order) time.Time { return o.CreatedAt }),
	}
}
