package store

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alextreichler/bekasberkah/internal/changefeed"
	"github.com/alextreichler/bekasberkah/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// tickClock advances one second on every read so successive writes get
// strictly increasing timestamps.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickClock() *tickClock {
	return &tickClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bekasberkah.db")
	st, err := Open(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []changefeed.Change
}

func recordChanges(t *testing.T, st *Store) *changeRecorder {
	r := &changeRecorder{}
	cancel := st.Feed().Listen(func(c changefeed.Change) {
		r.mu.Lock()
		r.changes = append(r.changes, c)
		r.mu.Unlock()
	})
	t.Cleanup(cancel)
	return r
}

func (r *changeRecorder) all() []changefeed.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]changefeed.Change(nil), r.changes...)
}

func ptr[T any](v T) *T { return &v }

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock *tickClock
	st    *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = newTickClock()
	s.st, _ = newTestStore(s.T(), WithClock(s.clock.Now))
}

func (s *StoreTestSuite) createProduct(name, category string, price int64) *models.Product {
	p := &models.Product{Name: name, Category: category, Price: price}
	s.Require().NoError(s.st.CreateProduct(s.ctx, p))
	return p
}

func (s *StoreTestSuite) TestProductCRUD() {
	p := s.createProduct("Kamera Canon EOS M50", "Elektronik", 5_400_000)
	s.Require().NotZero(p.ID)
	s.Require().Equal(models.ProductActive, p.Status)
	s.Require().True(p.CreatedAt.Equal(p.UpdatedAt))

	got, err := s.st.GetProductByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Equal(p.Name, got.Name)
	s.Require().True(p.CreatedAt.Equal(got.CreatedAt))

	s.Require().NoError(s.st.UpdateProduct(s.ctx, p.ID, ProductPatch{Price: ptr(int64(5_000_000))}))
	got, err = s.st.GetProductByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Equal(int64(5_000_000), got.Price)
	s.Require().Equal(p.Name, got.Name)
	s.Require().True(got.UpdatedAt.After(got.CreatedAt))

	err = s.st.UpdateProduct(s.ctx, p.ID, ProductPatch{Status: ptr("sold")})
	s.Require().ErrorIs(err, ErrInvalidStatus)

	err = s.st.UpdateProduct(s.ctx, 9999, ProductPatch{Name: ptr("ghost")})
	s.Require().ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.st.DeleteProduct(s.ctx, p.ID))
	s.Require().NoError(s.st.DeleteProduct(s.ctx, p.ID))
	got, err = s.st.GetProductByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Nil(got)
}

func (s *StoreTestSuite) TestListsAreNewestFirst() {
	first := s.createProduct("Meja Belajar", "Furniture", 300_000)
	second := s.createProduct("Kursi Lipat", "Furniture", 150_000)
	third := s.createProduct("Rak Buku", "Furniture", 200_000)

	products, err := s.st.ListProducts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(products, 3)
	s.Require().Equal([]int64{third.ID, second.ID, first.ID}, []int64{products[0].ID, products[1].ID, products[2].ID})

	empty, err := s.st.ProductsByCategory(s.ctx, "Otomotif")
	s.Require().NoError(err)
	s.Require().NotNil(empty)
	s.Require().Empty(empty)
}

func (s *StoreTestSuite) TestBulkInsertIsAllOrNothing() {
	_, err := s.st.BulkInsertProducts(s.ctx, []models.Product{
		{Name: "Valid", Category: "Buku"},
		{Name: "Invalid", Category: "Buku", Status: "archived"},
	})
	s.Require().ErrorIs(err, ErrInvalidStatus)

	n, err := s.st.Count(s.ctx, TableProducts)
	s.Require().NoError(err)
	s.Require().Zero(n)
}

func (s *StoreTestSuite) TestRenameCategoryCascadesToProducts() {
	c := &models.Category{Name: "Elektronik"}
	s.Require().NoError(s.st.CreateCategory(s.ctx, c))
	s.createProduct("Laptop Asus", "Elektronik", 4_000_000)
	s.createProduct("Mouse Logitech", "Elektronik", 150_000)
	other := s.createProduct("Sofa", "Furniture", 2_000_000)

	rec := recordChanges(s.T(), s.st)
	s.Require().NoError(s.st.RenameCategory(s.ctx, c.ID, "Gadget"))

	renamed, err := s.st.ProductsByCategory(s.ctx, "Gadget")
	s.Require().NoError(err)
	s.Require().Len(renamed, 2)
	old, err := s.st.ProductsByCategory(s.ctx, "Elektronik")
	s.Require().NoError(err)
	s.Require().Empty(old)

	untouched, err := s.st.GetProductByID(s.ctx, other.ID)
	s.Require().NoError(err)
	s.Require().Equal("Furniture", untouched.Category)

	changes := rec.all()
	s.Require().Len(changes, 1)
	s.Require().Equal([]string{TableCategories, TableProducts}, changes[0].Tables)

	err = s.st.RenameCategory(s.ctx, 9999, "Nothing")
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *StoreTestSuite) TestDeleteCategoryInUse() {
	c := &models.Category{Name: "Buku"}
	s.Require().NoError(s.st.CreateCategory(s.ctx, c))
	p := s.createProduct("Novel Bumi Manusia", "Buku", 90_000)

	err := s.st.DeleteCategory(s.ctx, c.ID)
	s.Require().ErrorIs(err, ErrCategoryInUse)
	still, err := s.st.GetCategoryByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().NotNil(still)

	s.Require().NoError(s.st.DeleteProduct(s.ctx, p.ID))
	s.Require().NoError(s.st.DeleteCategory(s.ctx, c.ID))
	gone, err := s.st.GetCategoryByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Nil(gone)

	// Already deleted.
	s.Require().NoError(s.st.DeleteCategory(s.ctx, c.ID))
}

func (s *StoreTestSuite) TestCategoriesWithUsage() {
	_, err := s.st.BulkInsertCategories(s.ctx, []models.Category{{Name: "Fashion"}, {Name: "Olahraga"}})
	s.Require().NoError(err)
	s.createProduct("Jaket", "Fashion", 200_000)
	s.createProduct("Sepatu", "Fashion", 300_000)

	usage, err := s.st.CategoriesWithUsage(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(usage, 2)
	s.Require().Equal("Fashion", usage[0].Name)
	s.Require().Equal(2, usage[0].ProductCount)
	s.Require().Equal("Olahraga", usage[1].Name)
	s.Require().Zero(usage[1].ProductCount)

	byName, err := s.st.CategoryByName(s.ctx, "Olahraga")
	s.Require().NoError(err)
	s.Require().Equal(usage[1].ID, byName.ID)
}

var trackingCodePattern = regexp.MustCompile(`^BB-[0-9A-F]{4}-[0-9A-F]{6}$`)

func (s *StoreTestSuite) TestSubmissionLifecycle() {
	sub := &models.Submission{
		SellerName:    "Budi",
		Email:         "Budi@Example.com",
		ProductName:   "Sepeda Polygon",
		AskingPrice:   1_500_000,
		ProductPhotos: []string{"a.jpg", "b.jpg"},
	}
	s.Require().NoError(s.st.CreateSubmission(s.ctx, sub))
	s.Require().Equal(models.SubmissionPending, sub.Status)
	s.Require().Equal(models.ConditionGood, sub.Condition)
	s.Require().Regexp(trackingCodePattern, sub.TrackingCode)

	found, err := s.st.SubmissionByTrackingCode(s.ctx, "  "+strings.ToLower(sub.TrackingCode)+" ")
	s.Require().NoError(err)
	s.Require().Equal(sub.ID, found.ID)
	s.Require().Equal([]string{"a.jpg", "b.jpg"}, found.ProductPhotos)

	byEmail, err := s.st.SubmissionsByEmail(s.ctx, "budi@example.com")
	s.Require().NoError(err)
	s.Require().Len(byEmail, 1)

	s.Require().NoError(s.st.UpdateSubmissionStatus(s.ctx, sub.ID, models.SubmissionApproved, ptr("Siap difoto")))
	approved, err := s.st.GetSubmissionByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.SubmissionApproved, approved.Status)
	s.Require().Equal("Siap difoto", approved.Notes)
	s.Require().True(approved.UpdatedAt.After(approved.CreatedAt))

	tracked, err := s.st.SubmissionByTrackingCode(s.ctx, sub.TrackingCode)
	s.Require().NoError(err)
	s.Require().Equal(models.SubmissionApproved, tracked.Status)

	err = s.st.UpdateSubmissionStatus(s.ctx, sub.ID, models.SubmissionRejected, nil)
	s.Require().ErrorIs(err, ErrInvalidTransition)

	s.Require().NoError(s.st.UpdateSubmissionStatus(s.ctx, sub.ID, models.SubmissionPending, nil))
	reopened, err := s.st.GetSubmissionByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Equal("Siap difoto", reopened.Notes)

	err = s.st.UpdateSubmissionStatus(s.ctx, sub.ID, "sold", nil)
	s.Require().ErrorIs(err, ErrInvalidStatus)
	err = s.st.UpdateSubmissionStatus(s.ctx, 9999, models.SubmissionApproved, nil)
	s.Require().ErrorIs(err, ErrNotFound)

	missing, err := s.st.SubmissionByTrackingCode(s.ctx, "BB-0000-000000")
	s.Require().NoError(err)
	s.Require().Nil(missing)
}

func (s *StoreTestSuite) TestDuplicateTrackingCode() {
	first := &models.Submission{ProductName: "Radio", TrackingCode: "bb-aaaa-bbbbbb"}
	s.Require().NoError(s.st.CreateSubmission(s.ctx, first))
	s.Require().Equal("BB-AAAA-BBBBBB", first.TrackingCode)

	second := &models.Submission{ProductName: "Televisi", TrackingCode: "BB-AAAA-BBBBBB"}
	err := s.st.CreateSubmission(s.ctx, second)
	s.Require().ErrorIs(err, ErrDuplicate)
}

func (s *StoreTestSuite) TestOrderItemsAreSnapshots() {
	p := s.createProduct("Kipas Angin Miyako", "Elektronik", 250_000)
	o := &models.Order{
		CustomerName:  "Rina",
		CustomerEmail: "rina@example.com",
		Items:         []models.OrderItem{{ProductID: p.ID, ProductName: p.Name, Price: p.Price, Quantity: 2}},
	}
	s.Require().NoError(s.st.CreateOrder(s.ctx, o))
	s.Require().Equal(int64(500_000), o.TotalAmount)
	s.Require().Equal(models.OrderPending, o.Status)
	s.Require().Regexp(`^ORD-\d+$`, o.OrderNumber)

	s.Require().NoError(s.st.UpdateProduct(s.ctx, p.ID, ProductPatch{Name: ptr("Kipas Baru"), Price: ptr(int64(999_000))}))
	s.Require().NoError(s.st.DeleteProduct(s.ctx, p.ID))

	got, err := s.st.GetOrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Equal(o.Items, got.Items)
	s.Require().Equal(int64(500_000), got.TotalAmount)

	byNumber, err := s.st.OrderByNumber(s.ctx, o.OrderNumber)
	s.Require().NoError(err)
	s.Require().Equal(o.ID, byNumber.ID)

	bad := &models.Order{Items: []models.OrderItem{{ProductName: "x", Price: 1, Quantity: 0}}}
	s.Require().Error(s.st.CreateOrder(s.ctx, bad))
}

func (s *StoreTestSuite) TestOrderStatusTransitions() {
	o := &models.Order{CustomerEmail: "a@b.c", TotalAmount: 100}
	s.Require().NoError(s.st.CreateOrder(s.ctx, o))

	s.Require().ErrorIs(s.st.UpdateOrderStatus(s.ctx, o.ID, models.OrderShipped), ErrInvalidTransition)
	for _, next := range []string{models.OrderProcessing, models.OrderShipped, models.OrderDelivered} {
		s.Require().NoError(s.st.UpdateOrderStatus(s.ctx, o.ID, next))
	}
	s.Require().ErrorIs(s.st.CancelOrder(s.ctx, o.ID), ErrInvalidTransition)

	// Re-applying the current status only refreshes updatedAt.
	before, err := s.st.GetOrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.st.UpdateOrderStatus(s.ctx, o.ID, models.OrderDelivered))
	after, err := s.st.GetOrderByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().True(after.UpdatedAt.After(before.UpdatedAt))

	other := &models.Order{CustomerEmail: "a@b.c", TotalAmount: 100}
	s.Require().NoError(s.st.CreateOrder(s.ctx, other))
	s.Require().NoError(s.st.CancelOrder(s.ctx, other.ID))

	cancelled, err := s.st.OrdersByStatus(s.ctx, models.OrderCancelled)
	s.Require().NoError(err)
	s.Require().Len(cancelled, 1)

	s.Require().ErrorIs(s.st.UpdateOrderStatus(s.ctx, o.ID, "lost"), ErrInvalidStatus)
}

func (s *StoreTestSuite) TestUpdateOrderKeepsLegacyEmailInStep() {
	o := &models.Order{CustomerEmail: "old@example.com", TotalAmount: 100}
	s.Require().NoError(s.st.CreateOrder(s.ctx, o))
	s.Require().NoError(s.st.UpdateOrder(s.ctx, o.ID, OrderPatch{CustomerEmail: ptr("New@Example.com")}))

	var legacy string
	s.Require().NoError(s.st.DB.QueryRowContext(s.ctx, `SELECT email FROM orders WHERE id = ?`, o.ID).Scan(&legacy))
	s.Require().Equal("New@Example.com", legacy)

	orders, err := s.st.OrdersByEmail(s.ctx, "new@example.com")
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
}

func (s *StoreTestSuite) TestWithTxPublishesAfterCommit() {
	rec := recordChanges(s.T(), s.st)

	err := s.st.WithTx(s.ctx, func(tx *Store) error {
		if err := tx.CreateCategory(s.ctx, &models.Category{Name: "Buku"}); err != nil {
			return err
		}
		if err := tx.CreateProduct(s.ctx, &models.Product{Name: "Kamus", Category: "Buku"}); err != nil {
			return err
		}
		s.Require().Empty(rec.all())
		return nil
	})
	s.Require().NoError(err)

	changes := rec.all()
	s.Require().Len(changes, 1)
	s.Require().Equal([]string{TableCategories, TableProducts}, changes[0].Tables)
}

func (s *StoreTestSuite) TestWithTxRollbackPublishesNothing() {
	rec := recordChanges(s.T(), s.st)

	err := s.st.WithTx(s.ctx, func(tx *Store) error {
		if err := tx.CreateProduct(s.ctx, &models.Product{Name: "Kamus"}); err != nil {
			return err
		}
		return ErrNotFound
	})
	s.Require().ErrorIs(err, ErrNotFound)
	s.Require().Empty(rec.all())

	n, err := s.st.Count(s.ctx, TableProducts)
	s.Require().NoError(err)
	s.Require().Zero(n)
}

func (s *StoreTestSuite) TestDeleteMissingPublishesNothing() {
	rec := recordChanges(s.T(), s.st)
	s.Require().NoError(s.st.DeleteOrder(s.ctx, 42))
	s.Require().Empty(rec.all())
}

func (s *StoreTestSuite) TestWithTxPanicRollsBack() {
	rec := recordChanges(s.T(), s.st)

	s.Require().Panics(func() {
		_ = s.st.WithTx(s.ctx, func(tx *Store) error {
			if err := tx.CreateProduct(s.ctx, &models.Product{Name: "Kamus"}); err != nil {
				return err
			}
			panic("boom")
		})
	})
	s.Require().Empty(rec.all())

	// The single connection is free again.
	n, err := s.st.Count(s.ctx, TableProducts)
	s.Require().NoError(err)
	s.Require().Zero(n)
	s.createProduct("Sepeda Lipat", "Olahraga", 1_200_000)
}

func (s *StoreTestSuite) TestViewRejectsWrites() {
	s.createProduct("Sepeda Lipat", "Olahraga", 1_200_000)
	rec := recordChanges(s.T(), s.st)

	err := s.st.View(s.ctx, func(tx *Store) error {
		products, err := tx.ListProducts(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(products, 1)

		s.Require().ErrorIs(tx.CreateProduct(s.ctx, &models.Product{Name: "Kamus"}), ErrReadOnly)
		s.Require().ErrorIs(tx.DeleteProduct(s.ctx, products[0].ID), ErrReadOnly)
		return tx.WithTx(s.ctx, func(inner *Store) error {
			return inner.UpdateProduct(s.ctx, products[0].ID, ProductPatch{Price: ptr(int64(1))})
		})
	})
	s.Require().ErrorIs(err, ErrReadOnly)
	s.Require().Empty(rec.all())

	n, err := s.st.Count(s.ctx, TableProducts)
	s.Require().NoError(err)
	s.Require().Equal(1, n)
}

func (s *StoreTestSuite) TestProfileUpsertMovesRow() {
	p := &models.UserProfile{Email: "Rina@Example.com", Name: "Rina", Role: "user"}
	s.Require().NoError(s.st.CreateProfile(s.ctx, p))
	s.Require().Equal("rina@example.com", p.EmailLower)

	dup := &models.UserProfile{Email: "rina@example.com "}
	s.Require().ErrorIs(s.st.CreateProfile(s.ctx, dup), ErrDuplicate)

	moved := &models.UserProfile{Email: "rina.k@example.com", Name: "Rina K"}
	s.Require().NoError(s.st.UpsertProfile(s.ctx, moved, "rina@example.com"))
	s.Require().Equal(p.ID, moved.ID)
	s.Require().Equal("user", moved.Role)

	old, err := s.st.ProfileByEmail(s.ctx, "rina@example.com")
	s.Require().NoError(err)
	s.Require().Nil(old)

	profiles, err := s.st.ListProfiles(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(profiles, 1)
	s.Require().Equal("Rina K", profiles[0].Name)

	fresh := &models.UserProfile{Email: "baru@example.com"}
	s.Require().NoError(s.st.UpsertProfile(s.ctx, fresh, ""))
	s.Require().NotEqual(p.ID, fresh.ID)
}

func (s *StoreTestSuite) TestSettingsAndDeleteUser() {
	st := &models.UserSettings{Email: "user@example.com", EmailUpdates: true}
	s.Require().NoError(s.st.CreateSettings(s.ctx, st))
	s.Require().Equal("system", st.DarkMode)

	s.Require().NoError(s.st.UpsertSettings(s.ctx, &models.UserSettings{Email: "user@example.com", DarkMode: "dark"}, ""))
	got, err := s.st.SettingsByEmail(s.ctx, "USER@example.com")
	s.Require().NoError(err)
	s.Require().Equal("dark", got.DarkMode)
	s.Require().False(got.EmailUpdates)

	s.Require().NoError(s.st.CreateProfile(s.ctx, &models.UserProfile{Email: "user@example.com"}))
	s.Require().NoError(s.st.DeleteUser(s.ctx, "user@example.com"))

	for _, table := range []string{TableProfiles, TableSettings} {
		n, err := s.st.Count(s.ctx, table)
		s.Require().NoError(err)
		s.Require().Zero(n, table)
	}
}

func (s *StoreTestSuite) TestProfileAndSettingsByID() {
	ids, err := s.st.BulkInsertProfiles(s.ctx, []models.UserProfile{{Email: "satu@example.com"}, {Email: "dua@example.com"}})
	s.Require().NoError(err)
	s.Require().Len(ids, 2)

	s.Require().NoError(s.st.UpdateProfile(s.ctx, ids[0], ProfilePatch{Name: ptr("Satu"), Email: ptr("Satu.Baru@Example.com")}))
	p, err := s.st.GetProfileByID(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Require().Equal("Satu", p.Name)
	s.Require().Equal("satu.baru@example.com", p.EmailLower)

	err = s.st.UpdateProfile(s.ctx, ids[0], ProfilePatch{Email: ptr("dua@example.com")})
	s.Require().ErrorIs(err, ErrDuplicate)
	s.Require().ErrorIs(s.st.UpdateProfile(s.ctx, 9999, ProfilePatch{}), ErrNotFound)

	s.Require().NoError(s.st.DeleteProfile(s.ctx, ids[1]))
	profiles, err := s.st.ListProfiles(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(profiles, 1)

	setIDs, err := s.st.BulkInsertSettings(s.ctx, []models.UserSettings{{Email: "satu@example.com"}})
	s.Require().NoError(err)
	s.Require().NoError(s.st.UpdateSettings(s.ctx, setIDs[0], SettingsPatch{SMSUpdates: ptr(true), DarkMode: ptr("light")}))
	st, err := s.st.GetSettingsByID(s.ctx, setIDs[0])
	s.Require().NoError(err)
	s.Require().True(st.SMSUpdates)
	s.Require().Equal("light", st.DarkMode)

	s.Require().NoError(s.st.DeleteSettings(s.ctx, setIDs[0]))
	all, err := s.st.ListSettings(s.ctx)
	s.Require().NoError(err)
	s.Require().Empty(all)
}

func (s *StoreTestSuite) TestCountRejectsUnknownTable() {
	_, err := s.st.Count(s.ctx, "schema_migrations")
	s.Require().Error(err)
}
