package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/alextreichler/bekasberkah/internal/changefeed"
	"github.com/alextreichler/bekasberkah/internal/config"
	"github.com/alextreichler/bekasberkah/internal/live"
	"github.com/alextreichler/bekasberkah/internal/models"
	"github.com/alextreichler/bekasberkah/internal/session"
	"github.com/alextreichler/bekasberkah/internal/store"
	"github.com/redis/go-redis/v9"
)

const usage = "expected one of: migrate, seed, clear, reset, stats, watch, browse, cart, cart-add, checkout, login, whoami, logout"

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	email := loginCmd.String("email", "", "Demo account email")
	password := loginCmd.String("password", "", "Demo account password")

	whoamiCmd := flag.NewFlagSet("whoami", flag.ExitOnError)
	withDemo := whoamiCmd.Bool("demo", false, "Create demo orders and submissions for a user without any")

	browseCmd := flag.NewFlagSet("browse", flag.ExitOnError)
	search := browseCmd.String("q", "", "Search name, description and category")
	category := browseCmd.String("category", "", "Only this category")
	minPrice := browseCmd.Int64("min", -1, "Minimum price")
	maxPrice := browseCmd.Int64("max", -1, "Maximum price")
	sortBy := browseCmd.String("sort", string(store.SortNewest), "newest, price-asc, price-desc, name-asc or name-desc")
	related := browseCmd.Int64("related", 0, "Show products related to this product ID instead")

	cartAddCmd := flag.NewFlagSet("cart-add", flag.ExitOnError)
	productID := cartAddCmd.Int64("id", 0, "Product ID")
	quantity := cartAddCmd.Int("qty", 1, "Quantity")

	checkoutCmd := flag.NewFlagSet("checkout", flag.ExitOnError)
	var form session.CheckoutForm
	checkoutCmd.StringVar(&form.CustomerName, "name", "", "Customer name")
	checkoutCmd.StringVar(&form.Email, "email", "", "Customer email")
	checkoutCmd.StringVar(&form.Phone, "phone", "", "Customer phone")
	checkoutCmd.StringVar(&form.Address, "address", "", "Street address")
	checkoutCmd.StringVar(&form.City, "city", "", "City")
	checkoutCmd.StringVar(&form.PostalCode, "postal", "", "Postal code")
	checkoutCmd.StringVar(&form.PaymentMethod, "payment", "cod", "cod, transfer or ewallet")
	checkoutCmd.StringVar(&form.Notes, "notes", "", "Order notes")

	switch cmd {
	case "migrate", "seed", "clear", "reset", "stats", "watch", "cart", "logout":
	case "browse":
		browseCmd.Parse(args)
	case "cart-add":
		cartAddCmd.Parse(args)
		if *productID == 0 {
			fmt.Println("id is required")
			cartAddCmd.PrintDefaults()
			os.Exit(1)
		}
	case "checkout":
		checkoutCmd.Parse(args)
	case "login":
		loginCmd.Parse(args)
		if *email == "" || *password == "" {
			fmt.Println("email and password are required")
			loginCmd.PrintDefaults()
			os.Exit(1)
		}
	case "whoami":
		whoamiCmd.Parse(args)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	switch cmd {
	case "migrate":
		v, err := st.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Schema is at version %d.\n", v)
	case "seed":
		return report(st.SeedFixtures(ctx))
	case "clear":
		return report(st.ClearAll(ctx))
	case "reset":
		return report(st.ResetToFixtures(ctx))
	case "stats":
		stats, err := st.GetDashboardStats(ctx)
		if err != nil {
			return err
		}
		printStats(stats)
	case "watch":
		return watch(ctx, st)
	case "browse":
		if *related != 0 {
			products, err := st.RelatedProducts(ctx, *related, store.DefaultRelatedLimit)
			if err != nil {
				return err
			}
			printProducts(products)
			return nil
		}
		q := store.ProductQuery{Search: *search, Category: *category, Sort: store.ProductSort(*sortBy)}
		if *minPrice >= 0 {
			q.MinPrice = minPrice
		}
		if *maxPrice >= 0 {
			q.MaxPrice = maxPrice
		}
		return browse(ctx, st, q)
	default:
		bridge, err := openBridge(cfg, st)
		if err != nil {
			return err
		}
		switch cmd {
		case "login":
			if err := bridge.Login(ctx, *email, *password); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s).\n", *email, bridge.Role())
		case "whoami":
			return whoami(ctx, bridge, *withDemo)
		case "cart":
			printCart(bridge.Cart())
		case "cart-add":
			p, err := st.GetProductByID(ctx, *productID)
			if err != nil {
				return err
			}
			if p == nil || p.Status != models.ProductActive {
				return fmt.Errorf("product %d is not for sale", *productID)
			}
			if err := bridge.Cart().Add(*p, *quantity); err != nil {
				return err
			}
			printCart(bridge.Cart())
		case "checkout":
			o, err := bridge.Checkout(ctx, form)
			if err != nil {
				return err
			}
			fmt.Printf("Order %s placed: %d item(s), Rp %d, ship to %s.\n", o.OrderNumber, len(o.Items), o.TotalAmount, o.ShippingAddress)
		case "logout":
			if err := bridge.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out.")
		}
	}
	return nil
}

// openStore opens the database, sharing changes over Redis when REDIS_ADDR
// is set.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	opts := []store.Option{store.WithLogger(slog.Default())}

	var (
		client *redis.Client
		feed   *changefeed.RedisFeed
	)
	if cfg.RedisAddr != "" {
		client = changefeed.NewRedisClient(cfg.RedisAddr,
			changefeed.WithPassword(cfg.RedisPassword),
			changefeed.WithDB(cfg.RedisDB),
		)
		var err error
		feed, err = changefeed.NewRedisFeed(ctx, client, cfg.RedisChannel)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		slog.Info("Sharing table changes over Redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
		opts = append(opts, store.WithFeed(feed))
	}

	st, err := store.Open(ctx, cfg.DBPath, opts...)
	if err != nil {
		if feed != nil {
			feed.Close()
			client.Close()
		}
		return nil, nil, err
	}

	return st, func() {
		st.Close()
		if feed != nil {
			feed.Close()
			client.Close()
		}
	}, nil
}

func openBridge(cfg *config.Config, st *store.Store) (*session.Bridge, error) {
	storage, err := session.OpenFileStorage(cfg.SessionPath)
	if err != nil {
		return nil, err
	}
	return session.NewBridge(storage, st, session.WithBridgeLogger(slog.Default())), nil
}

func report(res store.SeedResult) error {
	fmt.Println(res.Message)
	tables := make([]string, 0, len(res.Counts))
	for t := range res.Counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Printf("  %-12s %d\n", t, res.Counts[t])
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

func printStats(s *store.DashboardStats) {
	fmt.Printf("Products:            %d (%d active)\n", s.TotalProducts, s.ActiveProducts)
	fmt.Printf("Categories:          %d\n", s.Categories)
	fmt.Printf("Pending submissions: %d\n", s.PendingSubmissions)
	fmt.Printf("Open orders:         %d\n", s.OpenOrders)
	fmt.Printf("Order value:         Rp %d\n", s.TotalOrderValue)
	fmt.Printf("Delivered revenue:   Rp %d\n", s.DeliveredRevenue)
	if len(s.RecentOrders) > 0 {
		fmt.Println("Recent orders:")
		for _, o := range s.RecentOrders {
			fmt.Printf("  %-16s %-10s Rp %d\n", o.OrderNumber, o.Status, o.TotalAmount)
		}
	}
}

func browse(ctx context.Context, st *store.Store, q store.ProductQuery) error {
	facets, err := st.GetCatalogFacets(ctx)
	if err != nil {
		return err
	}
	products, err := st.SearchProducts(ctx, q)
	if err != nil {
		return err
	}
	fmt.Printf("Showing %d of %d products (Rp %d - Rp %d)\n", len(products), facets.Count, facets.MinPrice, facets.MaxPrice)
	fmt.Printf("Categories: %s\n", strings.Join(facets.Categories, ", "))
	printProducts(products)
	return nil
}

func printProducts(products []models.Product) {
	for _, p := range products {
		fmt.Printf("  %4d  %-36s %-12s Rp %d\n", p.ID, p.Name, p.Category, p.Price)
	}
}

func printCart(cart *session.Cart) {
	items := cart.Items()
	if len(items) == 0 {
		fmt.Println("Cart is empty.")
		return
	}
	for _, it := range items {
		mark := " "
		if it.Selected {
			mark = "x"
		}
		fmt.Printf("  [%s] %4d  %-36s %3d x Rp %d\n", mark, it.Product.ID, it.Product.Name, it.Quantity, it.Product.Price)
	}
	fmt.Printf("Total: %d item(s), Rp %d\n", cart.TotalItems(), cart.TotalPrice())
}

// watch prints the dashboard every time any table changes until interrupted.
func watch(ctx context.Context, st *store.Store) error {
	engine := live.NewEngine(st.Feed())
	defer engine.Close()

	sub := live.Subscribe(engine, st.GetDashboardStats, live.Observer[*store.DashboardStats]{
		OnNext: func(s *store.DashboardStats) {
			fmt.Println("----")
			printStats(s)
		},
		OnError: func(err error) {
			slog.Error("Dashboard query failed", "error", err)
		},
	})
	defer sub.Unsubscribe()

	slog.Info("Watching for changes, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

func whoami(ctx context.Context, bridge *session.Bridge, withDemo bool) error {
	user, err := bridge.ResolveCurrentUser(ctx)
	if errors.Is(err, session.ErrNotLoggedIn) {
		fmt.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}

	p := user.Profile
	fmt.Printf("%s <%s>\n", p.Name, p.Email)
	if user.Role != "" {
		fmt.Printf("Role:         %s\n", user.Role)
	}
	fmt.Printf("Phone:        %s\n", p.Phone)
	fmt.Printf("Address:      %s\n", p.Address)
	fmt.Printf("Member since: %s\n", p.MemberSince)
	fmt.Printf("Dark mode:    %s\n", user.Settings.DarkMode)

	if withDemo {
		if err := bridge.EnsureDemoActivity(ctx, bridge.LoadProfile()); err != nil {
			return err
		}
	}
	return nil
}
