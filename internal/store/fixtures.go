package store

import (
	"fmt"
	"time"

	"github.com/alextreichler/bekasberkah/internal/models"
)

// FixtureSet is the demo catalog loaded by SeedFixtures.
type FixtureSet struct {
	Categories  []models.Category
	Products    []models.Product
	Submissions []models.Submission
	Orders      []models.Order
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

// Fixtures builds a fresh copy of the demo dataset. Submissions get new
// tracking codes on insert.
func Fixtures() FixtureSet {
	categories := []models.Category{
		{Name: "Elektronik", Description: "Perangkat elektronik seperti smartphone, laptop, dan gadget lainnya", CreatedAt: day(2024, 1, 15)},
		{Name: "Furniture", Description: "Mebel dan perabotan rumah tangga berkualitas", CreatedAt: day(2024, 1, 16)},
		{Name: "Fashion", Description: "Pakaian, sepatu, dan aksesori fashion pria dan wanita", CreatedAt: day(2024, 1, 17)},
		{Name: "Buku", Description: "Buku bekas berbagai genre dan kategori", CreatedAt: day(2024, 1, 18)},
		{Name: "Olahraga", Description: "Peralatan dan perlengkapan olahraga", CreatedAt: day(2024, 1, 19)},
		{Name: "Hobi & Koleksi", Description: "Barang koleksi, mainan, dan perlengkapan hobi", CreatedAt: day(2024, 1, 20)},
		{Name: "Otomotif", Description: "Aksesori dan spare part kendaraan", CreatedAt: day(2024, 1, 21)},
		{Name: "Alat Musik", Description: "Alat musik dan aksesori musik", CreatedAt: day(2024, 1, 22)},
	}

	product := func(name, desc string, price int64, category, image, status string, created time.Time) models.Product {
		return models.Product{
			Name: name, Description: desc, Price: price, Category: category,
			Image: "https://images.unsplash.com/" + image + "?w=400", Status: status,
			CreatedAt: created, UpdatedAt: created,
		}
	}
	products := []models.Product{
		product("iPhone 12 Pro 128GB", "Kondisi mulus 95%, fullset box, baterai health 89%.", 8500000, "Elektronik", "photo-1603891135081-6d0c70a4c384", models.ProductActive, day(2024, 9, 15)),
		product("Samsung Galaxy S21 256GB", "Phantom Gray, kondisi 90%, lengkap dengan box.", 6200000, "Elektronik", "photo-1610945415295-d9bbf067e59c", models.ProductActive, day(2024, 9, 18)),
		product("MacBook Air M1 2020", "8GB/256GB Space Gray, garansi resmi aktif.", 11500000, "Elektronik", "photo-1517336714731-489689fd1ca8", models.ProductActive, day(2024, 9, 20)),
		product("Sony WH-1000XM4", "Headphone noise cancelling, kondisi 95%.", 3200000, "Elektronik", "photo-1546435770-a3e426bf472b", models.ProductActive, day(2024, 10, 1)),
		product("Kindle Paperwhite 11th Gen", "16GB, layar 6.8 inci, tanpa iklan.", 1850000, "Elektronik", "photo-1592496431122-2349e0fbc666", models.ProductInactive, day(2024, 10, 4)),
		product("Sofa Minimalis 3 Dudukan", "Kain abu-abu, rangka kayu solid.", 2750000, "Furniture", "photo-1555041469-a586c61ea9bc", models.ProductActive, day(2024, 9, 10)),
		product("Lemari Pakaian 3 Pintu Jati", "Kayu jati asli, cermin di pintu tengah.", 5500000, "Furniture", "photo-1595428774223-ef52624120d2", models.ProductActive, day(2024, 9, 12)),
		product("Uniqlo Down Jacket Hitam Size L", "Dipakai dua kali, hangat dan ringan.", 480000, "Fashion", "photo-1539533018447-63fcce2678e3", models.ProductActive, day(2024, 9, 22)),
		product("Sepatu Nike Air Max 270", "Size 42, sol masih tebal.", 950000, "Fashion", "photo-1542291026-7eec264c27ff", models.ProductActive, day(2024, 9, 25)),
		product("Novel Laskar Pelangi Set", "Tetralogi lengkap, kondisi terawat.", 250000, "Buku", "photo-1512820790803-83ca734da794", models.ProductActive, day(2024, 9, 28)),
		product("Dumbbell Set 20kg (2x10kg)", "Besi berlapis karet, lengkap dengan rak.", 850000, "Olahraga", "photo-1583454110551-21f2fa2afe61", models.ProductActive, day(2024, 10, 2)),
		product("Gundam PG Unicorn with LED", "Rakitan rapi, kit LED original.", 3500000, "Hobi & Koleksi", "photo-1608889825103-eb5ed706fc64", models.ProductActive, day(2024, 10, 6)),
		product("Helm KYT Full Face", "Size M, visor bening dan gelap.", 650000, "Otomotif", "photo-1591216105236-5ba1b2a3c1a0", models.ProductActive, day(2024, 10, 7)),
		product("Gitar Akustik Yamaha F310", "Senar baru, bonus softcase.", 1200000, "Alat Musik", "photo-1510915361894-db8b60106cb1", models.ProductActive, day(2024, 10, 8)),
	}

	submission := func(seller, email, phone, city, name, desc, category, condition string, price int64, status, notes string, created time.Time) models.Submission {
		updated := created
		if status != models.SubmissionPending {
			updated = created.Add(48 * time.Hour)
		}
		return models.Submission{
			SellerName: seller, Email: email, Phone: phone, SellerCity: city,
			SellerAddress: "Jl. Merdeka No. 10, " + city, PreferredContact: "whatsapp",
			ProductName: name, ProductDescription: desc, Category: category, Condition: condition,
			AskingPrice: price, ProductPhotos: []string{"photo-1.jpg", "photo-2.jpg"},
			Status: status, Notes: notes, CreatedAt: created, UpdatedAt: updated,
		}
	}
	submissions := []models.Submission{
		submission("Budi Santoso", "budi.santoso@gmail.com", "0812-3456-7890", "Jakarta", "PlayStation 4 Slim 1TB", "Dua stik, tiga game fisik.", "Elektronik", models.ConditionGood, 3500000, models.SubmissionPending, "", day(2024, 10, 10)),
		submission("Siti Rahayu", "siti.rahayu@yahoo.com", "0813-9876-5432", "Bandung", "Meja Kerja Kayu Jati", "Ukuran 120x60, laci dua.", "Furniture", models.ConditionExcellent, 1800000, models.SubmissionApproved, "Disetujui, jadwal foto katalog minggu depan.", day(2024, 10, 2)),
		submission("Andi Wijaya", "andi.w@outlook.com", "0857-1122-3344", "Surabaya", "Jaket Kulit Vintage", "Kulit asli, ada sedikit retak di kerah.", "Fashion", models.ConditionFair, 600000, models.SubmissionRejected, "Kondisi tidak memenuhi standar kurasi.", day(2024, 9, 28)),
		submission("Dewi Lestari", "dewi.lestari@gmail.com", "0821-5566-7788", "Yogyakarta", "Biola Yamaha V5", "Ukuran 4/4, lengkap dengan case.", "Alat Musik", models.ConditionGood, 2200000, models.SubmissionPending, "", day(2024, 10, 12)),
	}

	legacy := func(n int, name, email string, total int64, status, items string, created time.Time) models.Order {
		return models.Order{
			OrderNumber: fmt.Sprintf("ORD-%s-%03d", created.Format("20060102"), n),
			CustomerName: name, CustomerEmail: email, TotalAmount: total, Status: status,
			ItemsDescription: items, CreatedAt: created, UpdatedAt: created.Add(72 * time.Hour),
		}
	}
	orders := []models.Order{
		legacy(1, "Wawan Setiawan", "wawan.s@gmail.com", 1850000, models.OrderDelivered, "Kindle Paperwhite 11th Gen 16GB", day(2024, 10, 4)),
		legacy(2, "Yuni Astuti", "yuni.a@yahoo.com", 5500000, models.OrderDelivered, "Lemari Pakaian 3 Pintu Jati", day(2024, 10, 2)),
		legacy(3, "Zainal Abidin", "zainal.a@gmail.com", 850000, models.OrderShipped, "Dumbbell Set 20kg (2x10kg)", day(2024, 10, 9)),
		{
			OrderNumber: "ORD-20241012-004", CustomerName: "Ayu Lestari", CustomerEmail: "ayu.lestari@outlook.com",
			CustomerPhone: "0811-2233-4455", ShippingAddress: "Jl. Diponegoro No. 7, Malang",
			Items: []models.OrderItem{
				{ProductName: "Uniqlo Down Jacket Hitam Size L", Price: 480000, Quantity: 1},
				{ProductName: "Sepatu Nike Air Max 270", Price: 950000, Quantity: 1},
			},
			PaymentMethod: "Transfer Bank", Status: models.OrderProcessing,
			CreatedAt: day(2024, 10, 12), UpdatedAt: day(2024, 10, 13),
		},
		{
			OrderNumber: "ORD-20241013-005", CustomerName: "Bima Sakti", CustomerEmail: "bima.s@gmail.com",
			CustomerPhone: "0878-9900-1122", ShippingAddress: "Jl. Sudirman No. 88, Jakarta",
			Items: []models.OrderItem{
				{ProductName: "Gundam PG Unicorn with LED", Price: 3500000, Quantity: 1},
			},
			PaymentMethod: "COD", Status: models.OrderPending,
			CreatedAt: day(2024, 10, 13), UpdatedAt: day(2024, 10, 13),
		},
	}

	return FixtureSet{Categories: categories, Products: products, Submissions: submissions, Orders: orders}
}
