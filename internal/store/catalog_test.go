package store

import (
	"github.com/alextreichler/bekasberkah/internal/models"
)

func productNames(products []models.Product) []string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names
}

// seedCatalog creates products oldest first.
func (s *StoreTestSuite) seedCatalog() map[string]*models.Product {
	byName := map[string]*models.Product{}
	for _, p := range []models.Product{
		{Name: "Sepeda Lipat Polygon", Description: "Rangka aluminium", Category: "Olahraga", Price: 1_800_000},
		{Name: "Raket Yonex", Description: "Senar baru", Category: "Olahraga", Price: 450_000},
		{Name: "iPhone 11", Description: "Baterai 85%", Category: "Elektronik", Price: 4_200_000},
		{Name: "Kamera Canon", Description: "Lengkap dengan tas", Category: "Elektronik", Price: 3_100_000},
		{Name: "bola basket molten", Description: "Ukuran 7", Category: "Olahraga", Price: 150_000},
		{Name: "Matras Yoga", Description: "Tebal 8mm", Category: "Olahraga", Price: 120_000, Status: models.ProductInactive},
		{Name: "Dumbel 5kg", Description: "Sepasang", Category: "Olahraga", Price: 200_000},
		{Name: "Helm Sepeda", Description: "Ukuran M", Category: "Olahraga", Price: 175_000},
		{Name: "Meja Lipat", Description: "Kayu jati", Category: "Furniture", Price: 350_000},
	} {
		p := p
		s.Require().NoError(s.st.CreateProduct(s.ctx, &p))
		byName[p.Name] = &p
	}
	return byName
}

func (s *StoreTestSuite) TestSearchProductsDefaultsToActiveNewest() {
	s.seedCatalog()

	all, err := s.st.SearchProducts(s.ctx, ProductQuery{})
	s.Require().NoError(err)
	s.Require().Len(all, 8)
	s.Require().Equal("Meja Lipat", all[0].Name)
	s.Require().Equal("Sepeda Lipat Polygon", all[7].Name)
	s.Require().NotContains(productNames(all), "Matras Yoga")
}

func (s *StoreTestSuite) TestSearchProductsFilters() {
	s.seedCatalog()

	// Name, description and category all count, case-insensitively.
	got, err := s.st.SearchProducts(s.ctx, ProductQuery{Search: "  LIPAT "})
	s.Require().NoError(err)
	s.Require().ElementsMatch([]string{"Sepeda Lipat Polygon", "Meja Lipat"}, productNames(got))

	got, err = s.st.SearchProducts(s.ctx, ProductQuery{Search: "tas"})
	s.Require().NoError(err)
	s.Require().Equal([]string{"Kamera Canon"}, productNames(got))

	got, err = s.st.SearchProducts(s.ctx, ProductQuery{Search: "elektro"})
	s.Require().NoError(err)
	s.Require().Len(got, 2)

	got, err = s.st.SearchProducts(s.ctx, ProductQuery{Category: "Olahraga", MinPrice: ptr(int64(160_000)), MaxPrice: ptr(int64(500_000))})
	s.Require().NoError(err)
	s.Require().ElementsMatch([]string{"Raket Yonex", "Dumbel 5kg", "Helm Sepeda"}, productNames(got))

	got, err = s.st.SearchProducts(s.ctx, ProductQuery{Category: "all", MaxPrice: ptr(int64(150_000))})
	s.Require().NoError(err)
	s.Require().Equal([]string{"bola basket molten"}, productNames(got))

	got, err = s.st.SearchProducts(s.ctx, ProductQuery{Search: "tidak ada"})
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Require().Empty(got)
}

func (s *StoreTestSuite) TestSearchProductsSorts() {
	s.seedCatalog()
	q := ProductQuery{Category: "Elektronik"}

	q.Sort = SortPriceAsc
	got, err := s.st.SearchProducts(s.ctx, q)
	s.Require().NoError(err)
	s.Require().Equal([]string{"Kamera Canon", "iPhone 11"}, productNames(got))

	q.Sort = SortPriceDesc
	got, err = s.st.SearchProducts(s.ctx, q)
	s.Require().NoError(err)
	s.Require().Equal([]string{"iPhone 11", "Kamera Canon"}, productNames(got))

	q = ProductQuery{Search: "b", Sort: SortNameAsc}
	got, err = s.st.SearchProducts(s.ctx, q)
	s.Require().NoError(err)
	s.Require().Equal([]string{"bola basket molten", "Dumbel 5kg", "iPhone 11", "Raket Yonex"}, productNames(got))

	q.Sort = SortNameDesc
	got, err = s.st.SearchProducts(s.ctx, q)
	s.Require().NoError(err)
	s.Require().Equal([]string{"Raket Yonex", "iPhone 11", "Dumbel 5kg", "bola basket molten"}, productNames(got))

	_, err = s.st.SearchProducts(s.ctx, ProductQuery{Sort: "popular"})
	s.Require().ErrorContains(err, "unknown product sort")
}

func (s *StoreTestSuite) TestRelatedProducts() {
	byName := s.seedCatalog()
	bike := byName["Sepeda Lipat Polygon"]

	related, err := s.st.RelatedProducts(s.ctx, bike.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(related, DefaultRelatedLimit)
	s.Require().Equal([]string{"Helm Sepeda", "Dumbel 5kg", "bola basket molten", "Raket Yonex"}, productNames(related))

	related, err = s.st.RelatedProducts(s.ctx, bike.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(related, 2)

	related, err = s.st.RelatedProducts(s.ctx, byName["Meja Lipat"].ID, 4)
	s.Require().NoError(err)
	s.Require().Empty(related)

	related, err = s.st.RelatedProducts(s.ctx, 9999, 4)
	s.Require().NoError(err)
	s.Require().Empty(related)
}

func (s *StoreTestSuite) TestCatalogFacets() {
	empty, err := s.st.GetCatalogFacets(s.ctx)
	s.Require().NoError(err)
	s.Require().Zero(empty.Count)
	s.Require().Empty(empty.Categories)

	s.seedCatalog()
	f, err := s.st.GetCatalogFacets(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(8, f.Count)
	s.Require().Equal([]string{"Elektronik", "Furniture", "Olahraga"}, f.Categories)
	s.Require().Equal(int64(150_000), f.MinPrice)
	s.Require().Equal(int64(4_200_000), f.MaxPrice)
}
