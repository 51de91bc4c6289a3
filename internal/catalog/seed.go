package catalog

import (
	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// SeedProducts is the launch collection.
func SeedProducts() []model.Product {
	return []model.Product{
		{
			ID:          1,
			Name:        "Dark Chocolate Truffles",
			Description: "Luxurious dark chocolate truffles with a smooth ganache center",
			Price:       2499,
			ImageURL:    "https://images.unsplash.com/photo-1481391319762-47dff72954d9?auto=format&fit=crop&w=1165&q=80",
			Category:    "truffles",
			Type:        model.ChocolateDark,
			Rating:      5,
			Featured:    true,
			Bestseller:  true,
			WeightGrams: 100,
			Flavors:     "Rich, bitter, smooth",
			Ingredients: "Cocoa mass, cocoa butter, sugar, vanilla",
			ShelfLife:   "3 weeks",
			Vegetarian:  true,
		},
		{
			ID:          2,
			Name:        "Milk Chocolate Bar",
			Description: "Creamy milk chocolate bar with hints of caramel",
			Price:       1299,
			ImageURL:    "https://images.unsplash.com/photo-1614088685112-0a760b71a3c8?auto=format&fit=crop&w=1287&q=80",
			Category:    "bars",
			Type:        model.ChocolateMilk,
			Rating:      5,
			Bestseller:  true,
			WeightGrams: 85,
			Flavors:     "Sweet, creamy, caramel",
			Ingredients: "Milk solids, cocoa butter, sugar, cocoa mass, vanilla",
			ShelfLife:   "6 months",
			Vegetarian:  true,
		},
		{
			ID:          3,
			Name:        "White Chocolate Raspberry",
			Description: "Sweet white chocolate with tart raspberry pieces",
			Price:       1499,
			ImageURL:    "https://images.unsplash.com/photo-1599599810769-bcde5a160d32?auto=format&fit=crop&w=1170&q=80",
			Category:    "bars",
			Type:        model.ChocolateWhite,
			Rating:      5,
			Featured:    true,
			WeightGrams: 90,
			Flavors:     "Sweet, creamy, tart",
			Ingredients: "Cocoa butter, sugar, milk solids, freeze-dried raspberries, vanilla",
			ShelfLife:   "4 months",
			Vegetarian:  true,
		},
		{
			ID:          4,
			Name:        "Hazelnut Pralines",
			Description: "Smooth milk chocolate filled with creamy hazelnut paste",
			Price:       2299,
			ImageURL:    "https://images.unsplash.com/photo-1605533640045-e831413503d9?auto=format&fit=crop&w=1170&q=80",
			Category:    "pralines",
			Type:        model.ChocolateMilk,
			Rating:      5,
			Bestseller:  true,
			WeightGrams: 120,
			Flavors:     "Nutty, sweet, smooth",
			Ingredients: "Milk chocolate, hazelnuts, sugar, vanilla",
			ShelfLife:   "2 weeks",
			Vegetarian:  true,
		},
		{
			ID:          5,
			Name:        "Sea Salt Caramel Chocolate",
			Description: "Dark chocolate filled with salted caramel",
			Price:       1899,
			ImageURL:    "https://images.unsplash.com/photo-1582176604856-e824b4736522?auto=format&fit=crop&w=1261&q=80",
			Category:    "filled",
			Type:        model.ChocolateDark,
			Rating:      5,
			Featured:    true,
			WeightGrams: 110,
			Flavors:     "Sweet, salty, bitter",
			Ingredients: "Dark chocolate, butter, cream, sugar, sea salt",
			ShelfLife:   "2 weeks",
			Vegetarian:  true,
		},
		{
			ID:          6,
			Name:        "Mint Dark Chocolate Thins",
			Description: "Thin dark chocolate pieces with refreshing mint",
			Price:       1699,
			ImageURL:    "https://images.unsplash.com/photo-1548907040-4baa42d10919?auto=format&fit=crop&w=1287&q=80",
			Category:    "thins",
			Type:        model.ChocolateDark,
			Rating:      5,
			WeightGrams: 75,
			Flavors:     "Minty, refreshing, bitter",
			Ingredients: "Dark chocolate, peppermint oil, sugar",
			ShelfLife:   "4 months",
			Vegetarian:  true,
		},
		{
			ID:          7,
			Name:        "Cherry Liqueur Chocolate",
			Description: "Dark chocolate with cherry liqueur filling",
			Price:       2499,
			ImageURL:    "https://images.unsplash.com/photo-1511381939415-e44015466834?auto=format&fit=crop&w=1272&q=80",
			Category:    "filled",
			Type:        model.ChocolateDark,
			Rating:      5,
			Featured:    true,
			WeightGrams: 150,
			Flavors:     "Cherry, rich, boozy",
			Ingredients: "Dark chocolate, cherries, sugar, cherry liqueur",
			ShelfLife:   "3 weeks",
			Vegetarian:  true,
		},
		{
			ID:          8,
			Name:        "Orange Blossom Chocolate",
			Description: "Milk chocolate infused with orange essence",
			Price:       1799,
			ImageURL:    "https://images.unsplash.com/photo-1621939514649-280e2ee25f60?auto=format&fit=crop&w=1170&q=80",
			Category:    "bars",
			Type:        model.ChocolateMilk,
			Rating:      5,
			Bestseller:  true,
			WeightGrams: 90,
			Flavors:     "Citrusy, floral, sweet",
			Ingredients: "Milk chocolate, orange oil, orange zest, sugar",
			ShelfLife:   "4 months",
			Vegetarian:  true,
		},
	}
}
