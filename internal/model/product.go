package model

import (
	"fmt"
)

// ChocolateType is the base chocolate of a product.
type ChocolateType string

const (
	ChocolateDark  ChocolateType = "dark"
	ChocolateMilk  ChocolateType = "milk"
	ChocolateWhite ChocolateType = "white"
)

// Product is a catalog entry. Price is in paise.
type Product struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       int64         `json:"price"`
	ImageURL    string        `json:"imageUrl"`
	Category    string        `json:"category"`
	Type        ChocolateType `json:"type"`
	Rating      float64       `json:"rating"`
	Featured    bool          `json:"featured"`
	Bestseller  bool          `json:"bestseller"`
	WeightGrams int           `json:"weightGrams"`
	Flavors     string        `json:"flavors"`
	Ingredients string        `json:"ingredients"`
	ShelfLife   string        `json:"shelfLife"`
	Vegetarian  bool          `json:"vegetarian"`
}

// DisplayPrice renders the price in rupees with two decimals, e.g. "24.99 INR".
func (p Product) DisplayPrice() string {
	return fmt.Sprintf("%d.%02d INR", p.Price/100, p.Price%100)
}

// Recommendation is a scored suggestion produced for a set of signals.
type Recommendation struct {
	ProductID int64  `json:"productId"`
	Score     int    `json:"score"`
	Reason    string `json:"reason"`
}

// RecommendationRequest carries the optional shopper signals.
type RecommendationRequest struct {
	Preferences string `json:"preferences,omitempty"`
	Mood        string `json:"mood,omitempty"`
	Occasion    string `json:"occasion,omitempty"`
}

// RecommendationResponse is the body of the recommendation endpoint.
type RecommendationResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}
