package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

type productRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	Price       int64  `gorm:"not null"`
	ImageURL    string `gorm:"column:image_url;type:text"`
	Category    string `gorm:"size:64;index"`
	Type        string `gorm:"size:16;index"`
	Rating      float64
	Featured    bool
	Bestseller  bool
	WeightGrams int
	Flavors     string `gorm:"type:text"`
	Ingredients string `gorm:"type:text"`
	ShelfLife   string `gorm:"size:64"`
	Vegetarian  bool
}

func (productRecord) TableName() string { return "products" }

func recordFromProduct(p model.Product) productRecord {
	return productRecord{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Type:        string(p.Type),
		Rating:      p.Rating,
		Featured:    p.Featured,
		Bestseller:  p.Bestseller,
		WeightGrams: p.WeightGrams,
		Flavors:     p.Flavors,
		Ingredients: p.Ingredients,
		ShelfLife:   p.ShelfLife,
		Vegetarian:  p.Vegetarian,
	}
}

func (r productRecord) toModel() model.Product {
	return model.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		ImageURL:    r.ImageURL,
		Category:    r.Category,
		Type:        model.ChocolateType(r.Type),
		Rating:      r.Rating,
		Featured:    r.Featured,
		Bestseller:  r.Bestseller,
		WeightGrams: r.WeightGrams,
		Flavors:     r.Flavors,
		Ingredients: r.Ingredients,
		ShelfLife:   r.ShelfLife,
		Vegetarian:  r.Vegetarian,
	}
}

// SQLCatalog reads products from the storefront's products table.
type SQLCatalog struct {
	db *gorm.DB
}

// NewSQLCatalog migrates the products table.
func NewSQLCatalog(db *gorm.DB) (*SQLCatalog, error) {
	if err := db.AutoMigrate(&productRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate products: %w", err)
	}
	return &SQLCatalog{db: db}, nil
}

// SeedIfEmpty inserts products when the table has no rows.
func (c *SQLCatalog) SeedIfEmpty(ctx context.Context, products []model.Product) (int, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&productRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 || len(products) == 0 {
		return 0, nil
	}

	records := make([]productRecord, len(products))
	for i, p := range products {
		records[i] = recordFromProduct(p)
	}
	if err := c.db.WithContext(ctx).Create(&records).Error; err != nil {
		return 0, fmt.Errorf("failed to seed products: %w", err)
	}
	return len(records), nil
}

func (c *SQLCatalog) List(ctx context.Context) ([]model.Product, error) {
	var records []productRecord
	if err := c.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	out := make([]model.Product, len(records))
	for i, r := range records {
		out[i] = r.toModel()
	}
	return out, nil
}
