package repositories

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog/internal/models"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// It mirrors the semantics of the GORM implementation closely enough to back
// tests and local runs without a database.
type MockProductRepository struct {
	products map[uint]models.Product
	nextID   uint
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[uint]models.Product),
		nextID:   1,
	}
}

// List filters, sorts and paginates the held products.
func (r *MockProductRepository) List(query models.ListQuery) ([]models.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if query.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(query.Search)) {
			continue
		}
		if query.MinPrice != nil && p.Price < *query.MinPrice {
			continue
		}
		if query.MaxPrice != nil && p.Price > *query.MaxPrice {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, query.SortBy, query.SortOrder == models.SortDesc)

	total := int64(len(matched))
	start := query.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func sortProducts(products []models.Product, field string, desc bool) {
	less := func(a, b models.Product) bool { return a.Name < b.Name }
	switch field {
	case "id":
		less = func(a, b models.Product) bool { return a.ID < b.ID }
	case "price":
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	case "discountPrice":
		// NULLs sort before values, matching ascending order in SQL.
		less = func(a, b models.Product) bool {
			switch {
			case a.DiscountPrice == nil:
				return b.DiscountPrice != nil
			case b.DiscountPrice == nil:
				return false
			default:
				return *a.DiscountPrice < *b.DiscountPrice
			}
		}
	case "isActive":
		less = func(a, b models.Product) bool { return !a.IsActive && b.IsActive }
	case "article":
		less = func(a, b models.Product) bool { return a.Article < b.Article }
	case "createdAt":
		less = func(a, b models.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updatedAt":
		less = func(a, b models.Product) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(id uint) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &product, nil
}

// FindByArticle returns every product whose article contains the fragment.
func (r *MockProductRepository) FindByArticle(fragment string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.Product
	for _, p := range r.products {
		if strings.Contains(p.Article, fragment) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Create adds a new product, rejecting duplicate articles.
func (r *MockProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.products {
		if p.Article == product.Article {
			return fmt.Errorf("article %q: %w", product.Article, ErrDuplicateArticle)
		}
	}
	product.ID = r.nextID
	r.nextID++
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
	}
	for id, p := range r.products {
		if id != product.ID && p.Article == product.Article {
			return fmt.Errorf("article %q: %w", product.Article, ErrDuplicateArticle)
		}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	delete(r.products, id)
	return nil
}
