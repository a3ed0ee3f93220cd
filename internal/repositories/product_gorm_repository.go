package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"catalog/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
// It expects the *gorm.DB to be opened with TranslateError enabled so that
// unique-constraint violations surface as gorm.ErrDuplicatedKey regardless
// of the underlying driver.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// List retrieves one page of products matching the query, plus the total
// number of matches ignoring pagination. Filter clauses are only added for
// bounds that are actually present; an empty query returns everything.
func (r *GORMProductRepository) List(query models.ListQuery) ([]models.Product, int64, error) {
	tx := r.db.Model(&models.Product{})

	if query.Search != "" {
		tx = tx.Where("name LIKE ?", "%"+query.Search+"%")
	}
	if query.MinPrice != nil {
		tx = tx.Where("price >= ?", *query.MinPrice)
	}
	if query.MaxPrice != nil {
		tx = tx.Where("price <= ?", *query.MaxPrice)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	column, ok := models.SortColumn(query.SortBy)
	if !ok {
		// The handler validates sortBy against the allow-list; hitting
		// this means a programming error, not bad user input.
		return nil, 0, fmt.Errorf("unsortable field %q", query.SortBy)
	}
	direction := "ASC"
	if query.SortOrder == models.SortDesc {
		direction = "DESC"
	}

	var products []models.Product
	err := tx.Order(column + " " + direction).
		Offset(query.Offset()).
		Limit(query.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &product, nil
}

// FindByArticle retrieves every product whose article contains the fragment.
func (r *GORMProductRepository) FindByArticle(fragment string) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Where("article LIKE ?", "%"+fragment+"%").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search by article: %w", err)
	}
	return products, nil
}

// Create inserts a new product. The unique index on article is the
// authoritative duplicate check; a violation maps to ErrDuplicateArticle.
func (r *GORMProductRepository) Create(product *models.Product) error {
	if err := r.db.Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("article %q: %w", product.Article, ErrDuplicateArticle)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update persists every field of an existing product, including zero values.
func (r *GORMProductRepository) Update(product *models.Product) error {
	res := r.db.Save(product)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("article %q: %w", product.Article, ErrDuplicateArticle)
		}
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Save does not report ErrRecordNotFound for a missing row,
		// so we check RowsAffected.
		return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a product by its ID.
func (r *GORMProductRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Product{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}
