package repositories

import (
	"errors"

	"catalog/internal/models"
)

// Sentinel errors shared by all repository implementations. Callers match
// them with errors.Is; the HTTP layer maps them to status codes.
var (
	ErrNotFound         = errors.New("product not found")
	ErrDuplicateArticle = errors.New("article already exists")
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(query models.ListQuery) ([]models.Product, int64, error)
	GetByID(id uint) (*models.Product, error)
	FindByArticle(fragment string) ([]models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id uint) error
}
