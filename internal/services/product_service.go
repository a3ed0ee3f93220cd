package services

import (
	"errors"
	"fmt"
	"io"
	"log"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/storage"
	"catalog/pkg/rabbitmq"
)

// ErrInvalidDiscount is returned when a discount price is not strictly
// lower than the regular price.
var ErrInvalidDiscount = errors.New("discount price must be lower than price")

// EventPublisher pushes product lifecycle events to the message broker.
// Implemented by rabbitmq.Client; a nil publisher disables events.
type EventPublisher interface {
	PublishProductEvent(event string, productID uint, payload interface{}) error
}

// ImageUpload carries an uploaded image into the service layer.
type ImageUpload struct {
	FileName string
	Content  io.Reader
}

// ProductService handles business logic related to products: the discount
// invariant, the image attachment lifecycle and event publishing.
type ProductService struct {
	repo   repositories.ProductRepository
	images storage.ImageStore
	events EventPublisher
}

// NewProductService creates a new ProductService. events may be nil when no
// broker is configured.
func NewProductService(repo repositories.ProductRepository, images storage.ImageStore, events EventPublisher) *ProductService {
	return &ProductService{
		repo:   repo,
		images: images,
		events: events,
	}
}

// List returns one page of products matching the query plus the total count.
func (s *ProductService) List(query models.ListQuery) (*models.ProductPage, error) {
	items, total, err := s.repo.List(query)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Product{}
	}
	return &models.ProductPage{Items: items, Total: total}, nil
}

// Get retrieves a single product by its ID.
func (s *ProductService) Get(id uint) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// FindByArticle retrieves every product whose article contains the fragment.
func (s *ProductService) FindByArticle(fragment string) ([]models.Product, error) {
	products, err := s.repo.FindByArticle(fragment)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// Create stores the optional image first, then persists the product. The
// database unique constraint on article is the authoritative duplicate
// check; when the insert fails the freshly stored file is removed again so
// no orphan is left behind.
func (s *ProductService) Create(input models.CreateProductInput, image *ImageUpload) (*models.Product, error) {
	var price float64
	if input.Price != nil {
		price = *input.Price
	}
	if input.DiscountPrice != nil && *input.DiscountPrice >= price {
		return nil, ErrInvalidDiscount
	}

	product := &models.Product{
		Name:          input.Name,
		Description:   input.Description,
		Price:         price,
		DiscountPrice: input.DiscountPrice,
		Article:       input.Article,
		IsActive:      true,
	}

	if image != nil {
		path, err := s.images.Store(image.Content, image.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		product.ImageURL = &path
	}

	if err := s.repo.Create(product); err != nil {
		if product.ImageURL != nil {
			s.removeFile(*product.ImageURL)
		}
		return nil, err
	}

	s.publish(rabbitmq.EventProductCreated, product.ID, product)
	return product, nil
}

// Update applies the non-nil fields of the partial input to an existing
// product. A replacement image is stored before the record is saved; the
// previous file is removed only after the save succeeds.
func (s *ProductService) Update(id uint, input models.UpdateProductInput, image *ImageUpload) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.DiscountPrice != nil {
		product.DiscountPrice = input.DiscountPrice
	}
	if input.Article != nil {
		product.Article = *input.Article
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if product.DiscountPrice != nil && *product.DiscountPrice >= product.Price {
		return nil, ErrInvalidDiscount
	}

	var oldImage string
	if image != nil {
		path, err := s.images.Store(image.Content, image.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		if product.ImageURL != nil {
			oldImage = *product.ImageURL
		}
		product.ImageURL = &path
	}

	if err := s.repo.Update(product); err != nil {
		if image != nil && product.ImageURL != nil {
			s.removeFile(*product.ImageURL)
		}
		return nil, err
	}

	if oldImage != "" {
		s.removeFile(oldImage)
	}
	s.publish(rabbitmq.EventProductUpdated, product.ID, product)
	return product, nil
}

// Delete removes a product and, afterwards, its image file if it had one.
func (s *ProductService) Delete(id uint) error {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if product.ImageURL != nil {
		s.removeFile(*product.ImageURL)
	}
	s.publish(rabbitmq.EventProductDeleted, id, nil)
	return nil
}

// RemoveImage clears the image reference of a product and deletes the file.
// Calling it on a product without an image is a no-op.
func (s *ProductService) RemoveImage(id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product.ImageURL == nil {
		return product, nil
	}

	old := *product.ImageURL
	product.ImageURL = nil
	if err := s.repo.Update(product); err != nil {
		return nil, err
	}

	s.removeFile(old)
	s.publish(rabbitmq.EventProductImageRemoved, id, nil)
	return product, nil
}

// removeFile deletes a stored image, logging instead of failing: the record
// is already consistent and a leftover file must not fail the request.
func (s *ProductService) removeFile(publicPath string) {
	if err := s.images.Remove(publicPath); err != nil {
		log.Printf("Failed to remove image %s: %v", publicPath, err)
	}
}

// publish emits a product event best-effort when a broker is configured.
func (s *ProductService) publish(event string, productID uint, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishProductEvent(event, productID, payload); err != nil {
		log.Printf("Failed to publish %s for product %d: %v", event, productID, err)
	}
}
