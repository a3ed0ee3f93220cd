package models

import "time"

// Product represents a single catalog item.
type Product struct {
	ID            uint     `json:"id" gorm:"primaryKey"`
	Name          string   `json:"name" gorm:"type:varchar(100);not null" validate:"required,max=100"`
	Description   string   `json:"description" gorm:"type:text;not null" validate:"required"`
	Price         float64  `json:"price" gorm:"type:decimal(10,2);not null" validate:"gte=0"`
	DiscountPrice *float64 `json:"discountPrice,omitempty" gorm:"type:decimal(10,2)" validate:"omitempty,gte=0"`
	Article       string   `json:"article" gorm:"type:varchar(50);uniqueIndex;not null" validate:"required,max=50"`
	// ImageURL points at a file managed by the image store; it is only
	// ever set through an upload and cleared through the image endpoint.
	ImageURL  *string   `json:"imageUrl,omitempty" gorm:"type:text"`
	IsActive  bool      `json:"isActive" gorm:"default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateProductInput is the body of POST /products. It arrives either as
// JSON or as the field part of a multipart form carrying an image.
type CreateProductInput struct {
	Name          string   `json:"name" form:"name" validate:"required,max=100"`
	Description   string   `json:"description" form:"description" validate:"required"`
	Price         *float64 `json:"price" form:"price" validate:"required,gte=0"`
	DiscountPrice *float64 `json:"discountPrice" form:"discountPrice" validate:"omitempty,gte=0"`
	Article       string   `json:"article" form:"article" validate:"required,max=50"`
}

// UpdateProductInput is the partial body of PATCH /products/:id.
// Nil fields are left untouched.
type UpdateProductInput struct {
	Name          *string  `json:"name" form:"name" validate:"omitempty,max=100"`
	Description   *string  `json:"description" form:"description"`
	Price         *float64 `json:"price" form:"price" validate:"omitempty,gte=0"`
	DiscountPrice *float64 `json:"discountPrice" form:"discountPrice" validate:"omitempty,gte=0"`
	Article       *string  `json:"article" form:"article" validate:"omitempty,max=50"`
	IsActive      *bool    `json:"isActive" form:"isActive"`
}

// Sort directions accepted by the listing endpoint.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// sortColumns maps the sortable API field names to storage columns.
// Anything outside this map is rejected before it reaches the database.
var sortColumns = map[string]string{
	"id":            "id",
	"name":          "name",
	"price":         "price",
	"discountPrice": "discount_price",
	"article":       "article",
	"isActive":      "is_active",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
}

// SortColumn resolves an API sort field to its storage column.
func SortColumn(field string) (string, bool) {
	col, ok := sortColumns[field]
	return col, ok
}

// ListQuery captures the filter/sort/page selection of GET /products.
// Absent price bounds stay nil so the matching clause is omitted entirely.
type ListQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	MinPrice  *float64
	MaxPrice  *float64
	Search    string
}

// DefaultListQuery returns the selection used when no parameters are given.
func DefaultListQuery() ListQuery {
	return ListQuery{
		Page:      1,
		Limit:     10,
		SortBy:    "name",
		SortOrder: SortAsc,
	}
}

// Offset converts the page selection into a row offset.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ProductPage is the envelope returned by the listing endpoint. Total counts
// every record matching the filter, ignoring pagination.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}
