package handlers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"catalog/internal/models"
	"catalog/internal/services"
)

// maxImageSize bounds uploaded images to 5 MiB.
const maxImageSize = 5 * 1024 * 1024

// allowedImageExts are the accepted image file extensions.
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var validate = validator.New()

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListProducts)
	productRoutes.Get("/search/:article", h.HandleSearchByArticle)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Patch("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id/image", h.HandleRemoveImage)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleListProducts returns a filtered, sorted page of products together
// with the total match count.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	query, err := parseListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(query)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// HandleGetProduct retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	product, err := h.service.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleSearchByArticle returns every product whose article contains the
// given fragment. An empty result is a 200 with an empty list.
func (h *ProductHandler) HandleSearchByArticle(c *fiber.Ctx) error {
	products, err := h.service.FindByArticle(c.Params("article"))
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// HandleCreateProduct creates a new product from a JSON or multipart body
// with an optional image file part.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var input models.CreateProductInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&input); err != nil {
		return err
	}

	image, closeImage, err := imageFromRequest(c)
	if err != nil {
		return err
	}
	defer closeImage()

	product, err := h.service.Create(input, image)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct applies a partial update, optionally replacing the
// image under the same constraints as create.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var input models.UpdateProductInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&input); err != nil {
		return err
	}

	image, closeImage, err := imageFromRequest(c)
	if err != nil {
		return err
	}
	defer closeImage()

	product, err := h.service.Update(id, input, image)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product; success returns no content.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleRemoveImage clears the image reference and returns the updated
// record. Idempotent for products without an image.
func (h *ProductHandler) HandleRemoveImage(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	product, err := h.service.RemoveImage(id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}
	return uint(id), nil
}

// parseListQuery reads the filter/sort/page parameters, applying defaults
// and rejecting malformed numbers and unknown sort fields.
func parseListQuery(c *fiber.Ctx) (models.ListQuery, error) {
	query := models.DefaultListQuery()

	var err error
	if query.Page, err = positiveIntParam(c, "page", query.Page); err != nil {
		return query, err
	}
	if query.Limit, err = positiveIntParam(c, "limit", query.Limit); err != nil {
		return query, err
	}

	if sortBy := c.Query("sortBy"); sortBy != "" {
		if _, ok := models.SortColumn(sortBy); !ok {
			return query, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("cannot sort by %q", sortBy))
		}
		query.SortBy = sortBy
	}
	if sortOrder := strings.ToUpper(c.Query("sortOrder")); sortOrder != "" {
		if sortOrder != models.SortAsc && sortOrder != models.SortDesc {
			return query, fiber.NewError(fiber.StatusBadRequest, "sortOrder must be ASC or DESC")
		}
		query.SortOrder = sortOrder
	}

	if query.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		return query, err
	}
	if query.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		return query, err
	}
	query.Search = c.Query("search")
	return query, nil
}

func positiveIntParam(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
	}
	return v, nil
}

func priceParam(c *fiber.Ctx, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a non-negative number", name))
	}
	return &v, nil
}

// imageFromRequest extracts and validates the optional image file part.
// The returned closer is always safe to defer.
func imageFromRequest(c *fiber.Ctx) (*services.ImageUpload, func(), error) {
	noop := func() {}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		// No multipart body or no image part; the upload is optional.
		return nil, noop, nil
	}

	if fileHeader.Size > maxImageSize {
		return nil, noop, fiber.NewError(fiber.StatusBadRequest, "image exceeds the 5 MiB limit")
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExts[ext] {
		return nil, noop, fiber.NewError(fiber.StatusBadRequest, "only jpg, jpeg, png and gif images are allowed")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	upload := &services.ImageUpload{
		FileName: fileHeader.Filename,
		Content:  file,
	}
	return upload, func() { file.Close() }, nil
}
