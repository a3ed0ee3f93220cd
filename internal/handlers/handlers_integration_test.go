package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/storage"
)

// setupApp boots a Fiber app over an in-memory SQLite database and a
// temporary upload directory.
func setupApp(t *testing.T) (*fiber.App, *repositories.GORMProductRepository, string) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("failed to auto-migrate database: %v", err)
	}

	uploadDir := t.TempDir()
	productRepo := repositories.NewGORMProductRepository(db)
	imageStore := storage.NewDiskImageStore(uploadDir)
	productService := services.NewProductService(productRepo, imageStore, nil)
	productHandler := handlers.NewProductHandler(productService)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    8 * 1024 * 1024,
	})
	api := app.Group("/api")
	productHandler.RegisterRoutes(api)

	return app, productRepo, uploadDir
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, imageName string, imageBytes []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		assert.NoError(t, writer.WriteField(name, value))
	}
	if imageName != "" {
		part, err := writer.CreateFormFile("image", imageName)
		assert.NoError(t, err)
		_, err = part.Write(imageBytes)
		assert.NoError(t, err)
	}
	assert.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeProduct(t *testing.T, resp *http.Response) models.Product {
	t.Helper()
	var product models.Product
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&product))
	resp.Body.Close()
	return product
}

func seedProducts(t *testing.T, repo repositories.ProductRepository, count int) {
	t.Helper()
	for i := 1; i <= count; i++ {
		p := models.Product{
			Name:        fmt.Sprintf("Product %02d", i),
			Description: "seeded",
			Price:       float64(i * 5),
			Article:     fmt.Sprintf("ART-%d", i),
			IsActive:    true,
		}
		if err := repo.Create(&p); err != nil {
			t.Fatalf("failed to seed product %d: %v", i, err)
		}
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	app, _, _ := setupApp(t)

	body := map[string]interface{}{
		"name":        "Phone X",
		"description": "A very good phone",
		"price":       999.99,
		"article":     "ART-100",
	}
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", body), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var raw map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	resp.Body.Close()
	assert.Equal(t, "Phone X", raw["name"])
	assert.NotContains(t, raw, "imageUrl", "no upload means no image reference")
	id := uint(raw["id"].(float64))
	assert.NotZero(t, id)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeProduct(t, resp)
	assert.Equal(t, "Phone X", fetched.Name)
	assert.Equal(t, "A very good phone", fetched.Description)
	assert.Equal(t, 999.99, fetched.Price)
	assert.Equal(t, "ART-100", fetched.Article)
	assert.True(t, fetched.IsActive)
	assert.Nil(t, fetched.ImageURL)
}

func TestCreateWithImageWritesFile(t *testing.T) {
	app, _, uploadDir := setupApp(t)

	imageBytes := []byte("\x89PNG fake image payload")
	fields := map[string]string{
		"name":        "Camera",
		"description": "Takes pictures",
		"price":       "450",
		"article":     "ART-CAM",
	}
	resp, err := app.Test(multipartRequest(t, http.MethodPost, "/api/products", fields, "shot.png", imageBytes), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	product := decodeProduct(t, resp)
	assert.NotNil(t, product.ImageURL)
	assert.Contains(t, *product.ImageURL, storage.PublicPrefix+"/")

	onDisk := filepath.Join(uploadDir, filepath.Base(*product.ImageURL))
	data, err := os.ReadFile(onDisk)
	assert.NoError(t, err)
	assert.Equal(t, imageBytes, data, "stored file must hold the exact uploaded bytes")
}

func TestCreateDuplicateArticleConflict(t *testing.T) {
	app, _, _ := setupApp(t)

	body := map[string]interface{}{
		"name":        "Original",
		"description": "First in",
		"price":       10,
		"article":     "ART-DUP",
	}
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", body), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeProduct(t, resp)

	body["name"] = "Impostor"
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/products", body), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The first record is unmodified.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil), -1)
	assert.NoError(t, err)
	kept := decodeProduct(t, resp)
	assert.Equal(t, "Original", kept.Name)
}

func TestCreateValidationFailure(t *testing.T) {
	app, _, _ := setupApp(t)

	body := map[string]interface{}{
		"description": "No name given",
		"price":       10,
		"article":     "ART-NONAME",
	}
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", body), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateWithoutPriceIsRejected(t *testing.T) {
	app, _, _ := setupApp(t)

	body := map[string]interface{}{
		"name":        "Priceless",
		"description": "No price given",
		"article":     "ART-FREE",
	}
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", body), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	body["price"] = 0
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/products", body), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateRejectsBadImage(t *testing.T) {
	app, _, _ := setupApp(t)

	fields := map[string]string{
		"name":        "Doc",
		"description": "Not an image",
		"price":       "5",
		"article":     "ART-DOC",
	}
	resp, err := app.Test(multipartRequest(t, http.MethodPost, "/api/products", fields, "notes.txt", []byte("text")), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Oversized but otherwise valid image.
	huge := bytes.Repeat([]byte("x"), 5*1024*1024+1)
	resp, err = app.Test(multipartRequest(t, http.MethodPost, "/api/products", fields, "big.jpg", huge), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListPriceWindowAndSearch(t *testing.T) {
	app, repo, _ := setupApp(t)
	seedProducts(t, repo, 12) // prices 5..60

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/products?minPrice=10&maxPrice=20", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var page models.ProductPage
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Equal(t, int64(3), page.Total)
	for _, p := range page.Items {
		assert.GreaterOrEqual(t, p.Price, 10.0)
		assert.LessOrEqual(t, p.Price, 20.0)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/products?search=Product+03", nil), -1)
	assert.NoError(t, err)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Product 03", page.Items[0].Name)
}

func TestListPagination(t *testing.T) {
	app, repo, _ := setupApp(t)
	seedProducts(t, repo, 12)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/products?page=2&limit=5&sortBy=id", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var page models.ProductPage
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()

	assert.Equal(t, int64(12), page.Total)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, "Product 06", page.Items[0].Name)
	assert.Equal(t, "Product 10", page.Items[4].Name)
}

func TestListRejectsUnknownSortField(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/products?sortBy=password", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/products?minPrice=abc", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPatchPartialUpdate(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/products", map[string]interface{}{
		"name":        "Speaker",
		"description": "Loud",
		"price":       80,
		"article":     "ART-SPK",
	}), -1)
	assert.NoError(t, err)
	created := decodeProduct(t, resp)

	resp, err = app.Test(jsonRequest(http.MethodPatch, fmt.Sprintf("/api/products/%d", created.ID), map[string]interface{}{
		"price": 60,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeProduct(t, resp)

	assert.Equal(t, 60.0, updated.Price)
	assert.Equal(t, "Speaker", updated.Name)
	assert.Equal(t, "ART-SPK", updated.Article)
}

func TestPatchDuplicateArticleConflict(t *testing.T) {
	app, repo, _ := setupApp(t)
	seedProducts(t, repo, 2)

	resp, err := app.Test(jsonRequest(http.MethodPatch, "/api/products/2", map[string]interface{}{
		"article": "ART-1",
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPatchInvalidDiscountRejected(t *testing.T) {
	app, repo, _ := setupApp(t)
	seedProducts(t, repo, 1)

	resp, err := app.Test(jsonRequest(http.MethodPatch, "/api/products/1", map[string]interface{}{
		"discountPrice": 10000,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestPatchReplacesImageAndRemovesOldFile(t *testing.T) {
	app, _, uploadDir := setupApp(t)

	resp, err := app.Test(multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":        "Watch",
		"description": "Ticks",
		"price":       "120",
		"article":     "ART-W",
	}, "old.jpg", []byte("old image")), -1)
	assert.NoError(t, err)
	created := decodeProduct(t, resp)
	oldFile := filepath.Join(uploadDir, filepath.Base(*created.ImageURL))

	resp, err = app.Test(multipartRequest(t, http.MethodPatch, fmt.Sprintf("/api/products/%d", created.ID), nil, "new.jpg", []byte("new image")), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeProduct(t, resp)

	assert.NotEqual(t, *created.ImageURL, *updated.ImageURL)
	_, statErr := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(statErr), "replaced image file must be deleted")

	newData, err := os.ReadFile(filepath.Join(uploadDir, filepath.Base(*updated.ImageURL)))
	assert.NoError(t, err)
	assert.Equal(t, []byte("new image"), newData)
}

func TestDeleteProduct(t *testing.T) {
	app, _, uploadDir := setupApp(t)

	resp, err := app.Test(multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":        "Tablet",
		"description": "Flat",
		"price":       "300",
		"article":     "ART-TAB",
	}, "tab.gif", []byte("gif bytes")), -1)
	assert.NoError(t, err)
	created := decodeProduct(t, resp)
	imageFile := filepath.Join(uploadDir, filepath.Base(*created.ImageURL))

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/products/%d", created.ID), nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	_, statErr := os.Stat(imageFile)
	assert.True(t, os.IsNotExist(statErr), "image file is removed with the product")
}

func TestDeleteNotFound(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/products/424242", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRemoveImage(t *testing.T) {
	app, _, uploadDir := setupApp(t)

	resp, err := app.Test(multipartRequest(t, http.MethodPost, "/api/products", map[string]string{
		"name":        "Monitor",
		"description": "Glows",
		"price":       "200",
		"article":     "ART-MON",
	}, "mon.jpeg", []byte("jpeg bytes")), -1)
	assert.NoError(t, err)
	created := decodeProduct(t, resp)
	imageFile := filepath.Join(uploadDir, filepath.Base(*created.ImageURL))

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/products/%d/image", created.ID), nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := decodeProduct(t, resp)
	assert.Nil(t, cleared.ImageURL)

	_, statErr := os.Stat(imageFile)
	assert.True(t, os.IsNotExist(statErr))

	// Second call is an idempotent no-op.
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/products/%d/image", created.ID), nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	again := decodeProduct(t, resp)
	assert.Nil(t, again.ImageURL)
}

func TestSearchByArticle(t *testing.T) {
	app, repo, _ := setupApp(t)
	seedProducts(t, repo, 3) // ART-1, ART-2, ART-3

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/products/search/ART-2", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var matches []models.Product
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&matches))
	resp.Body.Close()
	assert.Len(t, matches, 1)
	assert.Equal(t, "ART-2", matches[0].Article)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/products/search/NOPE", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&matches))
	resp.Body.Close()
	assert.Empty(t, matches)
}

func TestGetRejectsNonNumericID(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/products/abc", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
