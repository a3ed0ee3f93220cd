package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"catalog/internal/models"
)

// Client is a thin HTTP client for the product API, used by the Store and
// by operational tooling.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for an API served at baseURL (including the
// /api prefix, e.g. "http://localhost:3001/api").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// ListProducts fetches one page of products for the given selection.
func (c *Client) ListProducts(ctx context.Context, query models.ListQuery) (*models.ProductPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("limit", strconv.Itoa(query.Limit))
	params.Set("sortBy", query.SortBy)
	params.Set("sortOrder", query.SortOrder)
	if query.MinPrice != nil {
		params.Set("minPrice", strconv.FormatFloat(*query.MinPrice, 'f', -1, 64))
	}
	if query.MaxPrice != nil {
		params.Set("maxPrice", strconv.FormatFloat(*query.MaxPrice, 'f', -1, 64))
	}
	if query.Search != "" {
		params.Set("search", query.Search)
	}

	var page models.ProductPage
	if err := c.do(ctx, http.MethodGet, "/products?"+params.Encode(), nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetProduct fetches a single product by ID.
func (c *Client) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, "", &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// SearchByArticle fetches every product whose article contains the fragment.
func (c *Client) SearchByArticle(ctx context.Context, fragment string) ([]models.Product, error) {
	var products []models.Product
	path := "/products/search/" + url.PathEscape(fragment)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct creates a product, optionally attaching an image read from
// imageContent under imageName.
func (c *Client) CreateProduct(ctx context.Context, input models.CreateProductInput, imageName string, imageContent io.Reader) (*models.Product, error) {
	fields := map[string]string{
		"name":        input.Name,
		"description": input.Description,
		"article":     input.Article,
	}
	if input.Price != nil {
		fields["price"] = strconv.FormatFloat(*input.Price, 'f', -1, 64)
	}
	if input.DiscountPrice != nil {
		fields["discountPrice"] = strconv.FormatFloat(*input.DiscountPrice, 'f', -1, 64)
	}

	body, contentType, err := multipartBody(fields, imageName, imageContent)
	if err != nil {
		return nil, err
	}
	var product models.Product
	if err := c.do(ctx, http.MethodPost, "/products", body, contentType, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct applies a partial update, optionally replacing the image.
func (c *Client) UpdateProduct(ctx context.Context, id uint, input models.UpdateProductInput, imageName string, imageContent io.Reader) (*models.Product, error) {
	fields := map[string]string{}
	if input.Name != nil {
		fields["name"] = *input.Name
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Price != nil {
		fields["price"] = strconv.FormatFloat(*input.Price, 'f', -1, 64)
	}
	if input.DiscountPrice != nil {
		fields["discountPrice"] = strconv.FormatFloat(*input.DiscountPrice, 'f', -1, 64)
	}
	if input.Article != nil {
		fields["article"] = *input.Article
	}
	if input.IsActive != nil {
		fields["isActive"] = strconv.FormatBool(*input.IsActive)
	}

	body, contentType, err := multipartBody(fields, imageName, imageContent)
	if err != nil {
		return nil, err
	}
	var product models.Product
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/products/%d", id), body, contentType, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, "", nil)
}

// RemoveImage detaches the image of a product and returns the updated record.
func (c *Client) RemoveImage(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d/image", id), nil, "", &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func multipartBody(fields map[string]string, imageName string, imageContent io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if imageContent != nil {
		part, err := writer.CreateFormFile("image", imageName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := io.Copy(part, imageContent); err != nil {
			return nil, "", fmt.Errorf("failed to copy image content: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// do performs a request and decodes the JSON response into out. Non-2xx
// responses are turned into errors carrying the API's message.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return fmt.Errorf("%s", apiErr.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
