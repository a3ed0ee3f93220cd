package catalog

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"catalog/internal/models"
)

// Filters is the user-facing filter selection. Price bounds are kept as
// strings because they come straight from form inputs; empty means unset.
type Filters struct {
	SortBy    string
	SortOrder string
	MinPrice  string
	MaxPrice  string
	Search    string
}

// FilterUpdate is a partial change to Filters; nil fields are left alone.
type FilterUpdate struct {
	SortBy    *string
	SortOrder *string
	MinPrice  *string
	MaxPrice  *string
	Search    *string
}

// Pagination mirrors the page selection plus what the last response said
// about the total result size.
type Pagination struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// State is a snapshot of the catalog view: the fetched page, an optional
// detail record, and the current selection.
type State struct {
	Items      []models.Product
	Current    *models.Product
	Loading    bool
	Err        string
	Pagination Pagination
	Filters    Filters
}

// API is the slice of the product API the store consumes.
type API interface {
	ListProducts(ctx context.Context, query models.ListQuery) (*models.ProductPage, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
}

func defaultFilters() Filters {
	return Filters{SortBy: "createdAt", SortOrder: models.SortDesc}
}

// Store holds the catalog state and re-fetches whenever the selection
// changes. Filter edits are debounced; every list fetch cancels the one
// before it and stale responses are discarded.
type Store struct {
	api      API
	debounce time.Duration

	mu     sync.Mutex
	state  State
	timer  *time.Timer
	cancel context.CancelFunc
	seq    uint64
}

// NewStore creates a store fetching through api, coalescing filter changes
// over the given debounce interval.
func NewStore(api API, debounce time.Duration) *Store {
	return &Store{
		api:      api,
		debounce: debounce,
		state: State{
			Items:      []models.Product{},
			Pagination: Pagination{Page: 1, Limit: 12},
			Filters:    defaultFilters(),
		},
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetPage changes the page selection, leaving filters untouched.
func (s *Store) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Pagination.Page = page
}

// SetLimit changes the page size.
func (s *Store) SetLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Pagination.Limit = limit
}

// SetFilters merges a partial filter change, resets the page to 1 and
// schedules a debounced reload.
func (s *Store) SetFilters(update FilterUpdate) {
	s.mu.Lock()
	if update.SortBy != nil {
		s.state.Filters.SortBy = *update.SortBy
	}
	if update.SortOrder != nil {
		s.state.Filters.SortOrder = *update.SortOrder
	}
	if update.MinPrice != nil {
		s.state.Filters.MinPrice = *update.MinPrice
	}
	if update.MaxPrice != nil {
		s.state.Filters.MaxPrice = *update.MaxPrice
	}
	if update.Search != nil {
		s.state.Filters.Search = *update.Search
	}
	s.state.Pagination.Page = 1
	s.mu.Unlock()

	s.scheduleReload()
}

// ResetFilters restores the default selection and resets the page.
func (s *Store) ResetFilters() {
	s.mu.Lock()
	s.state.Filters = defaultFilters()
	s.state.Pagination.Page = 1
	s.mu.Unlock()

	s.scheduleReload()
}

func (s *Store) scheduleReload() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.LoadProducts(context.Background())
	})
	s.mu.Unlock()
}

// LoadProducts fetches the page for the current selection. It cancels any
// in-flight list fetch; if this fetch is itself superseded before it
// resolves, its result is discarded.
func (s *Store) LoadProducts(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.seq++
	seq := s.seq
	s.state.Loading = true
	s.state.Err = ""
	query := s.listQuery()
	s.mu.Unlock()

	page, err := s.api.ListProducts(fetchCtx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		// A newer fetch took over while this one was in flight.
		return
	}
	s.state.Loading = false
	if err != nil {
		s.state.Err = err.Error()
		return
	}
	s.state.Items = page.Items
	s.state.Pagination.Total = page.Total
	s.state.Pagination.TotalPages = totalPages(page.Total, s.state.Pagination.Limit)
}

// LoadProduct fetches a single product into the detail slot.
func (s *Store) LoadProduct(ctx context.Context, id uint) {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Err = ""
	s.state.Current = nil
	s.mu.Unlock()

	product, err := s.api.GetProduct(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Err = err.Error()
		return
	}
	s.state.Current = product
}

// SetCurrent replaces the detail slot directly.
func (s *Store) SetCurrent(product *models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Current = product
}

// ClearError resets the error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Err = ""
}

// listQuery converts the held selection into API query parameters.
// Caller must hold s.mu.
func (s *Store) listQuery() models.ListQuery {
	query := models.ListQuery{
		Page:      s.state.Pagination.Page,
		Limit:     s.state.Pagination.Limit,
		SortBy:    s.state.Filters.SortBy,
		SortOrder: s.state.Filters.SortOrder,
		Search:    s.state.Filters.Search,
	}
	if v, err := strconv.ParseFloat(s.state.Filters.MinPrice, 64); err == nil {
		query.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(s.state.Filters.MaxPrice, 64); err == nil {
		query.MaxPrice = &v
	}
	return query
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
