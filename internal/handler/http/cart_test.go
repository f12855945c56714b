package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MiSArch/shoppingcart/internal/catalog"
	"github.com/MiSArch/shoppingcart/internal/config"
	"github.com/MiSArch/shoppingcart/internal/domain"
	"github.com/MiSArch/shoppingcart/internal/event"
	"github.com/MiSArch/shoppingcart/internal/service"
	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
	"github.com/MiSArch/shoppingcart/pkg/health"
	"github.com/MiSArch/shoppingcart/pkg/httputil"
)

// ============================================================================
// Mocks
// ============================================================================

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Load(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart, expectedLastUpdatedAt time.Time) (bool, error) {
	args := m.Called(ctx, cart, expectedLastUpdatedAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, variantID uuid.UUID) (catalog.VariantRef, error) {
	args := m.Called(ctx, variantID)
	return args.Get(0).(catalog.VariantRef), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

var (
	testUserID    = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	testVariantID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440002")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEventProducer builds an event producer with a nil Kafka client, so
// publishes are skipped and handler tests never touch the network.
func testEventProducer() *event.Producer {
	return event.NewProducer(nil, testLogger())
}

func testConfig() *config.Config {
	return &config.Config{
		RateLimitRPS:      1000,
		RateLimitBurst:    1000,
		PprofAllowedCIDRs: []string{"127.0.0.0/8"},
	}
}

// setupRouter builds the production router so middleware behavior (auth,
// content type, rate limiting) is tested end-to-end.
func setupRouter(repo *mockCartRepository, resolver *mockResolver) http.Handler {
	logger := testLogger()
	svc := service.NewCartService(repo, resolver, testEventProducer(), logger, 3)
	return NewRouter(svc, health.NewHandler(), testConfig(), logger)
}

// decodeResponse reads the response body into the standard Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

// decodeCart reads the response body into a typed cart envelope.
func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) *domain.Cart {
	t.Helper()
	var resp struct {
		Data *domain.Cart `json:"data"`
	}
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
	return resp.Data
}

func decodeItemPage(t *testing.T, rec *httptest.ResponseRecorder) httputil.PaginatedResponse[domain.CartItem] {
	t.Helper()
	var page httputil.PaginatedResponse[domain.CartItem]
	err := json.NewDecoder(rec.Body).Decode(&page)
	require.NoError(t, err)
	return page
}

// sampleCart returns a cart with one item for testUserID.
func sampleCart() *domain.Cart {
	cart := domain.NewCart(testUserID)
	_, _ = cart.AddItem(testVariantID, 2, time.Now().UTC())
	return cart
}

func doRequest(router http.Handler, method, target, userID string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// GET /api/v1/cart
// ============================================================================

func TestGetCart_Success(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(sampleCart(), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	cart := decodeCart(t, rec)
	assert.Equal(t, testUserID, cart.UserID)
	assert.Len(t, cart.Items, 1)
	repo.AssertExpectations(t)
}

func TestGetCart_FreshUserGetsEmptyCart(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(domain.NewCart(testUserID), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.Items)
	repo.AssertExpectations(t)
}

func TestGetCart_MissingUserID_Returns401(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestGetCart_MalformedUserID_Returns400(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart", "user-123", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	repo.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestGetCart_StoreDown_Returns503(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).
		Return(nil, fmt.Errorf("redis get cart: connection refused: %w", apperrors.ErrServiceUnavail))

	rec := doRequest(router, http.MethodGet, "/api/v1/cart", testUserID.String(), nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	// Infrastructure details must not leak to callers.
	assert.NotContains(t, resp.Error.Message, "connection refused")
	repo.AssertExpectations(t)
}

// ============================================================================
// GET /api/v1/cart/items
// ============================================================================

// itemsCart returns a cart with three items added at distinct times with
// distinct quantities so every sort order is observable.
func itemsCart() *domain.Cart {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cart := domain.NewCart(testUserID)
	_, _ = cart.AddItem(uuid.MustParse("00000000-0000-0000-0000-000000000001"), 5, base)
	_, _ = cart.AddItem(uuid.MustParse("00000000-0000-0000-0000-000000000002"), 1, base.Add(time.Minute))
	_, _ = cart.AddItem(uuid.MustParse("00000000-0000-0000-0000-000000000003"), 3, base.Add(2*time.Minute))
	return cart
}

func TestListItems_DefaultSortNewestFirst(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(itemsCart(), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodeItemPage(t, rec)
	require.Len(t, page.Data, 3)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)
	assert.False(t, page.HasNext)
	// Most recently added first.
	assert.True(t, page.Data[0].AddedAt.After(page.Data[1].AddedAt))
	assert.True(t, page.Data[1].AddedAt.After(page.Data[2].AddedAt))
}

func TestListItems_SortOldest(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(itemsCart(), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items?sort_by=oldest", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodeItemPage(t, rec)
	require.Len(t, page.Data, 3)
	assert.True(t, page.Data[0].AddedAt.Before(page.Data[1].AddedAt))
	assert.True(t, page.Data[1].AddedAt.Before(page.Data[2].AddedAt))
}

func TestListItems_SortByQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(itemsCart(), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items?sort_by=quantity_desc", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodeItemPage(t, rec)
	require.Len(t, page.Data, 3)
	assert.Equal(t, 5, page.Data[0].Quantity)
	assert.Equal(t, 3, page.Data[1].Quantity)
	assert.Equal(t, 1, page.Data[2].Quantity)
}

func TestListItems_Pagination(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(itemsCart(), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items?page=2&per_page=2&sort_by=oldest", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodeItemPage(t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasNext)
}

func TestListItems_PageBeyondEndIsEmpty(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(itemsCart(), nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items?page=5&per_page=20", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodeItemPage(t, rec)
	assert.Empty(t, page.Data)
	assert.Equal(t, 3, page.TotalCount)
}

func TestListItems_InvalidSortBy_Returns400(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items?sort_by=price", testUserID.String(), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "sort_by")
	repo.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestListItems_InvalidPage_Returns400(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodGet, "/api/v1/cart/items?page=0", testUserID.String(), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

// ============================================================================
// POST /api/v1/cart/items
// ============================================================================

func addItemJSON(variantID string, quantity int) []byte {
	b, _ := json.Marshal(AddItemRequest{VariantID: variantID, Quantity: quantity})
	return b
}

func TestAddItem_Success(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	resolver.On("Resolve", mock.Anything, testVariantID).Return(catalog.VariantRef{ID: testVariantID}, nil)
	repo.On("Load", mock.Anything, testUserID).Return(domain.NewCart(testUserID), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart"), mock.AnythingOfType("time.Time")).Return(true, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", testUserID.String(),
		addItemJSON(testVariantID.String(), 2))

	assert.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, testVariantID, cart.Items[0].VariantID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	repo.AssertExpectations(t)
	resolver.AssertExpectations(t)
}

func TestAddItem_MissingUserID_Returns401(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", "",
		addItemJSON(testVariantID.String(), 2))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddItem_WrongContentType_Returns415(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items",
		bytes.NewReader(addItemJSON(testVariantID.String(), 2)))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-User-ID", testUserID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAddItem_InvalidJSON_Returns400(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", testUserID.String(),
		[]byte(`{"variant_id": `))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestAddItem_ValidationFailure_ReportsFields(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", testUserID.String(),
		[]byte(`{"variant_id": "", "quantity": 0}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Fields)
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestAddItem_UnknownVariant_Returns404(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	resolver.On("Resolve", mock.Anything, testVariantID).
		Return(catalog.VariantRef{}, apperrors.NotFound("product variant", testVariantID.String()))

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", testUserID.String(),
		addItemJSON(testVariantID.String(), 1))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddItem_CatalogDown_Returns503(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	resolver.On("Resolve", mock.Anything, testVariantID).
		Return(catalog.VariantRef{}, apperrors.ServiceUnavailable("product catalog unreachable"))

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", testUserID.String(),
		addItemJSON(testVariantID.String(), 1))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAddItem_PersistentConflict_Returns409(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	resolver.On("Resolve", mock.Anything, testVariantID).Return(catalog.VariantRef{ID: testVariantID}, nil)
	repo.On("Load", mock.Anything, testUserID).Return(domain.NewCart(testUserID), nil).Times(3)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart"), mock.AnythingOfType("time.Time")).
		Return(false, nil).Times(3)

	rec := doRequest(router, http.MethodPost, "/api/v1/cart/items", testUserID.String(),
		addItemJSON(testVariantID.String(), 1))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	repo.AssertExpectations(t)
}

// ============================================================================
// PUT /api/v1/cart/items/{itemID}
// ============================================================================

func TestUpdateItemQuantity_Success(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	existing := sampleCart()
	itemID := existing.Items[0].ID

	repo.On("Load", mock.Anything, testUserID).Return(existing, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart"), mock.AnythingOfType("time.Time")).Return(true, nil)

	rec := doRequest(router, http.MethodPut, "/api/v1/cart/items/"+itemID.String(), testUserID.String(),
		[]byte(`{"quantity": 7}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	repo.AssertExpectations(t)
}

func TestUpdateItemQuantity_ZeroRemovesItem(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	existing := sampleCart()
	itemID := existing.Items[0].ID

	repo.On("Load", mock.Anything, testUserID).Return(existing, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart"), mock.AnythingOfType("time.Time")).Return(true, nil)

	rec := doRequest(router, http.MethodPut, "/api/v1/cart/items/"+itemID.String(), testUserID.String(),
		[]byte(`{"quantity": 0}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.Items)
	repo.AssertExpectations(t)
}

func TestUpdateItemQuantity_NegativeQuantity_Returns400(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodPut, "/api/v1/cart/items/"+uuid.NewString(), testUserID.String(),
		[]byte(`{"quantity": -2}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	repo.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestUpdateItemQuantity_UnknownItem_Returns404(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(sampleCart(), nil)

	rec := doRequest(router, http.MethodPut, "/api/v1/cart/items/"+uuid.NewString(), testUserID.String(),
		[]byte(`{"quantity": 3}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// DELETE /api/v1/cart/items/{itemID}
// ============================================================================

func TestRemoveItem_Success(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	existing := sampleCart()
	itemID := existing.Items[0].ID

	repo.On("Load", mock.Anything, testUserID).Return(existing, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart"), mock.AnythingOfType("time.Time")).Return(true, nil)

	rec := doRequest(router, http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.Items)
	repo.AssertExpectations(t)
}

func TestRemoveItem_UnknownItem_Returns404(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(sampleCart(), nil)

	rec := doRequest(router, http.MethodDelete, "/api/v1/cart/items/"+uuid.NewString(), testUserID.String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveItem_MalformedItemID_Returns400(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodDelete, "/api/v1/cart/items/not-a-uuid", testUserID.String(), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

// ============================================================================
// DELETE /api/v1/cart
// ============================================================================

func TestClearCart_Success(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	repo.On("Load", mock.Anything, testUserID).Return(sampleCart(), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart"), mock.AnythingOfType("time.Time")).Return(true, nil)

	rec := doRequest(router, http.MethodDelete, "/api/v1/cart", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.Items)
	assert.False(t, cart.LastUpdatedAt.IsZero())
	repo.AssertExpectations(t)
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := doRequest(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	router := setupRouter(repo, resolver)

	rec := doRequest(router, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Returns429WhenExceeded(t *testing.T) {
	repo := new(mockCartRepository)
	resolver := new(mockResolver)
	logger := testLogger()
	svc := service.NewCartService(repo, resolver, testEventProducer(), logger, 3)
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	router := NewRouter(svc, health.NewHandler(), cfg, logger)

	repo.On("Load", mock.Anything, testUserID).Return(domain.NewCart(testUserID), nil)

	first := doRequest(router, http.MethodGet, "/api/v1/cart", testUserID.String(), nil)
	second := doRequest(router, http.MethodGet, "/api/v1/cart", testUserID.String(), nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
