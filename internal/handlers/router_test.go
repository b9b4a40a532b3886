package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/observability"
	"cookiebarrel/internal/repositories/memory"
	"cookiebarrel/internal/services"
)

const testSecret = "router-test-secret"

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	stock, err := services.NewStockService(services.StockServiceDeps{Products: store.Products()})
	require.NoError(t, err)
	numbers, err := services.NewOrderNumberGenerator(services.OrderNumberGeneratorDeps{Counters: store.Counters(), Orders: store.Orders()})
	require.NoError(t, err)
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     store.Orders(),
		UnitOfWork: store,
		Stock:      stock,
		Numbers:    numbers,
	})
	require.NoError(t, err)

	return &testServer{
		store: store,
		router: NewRouter(RouterDeps{
			Orders:    orders,
			Store:     store,
			Metrics:   observability.NewMetrics(),
			JWTSecret: testSecret,
		}),
	}
}

func token(t *testing.T, id string, role models.Role) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": id,
		"role":   string(role),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func orderBody(productID string, qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"productId": productID, "quantity": qty}},
		"deliveryAddress": map[string]any{
			"street": "4 Durbar Marg", "city": "Kathmandu", "state": "Bagmati", "zipCode": "44600",
		},
		"contactInfo":   map[string]any{"phone": "9800000000", "email": "kim@example.com"},
		"paymentMethod": "card",
	}
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return data
}

func TestCreateOrderEndpoint(t *testing.T) {
	s := newTestServer(t)
	cookie := s.store.PutProduct(models.Product{Name: "Brown Butter", Price: models.MustMoney("4.95"), IsAvailable: true, Stock: 50})
	customer := token(t, "customer-1", models.RoleCustomer)

	rec, body := s.do(t, http.MethodPost, "/orders", customer, orderBody(cookie.ID.Hex(), 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"finalAmount":15.89`)
	assert.Contains(t, rec.Body.String(), `"deliveryFee":5.00`)

	data := dataOf(t, body)
	assert.Equal(t, "CB000001", data["orderNumber"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "customer-1", data["customerId"])
	assert.NotContains(t, data, "idempotencyKey")
	assert.Equal(t, 48, s.store.Stock(cookie.ID))
}

func TestCreateOrderEndpointReplaysIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	cookie := s.store.PutProduct(models.Product{Name: "Chip", Price: models.MustMoney("2.00"), IsAvailable: true, Stock: 10})
	customer := token(t, "customer-1", models.RoleCustomer)

	first, firstBody := s.do(t, http.MethodPost, "/orders", customer, orderBody(cookie.ID.Hex(), 1), IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second, secondBody := s.do(t, http.MethodPost, "/orders", customer, orderBody(cookie.ID.Hex(), 1), IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, dataOf(t, firstBody)["id"], dataOf(t, secondBody)["id"])
	assert.Equal(t, 9, s.store.Stock(cookie.ID))
}

func TestCreateOrderEndpointErrors(t *testing.T) {
	s := newTestServer(t)
	cookie := s.store.PutProduct(models.Product{Name: "Oat", Price: models.MustMoney("3.00"), IsAvailable: true, Stock: 3})
	customer := token(t, "customer-1", models.RoleCustomer)

	rec, body := s.do(t, http.MethodPost, "/orders", customer, orderBody(cookie.ID.Hex(), 10))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "insufficient_stock", body["error"])
	assert.Equal(t, cookie.ID.Hex(), body["productId"])
	assert.EqualValues(t, 3, body["available"])
	assert.EqualValues(t, 10, body["requested"])
	assert.Equal(t, 3, s.store.Stock(cookie.ID))

	missing := orderBody(cookie.ID.Hex(), 1)
	delete(missing, "contactInfo")
	rec, body = s.do(t, http.MethodPost, "/orders", customer, missing)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", body["error"])
	assert.Contains(t, body["fields"], "contactInfo")

	rec, body = s.do(t, http.MethodPost, "/orders", customer, `{"items": "nope"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body["error"])

	rec, _ = s.do(t, http.MethodPost, "/orders", "", orderBody(cookie.ID.Hex(), 1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 0, s.store.OrderCount())
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	cookie := s.store.PutProduct(models.Product{Name: "Lemon", Price: models.MustMoney("2.50"), IsAvailable: true, Stock: 10})
	owner := token(t, "customer-1", models.RoleCustomer)
	stranger := token(t, "customer-2", models.RoleCustomer)
	staff := token(t, "staff-1", models.RoleStaff)

	rec, body := s.do(t, http.MethodPost, "/orders", owner, orderBody(cookie.ID.Hex(), 4))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := dataOf(t, body)["id"].(string)

	rec, _ = s.do(t, http.MethodGet, "/orders/"+id, stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/orders/"+id, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, dataOf(t, body)["id"])

	rec, body = s.do(t, http.MethodPatch, "/orders/"+id, owner, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["error"])

	rec, body = s.do(t, http.MethodPatch, "/orders/"+id, staff, map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", body["error"])

	rec, body = s.do(t, http.MethodPatch, "/orders/"+id, owner, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", dataOf(t, body)["status"])
	assert.Equal(t, 10, s.store.Stock(cookie.ID))

	rec, _ = s.do(t, http.MethodPatch, "/orders/"+id, owner, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, s.store.Stock(cookie.ID))

	rec, body = s.do(t, http.MethodPatch, "/orders/"+id, staff, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", body["error"])

	rec, body = s.do(t, http.MethodGet, "/orders/not-an-id", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body["error"])
}

func TestListOrdersEndpoint(t *testing.T) {
	s := newTestServer(t)
	cookie := s.store.PutProduct(models.Product{Name: "Fig", Price: models.MustMoney("1.00"), IsAvailable: true, Stock: 100})
	owner := token(t, "customer-1", models.RoleCustomer)
	other := token(t, "customer-2", models.RoleCustomer)
	staff := token(t, "manager-1", models.RoleManager)

	for i := 0; i < 3; i++ {
		rec, _ := s.do(t, http.MethodPost, "/orders", owner, orderBody(cookie.ID.Hex(), 1))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ := s.do(t, http.MethodPost, "/orders", other, orderBody(cookie.ID.Hex(), 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := s.do(t, http.MethodGet, "/orders?limit=2", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 2)
	assert.Equal(t, map[string]any{"page": 1.0, "limit": 2.0, "total": 3.0, "totalPages": 2.0}, body["pagination"])
	assert.NotContains(t, body, "stats")

	rec, body = s.do(t, http.MethodGet, "/orders", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 4)
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4, stats["pending"])
	assert.EqualValues(t, 0, stats["cancelled"])

	rec, body = s.do(t, http.MethodGet, "/orders?orderNumber=cb000004", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["data"])

	rec, _ = s.do(t, http.MethodGet, "/orders?page=0", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/orders?status=lost", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOrderEndpoint(t *testing.T) {
	s := newTestServer(t)
	cookie := s.store.PutProduct(models.Product{Name: "Date", Price: models.MustMoney("1.00"), IsAvailable: true, Stock: 5})
	owner := token(t, "customer-1", models.RoleCustomer)

	rec, body := s.do(t, http.MethodPost, "/orders", owner, orderBody(cookie.ID.Hex(), 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := dataOf(t, body)["id"].(string)

	rec, _ = s.do(t, http.MethodDelete, "/admin/api/orders/"+id, token(t, "staff-1", models.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/admin/api/orders/"+id, token(t, "admin-1", models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.store.OrderCount())
	assert.Equal(t, 3, s.store.Stock(cookie.ID))
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cookiebarrel_http_requests_total")

	down := NewRouter(RouterDeps{Store: downStore{}, JWTSecret: testSecret})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "no reachable servers")
}

func TestStorageErrorsAreGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		respondWithServiceError(c, observability.OrNop(nil), "GET /boom", errors.New("E11000 at 10.1.2.3"))
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"storage_error","message":"internal server error"}`, rec.Body.String())
}
