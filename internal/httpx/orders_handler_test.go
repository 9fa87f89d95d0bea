package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-supplier-orders/internal/kafka"
	"github.com/ariefcatur/go-supplier-orders/internal/memstore"
	"github.com/ariefcatur/go-supplier-orders/internal/metrics"
	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/ariefcatur/go-supplier-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type published struct {
	key     string
	env     orders.Envelope
	headers []kafkago.Header
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	var env orders.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{key: string(key), env: env, headers: headers})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.env.EventType)
	}
	return out
}

type fakeCache struct {
	mu sync.Mutex
	m  map[int64]redisx.CachedStatus
}

func (c *fakeCache) Get(_ context.Context, id int64) (redisx.CachedStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.m[id]
	return cs, ok, nil
}

func (c *fakeCache) Set(_ context.Context, cs redisx.CachedStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[cs.OrderID] = cs
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

type env struct {
	srv    *httptest.Server
	pub    *fakePublisher
	cache  *fakeCache
	mem    *memstore.Store
	reg    *prometheus.Registry
	tokens map[string]string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := memstore.New()
	mem.AddProduct(orders.Product{ID: 10, SupplierID: 2, Name: "Rice", Unit: "sack", PriceCents: 150000, StockQuantity: 10})
	mem.AddProduct(orders.Product{ID: 11, SupplierID: 2, Name: "Oil", Unit: "bottle", PriceCents: 9999, StockQuantity: 100})

	e := &env{
		pub:   &fakePublisher{},
		cache: &fakeCache{m: map[int64]redisx.CachedStatus{}},
		mem:   mem,
		reg:   prometheus.NewRegistry(),
	}
	svc := &orders.Service{Store: mem, Catalog: mem, Policy: orders.DefaultPolicy()}
	router := NewRouter(metrics.NewServerMetrics(e.reg, "order-api-test"), e.reg)
	auth := &Authenticator{Secret: secret}
	h := &OrdersHandler{Orders: svc, Events: e.pub, Cache: e.cache, Service: "order-api-test"}
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		h.Register(r)
	})
	e.srv = httptest.NewServer(router)
	t.Cleanup(e.srv.Close)

	e.tokens = map[string]string{
		"store":    token(t, 1, "store"),
		"supplier": token(t, 2, "supplier"),
		"other":    token(t, 3, "store"),
	}
	return e
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(secret)
	require.NoError(t, err)
	return s
}

func (e *env) do(t *testing.T, who, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[who])
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		var v any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
		switch vv := v.(type) {
		case map[string]any:
			out = vv
		case []any:
			out["items"] = vv
		}
	}
	return resp.StatusCode, out
}

func id(m map[string]any) string {
	return strconv.FormatInt(int64(m["id"].(float64)), 10)
}

func TestUnauthenticated(t *testing.T) {
	e := newEnv(t)
	code, body := e.do(t, "", http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["code"])

	e.tokens["forged"] = "Bearer nonsense"
	code, _ = e.do(t, "forged", http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHealthzIsPublic(t *testing.T) {
	e := newEnv(t)
	resp, err := e.srv.Client().Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDraftLifecycle(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, "store", http.MethodGet, "/drafts?supplier_id=2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["draft"])

	code, created := e.do(t, "store", http.MethodPost, "/drafts", createDraftReq{SupplierID: 2})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "draft", created["status"])

	code, again := e.do(t, "store", http.MethodPost, "/drafts", createDraftReq{SupplierID: 2})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, created["id"], again["id"])

	code, _ = e.do(t, "supplier", http.MethodPost, "/drafts", createDraftReq{SupplierID: 2})
	assert.Equal(t, http.StatusForbidden, code)

	// a status read caches the draft; discarding must drop that entry
	code, _ = e.do(t, "store", http.MethodGet, "/orders/"+id(created)+"/status", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, "store", http.MethodDelete, "/drafts/"+id(created), nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, body = e.do(t, "store", http.MethodGet, "/orders/"+id(created)+"/status", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["code"])

	assert.Equal(t, []string{orders.EventDraftCreated, orders.EventDraftDiscarded}, e.pub.types())
	discarded, err := kafkax.UnwrapPayload[orders.DraftPayload](e.pub.msgs[1].env.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 1, discarded.StoreID)
	assert.EqualValues(t, 2, discarded.SupplierID)
}

func TestCartToDelivery(t *testing.T) {
	e := newEnv(t)
	_, draft := e.do(t, "store", http.MethodPost, "/drafts", createDraftReq{SupplierID: 2})
	oid := id(draft)

	code, body := e.do(t, "store", http.MethodPost, "/orders/"+oid+"/items", addItemReq{ProductID: 10, Quantity: 11})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "stock_error", body["code"])
	assert.Contains(t, body["error"], "only 10 sack available")

	code, body = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/items", addItemReq{ProductID: 10, Quantity: 3})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "4500.00", body["total_amount"])

	code, body = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/submit", submitReq{PaymentMethod: "gcash", DeliveryOption: "deliver"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "minimum_order", body["code"])

	code, body = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/items", addItemReq{ProductID: 11, Quantity: 8})
	require.Equal(t, http.StatusOK, code)
	lines := body["order_items"].([]any)
	require.Len(t, lines, 2)
	oilLine := strconv.FormatInt(int64(lines[1].(map[string]any)["id"].(float64)), 10)

	code, body = e.do(t, "store", http.MethodPatch, "/order-items/"+oilLine, updateItemReq{Quantity: 10})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5499.90", body["total_amount"])

	code, body = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/submit", submitReq{PaymentMethod: "gcash", DeliveryOption: "deliver", ShippingAddress: "Jl. Merdeka 1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "preparing", body["status"])
	assert.Equal(t, "260.00", body["delivery_fee"])
	assert.Equal(t, "5759.90", body["grand_total"])
	assert.Equal(t, "pending", body["payment_status"])

	code, _ = e.do(t, "store", http.MethodDelete, "/order-items/"+oilLine, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/status", transitionReq{Status: "in_transit"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = e.do(t, "supplier", http.MethodPost, "/orders/"+oid+"/status", transitionReq{Status: "teleported"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, "supplier", http.MethodPost, "/orders/"+oid+"/payment/paid", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", body["payment_status"])

	for _, st := range []string{"in_transit", "delivered"} {
		code, body = e.do(t, "supplier", http.MethodPost, "/orders/"+oid+"/status", transitionReq{Status: st})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, st, body["status"])
	}

	code, body = e.do(t, "store", http.MethodGet, "/orders/"+oid+"/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "delivered", body["status"])
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, true, body["messaging_open"])

	code, _ = e.do(t, "other", http.MethodGet, "/orders/"+oid+"/status", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = e.do(t, "other", http.MethodGet, "/orders/"+oid, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/ratings", rateReq{Rating: 5, Comment: "great"})
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 2, body["rated_id"])
	code, body = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/ratings", rateReq{Rating: 4})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_rating", body["code"])

	code, body = e.do(t, "supplier", http.MethodGet, "/users/2/ratings", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 5, body["average"])

	code, body = e.do(t, "supplier", http.MethodGet, "/orders/"+oid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["ratings"], 1)

	code, body = e.do(t, "supplier", http.MethodGet, "/orders?status=delivered", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	assert.Equal(t, []string{
		orders.EventDraftCreated,
		orders.EventOrderSubmitted,
		orders.EventPaymentStatusChanged,
		orders.EventOrderStatusChanged,
		orders.EventOrderStatusChanged,
		orders.EventOrderRated,
	}, e.pub.types())

	last := e.pub.msgs[4]
	assert.Equal(t, oid, last.key)
	var p orders.StatusChangedPayload
	require.NoError(t, json.Unmarshal(last.env.Payload, &p))
	assert.Equal(t, orders.StatusInTransit, p.From)
	assert.Equal(t, orders.StatusDelivered, p.To)
	assert.Equal(t, orders.RoleSupplier, last.env.ActorRole)
}

func TestMessagesOverHTTP(t *testing.T) {
	e := newEnv(t)
	_, draft := e.do(t, "store", http.MethodPost, "/drafts", createDraftReq{SupplierID: 2})
	oid := id(draft)

	code, body := e.do(t, "store", http.MethodPost, "/orders/"+oid+"/messages", sendMessageReq{Content: "hello"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "hello", body["content"])

	code, _ = e.do(t, "store", http.MethodPost, "/orders/"+oid+"/messages", sendMessageReq{})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, "other", http.MethodPost, "/orders/"+oid+"/messages", sendMessageReq{Content: "hi"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = e.do(t, "supplier", http.MethodGet, "/orders/"+oid+"/messages", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 1)
	assert.Equal(t, true, body["messaging_open"])
}

func TestBadInput(t *testing.T) {
	e := newEnv(t)
	code, _ := e.do(t, "store", http.MethodGet, "/drafts?supplier_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, "store", http.MethodGet, "/orders/x", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, "store", http.MethodGet, "/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, "store", http.MethodPost, "/drafts", map[string]any{"supplier": 2})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, "store", http.MethodGet, "/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsExposeRoutePattern(t *testing.T) {
	e := newEnv(t)
	e.do(t, "store", http.MethodGet, "/orders/999", nil)

	resp, err := e.srv.Client().Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `/orders/{id}`)
}
