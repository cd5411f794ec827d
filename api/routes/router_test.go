package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/slotbook-backend/internal/catalog"
	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
	"github.com/angelmondragon/slotbook-backend/internal/inventory"
	"github.com/angelmondragon/slotbook-backend/internal/jobs"
	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/reconcile"
	"github.com/angelmondragon/slotbook-backend/internal/reservations"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	pkgAuth "github.com/angelmondragon/slotbook-backend/pkg/auth"
	"github.com/angelmondragon/slotbook-backend/pkg/config"
	"github.com/angelmondragon/slotbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/slotbook-backend/pkg/db/models"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/metrics"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
)

type memoryRedis struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	ledger  *inventory.Ledger
	slots   slots.Repository
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		App:         config.AppConfig{Env: "dev"},
		JWT:         config.JWTConfig{Secret: "secret", Issuer: "slotbook", ExpirationMinutes: 60},
		Reservation: config.ReservationConfig{HoldTTL: 15 * time.Minute, DefaultSlotCapacity: 1, MaxListDays: 31, MaxReconcileDays: 90, Timezone: "UTC"},
		RateLimit:   config.RateLimitConfig{Window: time.Minute, DraftLimit: 100, HoldLimit: 100},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logg := logger.New(logger.Options{ServiceName: "slotbook-test", Level: logger.ParseLevel("error"), Output: io.Discard})
	client := dbtest.Open(t)
	reg := prometheus.NewRegistry()

	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	slotRepo := slots.NewRepository(client.DB())
	store, err := slots.NewStore(slotRepo, client, cfg.Reservation.DefaultSlotCapacity, logg)
	require.NoError(t, err)
	orderRepo := orders.NewRepository(client.DB())

	engine, err := reservations.NewEngine(reservations.Config{HoldTTL: cfg.Reservation.HoldTTL, MaxListDays: cfg.Reservation.MaxListDays, Location: time.UTC}, reservations.Deps{
		Tx:      client,
		Orders:  orderRepo,
		Slots:   slotRepo,
		Store:   store,
		Outbox:  emitter,
		Metrics: metrics.NewReservationMetrics(reg),
		Logger:  logg,
	})
	require.NoError(t, err)

	ledger, err := inventory.NewLedger(inventory.NewRepository(client.DB()), client, emitter, logg)
	require.NoError(t, err)
	cat, err := catalog.NewStatic([]catalog.Variant{{ProductID: "cake", VariantKey: "6-inch", Name: "Cake", UnitPriceCents: 2500}})
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orderRepo, client, cat, ledger, engine, emitter, logg)
	require.NoError(t, err)

	reconciler, err := reconcile.NewService(reconcile.Params{
		Tx:       client,
		Slots:    slotRepo,
		Orders:   orderRepo,
		Outbox:   emitter,
		Logger:   logg,
		MaxDays:  cfg.Reservation.MaxReconcileDays,
		Location: time.UTC,
	})
	require.NoError(t, err)

	rdb := newMemoryRedis()
	runner, err := jobs.NewRunner(jobs.RunnerParams{
		Logger: logg,
		Locks: func(name string) (jobs.Lock, error) {
			return jobs.NewRedisLock(rdb, "lock:"+name, time.Minute)
		},
		Metrics: metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)

	handler := NewRouter(Params{
		Config:       cfg,
		Logger:       logg,
		DB:           client,
		Redis:        rdb,
		Gatherer:     reg,
		Slots:        engine,
		Reservations: engine,
		Drafts:       orderSvc,
		Orders:       orderSvc,
		SlotAdmin:    store,
		Inventory:    ledger,
		Reconciler:   reconciler,
		Jobs:         runner,
	})

	require.NoError(t, client.DB().Create(&models.InventoryItem{ProductID: "cake", VariantKey: "6-inch", StockQty: 5, Active: true}).Error)
	return &testServer{handler: handler, cfg: cfg, ledger: ledger, slots: slotRepo}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func (s *testServer) staffToken(t *testing.T, role enums.StaffRole) string {
	t.Helper()
	token, err := pkgAuth.NewTokens(s.cfg.JWT).Issue("staff-"+role.String(), role)
	require.NoError(t, err)
	return "Bearer " + token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	require.NotNil(t, env.Error, "expected error envelope, got %s", resp.Body.String())
	return env.Error.Code
}

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format(slots.DateLayout)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", "", nil).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	metricsResp := srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
}

func TestGuestRoutesRequireCredential(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/reservations/hold", `{"date":"2026-10-16","window":"MORNING"}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))

	resp = srv.do(t, http.MethodGet, "/api/v1/orders/me", "", map[string]string{guestsession.HeaderName: "not-a-credential"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))
}

func TestAdminRoutesRequireRole(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/api/admin/v1/reconcile?days=3", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/admin/v1/reconcile?days=3", "", map[string]string{"Authorization": srv.staffToken(t, enums.StaffRolePayments)})
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/admin/v1/reconcile?days=3", "", map[string]string{"Authorization": srv.staffToken(t, enums.StaffRoleAdmin)})
	require.Equal(t, http.StatusOK, resp.Code)
	var report reconcile.Report
	decode(t, resp, &report)
	require.Equal(t, 3, report.Days)
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	day := tomorrow()

	draftResp := srv.do(t, http.MethodPost, "/api/v1/orders/draft", `{"items":[{"productId":"cake","variantKey":"6-inch","quantity":2}]}`, nil)
	require.Equal(t, http.StatusCreated, draftResp.Code, draftResp.Body.String())
	credential := draftResp.Header().Get(guestsession.HeaderName)
	require.NotEmpty(t, credential)
	var draft struct {
		Order struct {
			ID            string `json:"id"`
			SubtotalCents int    `json:"subtotalCents"`
		} `json:"order"`
	}
	decode(t, draftResp, &draft)
	require.Equal(t, 5000, draft.Order.SubtotalCents)
	guest := map[string]string{guestsession.HeaderName: credential}

	holdResp := srv.do(t, http.MethodPost, "/api/v1/reservations/hold", fmt.Sprintf(`{"date":%q,"window":"MORNING"}`, day), guest)
	require.Equal(t, http.StatusOK, holdResp.Code, holdResp.Body.String())

	// capacity defaults to one, so a second shopper finds the slot full
	otherResp := srv.do(t, http.MethodPost, "/api/v1/orders/draft", `{"items":[{"productId":"cake","variantKey":"6-inch","quantity":1}]}`, nil)
	require.Equal(t, http.StatusCreated, otherResp.Code)
	other := map[string]string{guestsession.HeaderName: otherResp.Header().Get(guestsession.HeaderName)}
	fullResp := srv.do(t, http.MethodPost, "/api/v1/reservations/hold", fmt.Sprintf(`{"date":%q,"window":"MORNING"}`, day), other)
	require.Equal(t, http.StatusConflict, fullResp.Code)
	require.Equal(t, "SLOT_FULL", errorCode(t, fullResp))

	listResp := srv.do(t, http.MethodGet, "/api/v1/slots?from="+day+"&days=1", "", nil)
	require.Equal(t, http.StatusOK, listResp.Code)
	var listing struct {
		Slots []struct {
			ID        string `json:"id"`
			Available int    `json:"available"`
		} `json:"slots"`
	}
	decode(t, listResp, &listing)
	require.Len(t, listing.Slots, 3)
	require.Equal(t, slots.ID(day, enums.SlotWindowMorning), listing.Slots[0].ID)
	require.Equal(t, 0, listing.Slots[0].Available)

	payments := map[string]string{
		"Authorization":   srv.staffToken(t, enums.StaffRolePayments),
		"Idempotency-Key": "pay-1",
	}
	confirmPath := "/api/admin/v1/orders/" + draft.Order.ID + "/confirm-payment"
	payResp := srv.do(t, http.MethodPost, confirmPath, `{"method":"card"}`, payments)
	require.Equal(t, http.StatusOK, payResp.Code, payResp.Body.String())

	replay := srv.do(t, http.MethodPost, confirmPath, `{"method":"card"}`, payments)
	require.Equal(t, http.StatusOK, replay.Code)
	require.JSONEq(t, payResp.Body.String(), replay.Body.String())

	item, err := srv.ledger.Get(context.Background(), "cake", "6-inch")
	require.NoError(t, err)
	require.Equal(t, 3, item.StockQty)

	missingKey := srv.do(t, http.MethodPost, "/api/admin/v1/orders/"+draft.Order.ID+"/cancel", "", map[string]string{"Authorization": srv.staffToken(t, enums.StaffRoleAdmin)})
	require.Equal(t, http.StatusBadRequest, missingKey.Code)

	cancelResp := srv.do(t, http.MethodPost, "/api/admin/v1/orders/"+draft.Order.ID+"/cancel", "", map[string]string{
		"Authorization":   srv.staffToken(t, enums.StaffRoleAdmin),
		"Idempotency-Key": "cancel-1",
	})
	require.Equal(t, http.StatusOK, cancelResp.Code, cancelResp.Body.String())

	item, err = srv.ledger.Get(context.Background(), "cake", "6-inch")
	require.NoError(t, err)
	require.Equal(t, 5, item.StockQty)

	slot, err := srv.slots.Find(context.Background(), slots.ID(day, enums.SlotWindowMorning))
	require.NoError(t, err)
	require.Equal(t, 0, slot.Reserved)
}

func TestHoldRateLimited(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.HoldLimit = 1
	})

	guest := map[string]string{guestsession.HeaderName: "x.y"}
	body := fmt.Sprintf(`{"date":%q,"window":"MORNING"}`, tomorrow())
	first := srv.do(t, http.MethodPost, "/api/v1/reservations/hold", body, guest)
	require.Equal(t, http.StatusUnauthorized, first.Code)
	second := srv.do(t, http.MethodPost, "/api/v1/reservations/hold", body, guest)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "RATE_LIMITED", errorCode(t, second))
}
