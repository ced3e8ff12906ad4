package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/auth"
	"github.com/Shivanand-hulikatti/tigertix/internal/database"
	"github.com/Shivanand-hulikatti/tigertix/internal/handler"
	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/Shivanand-hulikatti/tigertix/internal/purchase"
	"github.com/Shivanand-hulikatti/tigertix/internal/repository"
	"github.com/Shivanand-hulikatti/tigertix/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-test-secret"

type testServer struct {
	srv *httptest.Server
}

func newTestServer(t *testing.T, ping handler.Pinger) *testServer {
	t.Helper()
	db, err := database.OpenGorm(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api.db"),
		MaxConns:    8,
		BusyTimeout: 10 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, repository.MigrateGorm(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	purchases := repository.NewGormPurchaseRepository(db)
	engine := purchase.NewEngine(purchases)

	h := handler.NewRouter(handler.Router{
		Events:       handler.NewEventHandler(service.NewEventService(repository.NewGormEventRepository(db)), zerolog.Nop()),
		Booking:      handler.NewBookingHandler(service.NewBookingService(engine, purchases)),
		Authenticate: auth.NewVerifier(secret, zerolog.Nop()).Middleware,
		Ping:         ping,
		Log:          zerolog.Nop(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv}
}

func token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := auth.IssueToken(secret, auth.User{ID: userID}, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (s *testServer) createEvent(t *testing.T, name string, capacity int) model.Event {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/admin/events", "", map[string]any{
		"name": name, "date": "2026-11-07", "capacity": capacity,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var e model.Event
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func (s *testServer) getEvent(t *testing.T, id int64) model.Event {
	t.Helper()
	resp, body := s.do(t, http.MethodGet, fmt.Sprintf("/api/client/events/%d", id), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var e model.Event
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func decodeError(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, func(context.Context) error { return nil })
	resp, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	down := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	resp, _ = down.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPurchase_Success(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Jazz Night", 20)
	assert.Equal(t, 20, ev.AvailableTickets)

	resp, body := s.do(t, http.MethodPost, "/api/client/purchase", token(t, 42), map[string]any{
		"event_id": ev.ID, "quantity": 2, "customer_name": "Tiger", "customer_email": "tiger@clemson.edu",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out model.PurchaseResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 18, out.Remaining)
	assert.Equal(t, ev.ID, out.Purchase.EventID)
	assert.Equal(t, int64(42), out.Purchase.UserID)
	assert.Equal(t, 2, out.Purchase.Quantity)

	assert.Equal(t, 18, s.getEvent(t, ev.ID).AvailableTickets)
}

func TestPurchase_QuantityAsString(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Career Fair", 5)

	resp, body := s.do(t, http.MethodPost, "/api/client/purchase", token(t, 1),
		fmt.Sprintf(`{"event_id": %d, "quantity": "3"}`, ev.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, 2, s.getEvent(t, ev.ID).AvailableTickets)

	resp, body = s.do(t, http.MethodPost, "/api/llm/confirm_booking", token(t, 1),
		fmt.Sprintf(`{"event_id": "%d", "quantity": " 1"}`, ev.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 1, s.getEvent(t, ev.ID).AvailableTickets)
}

func TestPurchase_Rejections(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Homecoming", 2)
	tok := token(t, 7)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"zero quantity", fmt.Sprintf(`{"event_id": %d, "quantity": 0}`, ev.ID), http.StatusBadRequest, "Quantity must be a positive integer"},
		{"negative quantity", fmt.Sprintf(`{"event_id": %d, "quantity": -1}`, ev.ID), http.StatusBadRequest, "Quantity must be a positive integer"},
		{"fractional quantity", fmt.Sprintf(`{"event_id": %d, "quantity": 1.5}`, ev.ID), http.StatusBadRequest, "Quantity must be a positive integer"},
		{"missing quantity", fmt.Sprintf(`{"event_id": %d}`, ev.ID), http.StatusBadRequest, "Missing required field: quantity"},
		{"word quantity", fmt.Sprintf(`{"event_id": %d, "quantity": "abc"}`, ev.ID), http.StatusBadRequest, "Quantity must be a positive integer"},
		{"bool quantity", fmt.Sprintf(`{"event_id": %d, "quantity": true}`, ev.ID), http.StatusBadRequest, "Quantity must be a positive integer"},
		{"null quantity", fmt.Sprintf(`{"event_id": %d, "quantity": null}`, ev.ID), http.StatusBadRequest, "Missing required field: quantity"},
		{"missing event", `{"quantity": 1}`, http.StatusBadRequest, "Missing required field: event_id"},
		{"word event", `{"event_id": "jazz", "quantity": 1}`, http.StatusBadRequest, "event_id must be a positive integer"},
		{"unknown event", `{"event_id": 9999, "quantity": 1}`, http.StatusNotFound, "Event not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/api/client/purchase", tok, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Equal(t, tt.wantError, decodeError(t, body)["error"])
		})
	}

	assert.Equal(t, 2, s.getEvent(t, ev.ID).AvailableTickets)
}

func TestPurchase_InsufficientReportsRemaining(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Basketball", 3)

	resp, body := s.do(t, http.MethodPost, "/api/client/purchase", token(t, 1), map[string]any{"event_id": ev.ID, "quantity": 5})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	m := decodeError(t, body)
	assert.Equal(t, "Not enough tickets available", m["error"])
	assert.EqualValues(t, 3, m["remaining"])

	resp, _ = s.do(t, http.MethodPost, "/api/client/purchase", token(t, 1), map[string]any{"event_id": ev.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/client/purchase", token(t, 2), map[string]any{"event_id": ev.ID, "quantity": 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 0, decodeError(t, body)["remaining"])
}

func TestPurchase_RequiresAuth(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Concert", 10)

	resp, body := s.do(t, http.MethodPost, "/api/client/purchase", "", map[string]any{"event_id": ev.ID, "quantity": 1})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, true, decodeError(t, body)["requiresAuth"])

	resp, _ = s.do(t, http.MethodPost, "/api/llm/confirm_booking", "garbage", map[string]any{"event_id": ev.ID, "quantity": 1})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 10, s.getEvent(t, ev.ID).AvailableTickets)
}

func TestConfirmBooking(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Jazz Night", 4)

	resp, body := s.do(t, http.MethodPost, "/api/llm/confirm_booking", token(t, 9), map[string]any{"event_id": ev.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out model.BookingResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Success)
	assert.Equal(t, "Successfully booked 2 ticket(s) for Jazz Night", out.Message)
	assert.Equal(t, "Jazz Night", out.EventName)
	assert.Equal(t, 2, out.Quantity)
	assert.Equal(t, 2, out.Remaining)

	resp, body = s.do(t, http.MethodPost, "/api/llm/confirm_booking", token(t, 9), map[string]any{"event_id": ev.ID, "quantity": 3})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 2, decodeError(t, body)["remaining"])
}

func TestBothEntryPointsShareInventory(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Last Seats", 10)

	tokens := make([]string, 16)
	for i := range tokens {
		tokens[i] = token(t, int64(i+1))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/api/client/purchase"
			if i%2 == 1 {
				path = "/api/llm/confirm_booking"
			}
			body := fmt.Sprintf(`{"event_id": %d, "quantity": 1}`, ev.ID)
			req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, bytes.NewReader([]byte(body)))
			if err != nil {
				return
			}
			req.Header.Set("Authorization", "Bearer "+tokens[i])
			resp, err := s.srv.Client().Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, sold)
	assert.Equal(t, 0, s.getEvent(t, ev.ID).AvailableTickets)

	resp, body := s.do(t, http.MethodGet, "/api/client/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body), "sold-out events are not listed")
}

func TestListPurchases(t *testing.T) {
	s := newTestServer(t, nil)
	ev := s.createEvent(t, "Jazz Night", 10)

	for _, q := range []int{1, 2} {
		resp, _ := s.do(t, http.MethodPost, "/api/client/purchase", token(t, 5), map[string]any{"event_id": ev.ID, "quantity": q})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, _ := s.do(t, http.MethodPost, "/api/client/purchase", token(t, 6), map[string]any{"event_id": ev.ID, "quantity": 4})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/client/purchases", token(t, 5), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ps []model.Purchase
	require.NoError(t, json.Unmarshal(body, &ps))
	require.Len(t, ps, 2)
	assert.Equal(t, 2, ps[0].Quantity, "newest first")
	assert.Equal(t, 1, ps[1].Quantity)
}

func TestAdminEvents(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/api/admin/events", "", `{"name": "", "date": "2026-11-07", "capacity": 5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "event name is required", decodeError(t, body)["error"])

	resp, _ = s.do(t, http.MethodPost, "/api/admin/events", "", `{"name": "x", "date": "2026-11-07", "capacity": 5, "available_tickets": 99}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields rejected")

	ev := s.createEvent(t, "Jazz Night", 10)

	resp, _ = s.do(t, http.MethodPost, "/api/client/purchase", token(t, 1), map[string]any{"event_id": ev.ID, "quantity": 4})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, http.MethodPut, fmt.Sprintf("/api/admin/events/%d", ev.ID), "", map[string]any{"capacity": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated model.Event
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, 20, updated.Capacity)
	assert.Equal(t, 16, updated.AvailableTickets)

	resp, _ = s.do(t, http.MethodPut, fmt.Sprintf("/api/admin/events/%d", ev.ID), "", map[string]any{"capacity": 3})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, fmt.Sprintf("/api/admin/events/%d", ev.ID), "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/events/%d", ev.ID), "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "event has purchases")

	empty := s.createEvent(t, "Cancelled Show", 5)
	resp, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/events/%d", empty.ID), "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/admin/events/%d", empty.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/admin/events/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/admin/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []model.Event
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 1)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	resp, _ := s.do(t, http.MethodOptions, "/api/client/purchase", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(t, nil)
	resp, body := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tigertix_tickets_sold_total")
}
