package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/orders/{id}")
	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `tailorhub_http_requests_total{code="418",route="/orders/{id}"} 1`)
	assert.Contains(t, body, `tailorhub_http_request_duration_seconds_bucket{route="/orders/{id}"`)
}

func TestBusinessCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.PaymentRecorded("CASH", decimal.RequireFromString("100.50"))
	metrics.PaymentRecorded("CASH", decimal.RequireFromString("20"))
	metrics.PaymentRejected("exceeds_balance")
	metrics.Notification("payment_confirmation", "email", true)
	metrics.Notification("due_reminder", "sms", false)

	body := scrape(t, metrics)
	assert.Contains(t, body, `tailorhub_payments_recorded_total{method="CASH"} 2`)
	assert.Contains(t, body, `tailorhub_payments_amount_total{method="CASH"} 120.5`)
	assert.Contains(t, body, `tailorhub_payments_rejected_total{reason="exceeds_balance"} 1`)
	assert.Contains(t, body, `tailorhub_notifications_total{channel="email",kind="payment_confirmation",outcome="sent"} 1`)
	assert.Contains(t, body, `tailorhub_notifications_total{channel="sms",kind="due_reminder",outcome="failed"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.PaymentRecorded("CASH", decimal.NewFromInt(1))
	m.PaymentRejected("x")
	m.Notification("k", "email", true)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
