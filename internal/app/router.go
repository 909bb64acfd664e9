package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tailorhub/tailorhub/internal/activity"
	"github.com/tailorhub/tailorhub/internal/auth"
	"github.com/tailorhub/tailorhub/internal/branches"
	"github.com/tailorhub/tailorhub/internal/customers"
	"github.com/tailorhub/tailorhub/internal/observability"
	"github.com/tailorhub/tailorhub/internal/orders"
	"github.com/tailorhub/tailorhub/internal/payments"
	"github.com/tailorhub/tailorhub/internal/platform/httpx"
	"github.com/tailorhub/tailorhub/internal/reports"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/users"
	"github.com/tailorhub/tailorhub/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	PrincipalLoader auth.PrincipalLoader

	AuthHandler      *auth.Handler
	BranchesHandler  *branches.Handler
	UsersHandler     *users.Handler
	CustomersHandler *customers.Handler
	OrdersHandler    *orders.Handler
	PaymentsHandler  *payments.Handler
	ReportsHandler   *reports.Handler
	ActivityHandler  *activity.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics

	// Checks are probed by /healthz, keyed by component name.
	Checks map[string]Pinger
}

// NewRouter constructs the chi.Router with Tailorhub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.PrincipalLoader != nil {
		r.Use(auth.LoadPrincipal(params.PrincipalLoader, params.SessionManager, params.Logger))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not found", "No route matches "+r.URL.Path+".")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" is not supported here.")
	})

	r.Get("/healthz", healthz(params.Checks, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.BranchesHandler != nil {
		params.BranchesHandler.MountRoutes(r)
	}
	if params.UsersHandler != nil {
		params.UsersHandler.MountRoutes(r)
	}
	if params.CustomersHandler != nil {
		params.CustomersHandler.MountRoutes(r)
	}
	if params.OrdersHandler != nil {
		params.OrdersHandler.MountRoutes(r)
	}
	if params.PaymentsHandler != nil {
		params.PaymentsHandler.MountRoutes(r)
	}
	if params.ReportsHandler != nil {
		params.ReportsHandler.MountRoutes(r)
	}
	if params.ActivityHandler != nil {
		params.ActivityHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	return r
}

func healthz(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
				components[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httpx.JSON(w, status, map[string]any{"status": state, "components": components})
	}
}
