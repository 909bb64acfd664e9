package activity

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/httpx"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// Handler exposes activity endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	loc     *time.Location
}

// NewHandler builds the activity handler. Date filters are interpreted in loc.
func NewHandler(logger *slog.Logger, service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, service: service, loc: loc}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(access.RequirePrincipal)
		r.Get("/activity", h.list)
		r.Get("/activity/summary/me", h.mySummary)
		r.Get("/activity/summary/branch", h.branchSummary)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	from, err := httpx.QueryDate(r, "from", h.loc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to", h.loc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	page, err := h.service.List(r.Context(), p, ListQuery{
		BranchID: q.Get("branch_id"),
		UserID:   q.Get("user_id"),
		Entity:   Entity(strings.ToUpper(q.Get("entity"))),
		Action:   Action(strings.ToUpper(q.Get("action"))),
		From:     from,
		To:       to,
		Page:     httpx.QueryInt(r, "page", 1),
		PerPage:  httpx.QueryInt(r, "per_page", 20),
	})
	if err != nil {
		h.fail(w, "list activity failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) mySummary(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	summary, err := h.service.UserSummary(r.Context(), p, r.URL.Query().Get("user_id"), windowParam(r))
	if err != nil {
		h.fail(w, "user activity summary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) branchSummary(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	summary, err := h.service.BranchSummary(r.Context(), p, r.URL.Query().Get("branch_id"), windowParam(r), httpx.QueryInt(r, "top", DefaultTopN))
	if err != nil {
		h.fail(w, "branch activity summary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func windowParam(r *http.Request) time.Duration {
	days := httpx.QueryInt(r, "days", int(DefaultWindow/(24*time.Hour)))
	return time.Duration(days) * 24 * time.Hour
}
