package orders

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/httpx"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// Handler exposes order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), p, ListQuery{
		BranchID:   q.Get("branch_id"),
		Status:     Status(strings.ToUpper(q.Get("status"))),
		Urgency:    tracking.Tier(strings.ToLower(q.Get("urgency"))),
		CustomerID: q.Get("customer_id"),
		Search:     q.Get("search"),
		OpenOnly:   q.Get("open") == "true",
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "per_page", 20),
	})
	if err != nil {
		h.fail(w, "list orders failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	view, err := h.service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	var body createOrderBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc := h.service.Location()
	req := CreateOrderRequest{
		CustomerID:  body.CustomerID,
		Description: body.Description,
		Images:      body.Images,
		TotalAmount: body.TotalAmount,
	}
	req.DueDate, _ = time.ParseInLocation(httpx.DateLayout, body.DueDate, loc)
	if body.OrderDate != "" {
		orderDate, _ := time.ParseInLocation(httpx.DateLayout, body.OrderDate, loc)
		req.OrderDate = &orderDate
	}
	view, err := h.service.Create(r.Context(), p, req)
	if err != nil {
		h.fail(w, "create order failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	var body updateOrderBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req := UpdateOrderRequest{
		Description: body.Description,
		Images:      body.Images,
		TotalAmount: body.TotalAmount,
	}
	if body.DueDate != nil {
		due, _ := time.ParseInLocation(httpx.DateLayout, *body.DueDate, h.service.Location())
		req.DueDate = &due
	}
	view, err := h.service.Update(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "update order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	var body statusBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.ChangeStatus(r.Context(), p, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.fail(w, "change order status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete order failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
