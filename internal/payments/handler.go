package payments

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/httpx"
	"github.com/tailorhub/tailorhub/internal/shared"
	"github.com/tailorhub/tailorhub/internal/tracking"
)

// KeyGuard claims idempotency keys. *shared.IdempotencyStore satisfies it.
type KeyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler exposes payment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	keys      KeyGuard
	loc       *time.Location
	now       func() time.Time
}

// NewHandler builds the payments handler.
func NewHandler(logger *slog.Logger, service *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), loc: loc, now: time.Now}
}

// WithIdempotency makes POST /orders/{id}/payments honour the
// Idempotency-Key header: a replayed key is rejected with 409 instead of
// recording the payment twice.
func (h *Handler) WithIdempotency(keys KeyGuard) *Handler {
	h.keys = keys
	return h
}

func (h *Handler) listForOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	payments, err := h.service.ListByOrder(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "list order payments failed", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := RecordInput{Amount: req.Amount, Method: req.Method, Note: req.Note}
	if req.PaymentDate != "" {
		day, err := time.ParseInLocation(httpx.DateLayout, req.PaymentDate, h.loc)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		now := h.now()
		if !tracking.SameDay(day, now, h.loc) {
			input.PaidAt = day
		}
	}

	key := r.Header.Get(shared.IdempotencyHeader)
	module := "payments:" + p.ID
	guarded := key != "" && h.keys != nil
	if guarded {
		if err := h.keys.CheckAndInsert(r.Context(), key, module); err != nil {
			h.fail(w, "claim idempotency key failed", err)
			return
		}
	}

	receipt, err := h.service.Record(r.Context(), p, chi.URLParam(r, "id"), input)
	if err != nil {
		if guarded {
			if derr := h.keys.Delete(context.WithoutCancel(r.Context()), key, module); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, "record payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) listRange(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
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
	today := tracking.StartOfDay(h.now(), h.loc)
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -6)
	}
	end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)

	payments, err := h.service.ListRange(r.Context(), p, r.URL.Query().Get("branch_id"), from, end)
	if err != nil {
		h.fail(w, "list payments failed", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
