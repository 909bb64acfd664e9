package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/platform/httpx"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// Handler exposes report and dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pdf     PDFRenderer
}

// NewHandler builds the reports handler. pdf may be nil, which disables PDF
// exports.
func NewHandler(logger *slog.Logger, service *Service, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, service: service, pdf: pdf}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(access.RequirePrincipal)
		r.Get("/reports/weekly", h.weekly)
		r.Get("/reports/range", h.rangeReport)
		r.Get("/reports/export", h.export)
		r.Get("/dashboard", h.dashboard)
	})
}

func (h *Handler) weekly(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	summary, err := h.service.Weekly(r.Context(), p, q.Get("branch_id"), Week(q.Get("week")))
	if err != nil {
		h.fail(w, "weekly report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) rangeReport(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	summary, err := h.summaryFromQuery(r, p)
	if err != nil {
		h.fail(w, "range report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// summaryFromQuery serves start/end when both are given and the week
// selector otherwise.
func (h *Handler) summaryFromQuery(r *http.Request, p access.Principal) (Summary, error) {
	q := r.URL.Query()
	loc := h.service.Location()
	start, err := httpx.QueryDate(r, "start", loc)
	if err != nil {
		return Summary{}, err
	}
	end, err := httpx.QueryDate(r, "end", loc)
	if err != nil {
		return Summary{}, err
	}
	if start.IsZero() != end.IsZero() {
		return Summary{}, ErrInvalidRange
	}
	if start.IsZero() {
		return h.service.Weekly(r.Context(), p, q.Get("branch_id"), Week(q.Get("week")))
	}
	return h.service.Range(r.Context(), p, q.Get("branch_id"), start, end)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	format := Format(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX && format != FormatPDF {
		httpx.RespondError(w, ErrInvalidFormat)
		return
	}
	summary, err := h.summaryFromQuery(r, p)
	if err != nil {
		h.fail(w, "export report failed", err)
		return
	}
	body, err := Export(r.Context(), summary, format, h.service.Location(), h.pdf)
	if err != nil {
		h.fail(w, "export report failed", err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+Filename(summary, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())
	d, err := h.service.Dashboard(r.Context(), p, r.URL.Query().Get("branch_id"))
	if err != nil {
		h.fail(w, "dashboard failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
