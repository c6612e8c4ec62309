package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lumbung-pos/lumbung/internal/audit"
	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

const defaultDateRange = 7 * 24 * time.Hour

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler menangani permintaan audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TimelineService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters defaults to the last seven days ending today.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	to, err := httpx.QueryDate(r, "to", true)
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if to.IsZero() {
		today := h.now().UTC().Truncate(24 * time.Hour)
		to = today.Add(24 * time.Hour)
	}
	from, err := httpx.QueryDate(r, "from", false)
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if from.IsZero() {
		from = to.Add(-defaultDateRange)
	}
	actorID, err := httpx.QueryInt64(r, "actor_id")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	q := r.URL.Query()
	return audit.TimelineFilters{
		OrganizationID: shared.OrganizationID(r.Context()),
		From:           from,
		To:             to,
		ActorID:        actorID,
		Entity:         strings.TrimSpace(q.Get("entity")),
		EntityID:       strings.TrimSpace(q.Get("entity_id")),
		Action:         strings.TrimSpace(q.Get("action")),
		Page:           httpx.QueryInt(r, "page", 1),
		PageSize:       httpx.QueryInt(r, "page_size", audit.DefaultPageSize),
	}, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && !errors.Is(err, context.Canceled) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
