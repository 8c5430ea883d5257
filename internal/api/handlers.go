// Package api exposes the driving hours service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/drivinghours/internal/auth"
	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/export"
	"example.com/drivinghours/internal/persistence"
)

// maxExportDays bounds the range of a single export request.
const maxExportDays = 92

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	limits  compliance.ExportLimits
	logger  *slog.Logger
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger used for failures after the response has started.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, limits: compliance.DefaultExportLimits, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("PUT /v1/activities/{id}", h.updateActivity)
	mux.HandleFunc("DELETE /v1/activities/{id}", h.deleteActivity)
	mux.HandleFunc("GET /v1/drivers/{driver_id}/daily", h.dailyStats)
	mux.HandleFunc("GET /v1/drivers/{driver_id}/compliance", h.complianceReport)
	mux.HandleFunc("GET /v1/drivers/{driver_id}/export", h.exportActivities)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize returns the caller's claims when they hold scope. Read access is
// also granted by the write scope.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeHoursRead && claims.HasScope(auth.ScopeHoursWrite)) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "driver_id is required")
		return
	}
	typ, err := compliance.ParseActivityType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	agg, replay, err := h.service.LogActivity(r.Context(), domain.LogActivityInput{
		TenantID:       claims.TenantID,
		DriverID:       req.DriverID,
		Type:           typ,
		StartedAt:      req.StartDateTime,
		EndedAt:        req.EndDateTime,
		DurationHours:  req.Duration,
		Source:         defaultSource(req.Source),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateActivityResponse{ActivityView: toActivityView(*agg), Replay: replay})
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	typ, err := compliance.ParseActivityType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	agg, err := h.service.UpdateActivity(r.Context(), domain.UpdateActivityInput{
		TenantID:      claims.TenantID,
		ActivityID:    r.PathValue("id"),
		Type:          typ,
		StartedAt:     req.StartDateTime,
		EndedAt:       req.EndDateTime,
		DurationHours: req.Duration,
		Source:        req.Source,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*agg))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursWrite)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), claims.TenantID, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursRead)
	if !ok {
		return
	}
	agg, err := h.service.GetActivity(r.Context(), claims.TenantID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*agg))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursRead)
	if !ok {
		return
	}

	query := r.URL.Query()
	driverID := strings.TrimSpace(query.Get("driver_id"))
	if driverID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing driver_id parameter")
		return
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	aggs, next, err := h.service.ListActivitiesByDriver(r.Context(), claims.TenantID, driverID, cursor, persistence.PageLimit(limit))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(aggs))
	for _, agg := range aggs {
		items = append(items, toActivityView(agg))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursRead)
	if !ok {
		return
	}
	date, err := h.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	stats, err := h.service.DailyStats(r.Context(), claims.TenantID, r.PathValue("driver_id"), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DailyStatsResponse{
		DriverID:   r.PathValue("driver_id"),
		Date:       h.service.Calendar().DayKey(date),
		DailyStats: stats,
	})
}

func (h *Handler) complianceReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursRead)
	if !ok {
		return
	}
	date, err := h.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	report, err := h.service.ComplianceReport(r.Context(), claims.TenantID, r.PathValue("driver_id"), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ComplianceResponse{
		DriverID:    report.DriverID,
		Date:        h.service.Calendar().DayKey(report.Date),
		Day:         report.Day,
		Weekly:      report.Weekly,
		Fortnight:   report.Fortnight,
		Status:      report.Status,
		EvaluatedAt: report.EvaluatedAt,
	})
}

func (h *Handler) exportActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeHoursRead)
	if !ok {
		return
	}
	from, err := h.dateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	to, err := h.dateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "validation_failed", "to must not be before from")
		return
	}
	if to.Sub(from) > maxExportDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, "validation_failed", fmt.Sprintf("export range is limited to %d days", maxExportDays))
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		writeError(w, http.StatusBadRequest, "validation_failed", "format must be csv or json")
		return
	}

	driverID := r.PathValue("driver_id")
	aggs, err := h.service.ActivitiesBetween(r.Context(), claims.TenantID, driverID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rows := export.Prepare(h.service.Calendar(), domain.Records(aggs), h.limits)

	if format == "json" {
		writeJSON(w, http.StatusOK, ExportResponse{DriverID: driverID, Rows: rows})
		return
	}
	cal := h.service.Calendar()
	filename := fmt.Sprintf("%s_%s_%s.csv", driverID, cal.DayKey(from), cal.DayKey(to))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, rows); err != nil {
		h.logger.ErrorContext(r.Context(), "export write failed",
			slog.String("driver_id", driverID),
			slog.Int("rows", len(rows)),
			slog.Any("error", err),
		)
	}
}

// dateParam parses a YYYY-MM-DD query parameter in the service timezone.
// A missing parameter means today.
func (h *Handler) dateParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return h.service.Calendar().StartOfDay(h.service.Now()), nil
	}
	date, err := h.service.Calendar().ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return date, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func defaultSource(source string) string {
	if strings.TrimSpace(source) == "" {
		return "api"
	}
	return source
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidActivity):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, persistence.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
