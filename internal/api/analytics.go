package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// activityWindow is the lookback window for the active-students aggregate.
const activityWindow = 7 * 24 * time.Hour

// defaultRecentLimit matches the recent-onboarded tool default.
const defaultRecentLimit = 5

// analyticsHandler serves the enrollment aggregate routes.
type analyticsHandler struct {
	students StudentStore
	logger   *slog.Logger
}

// total handles GET /analytics/total.
func (h *analyticsHandler) total(w http.ResponseWriter, r *http.Request) {
	count, err := h.students.CountStudents(r.Context())
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_students": count}, h.logger)
}

// byDepartment handles GET /analytics/by-department.
func (h *analyticsHandler) byDepartment(w http.ResponseWriter, r *http.Request) {
	counts, err := h.students.StudentsByDepartment(r.Context())
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students_by_department": counts}, h.logger)
}

// recent handles GET /analytics/recent?limit=.
func (h *analyticsHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultRecentLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation", "limit must be a positive integer", h.logger)
			return
		}
		limit = parsed
	}

	students, err := h.students.RecentStudents(r.Context(), int32(limit))
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent_students": students}, h.logger)
}

// active handles GET /analytics/active, backed by the activity log.
func (h *analyticsHandler) active(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.ActiveStudentsSince(r.Context(), time.Now().Add(-activityWindow))
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active_last_7_days": students}, h.logger)
}
