package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"campusagent/internal/store"
	"campusagent/internal/tools"
)

// studentHandler serves the student CRUD routes. Identifier-taking routes go
// through the same resolution policy as the agent tools.
type studentHandler struct {
	students StudentStore
	validate *validator.Validate
	logger   *slog.Logger
}

type createStudentRequest struct {
	Name       string `json:"name"`
	StudentID  int64  `json:"student_id"`
	Department string `json:"department"`
	Email      string `json:"email"`
}

type updateStudentRequest struct {
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
}

// create handles POST /students.
func (h *studentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "validation", "name is required", h.logger)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Var(email, "required,email"); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid email address", h.logger)
		return
	}

	st, err := h.students.CreateStudent(r.Context(), req.Name, req.StudentID, req.Department, email)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	h.touchActivity(r, st.Email)
	writeJSON(w, http.StatusOK, st, h.logger)
}

// get handles GET /students?email=|student_id=.
func (h *studentHandler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		st  *store.Student
		err error
	)
	switch {
	case q.Get("email") != "":
		st, err = h.students.StudentByEmail(r.Context(), strings.ToLower(strings.TrimSpace(q.Get("email"))))
	case q.Get("student_id") != "":
		var campusID int64
		campusID, err = strconv.ParseInt(strings.TrimSpace(q.Get("student_id")), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "student_id must be an integer", h.logger)
			return
		}
		st, err = h.students.StudentByCampusID(r.Context(), campusID)
	default:
		writeError(w, http.StatusBadRequest, "validation", "email or student_id query parameter is required", h.logger)
		return
	}

	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, st, h.logger)
}

// update handles PUT /students?identifier=.
func (h *studentHandler) update(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "validation", "identifier query parameter is required", h.logger)
		return
	}

	var req updateStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body", h.logger)
		return
	}

	value, err := tools.NormalizeUpdateValue(h.validate, req.Field, req.NewValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error(), h.logger)
		return
	}

	st, err := tools.ResolveStudent(r.Context(), h.students, identifier)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	updated, err := h.students.UpdateStudentField(r.Context(), st.ID, req.Field, value)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	h.touchActivity(r, updated.Email)
	writeJSON(w, http.StatusOK, updated, h.logger)
}

// delete handles DELETE /students?identifier=.
func (h *studentHandler) delete(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "validation", "identifier query parameter is required", h.logger)
		return
	}

	st, err := tools.ResolveStudent(r.Context(), h.students, identifier)
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	if err := h.students.DeleteStudent(r.Context(), st.ID); err != nil {
		writeStoreError(w, err, h.logger)
		return
	}

	h.logger.Info("student deleted", "email", st.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Student %s deleted", st.Email),
	}, h.logger)
}

// list handles GET /students/list.
func (h *studentHandler) list(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.ListStudents(r.Context())
	if err != nil {
		writeStoreError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students}, h.logger)
}

// touchActivity records a write against the activity log. Failures are logged
// and ignored; the log feeds analytics, not correctness.
func (h *studentHandler) touchActivity(r *http.Request, email string) {
	if err := h.students.RecordActivity(r.Context(), email, time.Now()); err != nil {
		h.logger.Warn("recording activity", "email", email, "error", err)
	}
}
