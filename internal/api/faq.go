package api

import (
	"log/slog"
	"net/http"

	"campusagent/internal/tools"
)

// faqHandler serves the static campus information routes. The payloads are
// the same ones the FAQ tools hand to the agent.
type faqHandler struct {
	logger *slog.Logger
}

func (h *faqHandler) cafeteria(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"cafeteria_timings": tools.CafeteriaInfo()}, h.logger)
}

func (h *faqHandler) library(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"library_hours": tools.LibraryInfo()}, h.logger)
}

func (h *faqHandler) events(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": tools.Events()}, h.logger)
}
