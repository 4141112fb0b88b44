package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"campusagent/internal/agent"
)

// chatHandler serves the conversational endpoints.
//
// Endpoints:
//   - GET /chat?q=        - Synchronous chat (JSON response)
//   - GET /chat/stream?q= - Streaming chat (SSE - Server-Sent Events)
//
// Both run the same dispatch loop against the caller's conversation thread;
// only the delivery granularity differs.
type chatHandler struct {
	agent  ChatAgent
	logger *slog.Logger
}

type chatResponse struct {
	Response  string           `json:"response"`
	ToolCalls []agent.ToolCall `json:"tool_calls,omitempty"`
}

// send handles synchronous chat requests.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "validation", "q query parameter is required", h.logger)
		return
	}

	email, ok := adminEmailFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "admin identity required", h.logger)
		return
	}

	resp, err := h.agent.Execute(r.Context(), email, query)
	if err != nil {
		if errors.Is(err, agent.ErrTurnBudgetExceeded) {
			writeJSON(w, http.StatusOK, chatResponse{Response: agent.BudgetExceededResponse}, h.logger)
			return
		}
		h.logger.Error("chat execution failed", "admin", email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "chat execution failed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: resp.FinalText, ToolCalls: resp.ToolCalls}, h.logger)
}

// stream handles SSE streaming chat requests. Answer text is forwarded in
// data frames as it arrives; tool invocations and errors appear as
// bracket-prefixed frames so a plain-text consumer can tell them apart.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	if query == "" {
		_ = writeFrame(w, flusher, "[error] q query parameter is required")
		return
	}

	email, ok := adminEmailFromContext(r.Context())
	if !ok {
		_ = writeFrame(w, flusher, "[error] admin identity required")
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "admin", email)

	sentText := false
	callback := func(_ context.Context, ev agent.Event) error {
		switch ev.Kind {
		case agent.EventText:
			if ev.Text == "" {
				return nil
			}
			sentText = true
			return writeFrame(w, flusher, ev.Text)
		case agent.EventToolStart, agent.EventToolEnd:
			return writeFrame(w, flusher, fmt.Sprintf("[tool %s] %s", ev.Tool, ev.Status))
		default:
			return nil
		}
	}

	resp, err := h.agent.ExecuteStream(ctx, email, query, callback)
	switch {
	case err == nil:
		// Some model responses arrive whole rather than in chunks. Make sure
		// the client still receives the answer.
		if !sentText && resp != nil && resp.FinalText != "" {
			_ = writeFrame(w, flusher, resp.FinalText)
		}
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		_ = writeFrame(w, flusher, agent.BudgetExceededResponse)
	case ctx.Err() != nil:
		// Client went away; nothing left to write.
		h.logger.Info("client disconnected", "admin", email)
		return
	default:
		h.logger.Error("chat stream failed", "admin", email, "error", err)
		_ = writeFrame(w, flusher, "[error] chat execution failed")
		return
	}

	h.logger.Debug("SSE stream completed", "admin", email)
}

// writeFrame writes one SSE data frame and flushes it. Embedded newlines are
// split across data lines so the frame stays valid SSE.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, text string) error {
	for _, line := range strings.Split(text, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	flusher.Flush()
	return nil
}
