// Package email is the order notification sink and the client used to reach it.
package email

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Message struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (m Message) Validate() error {
	return validate.Struct(m)
}

// Handler accepts messages over HTTP and logs them in place of delivery. The
// last few are kept for inspection.
type Handler struct {
	logger *slog.Logger

	mu     sync.Mutex
	recent []Message
	keep   int
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger, keep: 100}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := msg.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			h.writeError(w, http.StatusBadRequest, "invalid fields: "+strings.Join(fields, ", "))
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	h.recent = append(h.recent, msg)
	if len(h.recent) > h.keep {
		h.recent = h.recent[len(h.recent)-h.keep:]
	}
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "email sent", "to", msg.To, "subject", msg.Subject)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := make([]Message, len(h.recent))
	copy(out, h.recent)
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
