package response

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Meta holds metadata for every API response.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// Error is the error member of an Envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// Problem is an error response: HTTP status, machine code and the message
// shown to the user.
type Problem struct {
	Status  int
	Code    string
	Message string
}

func (p Problem) Error() string {
	return fmt.Sprintf("%d %s: %s", p.Status, p.Code, p.Message)
}

// Problems written by more than one handler or middleware.
var (
	InvalidJSON = Problem{http.StatusBadRequest, "INVALID_JSON", "Corpo da requisição inválido"}

	// ValidationFailed carries a []FieldError as details.
	ValidationFailed = Problem{http.StatusBadRequest, "VALIDATION_ERROR", "Verifique os campos informados"}

	Unauthenticated    = Problem{http.StatusUnauthorized, "UNAUTHENTICATED", "Faça login para continuar"}
	Forbidden          = Problem{http.StatusForbidden, "FORBIDDEN", "Acesso não permitido para este perfil"}
	RateLimited        = Problem{http.StatusTooManyRequests, "RATE_LIMITED", "Muitas tentativas. Aguarde e tente novamente."}
	SessionUnavailable = Problem{http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Erro de conexão. Tente novamente."}
	Internal           = Problem{http.StatusInternalServerError, "INTERNAL_ERROR", "Erro inesperado. Tente novamente."}
)

// NewMeta stamps a response. An empty requestID gets a fresh UUID.
func NewMeta(requestID string) Meta {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// JSON writes env with status. Envelopes carry session state and are never
// cacheable.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Success writes data in an envelope.
func Success(w http.ResponseWriter, status int, data any, requestID string) {
	JSON(w, status, Envelope{Data: data, Meta: NewMeta(requestID)})
}

// Fail writes p in an envelope. details may be nil.
func Fail(w http.ResponseWriter, p Problem, details any, requestID string) {
	JSON(w, p.Status, Envelope{
		Error: &Error{Code: p.Code, Message: p.Message, Details: details},
		Meta:  NewMeta(requestID),
	})
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Document writes a pre-encoded public JSON document outside the envelope,
// cacheable for maxAge.
func Document(w http.ResponseWriter, body []byte, maxAge time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge/time.Second)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write document", "error", err)
	}
}
