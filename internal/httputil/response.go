package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Vovarama1992/ebeef-copilot/internal/validate"
)

// ErrorResponse is the error envelope for every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("httputil: json encode", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "NOT_FOUND", message)
}

// InternalError logs the real error and answers with a generic message.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("request failed", "error", err)
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Erro interno do servidor")
}

// ValidationFailed writes a 400 with field-level details when err is a
// *validate.Error and reports whether it did.
func ValidationFailed(w http.ResponseWriter, err error) bool {
	var verr *validate.Error
	if !errors.As(err, &verr) {
		return false
	}
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Dados inválidos",
		Code:    "VALIDATION_ERROR",
		Details: verr.Fields,
	})
	return true
}

// Decode reads a JSON body into dst, writing a 400 on failure.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid json")
		return false
	}
	return true
}
