// Package handler implements the HTTP API surface of the lifecycle daemon.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// maxBodyBytes caps request bodies; operation requests are tiny JSON objects.
const maxBodyBytes = 1 << 16

// writeJSON marshals v as JSON and writes it with the given status code. If
// marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and unmarshals the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, dst)
}

// resultResponse is the JSON shape returned for every orchestrated operation.
type resultResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"txHash,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// writeResult renders an OperationResult. Failures map onto HTTP statuses by
// their kind so API clients can branch without parsing messages.
func writeResult(w http.ResponseWriter, res domain.OperationResult) {
	writeJSON(w, resultStatus(res), resultResponse{
		Success:   res.Success,
		TxHash:    res.TxHash,
		ErrorKind: string(res.ErrorKind),
		Message:   res.Message,
	})
}

func resultStatus(res domain.OperationResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorKind {
	case domain.ErrKindInvalidAmount:
		return http.StatusBadRequest
	case domain.ErrKindInsufficientFunds, domain.ErrKindInsufficientPaired:
		return http.StatusUnprocessableEntity
	case domain.ErrKindUserRejected, domain.ErrKindApprovalRejected:
		return http.StatusConflict
	case domain.ErrKindConfigMissing:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// pathParam extracts a named path parameter using Go 1.22+ routing.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler attaches the handler name as a slog field.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
