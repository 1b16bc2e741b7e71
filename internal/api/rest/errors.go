package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chip-counter/internal/domain/entity"
)

const (
	msgNoFile          = "No file uploaded"
	msgDecodeFailed    = "Could not decode image"
	msgDetectionFailed = "Detection failed"
	msgTimedOut        = "Detection timed out"
	msgTooLarge        = "Image too large"
	msgRateLimited     = "Too many requests"
	msgInternal        = "Internal server error"
	msgClientClosed    = "Client closed request"
)

// statusClientClosed is nginx's code for a client that went away mid-request.
const statusClientClosed = 499

// statusFor maps a counting error to an HTTP status and a client-safe message.
// Internal details stay in the server log.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, entity.ErrNoImage):
		return http.StatusBadRequest, msgNoFile
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, entity.ErrDecodeFailed):
		return http.StatusBadRequest, msgDecodeFailed
	case errors.Is(err, context.Canceled):
		return statusClientClosed, msgClientClosed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimedOut
	case errors.Is(err, entity.ErrDetectionFailed):
		return http.StatusInternalServerError, msgDetectionFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// sendError writes {"error": message}. www.SendError only speaks text/plain.
func sendError(w http.ResponseWriter, code int, message string) {
	body, _ := json.Marshal(ErrorResponse{Error: message})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write(body)
}
