package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/social"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, code, msg string) {
	respondJSON(ctx, w, status, errorResponse{Error: msg, Code: code})
}

// respondError maps core errors onto HTTP statuses. Store details are not
// echoed to clients.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request error", "code", code, "error", err)
	}
	respondMessage(ctx, w, status, code, msg)
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, social.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", err.Error()
	case errors.Is(err, social.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, social.ErrPartialMutation):
		return http.StatusInternalServerError, "partial_mutation", "friend update was only partially applied"
	case errors.Is(err, social.ErrStoreTimeout):
		return http.StatusGatewayTimeout, "store_timeout", "storage did not respond in time"
	case errors.Is(err, social.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable", "storage is unavailable"
	case errors.Is(err, context.Canceled):
		return 499, "canceled", "request canceled"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
