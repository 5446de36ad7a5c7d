package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/logging"
)

// APIError is the JSON error body of every failed API request.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	e.TraceID = logging.TraceID(r.Context())
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewAPIErrorWithDetails creates an APIError carrying details.
func NewAPIErrorWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// Error codes.
const (
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeHorizonOutOfRange = "HORIZON_OUT_OF_RANGE"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	CodeInternal          = "INTERNAL_SERVER_ERROR"
)

// HorizonDetails describes an accepted horizon range.
type HorizonDetails struct {
	Horizon int `json:"horizon"`
	Min     int `json:"min"`
	Max     int `json:"max"`
}

// errorHandler maps errors to APIError responses and logs them.
type errorHandler struct {
	logger *slog.Logger
}

func newErrorHandler(logger *slog.Logger) *errorHandler {
	return &errorHandler{logger: logging.Component(logger, "error_handler")}
}

// toAPIError classifies err.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fe *forecast.ForecastError
	if errors.As(err, &fe) {
		return NewAPIErrorWithDetails(http.StatusBadRequest, CodeHorizonOutOfRange, fe.Error(),
			HorizonDetails{Horizon: fe.Horizon, Min: fe.Min, Max: fe.Max})
	}
	return NewAPIError(http.StatusInternalServerError, CodeInternal, "internal server error")
}

func (h *errorHandler) handle(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	level := slog.LevelWarn
	if apiErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"error", err.Error(),
		"status", apiErr.StatusCode,
		"method", r.Method,
		"path", r.URL.Path)
	_ = render.Render(w, r, apiErr)
}
