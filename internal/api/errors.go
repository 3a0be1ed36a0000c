package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/optix-bridge/optix-bridge/internal/logger"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs err with a correlation id and writes the error response.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	level := logger.LogLevelWarn
	if code >= http.StatusInternalServerError {
		level = logger.LogLevelError
	}
	s.log.Log(level, "API error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Error(err),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method))

	return c.JSON(code, resp)
}

func (s *Server) unavailable(c echo.Context, component string) error {
	return s.HandleError(c, nil, component+" is not enabled", http.StatusServiceUnavailable)
}
