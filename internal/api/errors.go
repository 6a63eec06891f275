package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryState, errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// handleError is the echo.HTTPErrorHandler of the server.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	message := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("path", c.Path()),
			logger.String("request_id", requestID),
			logger.Error(err))
		message = http.StatusText(code)
	}

	resp := ErrorResponse{Error: message, Code: code, RequestID: requestID}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		s.logger.Debug("failed to write error response", logger.Error(err))
	}
}

func badRequest(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}
