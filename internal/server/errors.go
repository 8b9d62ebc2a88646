package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

// httpStatus maps application errors onto HTTP status codes.
func httpStatus(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, async.ErrQueueFull), errors.Is(err, async.ErrQueueClosed),
		errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error as {"error": ..., "code": ...}. Internal
// errors are logged and reported without detail.
func (s *HTTPServer) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := httpStatus(err)
	body := echo.Map{}

	var appErr *common.AppError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		body["code"] = appErr.Code
		body["error"] = appErr.Message
	case errors.As(err, &he):
		body["error"] = he.Message
	default:
		body["error"] = http.StatusText(code)
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("http.error",
			"req_id", common.RequestIDFromContext(c.Request().Context()),
			"path", c.Path(),
			"status", code,
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
