package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON shape of every error response.
type Body struct {
	Message         string            `json:"message"`
	Code            Kind              `json:"code,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
	CurrentStatus   string            `json:"current_status,omitempty"`
	RequestedStatus string            `json:"requested_status,omitempty"`
}

// HTTPErrorHandler renders *Error values with their mapped status, passes
// echo.HTTPError through, and hides everything else behind a 500.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func render(err error) (int, Body) {
	var ae *Error
	if errors.As(err, &ae) {
		return StatusCode(ae.Kind), Body{
			Message:         ae.Message,
			Code:            ae.Kind,
			Errors:          ae.Fields,
			CurrentStatus:   ae.Current,
			RequestedStatus: ae.Requested,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, Body{Message: msg}
	}

	return http.StatusInternalServerError, Body{Message: "internal server error"}
}
