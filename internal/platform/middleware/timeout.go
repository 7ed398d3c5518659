package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const timeoutMessage = "request processing exceeded the allowed time limit"

// RequestTimeout bounds each request with a context deadline. The handler
// runs on the request goroutine, so queries abort once the deadline passes
// and the handler alone decides what is written. A handler that gives up
// with a deadline error gets a 504, unless it already wrote a response.
// Paths in skip (matched by prefix) are left unbounded, as is every path
// when timeout is not positive.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			for _, p := range skip {
				if strings.HasPrefix(path, p) {
					return true
				}
			}
			return false
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if c.Response().Committed {
				return nil
			}
			return c.JSON(http.StatusGatewayTimeout, map[string]string{"message": timeoutMessage})
		},
	})
}
