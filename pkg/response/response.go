// Package response holds the success envelope returned by every endpoint.
package response

import "github.com/labstack/echo/v4"

type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func JSON(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Message: message, Data: data})
}
