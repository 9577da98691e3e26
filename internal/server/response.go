package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// envelope is the success response shape.
type envelope struct {
	Data    any    `json:"data"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path"`
}

// apiError is the error response shape.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Path    string `json:"path"`
	Status  int    `json:"status"`
}

func requestPath(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().URL.Path
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, envelope{Data: data, Status: status, Message: message, Path: requestPath(c)})
}

func ok(c echo.Context, data any) error {
	return respond(c, http.StatusOK, data, "")
}

func accepted(c echo.Context, data any, message string) error {
	return respond(c, http.StatusAccepted, data, message)
}

func fail(c echo.Context, status int, message, detail string) error {
	return c.JSON(status, apiError{Message: message, Error: detail, Path: requestPath(c), Status: status})
}

func badRequest(c echo.Context, message, detail string) error {
	return fail(c, http.StatusBadRequest, message, detail)
}

func notFound(c echo.Context, message, detail string) error {
	return fail(c, http.StatusNotFound, message, detail)
}

func internalError(c echo.Context, message string, err error) error {
	return fail(c, http.StatusInternalServerError, message, err.Error())
}

// errorHandler renders echo's own errors (unknown route, bad method, body
// too large) in the error envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = fail(c, status, message, err.Error())
}
