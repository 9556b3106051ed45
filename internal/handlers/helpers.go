package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/logging"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse maps the error taxonomy to a status code and a user-facing
// message. Unexpected errors are logged with full detail and surfaced
// generically.
func errorResponse(c echo.Context, err error) error {
	status := apperr.Status(err)
	if status == 500 {
		logging.FromContext(c.Request().Context()).Error("unexpected error", "error", err)
	}
	return c.JSON(status, Response{
		Status:  "error",
		Message: apperr.Message(err),
	})
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, apperr.ErrNotFound
	}
	return uint(id), nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// publish emits a best-effort domain event after the mutation committed.
// Failures are logged and never affect the response.
func publish(c echo.Context, p *mykafka.Producer, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "topic", topic, "error", err)
	}
}
