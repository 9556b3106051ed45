package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
	"github.com/fleetkeeper/fleetkeeper/internal/util"
)

type AuditHandler struct {
	DB *gorm.DB
}

// List is display-only; nothing in the application reads the trail back for
// logic.
func (h *AuditHandler) List(c echo.Context) error {
	user := session.CurrentUser(c)

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	rows, total, err := audit.List(h.DB, user.ID, offset, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": rows,
		"meta": map[string]any{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}
