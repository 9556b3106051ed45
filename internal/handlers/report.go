package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/authz"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
	"github.com/fleetkeeper/fleetkeeper/internal/service/report"
)

type ReportHandler struct {
	DB       *gorm.DB
	Recorder *records.Recorder
}

func (h *ReportHandler) CSV(c echo.Context) error {
	eq, services, repairs, err := h.load(c)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, exportName(eq.Code)+".csv"))
	c.Response().WriteHeader(http.StatusOK)

	return report.WriteCSV(c.Response(), eq, services, repairs)
}

func (h *ReportHandler) XLSX(c echo.Context) error {
	eq, services, repairs, err := h.load(c)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, exportName(eq.Code)+".xlsx"))
	c.Response().WriteHeader(http.StatusOK)

	return report.WriteXLSX(c.Response(), eq, services, repairs)
}

func (h *ReportHandler) load(c echo.Context) (*models.Equipment, []models.Service, []models.Repair, error) {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, nil, nil, err
	}

	eq, err := authz.Equipment(h.DB, id, user.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	services, err := h.Recorder.ListServices(user.ID, eq.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	repairs, err := h.Recorder.ListRepairs(user.ID, eq.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return eq, services, repairs, nil
}

// exportName derives a safe download filename from the equipment code.
func exportName(code string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, code)
	if mapped == "" {
		mapped = "equipment"
	}
	return mapped + "_history"
}
