package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
	"github.com/fleetkeeper/fleetkeeper/internal/service/checkin"
)

// CheckInHandler serves the public, token-keyed endpoints. No session, no
// CSRF: the QR token is the capability.
type CheckInHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// Show resolves the token and returns just enough equipment context to
// render the check-in form.
func (h *CheckInHandler) Show(c echo.Context) error {
	eq, err := checkin.Resolve(h.DB, c.Param("token"))
	if err != nil {
		return errorResponse(c, fmt.Errorf("%w: invalid token", err))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"code":    eq.Code,
		"type":    eq.Type,
		"mileage": eq.Mileage,
	})
}

func (h *CheckInHandler) Submit(c echo.Context) error {
	token := c.Param("token")

	ci, err := checkin.Submit(h.DB, token, c.FormValue("mileage"), c.FormValue("issues"))
	if err != nil {
		return errorResponse(c, err)
	}

	publish(c, h.Producer, "checkin_events", fmt.Sprint(ci.EquipmentID), map[string]any{
		"type":        "equipment_checked_in",
		"equipmentID": ci.EquipmentID,
		"checkinID":   ci.ID,
	})
	return c.JSON(http.StatusCreated, echo.Map{"message": "check-in recorded"})
}
