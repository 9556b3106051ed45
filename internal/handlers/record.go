package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
)

type RecordHandler struct {
	Recorder *records.Recorder
	Producer *mykafka.Producer
}

// CreateService accepts the multipart service submission form: scalar
// fields, parallel item_description/item_amount columns and any number of
// attachment files.
func (h *RecordHandler) CreateService(c echo.Context) error {
	user := session.CurrentUser(c)
	equipmentID, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	in, closers, err := recordInput(c)
	if err != nil {
		return errorResponse(c, err)
	}
	defer closeAll(closers)
	in.NextService = c.FormValue("next_service")

	svc, err := h.Recorder.CreateService(c.Request().Context(), user.ID, equipmentID, in)
	if err != nil {
		return errorResponse(c, err)
	}

	publish(c, h.Producer, "record_events", fmt.Sprint(equipmentID), map[string]any{
		"type":        "service_recorded",
		"serviceID":   svc.ID,
		"equipmentID": equipmentID,
		"userID":      user.ID,
	})
	return c.JSON(http.StatusCreated, svc)
}

func (h *RecordHandler) CreateRepair(c echo.Context) error {
	user := session.CurrentUser(c)
	equipmentID, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	in, closers, err := recordInput(c)
	if err != nil {
		return errorResponse(c, err)
	}
	defer closeAll(closers)

	rep, err := h.Recorder.CreateRepair(c.Request().Context(), user.ID, equipmentID, in)
	if err != nil {
		return errorResponse(c, err)
	}

	publish(c, h.Producer, "record_events", fmt.Sprint(equipmentID), map[string]any{
		"type":        "repair_recorded",
		"repairID":    rep.ID,
		"equipmentID": equipmentID,
		"userID":      user.ID,
	})
	return c.JSON(http.StatusCreated, rep)
}

func (h *RecordHandler) ListServices(c echo.Context) error {
	user := session.CurrentUser(c)
	equipmentID, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	services, err := h.Recorder.ListServices(user.ID, equipmentID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, services)
}

func (h *RecordHandler) ListRepairs(c echo.Context) error {
	user := session.CurrentUser(c)
	equipmentID, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	repairs, err := h.Recorder.ListRepairs(user.ID, equipmentID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, repairs)
}

func recordInput(c echo.Context) (records.Input, []multipart.File, error) {
	in := records.Input{
		Date:        c.FormValue("date"),
		PerformedBy: c.FormValue("performed_by"),
		Mileage:     c.FormValue("mileage"),
		Notes:       c.FormValue("notes"),
	}

	form, err := c.MultipartForm()
	if err != nil {
		// Plain form submission without files.
		if vals, err2 := c.FormParams(); err2 == nil {
			in.ItemDescriptions = vals["item_description"]
			in.ItemAmounts = vals["item_amount"]
		}
		return in, nil, nil
	}

	in.ItemDescriptions = form.Value["item_description"]
	in.ItemAmounts = form.Value["item_amount"]

	var closers []multipart.File
	for _, fh := range form.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			closeAll(closers)
			return records.Input{}, nil, err
		}
		closers = append(closers, f)
		in.Uploads = append(in.Uploads, records.Upload{Filename: fh.Filename, Content: f})
	}
	return in, closers, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		f.Close()
	}
}
