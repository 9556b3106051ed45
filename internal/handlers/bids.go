package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/authz"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
	"github.com/fleetkeeper/fleetkeeper/internal/service/bidtracker"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
)

type BidHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// BulkCreate accepts the bulk-add form: one value array per column,
// zipped positionally into candidate rows.
func (h *BidHandler) BulkCreate(c echo.Context) error {
	user := session.CurrentUser(c)

	var req struct {
		ProjectNames []string `json:"project_name" form:"project_name"`
		Clients      []string `json:"client" form:"client"`
		Roles        []string `json:"role" form:"role"`
		BidTypes     []string `json:"bid_type" form:"bid_type"`
		Statuses     []string `json:"submission_status" form:"submission_status"`
		DueDates     []string `json:"due_date" form:"due_date"`
		Amounts      []string `json:"amount" form:"amount"`
		Notes        []string `json:"notes" form:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apperr.Validationf("invalid body"))
	}

	rows, err := bidtracker.BulkCreate(h.DB, user.ID, bidtracker.Columns{
		ProjectNames: req.ProjectNames,
		Clients:      req.Clients,
		Roles:        req.Roles,
		BidTypes:     req.BidTypes,
		Statuses:     req.Statuses,
		DueDates:     req.DueDates,
		Amounts:      req.Amounts,
		Notes:        req.Notes,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	publish(c, h.Producer, "bid_events", fmt.Sprint(user.ID), map[string]any{
		"type":   "bids_added",
		"userID": user.ID,
		"count":  len(rows),
	})
	return c.JSON(http.StatusCreated, echo.Map{"created": len(rows), "entries": rows})
}

func (h *BidHandler) List(c echo.Context) error {
	user := session.CurrentUser(c)

	var entries []models.BidTrackerEntry
	if err := h.DB.Where("admin_user_id = ?", user.ID).Order("id DESC").Find(&entries).Error; err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *BidHandler) Update(c echo.Context) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	entry, err := authz.BidEntry(h.DB, id, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	var req struct {
		ProjectName      string `json:"project_name" form:"project_name"`
		Client           string `json:"client" form:"client"`
		Role             string `json:"role" form:"role"`
		BidType          string `json:"bid_type" form:"bid_type"`
		SubmissionStatus string `json:"submission_status" form:"submission_status"`
		DueDate          string `json:"due_date" form:"due_date"`
		Amount           string `json:"amount" form:"amount"`
		Notes            string `json:"notes" form:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apperr.Validationf("invalid body"))
	}

	if req.ProjectName != "" {
		entry.ProjectName = req.ProjectName
	}
	if req.Client != "" {
		entry.Client = req.Client
	}
	if req.Role != "" {
		if !bidtracker.Roles[req.Role] {
			return errorResponse(c, apperr.Validationf("invalid role %q", req.Role))
		}
		entry.Role = req.Role
	}
	if req.BidType != "" {
		if !bidtracker.BidTypes[req.BidType] {
			return errorResponse(c, apperr.Validationf("invalid bid_type %q", req.BidType))
		}
		entry.BidType = req.BidType
	}
	if req.SubmissionStatus != "" {
		if !bidtracker.Statuses[req.SubmissionStatus] {
			return errorResponse(c, apperr.Validationf("invalid submission_status %q", req.SubmissionStatus))
		}
		entry.SubmissionStatus = req.SubmissionStatus
	}
	if req.DueDate != "" {
		d, err := time.Parse(records.DateLayout, req.DueDate)
		if err != nil {
			return errorResponse(c, apperr.Validationf("due date %q must be YYYY-MM-DD", req.DueDate))
		}
		entry.DueDate = &d
	}
	if req.Amount != "" {
		cents, err := records.ParseAmountCents(req.Amount)
		if err != nil {
			return errorResponse(c, err)
		}
		entry.AmountCents = &cents
	}
	if req.Notes != "" {
		entry.Notes = req.Notes
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(entry).Error; err != nil {
			return err
		}
		return audit.Record(tx, &user.ID, "update_bid", "bid_tracker_entry", &entry.ID, "")
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *BidHandler) Delete(c echo.Context) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	entry, err := authz.BidEntry(h.DB, id, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.BidTrackerEntry{}, entry.ID).Error; err != nil {
			return err
		}
		return audit.Record(tx, &user.ID, "delete_bid", "bid_tracker_entry", &entry.ID, "")
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
