package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/authz"
	"github.com/fleetkeeper/fleetkeeper/internal/logging"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
	"github.com/fleetkeeper/fleetkeeper/internal/service/checkin"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
	"github.com/fleetkeeper/fleetkeeper/internal/service/search"
	"github.com/fleetkeeper/fleetkeeper/internal/util"
)

type EquipmentHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

type equipmentRequest struct {
	Type            string  `json:"type" form:"type"`
	VIN             string  `json:"vin" form:"vin"`
	Code            string  `json:"code" form:"code"`
	Make            string  `json:"make" form:"make"`
	Model           string  `json:"model" form:"model"`
	Mileage         string  `json:"mileage" form:"mileage"`
	ServiceRequired *bool   `json:"service_required" form:"service_required"`
	ServiceNote     *string `json:"service_note" form:"service_note"`
	LastServiceDate string  `json:"last_service_date" form:"last_service_date"`
}

func (h *EquipmentHandler) Create(c echo.Context) error {
	user := session.CurrentUser(c)

	var req equipmentRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apperr.Validationf("invalid body"))
	}
	if req.VIN == "" || req.Code == "" || req.Type == "" {
		return errorResponse(c, apperr.Validationf("type, vin and code are required"))
	}

	var existing models.Equipment
	err := h.DB.Where("vin = ?", req.VIN).First(&existing).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		if err != nil {
			return errorResponse(c, err)
		}
		return errorResponse(c, fmt.Errorf("vin %w", apperr.ErrDuplicate))
	}

	var mileage *int
	if req.Mileage != "" {
		n := parseIntDefault(req.Mileage, -1)
		if n < 0 {
			return errorResponse(c, apperr.Validationf("mileage %q must be a whole number", req.Mileage))
		}
		mileage = &n
	}

	lastService, err := parseOptionalDateField(req.LastServiceDate)
	if err != nil {
		return errorResponse(c, err)
	}

	token, err := checkin.NewToken()
	if err != nil {
		return errorResponse(c, err)
	}

	eq := models.Equipment{
		AdminUserID:     user.ID,
		Type:            req.Type,
		VIN:             req.VIN,
		Code:            req.Code,
		Make:            req.Make,
		Model:           req.Model,
		QRToken:         &token,
		Mileage:         mileage,
		LastServiceDate: lastService,
	}
	if req.ServiceRequired != nil {
		eq.ServiceRequired = *req.ServiceRequired
	}
	if req.ServiceNote != nil {
		eq.ServiceNote = *req.ServiceNote
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&eq).Error; err != nil {
			return err
		}
		return audit.Record(tx, &user.ID, "create_equipment", "equipment", &eq.ID, "vin "+eq.VIN)
	})
	if err != nil {
		return errorResponse(c, err)
	}

	h.index(c, &eq)
	publish(c, h.Producer, "equipment_events", fmt.Sprint(eq.ID), map[string]any{
		"type":        "equipment_created",
		"equipmentID": eq.ID,
		"userID":      user.ID,
	})

	return c.JSON(http.StatusCreated, eq)
}

func (h *EquipmentHandler) List(c echo.Context) error {
	user := session.CurrentUser(c)

	var fleet []models.Equipment
	if err := h.DB.Where("admin_user_id = ?", user.ID).Order("id ASC").Find(&fleet).Error; err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, fleet)
}

func (h *EquipmentHandler) Get(c echo.Context) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	eq, err := authz.Equipment(h.DB, id, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, eq)
}

func (h *EquipmentHandler) Update(c echo.Context) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	eq, err := authz.Equipment(h.DB, id, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	var req equipmentRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, apperr.Validationf("invalid body"))
	}

	if req.Type != "" {
		eq.Type = req.Type
	}
	if req.Code != "" {
		eq.Code = req.Code
	}
	if req.Make != "" {
		eq.Make = req.Make
	}
	if req.Model != "" {
		eq.Model = req.Model
	}
	if req.Mileage != "" {
		n := parseIntDefault(req.Mileage, -1)
		if n < 0 {
			return errorResponse(c, apperr.Validationf("mileage %q must be a whole number", req.Mileage))
		}
		eq.Mileage = &n
	}
	if req.LastServiceDate != "" {
		lastService, err := parseOptionalDateField(req.LastServiceDate)
		if err != nil {
			return errorResponse(c, err)
		}
		eq.LastServiceDate = lastService
	}
	if req.ServiceRequired != nil {
		eq.ServiceRequired = *req.ServiceRequired
	}
	if req.ServiceNote != nil {
		eq.ServiceNote = *req.ServiceNote
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(eq).Error; err != nil {
			return err
		}
		return audit.Record(tx, &user.ID, "update_equipment", "equipment", &eq.ID, "")
	})
	if err != nil {
		return errorResponse(c, err)
	}

	h.index(c, eq)
	return c.JSON(http.StatusOK, eq)
}

// Delete removes one equipment unit and, transitively, its services,
// repairs, cost items, attachments and check-ins. Blob files are left
// behind; the store is append-only.
func (h *EquipmentHandler) Delete(c echo.Context) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	eq, err := authz.Equipment(h.DB, id, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		serviceIDs := tx.Model(&models.Service{}).Select("id").Where("equipment_id = ?", eq.ID)
		if err := tx.Where("service_id IN (?)", serviceIDs).Delete(&models.ServiceCostItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("service_id IN (?)", serviceIDs).Delete(&models.ServiceAttachment{}).Error; err != nil {
			return err
		}

		repairIDs := tx.Model(&models.Repair{}).Select("id").Where("equipment_id = ?", eq.ID)
		if err := tx.Where("repair_id IN (?)", repairIDs).Delete(&models.RepairCostItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("repair_id IN (?)", repairIDs).Delete(&models.RepairAttachment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("equipment_id = ?", eq.ID).Delete(&models.Service{}).Error; err != nil {
			return err
		}
		if err := tx.Where("equipment_id = ?", eq.ID).Delete(&models.Repair{}).Error; err != nil {
			return err
		}
		if err := tx.Where("equipment_id = ?", eq.ID).Delete(&models.EquipmentCheckIn{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Equipment{}, eq.ID).Error; err != nil {
			return err
		}
		return audit.Record(tx, &user.ID, "delete_equipment", "equipment", &eq.ID, "vin "+eq.VIN)
	})
	if err != nil {
		return errorResponse(c, err)
	}

	if h.ES != nil {
		if err := search.DeleteEquipment(c.Request().Context(), h.ES, h.ESIndex, eq.ID); err != nil {
			logging.FromContext(c.Request().Context()).Error("es delete failed", "error", err)
		}
	}
	publish(c, h.Producer, "equipment_events", fmt.Sprint(eq.ID), map[string]any{
		"type":        "equipment_deleted",
		"equipmentID": eq.ID,
		"userID":      user.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

// QRImage returns the PNG QR code for the equipment's public check-in URL,
// issuing the token on first request.
func (h *EquipmentHandler) QRImage(c echo.Context) error {
	user := session.CurrentUser(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return errorResponse(c, err)
	}

	eq, err := authz.Equipment(h.DB, id, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	var token string
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		t, generated, err := checkin.EnsureToken(tx, eq)
		if err != nil {
			return err
		}
		token = t
		if generated {
			return audit.Record(tx, &user.ID, "generate_qr", "equipment", &eq.ID, "")
		}
		return nil
	})
	if err != nil {
		return errorResponse(c, err)
	}

	checkinURL := fmt.Sprintf("%s://%s/checkin/%s", c.Scheme(), c.Request().Host, token)
	png, err := qrcode.Encode(checkinURL, qrcode.Medium, 256)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *EquipmentHandler) Search(c echo.Context) error {
	user := session.CurrentUser(c)
	if h.ES == nil {
		return errorResponse(c, apperr.Validationf("search is not configured"))
	}

	q := search.Normalize(c.QueryParam("q"))
	if q == "" {
		return errorResponse(c, apperr.Validationf("query is required"))
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, docs, err := search.Search(c.Request().Context(), h.ES, h.ESIndex, q, user.ID, from, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": docs,
		"meta": map[string]any{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

func parseOptionalDateField(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(records.DateLayout, s)
	if err != nil {
		return nil, apperr.Validationf("last service date %q must be YYYY-MM-DD", s)
	}
	return &d, nil
}

func (h *EquipmentHandler) index(c echo.Context, eq *models.Equipment) {
	if h.ES == nil {
		return
	}
	if err := search.IndexEquipment(c.Request().Context(), h.ES, h.ESIndex, eq); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index failed", "equipmentID", eq.ID, "error", err)
	}
}
