package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
)

func seedUser(t *testing.T, db *gorm.DB, email string) *models.AdminUser {
	user := models.AdminUser{Email: email, PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func asUser(c echo.Context, user *models.AdminUser) {
	c.Set("currentUser", user)
}

func TestCreateEquipment(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	user := seedUser(t, db, "boss@example.com")

	c, rec := jsonRequest(t, e, http.MethodPost, "/api/v1/equipment", map[string]any{
		"type":    "excavator",
		"vin":     "1FTSW21P34EB00001",
		"code":    "EX-01",
		"make":    "CAT",
		"model":   "320",
		"mileage": "4100",
	})
	asUser(c, user)

	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Equipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, user.ID, created.AdminUserID)
	require.Equal(t, "1FTSW21P34EB00001", created.VIN)
	require.NotNil(t, created.Mileage)
	require.Equal(t, 4100, *created.Mileage)

	// the QR token is minted at creation but never serialized
	require.NotContains(t, rec.Body.String(), "qr_token")
	var stored models.Equipment
	require.NoError(t, db.First(&stored, created.ID).Error)
	require.NotNil(t, stored.QRToken)
	require.NotEmpty(t, *stored.QRToken)
}

func TestCreateEquipmentDuplicateVIN(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	user := seedUser(t, db, "boss@example.com")

	payload := map[string]any{
		"type": "excavator",
		"vin":  "1FTSW21P34EB00001",
		"code": "EX-01",
	}
	c, rec := jsonRequest(t, e, http.MethodPost, "/api/v1/equipment", payload)
	asUser(c, user)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	payload["code"] = "EX-02"
	c2, rec2 := jsonRequest(t, e, http.MethodPost, "/api/v1/equipment", payload)
	asUser(c2, user)
	require.NoError(t, h.Create(c2))
	require.Equal(t, http.StatusConflict, rec2.Code)

	// the first row is untouched
	var count int64
	require.NoError(t, db.Model(&models.Equipment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	var first models.Equipment
	require.NoError(t, db.Where("vin = ?", "1FTSW21P34EB00001").First(&first).Error)
	require.Equal(t, "EX-01", first.Code)
}

func TestGetEquipmentScopedToOwner(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	owner := seedUser(t, db, "owner@example.com")
	intruder := seedUser(t, db, "intruder@example.com")

	eq := models.Equipment{AdminUserID: owner.ID, Type: "loader", VIN: "VIN-9", Code: "LD-01"}
	require.NoError(t, db.Create(&eq).Error)

	c, rec := jsonRequest(t, e, http.MethodGet, "/api/v1/equipment/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	asUser(c, intruder)
	require.NoError(t, h.Get(c))
	require.Equal(t, http.StatusNotFound, rec.Code)

	c2, rec2 := jsonRequest(t, e, http.MethodGet, "/api/v1/equipment/1", nil)
	c2.SetParamNames("id")
	c2.SetParamValues("1")
	asUser(c2, owner)
	require.NoError(t, h.Get(c2))
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestDuplicateVINThroughConstraint(t *testing.T) {
	db := InitTestDB(t)
	user := seedUser(t, db, "boss@example.com")

	first := models.Equipment{AdminUserID: user.ID, Type: "excavator", VIN: "VIN-DUP", Code: "EX-01"}
	require.NoError(t, db.Create(&first).Error)

	// bypass the handler's SELECT pre-check and hit the unique index itself
	second := models.Equipment{AdminUserID: user.ID, Type: "loader", VIN: "VIN-DUP", Code: "LD-01"}
	err := db.Create(&second).Error
	require.Error(t, err)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
	require.Equal(t, http.StatusConflict, apperr.Status(err))
	require.Equal(t, apperr.ErrDuplicate.Error(), apperr.Message(err))
}

func TestUpdateEquipmentPartial(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	user := seedUser(t, db, "boss@example.com")

	eq := models.Equipment{
		AdminUserID:     user.ID,
		Type:            "excavator",
		VIN:             "VIN-P",
		Code:            "EX-01",
		ServiceRequired: true,
		ServiceNote:     "brakes worn",
	}
	require.NoError(t, db.Create(&eq).Error)

	// a request naming only mileage must not clear the service flag or note
	c, rec := jsonRequest(t, e, http.MethodPatch, "/api/v1/equipment/1", map[string]any{
		"mileage": "7000",
	})
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(eq.ID))
	asUser(c, user)
	require.NoError(t, h.Update(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.Equipment
	require.NoError(t, db.First(&stored, eq.ID).Error)
	require.True(t, stored.ServiceRequired)
	require.Equal(t, "brakes worn", stored.ServiceNote)
	require.NotNil(t, stored.Mileage)
	require.Equal(t, 7000, *stored.Mileage)

	// explicit values still clear them
	c2, rec2 := jsonRequest(t, e, http.MethodPatch, "/api/v1/equipment/1", map[string]any{
		"service_required": false,
		"service_note":     "",
	})
	c2.SetParamNames("id")
	c2.SetParamValues(fmt.Sprint(eq.ID))
	asUser(c2, user)
	require.NoError(t, h.Update(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	require.NoError(t, db.First(&stored, eq.ID).Error)
	require.False(t, stored.ServiceRequired)
	require.Empty(t, stored.ServiceNote)
}

func TestQRImageIssuesTokenOnce(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	user := seedUser(t, db, "boss@example.com")

	eq := models.Equipment{AdminUserID: user.ID, Type: "excavator", VIN: "VIN-QR", Code: "EX-01"}
	require.NoError(t, db.Create(&eq).Error)

	c, rec := jsonRequest(t, e, http.MethodGet, "/api/v1/equipment/1/qr", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(eq.ID))
	asUser(c, user)
	require.NoError(t, h.QRImage(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	require.Equal(t, "\x89PNG", rec.Body.String()[:4])

	var stored models.Equipment
	require.NoError(t, db.First(&stored, eq.ID).Error)
	require.NotNil(t, stored.QRToken)
	require.NotEmpty(t, *stored.QRToken)

	var auditRows []models.AuditLog
	require.NoError(t, db.Where("action = ?", "generate_qr").Find(&auditRows).Error)
	require.Len(t, auditRows, 1)

	// second fetch reuses the token; no second audit row
	c2, rec2 := jsonRequest(t, e, http.MethodGet, "/api/v1/equipment/1/qr", nil)
	c2.SetParamNames("id")
	c2.SetParamValues(fmt.Sprint(eq.ID))
	asUser(c2, user)
	require.NoError(t, h.QRImage(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	var again models.Equipment
	require.NoError(t, db.First(&again, eq.ID).Error)
	require.Equal(t, *stored.QRToken, *again.QRToken)
	require.NoError(t, db.Where("action = ?", "generate_qr").Find(&auditRows).Error)
	require.Len(t, auditRows, 1)
}

func TestQRImageAuditFailureRollsBackToken(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	user := seedUser(t, db, "boss@example.com")

	eq := models.Equipment{AdminUserID: user.ID, Type: "excavator", VIN: "VIN-QR", Code: "EX-01"}
	require.NoError(t, db.Create(&eq).Error)

	// with the audit table gone the issue transaction cannot complete
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	c, rec := jsonRequest(t, e, http.MethodGet, "/api/v1/equipment/1/qr", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(eq.ID))
	asUser(c, user)
	require.NoError(t, h.QRImage(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var stored models.Equipment
	require.NoError(t, db.First(&stored, eq.ID).Error)
	require.Nil(t, stored.QRToken)
}

func TestSearchUnconfigured(t *testing.T) {
	db := InitTestDB(t)
	h := &EquipmentHandler{DB: db, Producer: &mykafka.Producer{}}
	e := echo.New()
	user := seedUser(t, db, "boss@example.com")

	c, rec := jsonRequest(t, e, http.MethodGet, "/api/v1/equipment/search?q=cat", nil)
	asUser(c, user)
	require.NoError(t, h.Search(c))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
