package records

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/blob"
	"github.com/fleetkeeper/fleetkeeper/internal/config"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newRecorder(t *testing.T) (*Recorder, *gorm.DB, string) {
	db := initTestDB(t)
	dir := t.TempDir()
	store, err := blob.NewDiskStore(dir)
	require.NoError(t, err)
	return &Recorder{DB: db, Blob: store}, db, dir
}

func seedEquipment(t *testing.T, db *gorm.DB, userID uint) *models.Equipment {
	user := models.AdminUser{Email: "owner@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	user.ID = userID
	require.NoError(t, db.Create(&user).Error)

	eq := models.Equipment{
		AdminUserID: user.ID,
		Type:        "excavator",
		VIN:         "1FTSW21P34EB00001",
		Code:        "EX-01",
	}
	require.NoError(t, db.Create(&eq).Error)
	return &eq
}

func TestParseCostItemsSum(t *testing.T) {
	items, total, err := ParseCostItems(
		[]string{"Oil change", "Brake pads"},
		[]string{"45.00", "60.00"},
	)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, total)
	require.Equal(t, int64(10500), *total)
}

func TestParseCostItemsEmpty(t *testing.T) {
	items, total, err := ParseCostItems(nil, nil)
	require.NoError(t, err)
	require.Nil(t, items)
	require.Nil(t, total)

	// all-blank rows are skipped, still no aggregate
	items, total, err = ParseCostItems([]string{"", "  "}, []string{"", ""})
	require.NoError(t, err)
	require.Nil(t, items)
	require.Nil(t, total)
}

func TestParseCostItemsHalfBlankRow(t *testing.T) {
	_, _, err := ParseCostItems([]string{"Oil change", "Brake pads"}, []string{"45.00", ""})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	_, _, err = ParseCostItems([]string{"Oil change", ""}, []string{"45.00", "60.00"})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreateServiceWithItems(t *testing.T) {
	r, db, _ := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	svc, err := r.CreateService(context.Background(), 1, eq.ID, Input{
		Date:             "2026-08-01",
		PerformedBy:      "Acme Mechanics",
		Mileage:          "5200",
		NextService:      "2026-11-01",
		ItemDescriptions: []string{"Oil change", "Brake pads"},
		ItemAmounts:      []string{"45.00", "60.00"},
	})
	require.NoError(t, err)
	require.NotNil(t, svc.TotalCostCents)
	require.Equal(t, int64(10500), *svc.TotalCostCents)
	require.Len(t, svc.CostItems, 2)

	var updated models.Equipment
	require.NoError(t, db.First(&updated, eq.ID).Error)
	require.NotNil(t, updated.Mileage)
	require.Equal(t, 5200, *updated.Mileage)
	require.NotNil(t, updated.LastServiceDate)
	require.Equal(t, "2026-08-01", updated.LastServiceDate.Format(DateLayout))

	var auditRows []models.AuditLog
	require.NoError(t, db.Where("action = ?", "create_service").Find(&auditRows).Error)
	require.Len(t, auditRows, 1)
	require.NotNil(t, auditRows[0].UserID)
	require.Equal(t, uint(1), *auditRows[0].UserID)
}

func TestCreateServiceRejectsHalfBlankItemRow(t *testing.T) {
	r, db, _ := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	_, err := r.CreateService(context.Background(), 1, eq.ID, Input{
		Date:             "2026-08-01",
		ItemDescriptions: []string{"Oil change", "Brake pads"},
		ItemAmounts:      []string{"45.00", ""},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	var count int64
	require.NoError(t, db.Model(&models.Service{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.ServiceCostItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateServiceRejectsBadExtensionBatch(t *testing.T) {
	r, db, dir := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	_, err := r.CreateService(context.Background(), 1, eq.ID, Input{
		Date: "2026-08-01",
		Uploads: []Upload{
			{Filename: "invoice.pdf", Content: strings.NewReader("pdf bytes")},
			{Filename: "malware.exe", Content: strings.NewReader("nope")},
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	var count int64
	require.NoError(t, db.Model(&models.Service{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.ServiceAttachment{}).Count(&count).Error)
	require.Zero(t, count)

	// the valid file must not be stored either
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateServiceStoresAttachments(t *testing.T) {
	r, db, dir := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	svc, err := r.CreateService(context.Background(), 1, eq.ID, Input{
		Date: "2026-08-01",
		Uploads: []Upload{
			{Filename: "Invoice #42.PDF", Content: strings.NewReader("pdf bytes")},
		},
	})
	require.NoError(t, err)
	require.Len(t, svc.Attachments, 1)
	require.Equal(t, "Invoice #42.PDF", svc.Attachments[0].OriginalName)
	require.NotEqual(t, svc.Attachments[0].OriginalName, svc.Attachments[0].StoredName)
	require.True(t, strings.HasSuffix(svc.Attachments[0].StoredName, ".pdf"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, svc.Attachments[0].StoredName, entries[0].Name())
}

func TestCreateRepairDoesNotTouchLastService(t *testing.T) {
	r, db, _ := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	rep, err := r.CreateRepair(context.Background(), 1, eq.ID, Input{
		Date:             "2026-08-10",
		Mileage:          "6100",
		ItemDescriptions: []string{"Hydraulic hose"},
		ItemAmounts:      []string{"250.00"},
	})
	require.NoError(t, err)
	require.NotNil(t, rep.TotalCostCents)
	require.Equal(t, int64(25000), *rep.TotalCostCents)

	var updated models.Equipment
	require.NoError(t, db.First(&updated, eq.ID).Error)
	require.Nil(t, updated.LastServiceDate)
	require.NotNil(t, updated.Mileage)
	require.Equal(t, 6100, *updated.Mileage)
}

func TestCreateServiceForeignEquipment(t *testing.T) {
	r, db, _ := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	other := models.AdminUser{Email: "other@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&other).Error)

	_, err := r.CreateService(context.Background(), other.ID, eq.ID, Input{Date: "2026-08-01"})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListServicesNewestFirst(t *testing.T) {
	r, db, _ := newRecorder(t)
	eq := seedEquipment(t, db, 1)

	for _, date := range []string{"2026-01-05", "2026-03-01", "2026-02-10"} {
		_, err := r.CreateService(context.Background(), 1, eq.ID, Input{Date: date})
		require.NoError(t, err)
	}

	services, err := r.ListServices(1, eq.ID)
	require.NoError(t, err)
	require.Len(t, services, 3)
	require.Equal(t, "2026-03-01", services[0].Date.Format(DateLayout))
	require.Equal(t, "2026-02-10", services[1].Date.Format(DateLayout))
	require.Equal(t, "2026-01-05", services[2].Date.Format(DateLayout))
}
