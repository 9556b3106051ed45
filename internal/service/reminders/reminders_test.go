package reminders

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

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

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestBuildGroupsByOwnerAndCutoff(t *testing.T) {
	db := initTestDB(t)

	owner := models.AdminUser{Email: "owner@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&owner).Error)

	due := models.Equipment{AdminUserID: owner.ID, Type: "excavator", VIN: "VIN-1", Code: "EX-01"}
	farOut := models.Equipment{AdminUserID: owner.ID, Type: "loader", VIN: "VIN-2", Code: "LD-01"}
	neverServiced := models.Equipment{AdminUserID: owner.ID, Type: "dozer", VIN: "VIN-3", Code: "DZ-01"}
	require.NoError(t, db.Create(&due).Error)
	require.NoError(t, db.Create(&farOut).Error)
	require.NoError(t, db.Create(&neverServiced).Error)

	dueNext := date("2026-09-01")
	farNext := date("2027-01-01")
	require.NoError(t, db.Create(&models.Service{
		EquipmentID: due.ID, Date: date("2026-06-01"), NextService: &dueNext,
	}).Error)
	require.NoError(t, db.Create(&models.Service{
		EquipmentID: farOut.ID, Date: date("2026-06-01"), NextService: &farNext,
	}).Error)

	got, err := Build(db, date("2026-09-04"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[owner.ID], 1)
	require.Equal(t, "EX-01", got[owner.ID][0].Code)
}

func TestBuildUsesLatestServiceOnly(t *testing.T) {
	db := initTestDB(t)

	owner := models.AdminUser{Email: "owner@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&owner).Error)
	eq := models.Equipment{AdminUserID: owner.ID, Type: "excavator", VIN: "VIN-1", Code: "EX-01"}
	require.NoError(t, db.Create(&eq).Error)

	// old service was due soon, the newer one pushed it out
	oldNext := date("2026-09-01")
	newNext := date("2027-03-01")
	require.NoError(t, db.Create(&models.Service{
		EquipmentID: eq.ID, Date: date("2026-03-01"), NextService: &oldNext,
	}).Error)
	require.NoError(t, db.Create(&models.Service{
		EquipmentID: eq.ID, Date: date("2026-08-15"), NextService: &newNext,
	}).Error)

	got, err := Build(db, date("2026-09-04"))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCompose(t *testing.T) {
	mileage := 5200
	body := Compose([]Item{
		{Code: "EX-01", Type: "excavator", NextService: date("2026-09-01"), Mileage: &mileage},
		{Code: "LD-01", Type: "loader", NextService: date("2026-09-03")},
	})
	require.Contains(t, body, "Upcoming service reminders:")
	require.Contains(t, body, "- EX-01 (excavator) | Next service: 2026-09-01 | Mileage: 5200")
	require.Contains(t, body, "- LD-01 (loader) | Next service: 2026-09-03 | Mileage: N/A")
}
