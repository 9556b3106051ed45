// Package records implements service/repair submission: cost-item parsing,
// attachment intake and the single transaction that persists a record, its
// items, its files and the equipment mutation together.
package records

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/authz"
	"github.com/fleetkeeper/fleetkeeper/internal/blob"
	"github.com/fleetkeeper/fleetkeeper/internal/logging"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
)

const DateLayout = "2006-01-02"

// AllowedExtensions is the attachment allow-list. Extension is the only
// property validated; content sniffing is out of scope.
var AllowedExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".txt": true,
}

type Upload struct {
	Filename string
	Content  io.Reader
}

type Input struct {
	Date             string
	PerformedBy      string
	Mileage          string
	NextService      string // services only
	Notes            string
	ItemDescriptions []string
	ItemAmounts      []string
	Uploads          []Upload
}

type CostItem struct {
	Description string
	AmountCents int64
}

type Recorder struct {
	DB   *gorm.DB
	Blob blob.Store
}

// ParseCostItems zips the parallel description/amount columns into typed
// items. A row where exactly one side is blank poisons the whole submission.
// Zero rows yields a nil total, never zero.
func ParseCostItems(descriptions, amounts []string) ([]CostItem, *int64, error) {
	n := len(descriptions)
	if len(amounts) > n {
		n = len(amounts)
	}

	var items []CostItem
	var total int64
	for i := 0; i < n; i++ {
		desc := strings.TrimSpace(column(descriptions, i))
		amount := strings.TrimSpace(column(amounts, i))
		if desc == "" && amount == "" {
			continue
		}
		if desc == "" {
			return nil, nil, apperr.Validationf("cost item %d: description is required", i+1)
		}
		if amount == "" {
			return nil, nil, apperr.Validationf("cost item %d: amount is required", i+1)
		}
		cents, err := ParseAmountCents(amount)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, CostItem{Description: desc, AmountCents: cents})
		total += cents
	}

	if len(items) == 0 {
		return nil, nil, nil
	}
	return items, &total, nil
}

// ValidateUploads checks every file's extension before anything is stored;
// one bad file rejects the whole batch.
func ValidateUploads(uploads []Upload) error {
	for _, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.Filename))
		if ext == "" || !AllowedExtensions[ext] {
			return apperr.Validationf("file %q has a disallowed extension", u.Filename)
		}
	}
	return nil
}

// CreateService records one service event for equipment owned by userID.
// Either the record, its cost items, its attachments, the equipment mileage
// and last-service update, and the audit row all commit, or none do.
func (r *Recorder) CreateService(ctx context.Context, userID, equipmentID uint, in Input) (*models.Service, error) {
	eq, err := authz.Equipment(r.DB, equipmentID, userID)
	if err != nil {
		return nil, err
	}

	date, err := parseRequiredDate(in.Date)
	if err != nil {
		return nil, err
	}
	mileage, err := parseOptionalInt(in.Mileage, "mileage")
	if err != nil {
		return nil, err
	}
	nextService, err := parseOptionalDate(in.NextService, "next_service")
	if err != nil {
		return nil, err
	}

	items, totalCents, err := ParseCostItems(in.ItemDescriptions, in.ItemAmounts)
	if err != nil {
		return nil, err
	}
	stored, err := r.storeUploads(ctx, in.Uploads)
	if err != nil {
		return nil, err
	}

	svc := models.Service{
		EquipmentID:    eq.ID,
		Date:           date,
		PerformedBy:    in.PerformedBy,
		Mileage:        mileage,
		NextService:    nextService,
		TotalCostCents: totalCents,
		Notes:          in.Notes,
	}

	err = r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&svc).Error; err != nil {
			return err
		}
		for _, it := range items {
			row := models.ServiceCostItem{
				ServiceID:   svc.ID,
				Description: it.Description,
				AmountCents: it.AmountCents,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			svc.CostItems = append(svc.CostItems, row)
		}
		for _, s := range stored {
			row := models.ServiceAttachment{
				ServiceID:    svc.ID,
				OriginalName: s.originalName,
				StoredName:   s.storedName,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			svc.Attachments = append(svc.Attachments, row)
		}

		updates := map[string]any{"last_service_date": date}
		if mileage != nil {
			updates["mileage"] = *mileage
		}
		if err := tx.Model(&models.Equipment{}).Where("id = ?", eq.ID).Updates(updates).Error; err != nil {
			return err
		}

		return audit.Record(tx, &userID, "create_service", "service", &svc.ID,
			"equipment "+eq.Code)
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// CreateRepair is the repair-side twin of CreateService; repairs carry no
// next-service date and do not move the equipment's last-service date.
func (r *Recorder) CreateRepair(ctx context.Context, userID, equipmentID uint, in Input) (*models.Repair, error) {
	eq, err := authz.Equipment(r.DB, equipmentID, userID)
	if err != nil {
		return nil, err
	}

	date, err := parseRequiredDate(in.Date)
	if err != nil {
		return nil, err
	}
	mileage, err := parseOptionalInt(in.Mileage, "mileage")
	if err != nil {
		return nil, err
	}

	items, totalCents, err := ParseCostItems(in.ItemDescriptions, in.ItemAmounts)
	if err != nil {
		return nil, err
	}
	stored, err := r.storeUploads(ctx, in.Uploads)
	if err != nil {
		return nil, err
	}

	rep := models.Repair{
		EquipmentID:    eq.ID,
		Date:           date,
		PerformedBy:    in.PerformedBy,
		Mileage:        mileage,
		TotalCostCents: totalCents,
		Notes:          in.Notes,
	}

	err = r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rep).Error; err != nil {
			return err
		}
		for _, it := range items {
			row := models.RepairCostItem{
				RepairID:    rep.ID,
				Description: it.Description,
				AmountCents: it.AmountCents,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rep.CostItems = append(rep.CostItems, row)
		}
		for _, s := range stored {
			row := models.RepairAttachment{
				RepairID:     rep.ID,
				OriginalName: s.originalName,
				StoredName:   s.storedName,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rep.Attachments = append(rep.Attachments, row)
		}

		if mileage != nil {
			if err := tx.Model(&models.Equipment{}).Where("id = ?", eq.ID).
				Update("mileage", *mileage).Error; err != nil {
				return err
			}
		}

		return audit.Record(tx, &userID, "create_repair", "repair", &rep.ID,
			"equipment "+eq.Code)
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *Recorder) ListServices(userID, equipmentID uint) ([]models.Service, error) {
	if _, err := authz.Equipment(r.DB, equipmentID, userID); err != nil {
		return nil, err
	}
	var services []models.Service
	err := r.DB.Where("equipment_id = ?", equipmentID).
		Preload("CostItems").Preload("Attachments").
		Order("date DESC, id DESC").
		Find(&services).Error
	return services, err
}

func (r *Recorder) ListRepairs(userID, equipmentID uint) ([]models.Repair, error) {
	if _, err := authz.Equipment(r.DB, equipmentID, userID); err != nil {
		return nil, err
	}
	var repairs []models.Repair
	err := r.DB.Where("equipment_id = ?", equipmentID).
		Preload("CostItems").Preload("Attachments").
		Order("date DESC, id DESC").
		Find(&repairs).Error
	return repairs, err
}

type storedUpload struct {
	originalName string
	storedName   string
}

// storeUploads validates every extension first, then writes accepted files
// under fresh opaque names. The original name survives only as metadata. A
// blob written before a later DB rollback is an acceptable orphan.
func (r *Recorder) storeUploads(ctx context.Context, uploads []Upload) ([]storedUpload, error) {
	if err := ValidateUploads(uploads); err != nil {
		return nil, err
	}

	l := logging.FromContext(ctx)
	stored := make([]storedUpload, 0, len(uploads))
	for _, u := range uploads {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(u.Filename))
		if err := r.Blob.Put(name, u.Content); err != nil {
			l.Error("attachment store failed", "file", u.Filename, "error", err)
			return nil, err
		}
		stored = append(stored, storedUpload{originalName: u.Filename, storedName: name})
	}
	return stored, nil
}

func column(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func parseRequiredDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperr.Validationf("date is required")
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validationf("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

func parseOptionalDate(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, apperr.Validationf("%s %q must be YYYY-MM-DD", field, s)
	}
	return &d, nil
}

func parseOptionalInt(s, field string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, apperr.Validationf("%s %q must be a whole number", field, s)
	}
	return &n, nil
}
