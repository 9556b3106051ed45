package audit

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

// Record appends one audit row using the caller's transaction handle, so a
// failed audit write rolls back the enclosing mutation. userID is nil for
// public check-ins.
func Record(tx *gorm.DB, userID *uint, action, entityType string, entityID *uint, details string) error {
	row := models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("audit write: %w", err)
	}
	return nil
}

// List returns the trail visible to one admin, newest-first. Rows written by
// anonymous check-ins against the admin's equipment are included.
func List(db *gorm.DB, userID uint, offset, limit int) ([]models.AuditLog, int64, error) {
	q := db.Model(&models.AuditLog{}).
		Where("user_id = ? OR user_id IS NULL", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AuditLog
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
