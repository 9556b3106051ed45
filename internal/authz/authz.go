// Package authz centralizes row-level ownership checks: every lookup walks
// the chain from the requested entity up to its owning admin and compares it
// to the caller.
package authz

import (
	"errors"

	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

// Equipment resolves an equipment id owned by userID. Absence and foreign
// ownership are both NotFound so ids can't be probed.
func Equipment(db *gorm.DB, id, userID uint) (*models.Equipment, error) {
	var eq models.Equipment
	err := db.Where("id = ? AND admin_user_id = ?", id, userID).First(&eq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &eq, nil
}

func ServiceRecord(db *gorm.DB, id, userID uint) (*models.Service, error) {
	var svc models.Service
	err := db.First(&svc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := Equipment(db, svc.EquipmentID, userID); err != nil {
		return nil, err
	}
	return &svc, nil
}

func RepairRecord(db *gorm.DB, id, userID uint) (*models.Repair, error) {
	var rep models.Repair
	err := db.First(&rep, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := Equipment(db, rep.EquipmentID, userID); err != nil {
		return nil, err
	}
	return &rep, nil
}

// ServiceAttachment resolves attachment -> service -> equipment -> owner.
// A resolvable attachment owned by another admin is Unauthorized, not
// NotFound: retrieval must fail the same way whether or not the caller
// guessed a valid id chain.
func ServiceAttachment(db *gorm.DB, id, userID uint) (*models.ServiceAttachment, error) {
	var att models.ServiceAttachment
	err := db.First(&att, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var svc models.Service
	if err := db.First(&svc, att.ServiceID).Error; err != nil {
		return nil, err
	}
	if err := ownerMatches(db, svc.EquipmentID, userID); err != nil {
		return nil, err
	}
	return &att, nil
}

func RepairAttachment(db *gorm.DB, id, userID uint) (*models.RepairAttachment, error) {
	var att models.RepairAttachment
	err := db.First(&att, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rep models.Repair
	if err := db.First(&rep, att.RepairID).Error; err != nil {
		return nil, err
	}
	if err := ownerMatches(db, rep.EquipmentID, userID); err != nil {
		return nil, err
	}
	return &att, nil
}

func BidEntry(db *gorm.DB, id, userID uint) (*models.BidTrackerEntry, error) {
	var entry models.BidTrackerEntry
	err := db.Where("id = ? AND admin_user_id = ?", id, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func ownerMatches(db *gorm.DB, equipmentID, userID uint) error {
	var eq models.Equipment
	if err := db.First(&eq, equipmentID).Error; err != nil {
		return err
	}
	if eq.AdminUserID != userID {
		return apperr.ErrUnauthorized
	}
	return nil
}
