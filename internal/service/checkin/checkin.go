// Package checkin handles the public QR token flow: token issue on the
// admin side, token resolution and mileage/issue submission on the
// unauthenticated side.
package checkin

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
)

// NewToken mints an opaque URL-safe capability token. Tokens never expire
// and are never rotated once issued.
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// EnsureToken returns the equipment's QR token, generating and persisting
// one on first request. The audit row is written by the caller with the
// acting admin.
func EnsureToken(db *gorm.DB, eq *models.Equipment) (string, bool, error) {
	if eq.QRToken != nil && *eq.QRToken != "" {
		return *eq.QRToken, false, nil
	}
	token, err := NewToken()
	if err != nil {
		return "", false, err
	}
	if err := db.Model(&models.Equipment{}).Where("id = ?", eq.ID).
		Update("qr_token", token).Error; err != nil {
		return "", false, err
	}
	eq.QRToken = &token
	return token, true, nil
}

// Resolve maps a token to its equipment. This is the whole authentication
// story for the public endpoint: hold the token, see the equipment. Every
// unresolvable token, blank included, reads as NotFound.
func Resolve(db *gorm.DB, token string) (*models.Equipment, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrNotFound
	}
	var eq models.Equipment
	err := db.Where("qr_token = ?", token).First(&eq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &eq, nil
}

// Submit persists one check-in, moves the equipment mileage and writes an
// audit row with a nil actor, all in one transaction.
func Submit(db *gorm.DB, token, mileageStr, issues string) (*models.EquipmentCheckIn, error) {
	eq, err := Resolve(db, token)
	if err != nil {
		return nil, err
	}

	var mileage *int
	mileageStr = strings.TrimSpace(mileageStr)
	if mileageStr != "" {
		n, err := strconv.Atoi(mileageStr)
		if err != nil {
			return nil, apperr.Validationf("mileage %q must be a whole number", mileageStr)
		}
		mileage = &n
	}

	ci := models.EquipmentCheckIn{
		EquipmentID: eq.ID,
		Mileage:     mileage,
		Issues:      issues,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ci).Error; err != nil {
			return err
		}
		if mileage != nil {
			if err := tx.Model(&models.Equipment{}).Where("id = ?", eq.ID).
				Update("mileage", *mileage).Error; err != nil {
				return err
			}
		}
		return audit.Record(tx, nil, "check_in", "equipment", &eq.ID, "equipment "+eq.Code)
	})
	if err != nil {
		return nil, err
	}
	return &ci, nil
}
