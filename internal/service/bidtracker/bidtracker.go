// Package bidtracker models the bulk-add form: parallel per-column value
// arrays zipped into typed rows, validated per-row before any insert.
package bidtracker

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/service/audit"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
)

var (
	Roles    = map[string]bool{"prime": true, "sub": true}
	BidTypes = map[string]bool{"lump_sum": true, "unit_price": true, "t_and_m": true}
	Statuses = map[string]bool{"pending": true, "submitted": true, "won": true, "lost": true}
)

// Columns carries one value array per form column. Arrays may be ragged;
// missing cells read as blank.
type Columns struct {
	ProjectNames []string
	Clients      []string
	Roles        []string
	BidTypes     []string
	Statuses     []string
	DueDates     []string
	Amounts      []string
	Notes        []string
}

// ParseRows zips the columns positionally. Rows with every field blank are
// skipped; any invalid cell rejects the whole batch.
func ParseRows(userID uint, cols Columns) ([]models.BidTrackerEntry, error) {
	n := 0
	for _, c := range [][]string{
		cols.ProjectNames, cols.Clients, cols.Roles, cols.BidTypes,
		cols.Statuses, cols.DueDates, cols.Amounts, cols.Notes,
	} {
		if len(c) > n {
			n = len(c)
		}
	}

	var rows []models.BidTrackerEntry
	for i := 0; i < n; i++ {
		project := cell(cols.ProjectNames, i)
		client := cell(cols.Clients, i)
		role := cell(cols.Roles, i)
		bidType := cell(cols.BidTypes, i)
		status := cell(cols.Statuses, i)
		dueDate := cell(cols.DueDates, i)
		amount := cell(cols.Amounts, i)
		notes := cell(cols.Notes, i)

		if project == "" && client == "" && role == "" && bidType == "" &&
			status == "" && dueDate == "" && amount == "" && notes == "" {
			continue
		}

		entry := models.BidTrackerEntry{
			AdminUserID: userID,
			ProjectName: project,
			Client:      client,
			Notes:       notes,
		}

		var err error
		if entry.Role, err = enum(role, Roles, "role", i); err != nil {
			return nil, err
		}
		if entry.BidType, err = enum(bidType, BidTypes, "bid_type", i); err != nil {
			return nil, err
		}
		if entry.SubmissionStatus, err = enum(status, Statuses, "submission_status", i); err != nil {
			return nil, err
		}
		if dueDate != "" {
			d, err := time.Parse(records.DateLayout, dueDate)
			if err != nil {
				return nil, apperr.Validationf("row %d: due date %q must be YYYY-MM-DD", i+1, dueDate)
			}
			entry.DueDate = &d
		}
		if amount != "" {
			cents, err := records.ParseAmountCents(amount)
			if err != nil {
				return nil, apperr.Validationf("row %d: amount %q is not a number", i+1, amount)
			}
			entry.AmountCents = &cents
		}

		rows = append(rows, entry)
	}
	return rows, nil
}

// BulkCreate validates and persists the batch atomically with one audit row.
func BulkCreate(db *gorm.DB, userID uint, cols Columns) ([]models.BidTrackerEntry, error) {
	rows, err := ParseRows(userID, cols)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return audit.Record(tx, &userID, "bulk_add_bids", "bid_tracker_entry", nil, "")
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func cell(values []string, i int) string {
	if i < len(values) {
		return strings.TrimSpace(values[i])
	}
	return ""
}

func enum(v string, allowed map[string]bool, field string, row int) (string, error) {
	if v == "" {
		return "", nil
	}
	if !allowed[v] {
		return "", apperr.Validationf("row %d: invalid %s %q", row+1, field, v)
	}
	return v, nil
}
