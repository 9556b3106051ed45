package reminders

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

const Subject = "FleetKeeper service reminders"

// Item is one due-soon piece of equipment for a single owner's digest.
type Item struct {
	Code        string
	Type        string
	NextService time.Time
	Mileage     *int
}

// Build scans every equipment's latest service and collects the ones whose
// next-service date falls on or before the cutoff, grouped by owner.
func Build(db *gorm.DB, cutoff time.Time) (map[uint][]Item, error) {
	var equipment []models.Equipment
	if err := db.Find(&equipment).Error; err != nil {
		return nil, err
	}

	due := map[uint][]Item{}
	for i := range equipment {
		eq := &equipment[i]

		var latest models.Service
		err := db.Where("equipment_id = ?", eq.ID).
			Order("date DESC, id DESC").
			First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if latest.NextService == nil || latest.NextService.After(cutoff) {
			continue
		}

		due[eq.AdminUserID] = append(due[eq.AdminUserID], Item{
			Code:        eq.Code,
			Type:        eq.Type,
			NextService: *latest.NextService,
			Mileage:     eq.Mileage,
		})
	}

	for _, items := range due {
		sort.Slice(items, func(i, j int) bool {
			return items[i].NextService.Before(items[j].NextService)
		})
	}
	return due, nil
}

// Compose renders the digest body for one owner.
func Compose(items []Item) string {
	lines := []string{"Upcoming service reminders:", ""}
	for _, it := range items {
		mileage := "N/A"
		if it.Mileage != nil {
			mileage = fmt.Sprint(*it.Mileage)
		}
		lines = append(lines, fmt.Sprintf("- %s (%s) | Next service: %s | Mileage: %s",
			it.Code, it.Type, it.NextService.Format("2006-01-02"), mileage))
	}
	return strings.Join(lines, "\n")
}
