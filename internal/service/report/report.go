// Package report renders one equipment unit's full history as CSV or XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
)

// SanitizeCell defuses spreadsheet formula injection: values starting with
// =, +, - or @ get a leading quote. Applied to every emitted field without
// exception.
func SanitizeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}

var serviceHeader = []string{"Date", "Performed by", "Mileage", "Next service", "Cost", "Cost items", "Notes"}
var repairHeader = []string{"Date", "Performed by", "Mileage", "Cost", "Cost items", "Notes"}

// WriteCSV emits the header block, then services newest-first, then repairs.
// Caller passes record slices already ordered newest-first.
func WriteCSV(w io.Writer, eq *models.Equipment, services []models.Service, repairs []models.Repair) error {
	cw := csv.NewWriter(w)

	for _, row := range headerBlock(eq) {
		if err := writeRow(cw, row); err != nil {
			return err
		}
	}

	if err := writeRow(cw, nil); err != nil {
		return err
	}
	if err := writeRow(cw, []string{"Services"}); err != nil {
		return err
	}
	if err := writeRow(cw, serviceHeader); err != nil {
		return err
	}
	for _, svc := range services {
		if err := writeRow(cw, serviceRow(&svc)); err != nil {
			return err
		}
	}

	if err := writeRow(cw, nil); err != nil {
		return err
	}
	if err := writeRow(cw, []string{"Repairs"}); err != nil {
		return err
	}
	if err := writeRow(cw, repairHeader); err != nil {
		return err
	}
	for _, rep := range repairs {
		if err := writeRow(cw, repairRow(&rep)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the same report as a single-sheet workbook.
func WriteXLSX(w io.Writer, eq *models.Equipment, services []models.Service, repairs []models.Repair) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "History"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	row := 1
	put := func(cells []string) error {
		for i, v := range cells {
			name, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, name, SanitizeCell(v)); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	for _, r := range headerBlock(eq) {
		if err := put(r); err != nil {
			return err
		}
	}
	for _, r := range [][]string{nil, {"Services"}, serviceHeader} {
		if err := put(r); err != nil {
			return err
		}
	}
	for _, svc := range services {
		if err := put(serviceRow(&svc)); err != nil {
			return err
		}
	}
	for _, r := range [][]string{nil, {"Repairs"}, repairHeader} {
		if err := put(r); err != nil {
			return err
		}
	}
	for _, rep := range repairs {
		if err := put(repairRow(&rep)); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func headerBlock(eq *models.Equipment) [][]string {
	serviceRequired := "no"
	if eq.ServiceRequired {
		serviceRequired = "yes"
		if eq.ServiceNote != "" {
			serviceRequired += ": " + eq.ServiceNote
		}
	}
	return [][]string{
		{"Code", eq.Code},
		{"Type", eq.Type},
		{"VIN", eq.VIN},
		{"Make", eq.Make},
		{"Model", eq.Model},
		{"Mileage", optInt(eq.Mileage)},
		{"Service required", serviceRequired},
		{"Last service", optDate(eq.LastServiceDate)},
	}
}

func serviceRow(svc *models.Service) []string {
	return []string{
		svc.Date.Format(records.DateLayout),
		svc.PerformedBy,
		optInt(svc.Mileage),
		optDate(svc.NextService),
		optCents(svc.TotalCostCents),
		serviceItemSummary(svc.CostItems),
		svc.Notes,
	}
}

func repairRow(rep *models.Repair) []string {
	return []string{
		rep.Date.Format(records.DateLayout),
		rep.PerformedBy,
		optInt(rep.Mileage),
		optCents(rep.TotalCostCents),
		repairItemSummary(rep.CostItems),
		rep.Notes,
	}
}

func serviceItemSummary(items []models.ServiceCostItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s ($%s)", it.Description, records.FormatCents(it.AmountCents)))
	}
	return strings.Join(parts, "; ")
}

func repairItemSummary(items []models.RepairCostItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s ($%s)", it.Description, records.FormatCents(it.AmountCents)))
	}
	return strings.Join(parts, "; ")
}

func writeRow(cw *csv.Writer, cells []string) error {
	if cells == nil {
		return cw.Write([]string{""})
	}
	out := make([]string, len(cells))
	for i, v := range cells {
		out[i] = SanitizeCell(v)
	}
	return cw.Write(out)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(records.DateLayout)
}

func optCents(v *int64) string {
	if v == nil {
		return ""
	}
	return records.FormatCents(*v)
}
