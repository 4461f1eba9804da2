package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vemana-jayanti/registration-portal/pkg/models"
)

// ErrNothingToExport is returned when the participant list is empty.
var ErrNothingToExport = errors.New("no participant data to export")

const (
	exportSheet  = "Participants"
	notAvailable = "N/A"
	exportLayout = "02/01/2006, 15:04:05"
)

type exportColumn struct {
	header string
	width  float64
	value  func(p models.Participant, loc *time.Location) any
}

var exportColumns = []exportColumn{
	{"Name", 20, func(p models.Participant, _ *time.Location) any { return p.Name }},
	{"Email", 30, func(p models.Participant, _ *time.Location) any { return p.Email }},
	{"Phone", 15, func(p models.Participant, _ *time.Location) any { return p.Phone }},
	{"Message", 40, func(p models.Participant, _ *time.Location) any { return p.Message }},
	{"City", 20, func(p models.Participant, _ *time.Location) any { return orNA(p.City) }},
	{"State", 20, func(p models.Participant, _ *time.Location) any { return orNA(p.State) }},
	{"Country", 20, func(p models.Participant, _ *time.Location) any { return orNA(p.Country) }},
	{"Full Address", 50, func(p models.Participant, _ *time.Location) any { return orNA(p.FullAddress) }},
	{"Latitude", 15, func(p models.Participant, _ *time.Location) any { return floatOrNA(p.Latitude) }},
	{"Longitude", 15, func(p models.Participant, _ *time.Location) any { return floatOrNA(p.Longitude) }},
	{"Certificate Sent", 15, func(p models.Participant, _ *time.Location) any {
		if p.CertificateSent {
			return "Yes"
		}
		return "No"
	}},
	{"Certificate Sent Date", 20, func(p models.Participant, loc *time.Location) any {
		if p.CertificateSentAt == nil {
			return notAvailable
		}
		return p.CertificateSentAt.In(loc).Format(exportLayout)
	}},
	{"Registration Date", 20, func(p models.Participant, loc *time.Location) any {
		return p.CreatedAt.In(loc).Format(exportLayout)
	}},
}

// ExportParticipants renders the list as an xlsx workbook with one
// "Participants" sheet. Dates are formatted in loc.
func ExportParticipants(list []models.Participant, loc *time.Location) ([]byte, error) {
	if len(list) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(exportColumns))
	for i, col := range exportColumns {
		header[i] = col.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r, p := range list {
		row := make([]any, len(exportColumns))
		for i, col := range exportColumns {
			row[i] = col.value(p, loc)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFileName is `<slug>_participants_<YYYY-MM-DD>.xlsx`.
func ExportFileName(slug string, now time.Time) string {
	return slug + "_participants_" + now.Format("2006-01-02") + ".xlsx"
}

func orNA(s *string) any {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

func floatOrNA(f *float64) any {
	if f == nil || *f == 0 {
		return notAvailable
	}
	return *f
}
