// Package reporting renders issued-number records as spreadsheets.
package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"caseverify/internal/cases/service"
)

// SheetName is the worksheet holding the issued records.
const SheetName = "NSSF Records"

const issueDateLayout = "2006-01-02 15:04:05"

// IssuedHeader is the first row of the export.
var IssuedHeader = []string{
	"NSSF Number",
	"Individual Number",
	"Full Name",
	"Age",
	"Gender",
	"Legal Status",
	"Country Of Origin",
	"Location",
	"Process Status",
	"Issue Date",
}

var columnWidths = []float64{
	18, // NSSF Number
	18, // Individual Number
	28, // Full Name
	8,  // Age
	10, // Gender
	16, // Legal Status
	28, // Country Of Origin
	16, // Location
	20, // Process Status
	22, // Issue Date
}

// WriteIssuedXLSX writes records as a single-sheet workbook to w. Records
// without a known issue date get an empty cell.
func WriteIssuedXLSX(w io.Writer, records []service.IssuedRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range IssuedHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	for col, width := range columnWidths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, record := range records {
		if err := writeRow(f, i+2, record); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, record service.IssuedRecord) error {
	c := record.Case
	issueDate := ""
	if record.IssueDate != nil {
		issueDate = record.IssueDate.Format(issueDateLayout)
	}
	values := []any{
		c.IssuedNumber,
		c.IndividualNumber,
		c.FullName,
		c.Age,
		c.Gender,
		c.LegalStatus.String(),
		c.CountryOfOrigin,
		c.LocationAddress,
		c.ProcessStatus.String(),
		issueDate,
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
