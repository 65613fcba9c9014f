package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

var (
	summaryHeader = []string{"Category", "Locked", "Available", "Completed", "Total"}
	lessonHeader  = []string{"User ID", "Week", "Day", "Status", "Points", "Unlocked At", "Started At", "Completed At"}
)

// Workbook renders the progress report as an Excel file: the Summary sheet
// first, then one sheet per category. The caller owns closing the file.
func Workbook(p *Progress) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		bold = 0
	}

	f.SetSheetName("Sheet1", "Summary")
	if err := writeHeader(f, "Summary", summaryHeader, bold); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range p.Summary {
		vals := []interface{}{row.Category, row.Locked, row.Available, row.Completed, row.Total()}
		if err := writeRow(f, "Summary", i+2, vals); err != nil {
			f.Close()
			return nil, err
		}
	}

	for _, cat := range p.Categories {
		name := sheetName(cat.Name)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeHeader(f, name, lessonHeader, bold); err != nil {
			f.Close()
			return nil, err
		}
		for i, row := range cat.Rows {
			vals := []interface{}{
				row.UserID, row.Week, row.Day, row.Status, row.Points,
				row.UnlockedAt, row.StartedAt, row.CompletedAt,
			}
			if err := writeRow(f, name, i+2, vals); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return f, nil
}

// sheetName enforces Excel's 31-char sheet name limit.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

func writeHeader(f *excelize.File, sheet string, cols []string, style int) error {
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		vals[i] = c
	}
	if err := writeRow(f, sheet, 1, vals); err != nil {
		return err
	}
	if style != 0 {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(cols), 1)
		return f.SetCellStyle(sheet, start, end, style)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, vals []interface{}) error {
	for i, v := range vals {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
