package export

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

const defaultSheet = "Sheet1"

// WriteXLSX writes t to a single sheet workbook with a bold header row.
// Cells of the numeric columns are stored as numbers, every other cell as text.
func WriteXLSX(w io.Writer, sheet string, t attendance.Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = errors.Wrap(cErr, "closing workbook")
		}
	}()

	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err = f.SetSheetName(defaultSheet, sheet); err != nil {
			return errors.Wrap(err, "naming sheet")
		}
	}

	header := make([]interface{}, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	if err = f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if len(t.Columns) > 0 {
		bold, sErr := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if sErr != nil {
			return errors.Wrap(sErr, "creating header style")
		}
		last, cErr := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if cErr != nil {
			return errors.Wrap(cErr, "locating header")
		}
		if err = f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return errors.Wrap(err, "styling header")
		}
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for j, val := range row {
			cells[j] = val
			if !t.IsNumeric(j) {
				continue
			}
			n, convErr := strconv.Atoi(val)
			if convErr != nil {
				return errors.Wrapf(convErr, "row %d: column %s is not a number", i+1, t.Columns[j])
			}
			cells[j] = n
		}
		cell, cErr := excelize.CoordinatesToCellName(1, i+2)
		if cErr != nil {
			return errors.Wrap(cErr, "locating row")
		}
		if err = f.SetSheetRow(sheet, cell, &cells); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}
