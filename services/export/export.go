// Package export renders report tables as downloadable files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to JSON. Unknown formats are reported on the "format" field.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(core.CleanString(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", core.NewValidationError(nil, core.FieldError{Field: "format", Error: "format must be one of json, csv, xlsx"})
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json; charset=utf-8"
}

// Filename names the export of a report over rng, e.g. "attendance-classes-2024-03-01-2024-03-31.csv".
func Filename(report string, rng core.DateRange, f Format) string {
	return fmt.Sprintf("attendance-%s-%s-%s.%s", report, rng.Start, rng.End, f)
}

// Write renders t in format f. JSON is not a table format and is rejected.
func Write(w io.Writer, f Format, sheet string, t attendance.Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, sheet, t)
	}
	return errors.Errorf("cannot export a table as %q", f)
}
