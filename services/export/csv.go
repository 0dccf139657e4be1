package export

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

// WriteCSV writes the header row then one record per table row.
func WriteCSV(w io.Writer, t attendance.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.Wrap(err, "writing csv rows")
	}
	return nil
}
