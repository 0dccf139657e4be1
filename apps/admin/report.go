package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/export"
)

var reportKinds = []string{"classes", "students", "daily", "today"}

type reportParams struct {
	tenantID string
	kind     string
	from     string
	to       string
	classID  string
	format   string
	outPath  string
}

// dateRange defaults to the calendar month of today.
func (p reportParams) dateRange(today core.Date) (core.DateRange, error) {
	if p.from == "" && p.to == "" {
		t := today.Time()
		start := core.NewDate(t.Year(), t.Month(), 1)
		return core.DateRange{Start: start, End: core.DateOf(start.Time().AddDate(0, 1, -1))}, nil
	}
	if p.from == "" || p.to == "" {
		return core.DateRange{}, errors.New("-from and -to go together")
	}
	start, err := core.ParseDate(p.from)
	if err != nil {
		return core.DateRange{}, err
	}
	end, err := core.ParseDate(p.to)
	if err != nil {
		return core.DateRange{}, err
	}
	return core.DateRange{Start: start, End: end}, nil
}

func (cli *commandLine) report(p reportParams) (err error) {
	format, err := export.ParseFormat(p.format)
	if err != nil {
		return err
	}
	rng, err := p.dateRange(cli.agg.Today())
	if err != nil {
		return err
	}

	ctx := context.Background()
	var stats interface{}
	var table attendance.Table
	switch p.kind {
	case "classes":
		st, err := cli.agg.ClassStats(ctx, p.tenantID, rng, p.classID)
		if err != nil {
			return err
		}
		stats, table = st, attendance.ClassStatsTable(st)
	case "students":
		st, err := cli.agg.StudentStats(ctx, p.tenantID, rng, p.classID)
		if err != nil {
			return err
		}
		stats, table = st, attendance.StudentStatsTable(st)
	case "daily":
		st, err := cli.agg.DailySeries(ctx, p.tenantID, rng, p.classID)
		if err != nil {
			return err
		}
		stats, table = st, attendance.DailySeriesTable(st)
	case "today":
		sum, err := cli.agg.TodaySummary(ctx, p.tenantID, p.classID)
		if err != nil {
			return err
		}
		stats, table = sum, attendance.TodaySummaryTable(sum)
		rng = core.DateRange{Start: sum.Date, End: sum.Date}
	default:
		return errors.Errorf("unknown report kind %q", p.kind)
	}

	w := cli.out
	if p.outPath != "" {
		f, fErr := os.Create(p.outPath)
		if fErr != nil {
			return errors.Wrap(fErr, "creating report file")
		}
		defer func() {
			if cErr := f.Close(); cErr != nil && err == nil {
				err = errors.Wrap(cErr, "closing report file")
			}
		}()
		w = f
	}

	if err = writeReport(w, format, p.kind, stats, table); err != nil {
		return errors.Wrapf(err, "writing %s report", p.kind)
	}
	if p.outPath != "" {
		_, _ = fmt.Fprintf(cli.out, "%s report of %s written to %s\n", p.kind, rng, p.outPath)
	}
	return nil
}

func writeReport(w io.Writer, format export.Format, kind string, stats interface{}, table attendance.Table) error {
	if format == export.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	return export.Write(w, format, kind, table)
}
