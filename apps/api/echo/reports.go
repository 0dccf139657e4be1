package echoapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/export"
	"github.com/trezcool/masomo-attendance/storage/cache"
)

type reportApi struct {
	agg    attendance.Aggregator
	cache  cache.ReportCache
	logger core.Logger
}

type reportParams struct {
	actor   core.Actor
	rng     core.DateRange
	classID string
	format  export.Format
}

// params reads the report window, defaulting to the current month of the school.
func (api *reportApi) params(ctx echo.Context) (reportParams, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return reportParams{}, errors.Wrap(err, "getting context claims")
	}

	q := newQueryParams(ctx)
	p := reportParams{
		actor:   claims.Actor(),
		rng:     q.dateRange(monthOf(api.agg.Today())),
		classID: q.classID(),
	}
	format, fErr := export.ParseFormat(q.string("format"))
	if fErr != nil {
		q.errs = append(q.errs, fErr.(*core.ValidationError).Fields...)
	}
	p.format = format
	return p, q.err()
}

func (p reportParams) cacheKey(report string) string {
	return fmt.Sprintf("%s:%s:%s:%s", report, p.rng.Start, p.rng.End, p.classID)
}

// cached loads a report into dst and returns the key a miss must be stored under.
// Cache failures count as misses; an empty key disables storing.
func (api *reportApi) cached(ctx context.Context, actor core.Actor, report string, dst interface{}) (string, bool) {
	key, err := api.cache.Key(ctx, actor.TenantID, report)
	if err != nil {
		api.logger.Warn(fmt.Sprintf("resolving cached report %s: %v", report, err), err, actor)
		return "", false
	}
	hit, err := api.cache.Get(ctx, key, dst)
	if err != nil {
		api.logger.Warn(fmt.Sprintf("reading cached report %s: %v", key, err), err, actor)
		return key, false
	}
	return key, hit
}

func (api *reportApi) store(ctx context.Context, actor core.Actor, key string, val interface{}) {
	if key == "" {
		return
	}
	if err := api.cache.Set(ctx, key, val); err != nil {
		api.logger.Warn(fmt.Sprintf("caching report %s: %v", key, err), err, actor)
	}
}

// render writes stats as JSON, or table as a file download.
func (api *reportApi) render(ctx echo.Context, p reportParams, report string, stats interface{}, table func() attendance.Table) error {
	if p.format == export.FormatJSON {
		return ctx.JSON(http.StatusOK, stats)
	}

	buf := new(bytes.Buffer)
	if err := export.Write(buf, p.format, report, table()); err != nil {
		return errors.Wrapf(err, "exporting %s report", report)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", export.Filename(report, p.rng, p.format)))
	return ctx.Blob(http.StatusOK, p.format.ContentType(), buf.Bytes())
}

// Handlers

func (api *reportApi) classes(ctx echo.Context) error {
	p, err := api.params(ctx)
	if err != nil {
		return err
	}

	var stats []attendance.ClassStat
	key, hit := api.cached(ctx.Request().Context(), p.actor, p.cacheKey("classes"), &stats)
	if !hit {
		stats, err = api.agg.ClassStats(ctx.Request().Context(), p.actor.TenantID, p.rng, p.classID)
		if err != nil {
			return errors.Wrap(err, "computing class stats")
		}
		api.store(ctx.Request().Context(), p.actor, key, stats)
	}
	return api.render(ctx, p, "classes", stats, func() attendance.Table { return attendance.ClassStatsTable(stats) })
}

func (api *reportApi) students(ctx echo.Context) error {
	p, err := api.params(ctx)
	if err != nil {
		return err
	}

	var stats []attendance.StudentStat
	key, hit := api.cached(ctx.Request().Context(), p.actor, p.cacheKey("students"), &stats)
	if !hit {
		stats, err = api.agg.StudentStats(ctx.Request().Context(), p.actor.TenantID, p.rng, p.classID)
		if err != nil {
			return errors.Wrap(err, "computing student stats")
		}
		api.store(ctx.Request().Context(), p.actor, key, stats)
	}
	return api.render(ctx, p, "students", stats, func() attendance.Table { return attendance.StudentStatsTable(stats) })
}

func (api *reportApi) daily(ctx echo.Context) error {
	p, err := api.params(ctx)
	if err != nil {
		return err
	}

	var stats []attendance.DailyStat
	key, hit := api.cached(ctx.Request().Context(), p.actor, p.cacheKey("daily"), &stats)
	if !hit {
		stats, err = api.agg.DailySeries(ctx.Request().Context(), p.actor.TenantID, p.rng, p.classID)
		if err != nil {
			return errors.Wrap(err, "computing daily series")
		}
		api.store(ctx.Request().Context(), p.actor, key, stats)
	}
	return api.render(ctx, p, "daily", stats, func() attendance.Table { return attendance.DailySeriesTable(stats) })
}

func (api *reportApi) today(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	q := newQueryParams(ctx)
	p := reportParams{actor: claims.Actor(), classID: q.classID()}
	format, fErr := export.ParseFormat(q.string("format"))
	if fErr != nil {
		q.errs = append(q.errs, fErr.(*core.ValidationError).Fields...)
	}
	if err = q.err(); err != nil {
		return err
	}
	p.format = format

	var sum attendance.TodaySummary
	key, hit := api.cached(ctx.Request().Context(), p.actor, fmt.Sprintf("today:%s:%s", api.agg.Today(), p.classID), &sum)
	if !hit {
		sum, err = api.agg.TodaySummary(ctx.Request().Context(), p.actor.TenantID, p.classID)
		if err != nil {
			return errors.Wrap(err, "computing today's summary")
		}
		api.store(ctx.Request().Context(), p.actor, key, sum)
	}
	p.rng = core.DateRange{Start: sum.Date, End: sum.Date}
	return api.render(ctx, p, "today", sum, func() attendance.Table { return attendance.TodaySummaryTable(sum) })
}
