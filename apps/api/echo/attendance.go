package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/storage/cache"
)

type attendanceApi struct {
	rec    attendance.Recorder
	cache  cache.ReportCache
	logger core.Logger
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	rec attendance.Recorder,
	agg attendance.Aggregator,
	reportCache cache.ReportCache,
	logger core.Logger,
) {
	api := attendanceApi{rec: rec, cache: reportCache, logger: logger}
	reports := reportApi{agg: agg, cache: reportCache, logger: logger}

	ag := g.Group("/attendance", jwt, tenantMiddleware)
	ag.POST("", api.mark, staffMiddleware())
	ag.POST("/bulk", api.markBulk, staffMiddleware())
	ag.GET("", api.query)

	rg := ag.Group("/reports")
	rg.GET("/classes", reports.classes)
	rg.GET("/students", reports.students)
	rg.GET("/daily", reports.daily)
	rg.GET("/today", reports.today)

	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/history", api.history)
}

type (
	BulkMarkResponse struct {
		Written int    `json:"written"`
		Info    string `json:"info,omitempty"`
	}
)

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data attendance.MarkInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkInput")
	}
	data.MarkedBy = claims.Subject

	evt, err := api.rec.Mark(ctx.Request().Context(), claims.TenantID, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	api.invalidateReports(ctx.Request().Context(), claims.Actor())

	return ctx.JSON(http.StatusOK, evt)
}

func (api *attendanceApi) markBulk(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data attendance.BulkMarkInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkMarkInput")
	}
	data.MarkedBy = claims.Subject

	written, err := api.rec.MarkBulk(ctx.Request().Context(), claims.TenantID, data)
	if err != nil {
		if attendance.IsEmptyRoster(err) {
			return ctx.JSON(http.StatusOK, BulkMarkResponse{Info: errors.Cause(err).Error()})
		}
		return errors.Wrap(err, "bulk marking attendance")
	}
	if written > 0 {
		api.invalidateReports(ctx.Request().Context(), claims.Actor())
	}

	return ctx.JSON(http.StatusOK, BulkMarkResponse{Written: written})
}

func (api *attendanceApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter, err := queryFilter(ctx, claims.TenantID)
	if err != nil {
		return err
	}
	events, err := api.rec.Query(ctx.Request().Context(), claims.TenantID, filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if events == nil {
		events = []attendance.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	evt, err := api.rec.Get(ctx.Request().Context(), claims.TenantID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving attendance")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	amendments, err := api.rec.History(ctx.Request().Context(), claims.TenantID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving attendance history")
	}
	if amendments == nil {
		amendments = []attendance.Amendment{}
	}
	return ctx.JSON(http.StatusOK, amendments)
}

// invalidateReports drops the cached reports of the actor's tenant. Failures are only logged.
func (api *attendanceApi) invalidateReports(ctx context.Context, actor core.Actor) {
	if err := api.cache.Invalidate(ctx, actor.TenantID); err != nil {
		api.logger.Warn(fmt.Sprintf("invalidating cached reports of tenant %s: %v", actor.TenantID, err), err, actor)
	}
}
